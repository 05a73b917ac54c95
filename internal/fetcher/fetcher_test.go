package fetcher

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
)

type fakeDoer struct {
	status int
	body   string
	err    error
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &http.Response{
		StatusCode: f.status,
		Body:       io.NopCloser(strings.NewReader(f.body)),
	}, nil
}

func TestFetchParsesBody(t *testing.T) {
	f := New(&fakeDoer{status: 200, body: issSample}, nil)
	sets, err := f.Fetch(context.Background(), "stations")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sets) != 2 {
		t.Fatalf("expected 2 sets, got %d", len(sets))
	}
}

func TestFetchNon2xxIsEmptyNotFatal(t *testing.T) {
	f := New(&fakeDoer{status: 503, body: "unavailable"}, nil)
	sets, err := f.Fetch(context.Background(), "stations")
	if err != nil {
		t.Fatalf("non-2xx must not be a fatal error, got: %v", err)
	}
	if len(sets) != 0 {
		t.Fatalf("expected empty result, got %d", len(sets))
	}
}

func TestFetchGroupsFailsOnlyWhenAllEmpty(t *testing.T) {
	f := New(&fakeDoer{status: 503, body: ""}, nil)
	_, err := f.FetchGroups(context.Background(), []string{"stations", "active"})
	if err == nil {
		t.Fatal("expected error when every group returns empty")
	}
}

func TestFetchGroupsDedupesAcrossGroups(t *testing.T) {
	f := New(&fakeDoer{status: 200, body: issSample}, nil)
	sets, err := f.FetchGroups(context.Background(), []string{"stations", "active"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sets) != 2 {
		t.Fatalf("expected dedup to collapse duplicate groups to 2 objects, got %d", len(sets))
	}
}

func TestIsKnownGroup(t *testing.T) {
	if !IsKnownGroup("starlink") {
		t.Error("expected starlink to be a known group")
	}
	if IsKnownGroup("not-a-group") {
		t.Error("expected unknown group to be rejected")
	}
}
