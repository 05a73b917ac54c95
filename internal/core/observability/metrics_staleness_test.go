package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestAlertsPublishedCounter_LabelsAndIncrement(t *testing.T) {
	reg := prometheus.NewRegistry()
	Init(reg, true)

	IncAlertPublished("CollisionRisk", "Critical")
	IncAlertPublished("ServiceHealth", "Info")
	IncAlertPublished("ServiceHealth", "Info")

	// scrape from a dedicated handler bound to our registry
	srv := httptest.NewServer(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("metrics scrape: %v", err)
	}
	t.Cleanup(func() {
		if cerr := resp.Body.Close(); cerr != nil {
			t.Fatalf("close body: %v", cerr)
		}
	})
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	out := string(b)

	exp1 := `ssa_alerts_published_total{category="CollisionRisk",severity="Critical"} 1`
	exp2 := `ssa_alerts_published_total{category="ServiceHealth",severity="Info"} 2`
	if !strings.Contains(out, exp1) {
		t.Fatalf("expected %q in metrics; got:\n%s", exp1, out)
	}
	if !strings.Contains(out, exp2) {
		t.Fatalf("expected %q in metrics; got:\n%s", exp2, out)
	}
}
