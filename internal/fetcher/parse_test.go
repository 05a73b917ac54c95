package fetcher

import (
	"testing"
	"time"
)

const issSample = `ISS (ZARYA)
1 25544U 98067A   24010.50000000  .00016717  00000-0  10270-3 0  9994
2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.49309239999999
SOME DEBRIS
1 99999U 24001A   24010.50000000  .00000000  00000-0  00000-0 0  9990
2 99999  98.1234 100.0000 0001000  90.0000 270.0000 14.50000000000000`

func TestParseTLEText(t *testing.T) {
	sets := ParseTLEText(issSample, time.Now().UTC())
	if len(sets) != 2 {
		t.Fatalf("expected 2 element sets, got %d", len(sets))
	}
	if sets[0].CatalogID != 25544 {
		t.Errorf("expected catalog id 25544, got %d", sets[0].CatalogID)
	}
	if sets[0].Name != "ISS (ZARYA)" {
		t.Errorf("expected name ISS (ZARYA), got %q", sets[0].Name)
	}
	if sets[1].CatalogID != 99999 {
		t.Errorf("expected catalog id 99999, got %d", sets[1].CatalogID)
	}
}

func TestParseTLETextSkipsShortLines(t *testing.T) {
	body := "BAD OBJECT\n1 123\n2 123\n"
	sets := ParseTLEText(body, time.Now().UTC())
	if len(sets) != 0 {
		t.Fatalf("expected 0 element sets from malformed trio, got %d", len(sets))
	}
}

func TestParseTLETextMissingName(t *testing.T) {
	body := `1 25544U 98067A   24010.50000000  .00016717  00000-0  10270-3 0  9994
2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.49309239999999`
	sets := ParseTLEText(body, time.Now().UTC())
	if len(sets) != 1 {
		t.Fatalf("expected 1 element set, got %d", len(sets))
	}
	if sets[0].Name != "UNKNOWN" {
		t.Errorf("expected fallback name UNKNOWN, got %q", sets[0].Name)
	}
}

func TestDedupKeepsFirstOccurrence(t *testing.T) {
	now := time.Now().UTC()
	a := ParseTLEText(issSample, now)
	seq := append(a, a...)
	deduped := Dedup(seq)
	if len(deduped) != 2 {
		t.Fatalf("expected 2 deduped entries, got %d", len(deduped))
	}
}

func TestEpochToTime(t *testing.T) {
	ts, ok := EpochToTime("1 25544U 98067A   24010.50000000  .00016717  00000-0  10270-3 0  9994")
	if !ok {
		t.Fatal("expected epoch to parse")
	}
	if ts.Year() != 2024 {
		t.Errorf("expected year 2024, got %d", ts.Year())
	}
	if ts.YearDay() != 10 {
		t.Errorf("expected day-of-year 10, got %d", ts.YearDay())
	}
}
