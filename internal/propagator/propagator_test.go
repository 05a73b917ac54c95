package propagator

import (
	"math"
	"testing"
	"time"

	"github.com/orbitalos/ssa/internal/core/model"
)

func issElementSet() model.ElementSet {
	return model.ElementSet{
		CatalogID: 25544,
		Name:      "ISS (ZARYA)",
		Line1:     "1 25544U 98067A   24010.50000000  .00016717  00000-0  10270-3 0  9994",
		Line2:     "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.49309239999999",
		FetchedAt: time.Now().UTC(),
	}
}

func TestInitRejectsMalformedLines(t *testing.T) {
	es := model.ElementSet{CatalogID: 1, Line1: "too short", Line2: "also short"}
	if _, err := Init(es); err == nil {
		t.Fatal("expected error for malformed TLE lines")
	}
}

func TestInitAndPropagate(t *testing.T) {
	p, err := Init(issElementSet())
	if err != nil {
		t.Fatalf("unexpected init error: %v", err)
	}

	at := p.Epoch().Add(2 * time.Hour)
	pos, vel, err := p.Propagate(at)
	if err != nil {
		t.Fatalf("unexpected propagate error: %v", err)
	}

	r := pos.Norm()
	if r < 6000 || r > 8000 {
		t.Errorf("expected LEO-range position magnitude, got %f km", r)
	}
	speed := vel.Norm()
	if speed < 5 || speed > 10 {
		t.Errorf("expected LEO-range orbital speed, got %f km/s", speed)
	}
}

func TestAgeHours(t *testing.T) {
	p, err := Init(issElementSet())
	if err != nil {
		t.Fatalf("unexpected init error: %v", err)
	}
	age := p.AgeHours(p.Epoch().Add(10 * time.Hour))
	if math.Abs(age-10) > 1e-6 {
		t.Errorf("expected age 10h, got %f", age)
	}
}
