package conjunction

import (
	"context"
	"testing"
	"time"

	"github.com/orbitalos/ssa/internal/core/model"
	"github.com/orbitalos/ssa/internal/propagator"
)

func mustProp(t *testing.T, line1, line2 string, catalogID uint64) *propagator.Propagator {
	t.Helper()
	p, err := propagator.Init(model.ElementSet{
		CatalogID: catalogID,
		Name:      "TEST OBJECT",
		Line1:     line1,
		Line2:     line2,
		FetchedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("propagator.Init: %v", err)
	}
	return p
}

// issLines and a near-identical co-altitude companion (slightly offset mean
// anomaly) are used so the pair has a genuine close approach inside the
// default screening window.
const issLine1 = "1 25544U 98067A   24010.50000000  .00016717  00000-0  10270-3 0  9994"
const issLine2 = "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.49309239999999"

const debrisLine1 = "1 90000U 24001A   24010.50000000  .00016717  00000-0  10270-3 0  9995"
const debrisLine2 = "2 90000  51.6416 247.4627 0006703 130.5360 325.0300 15.49309239999999"

const farLine1 = "1 80000U 10001A   24010.50000000  .00000100  00000-0  10000-4 0  9996"
const farLine2 = "2 80000  98.2000  10.0000 0001000  90.0000 270.0000 14.57000000999999"

func TestAnalyzeSkipsWhenFewerThanTwoObjects(t *testing.T) {
	a := New(nil, nil, nil)
	pa := mustProp(t, issLine1, issLine2, 25544)
	report, err := a.Analyze(context.Background(), []*propagator.Propagator{pa}, time.Now().UTC(), DefaultParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Events) != 0 {
		t.Fatalf("expected no events with a single object, got %d", len(report.Events))
	}
}

func TestAnalyzeFindsCloseApproach(t *testing.T) {
	a := New(nil, nil, nil)
	pa := mustProp(t, issLine1, issLine2, 25544)
	pb := mustProp(t, debrisLine1, debrisLine2, 90000)

	start := pa.Epoch()
	report, err := a.Analyze(context.Background(), []*propagator.Propagator{pa, pb}, start, DefaultParams())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if report.CandidatePairs == 0 {
		t.Fatalf("expected the near-identical orbit pair to survive screening")
	}
	if len(report.Events) != report.CandidatePairs {
		t.Fatalf("expected one event per surviving candidate, got %d events for %d candidates", len(report.Events), report.CandidatePairs)
	}
	ev := report.Events[0]
	if ev.DMinKm < 0 {
		t.Fatalf("expected non-negative minimum distance, got %f", ev.DMinKm)
	}
	if ev.Pc < 0 || ev.Pc > 1 {
		t.Fatalf("expected probability in [0,1], got %f", ev.Pc)
	}
}

func TestAnalyzePrefiltersDistantAltitudes(t *testing.T) {
	a := New(nil, nil, nil)
	pa := mustProp(t, issLine1, issLine2, 25544)
	pb := mustProp(t, farLine1, farLine2, 80000)

	start := pa.Epoch()
	report, err := a.Analyze(context.Background(), []*propagator.Propagator{pa, pb}, start, DefaultParams())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if report.CandidatePairs != 0 {
		t.Fatalf("expected the altitude prefilter to reject a far-separated pair, got %d candidates", report.CandidatePairs)
	}
	if len(report.Events) != 0 {
		t.Fatalf("expected zero events, got %d", len(report.Events))
	}
}

func TestAnalyzeEventsSortedByProbabilityDescending(t *testing.T) {
	a := New(nil, nil, nil)
	pa := mustProp(t, issLine1, issLine2, 25544)
	pb := mustProp(t, debrisLine1, debrisLine2, 90000)

	start := pa.Epoch()
	report, err := a.Analyze(context.Background(), []*propagator.Propagator{pa, pb}, start, DefaultParams())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	for i := 1; i < len(report.Events); i++ {
		if report.Events[i].Pc > report.Events[i-1].Pc {
			t.Fatalf("events not sorted by descending probability at index %d", i)
		}
	}
}

type fakeRiskModel struct {
	calls int
}

func (f *fakeRiskModel) PredictAndUpdate(features [4]float64, label float64) float64 {
	f.calls++
	return 0.05
}

type fakePublisher struct {
	alerts []model.LiveAlert
}

func (f *fakePublisher) Publish(alert model.LiveAlert) {
	f.alerts = append(f.alerts, alert)
}

func TestAnalyzeFusesModelProbabilityWithoutAlertingBelowThreshold(t *testing.T) {
	rm := &fakeRiskModel{}
	pub := &fakePublisher{}
	a := New(rm, pub, nil)
	pa := mustProp(t, issLine1, issLine2, 25544)
	pb := mustProp(t, debrisLine1, debrisLine2, 90000)

	start := pa.Epoch()
	report, err := a.Analyze(context.Background(), []*propagator.Propagator{pa, pb}, start, DefaultParams())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if rm.calls == 0 {
		t.Fatal("expected the risk model to be consulted for each surviving candidate")
	}
	for _, ev := range report.Events {
		if ev.Pc < 0.05 {
			t.Fatalf("expected fused probability to be at least the model's output, got %f", ev.Pc)
		}
	}
	if len(pub.alerts) != 0 {
		t.Fatalf("expected no alerts published below the 0.6 threshold, got %d", len(pub.alerts))
	}
}

func TestAnalyzePublishesAlertAboveThreshold(t *testing.T) {
	rm := &fakeRiskModelFixed{prob: 0.9}
	pub := &fakePublisher{}
	a := New(rm, pub, nil)
	pa := mustProp(t, issLine1, issLine2, 25544)
	pb := mustProp(t, debrisLine1, debrisLine2, 90000)

	start := pa.Epoch()
	_, err := a.Analyze(context.Background(), []*propagator.Propagator{pa, pb}, start, DefaultParams())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(pub.alerts) == 0 {
		t.Fatal("expected an alert to be published when fused probability crosses 0.6")
	}
	if pub.alerts[0].Category != model.CategoryCollisionRisk {
		t.Fatalf("unexpected alert category: %v", pub.alerts[0].Category)
	}
}

type fakeRiskModelFixed struct {
	prob float64
}

func (f *fakeRiskModelFixed) PredictAndUpdate(features [4]float64, label float64) float64 {
	return f.prob
}

func TestAnalyzeContextCancellation(t *testing.T) {
	a := New(nil, nil, nil)
	pa := mustProp(t, issLine1, issLine2, 25544)
	pb := mustProp(t, debrisLine1, debrisLine2, 90000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Analyze(ctx, []*propagator.Propagator{pa, pb}, pa.Epoch(), DefaultParams())
	if err == nil {
		t.Fatal("expected context cancellation to surface as an error")
	}
}
