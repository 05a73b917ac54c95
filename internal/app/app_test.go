package app

import (
	"context"
	"testing"
	"time"

	"github.com/orbitalos/ssa/internal/alerthub"
	"github.com/orbitalos/ssa/internal/catalog"
	"github.com/orbitalos/ssa/internal/conjunction"
	"github.com/orbitalos/ssa/internal/core/model"
	"github.com/orbitalos/ssa/internal/reservation"
	"github.com/orbitalos/ssa/internal/riskmodel"
)

const issLine1 = "1 25544U 98067A   24010.50000000  .00016717  00000-0  10270-3 0  9994"
const issLine2 = "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.49309239999999"

const debrisLine1 = "1 90000U 24001A   24010.50000000  .00016717  00000-0  10270-3 0  9995"
const debrisLine2 = "2 90000  51.6416 247.4627 0006703 130.5360 325.0300 15.49309239999999"

func testService(t *testing.T) *Service {
	t.Helper()
	cat, err := catalog.New(nil, []string{"active"}, 6*time.Hour, 1024, nil, nil)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	if err := cat.Load([]model.ElementSet{
		{CatalogID: 25544, Name: "ISS (ZARYA)", Line1: issLine1, Line2: issLine2, FetchedAt: time.Now().UTC()},
		{CatalogID: 90000, Name: "DEBRIS OBJECT", Line1: debrisLine1, Line2: debrisLine2, FetchedAt: time.Now().UTC()},
	}); err != nil {
		t.Fatalf("cat.Load: %v", err)
	}

	risk := riskmodel.LoadOrDefault("", 5e-3, 5e-4, nil)
	alerts := alerthub.New(nil)
	analyzer := conjunction.New(risk, alerts, nil)
	reservations := reservation.New(cat, risk, nil)

	return New(cat, analyzer, reservations, risk, alerts, conjunction.DefaultParams(), nil)
}

func TestListObjectsPaginates(t *testing.T) {
	s := testService(t)
	page1, err := s.ListObjects(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("ListObjects: %v", err)
	}
	if len(page1) != 1 {
		t.Fatalf("expected 1 object on page 1, got %d", len(page1))
	}
	page2, err := s.ListObjects(context.Background(), 2, 1)
	if err != nil {
		t.Fatalf("ListObjects: %v", err)
	}
	if len(page2) != 1 || page2[0].CatalogID == page1[0].CatalogID {
		t.Fatalf("expected page 2 to return the other object, got %+v", page2)
	}
}

func TestGetObjectReturnsState(t *testing.T) {
	s := testService(t)
	st, err := s.GetObject(context.Background(), 25544)
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	if st.CatalogID != 25544 {
		t.Fatalf("unexpected catalog id: %d", st.CatalogID)
	}
}

func TestGetObjectUnknownID(t *testing.T) {
	s := testService(t)
	if _, err := s.GetObject(context.Background(), 1); err == nil {
		t.Fatal("expected an error for an unknown catalog id")
	}
}

func TestGetGroupMatchesISS(t *testing.T) {
	s := testService(t)
	group, err := s.GetGroup(context.Background(), "iss")
	if err != nil {
		t.Fatalf("GetGroup: %v", err)
	}
	if len(group) != 1 || group[0].CatalogID != 25544 {
		t.Fatalf("expected only ISS in the iss group, got %+v", group)
	}
}

func TestAnalyzeRunsOverWholeCatalogWhenSubsetEmpty(t *testing.T) {
	s := testService(t)
	report, err := s.Analyze(context.Background(), nil, conjunction.Params{})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if report.PairsScreened == 0 {
		t.Fatal("expected at least one pair to be screened across the whole catalog")
	}
}

func TestPredictRiskSummarizesBands(t *testing.T) {
	s := testService(t)
	summary, err := s.PredictRisk(context.Background(), nil, 48, 1e-4)
	if err != nil {
		t.Fatalf("PredictRisk: %v", err)
	}
	if summary.PairsTotal != len(summary.Pairs) {
		t.Fatalf("pairs total mismatch: %d vs %d", summary.PairsTotal, len(summary.Pairs))
	}
	total := 0
	for _, n := range summary.BandCounts {
		total += n
	}
	if total != summary.PairsTotal {
		t.Fatalf("band counts (%d) should sum to pairs total (%d)", total, summary.PairsTotal)
	}
}

func TestStreamAlertsSubscribeAndStop(t *testing.T) {
	s := testService(t)
	sub := s.StreamAlerts("tenant-a")
	if sub.ID == "" {
		t.Fatal("expected a non-empty subscription id")
	}
	s.StopStreaming(sub.ID)
	if _, ok := <-sub.Alerts; ok {
		t.Fatal("expected channel to be closed after StopStreaming")
	}
}

func TestCreateReservationAndCheckConflicts(t *testing.T) {
	s := testService(t)
	center := model.ElementSet{CatalogID: 25544, Name: "ISS (ZARYA)", Line1: issLine1, Line2: issLine2}
	res, err := s.CreateReservation(context.Background(), reservation.CreateRequest{
		Owner:              "test-owner",
		Kind:               model.KindOperationalSlot,
		Start:              time.Now().UTC(),
		End:                time.Now().UTC().Add(2 * time.Hour),
		CenterElementSet:   &center,
		ProtectionRadiusKm: 50,
		Priority:           model.PriorityHigh,
	})
	if err != nil {
		t.Fatalf("CreateReservation: %v", err)
	}

	resp, err := s.CheckConflicts(context.Background(), res.ID)
	if err != nil {
		t.Fatalf("CheckConflicts: %v", err)
	}
	if resp.ReservationID != res.ID {
		t.Fatalf("unexpected reservation id in response: %s", resp.ReservationID)
	}
}

func TestRiskExplanationReflectsColdStart(t *testing.T) {
	s := testService(t)
	exp := s.RiskExplanation()
	if exp.Bias != -3.125 {
		t.Fatalf("expected cold-start bias, got %f", exp.Bias)
	}
}
