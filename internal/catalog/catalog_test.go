package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/orbitalos/ssa/internal/core/model"
)

func issElementSet(catalogID uint64) model.ElementSet {
	return model.ElementSet{
		CatalogID: catalogID,
		Name:      "ISS (ZARYA)",
		Line1:     "1 25544U 98067A   24010.50000000  .00016717  00000-0  10270-3 0  9994",
		Line2:     "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.49309239999999",
		FetchedAt: time.Now().UTC(),
	}
}

type stubLoader struct {
	sets []model.ElementSet
	err  error
}

func (s *stubLoader) FetchGroups(ctx context.Context, groups []string) ([]model.ElementSet, error) {
	return s.sets, s.err
}

func newTestManager(t *testing.T, loader Loader) *Manager {
	t.Helper()
	m, err := New(loader, []string{"stations"}, time.Hour, 64, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestLoadRejectsAllFailing(t *testing.T) {
	m := newTestManager(t, &stubLoader{})
	err := m.Load([]model.ElementSet{{CatalogID: 1, Line1: "bad", Line2: "bad"}})
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestLoadDedupesKeepingFirst(t *testing.T) {
	m := newTestManager(t, &stubLoader{})
	a := issElementSet(25544)
	b := issElementSet(25544)
	b.Name = "DUPLICATE"
	err := m.Load([]model.ElementSet{a, b})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, ok := m.Lookup(25544)
	if !ok {
		t.Fatal("expected object to be present")
	}
	if p.ElementSet().Name != "ISS (ZARYA)" {
		t.Fatalf("expected first occurrence to win, got %q", p.ElementSet().Name)
	}
}

func TestPositionNotFound(t *testing.T) {
	m := newTestManager(t, &stubLoader{sets: []model.ElementSet{issElementSet(25544)}})
	if err := m.Load([]model.ElementSet{issElementSet(25544)}); err != nil {
		t.Fatalf("load: %v", err)
	}
	_, err := m.Position(context.Background(), 99999, time.Now().UTC())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPositionComputesAndCaches(t *testing.T) {
	m := newTestManager(t, &stubLoader{})
	es := issElementSet(25544)
	if err := m.Load([]model.ElementSet{es}); err != nil {
		t.Fatalf("load: %v", err)
	}
	at := es.FetchedAt.Add(time.Hour)
	st, err := m.Position(context.Background(), 25544, at)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if st.CatalogID != 25544 {
		t.Fatalf("unexpected catalog id %d", st.CatalogID)
	}
	if st.LonDeg <= -180 || st.LonDeg > 180 {
		t.Fatalf("longitude out of range: %f", st.LonDeg)
	}

	// second call should hit the LRU and return identical state
	st2, err := m.Position(context.Background(), 25544, at)
	if err != nil {
		t.Fatalf("position (cached): %v", err)
	}
	if st2.Timestamp != st.Timestamp {
		t.Fatalf("expected cached state to match")
	}
}

func TestPositionsAtSortedByCatalogID(t *testing.T) {
	m := newTestManager(t, &stubLoader{})
	es1 := issElementSet(25544)
	es2 := issElementSet(10000)
	if err := m.Load([]model.ElementSet{es1, es2}); err != nil {
		t.Fatalf("load: %v", err)
	}
	states, err := m.PositionsAt(context.Background(), time.Now().UTC(), 0)
	if err != nil {
		t.Fatalf("positionsAt: %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("expected 2 states, got %d", len(states))
	}
	if states[0].CatalogID != 10000 || states[1].CatalogID != 25544 {
		t.Fatalf("expected ascending catalog_id order, got %d, %d", states[0].CatalogID, states[1].CatalogID)
	}
}

func TestByGroupMatchesISSName(t *testing.T) {
	m := newTestManager(t, &stubLoader{})
	if err := m.Load([]model.ElementSet{issElementSet(25544)}); err != nil {
		t.Fatalf("load: %v", err)
	}
	states, err := m.ByGroup(context.Background(), "iss", time.Now().UTC())
	if err != nil {
		t.Fatalf("byGroup: %v", err)
	}
	if len(states) != 1 {
		t.Fatalf("expected 1 match, got %d", len(states))
	}
}

func TestRefreshRetainsCatalogOnEmptyResult(t *testing.T) {
	loader := &stubLoader{sets: []model.ElementSet{issElementSet(25544)}}
	m := newTestManager(t, loader)
	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("initial refresh: %v", err)
	}
	if _, ok := m.Lookup(25544); !ok {
		t.Fatal("expected initial load to succeed")
	}

	loader.sets = nil
	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh with empty result should not error: %v", err)
	}
	if _, ok := m.Lookup(25544); !ok {
		t.Fatal("expected existing catalog to be retained after empty refresh")
	}
}

func TestReadinessReflectsLoadState(t *testing.T) {
	m := newTestManager(t, &stubLoader{})
	ready, _, count := m.Readiness()
	if ready || count != 0 {
		t.Fatalf("expected not-ready empty catalog before load")
	}
	if err := m.Load([]model.ElementSet{issElementSet(25544)}); err != nil {
		t.Fatalf("load: %v", err)
	}
	ready, _, count = m.Readiness()
	if !ready || count != 1 {
		t.Fatalf("expected ready catalog with 1 object, got ready=%v count=%d", ready, count)
	}
}
