// Package catalog owns the propagated-object table: it enforces the
// refresh cadence, serves point/range queries, and fronts propagation with
// an in-process LRU and an optional Redis tier.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/orbitalos/ssa/internal/core/model"
	"github.com/orbitalos/ssa/internal/core/observability"
	"github.com/orbitalos/ssa/internal/propagator"
)

// Loader is implemented by the fetcher; kept as an interface so the
// manager's refresh logic is testable without network access.
type Loader interface {
	FetchGroups(ctx context.Context, groups []string) ([]model.ElementSet, error)
}

// RemoteCache is implemented by internal/rediscache; a nil RemoteCache
// means the manager runs with only its in-process LRU.
type RemoteCache interface {
	Get(ctx context.Context, catalogID uint64, at time.Time) (model.InstantaneousState, bool, error)
	Set(ctx context.Context, st model.InstantaneousState) error
}

type entry struct {
	prop *propagator.Propagator
}

type Manager struct {
	mu              sync.RWMutex
	objects         map[uint64]*entry
	order           []uint64
	lastUpdate      time.Time

	refreshInterval time.Duration
	groups          []string

	loader Loader
	lru    *lru.Cache[string, model.InstantaneousState]
	remote RemoteCache
	log    *slog.Logger
}

func New(loader Loader, groups []string, refreshInterval time.Duration, lruSize int, remote RemoteCache, log *slog.Logger) (*Manager, error) {
	if log == nil {
		log = slog.Default()
	}
	if lruSize <= 0 {
		lruSize = 4096
	}
	cache, err := lru.New[string, model.InstantaneousState](lruSize)
	if err != nil {
		return nil, fmt.Errorf("catalog: build lru: %w", err)
	}
	return &Manager{
		objects:         map[uint64]*entry{},
		refreshInterval: refreshInterval,
		groups:          groups,
		loader:          loader,
		lru:             cache,
		remote:          remote,
		log:             log,
	}, nil
}

// Load constructs propagators for every input element set and, if at least
// one succeeds, atomically replaces the catalog. Duplicate catalog_ids keep
// the first successfully-initialized copy (P1). If zero initializations
// succeed, the existing catalog is left untouched and ErrNoData is
// returned.
func (m *Manager) Load(sets []model.ElementSet) error {
	built := make(map[uint64]*entry, len(sets))
	order := make([]uint64, 0, len(sets))
	for _, es := range sets {
		if _, exists := built[es.CatalogID]; exists {
			continue
		}
		p, err := propagator.Init(es)
		if err != nil {
			m.log.Warn("dropping element set that failed propagator init", "catalog_id", es.CatalogID, "err", err)
			continue
		}
		built[es.CatalogID] = &entry{prop: p}
		order = append(order, es.CatalogID)
	}
	if len(built) == 0 {
		return ErrNoData
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	m.mu.Lock()
	m.objects = built
	m.order = order
	m.lastUpdate = time.Now().UTC()
	m.mu.Unlock()

	observability.ObserveCatalogRefresh("ok", len(built))
	return nil
}

// Refresh fetches the configured groups and loads the result. Background
// and on-demand refresh both call this; a failure here never fails the
// caller — it only leaves the existing catalog in place, per the
// freshness policy's swap discipline.
func (m *Manager) Refresh(ctx context.Context) error {
	sets, err := m.loader.FetchGroups(ctx, m.groups)
	if err != nil {
		observability.ObserveCatalogRefresh("fetch_failed", 0)
		m.log.Warn("catalog refresh fetch failed, retaining existing catalog", "err", err)
		return nil
	}
	if err := m.Load(sets); err != nil {
		observability.ObserveCatalogRefresh("no_data", 0)
		m.log.Warn("catalog refresh yielded zero viable objects, retaining existing catalog", "err", err)
		return nil
	}
	return nil
}

// RefreshIfStale triggers a refresh on the calling goroutine if the catalog
// has not been updated within the configured interval (P2).
func (m *Manager) RefreshIfStale(ctx context.Context) error {
	m.mu.RLock()
	stale := m.lastUpdate.IsZero() || time.Since(m.lastUpdate) > m.refreshInterval
	m.mu.RUnlock()
	if !stale {
		return nil
	}
	return m.Refresh(ctx)
}

// RunRefreshLoop periodically refreshes the catalog until ctx is cancelled.
func (m *Manager) RunRefreshLoop(ctx context.Context) {
	interval := m.refreshInterval
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Refresh(ctx); err != nil {
				m.log.Warn("background catalog refresh error", "err", err)
			}
		}
	}
}

func cacheKey(catalogID uint64, at time.Time) string {
	return fmt.Sprintf("%d:%d", catalogID, at.UTC().Truncate(time.Minute).Unix())
}

func (m *Manager) computeState(e *entry, at time.Time) (model.InstantaneousState, error) {
	pos, vel, err := e.prop.Propagate(at)
	if err != nil {
		return model.InstantaneousState{}, err
	}
	fix := propagator.ECIToGeodetic(pos, at)
	age := e.prop.AgeHours(at)
	speed := vel.Norm()
	es := e.prop.ElementSet()

	score, band, reason := scoreObject(riskInputs{
		name:     es.Name,
		altKm:    fix.AltKm,
		speedKmS: speed,
		ageHours: age,
	})

	return model.InstantaneousState{
		CatalogID:   es.CatalogID,
		Name:        es.Name,
		PositionECI: pos,
		VelocityECI: vel,
		LatDeg:      fix.LatDeg,
		LonDeg:      fix.LonDeg,
		AltKm:       fix.AltKm,
		Timestamp:   at,
		RiskScore:   score,
		RiskBand:    band,
		RiskReason:  reason,
	}, nil
}

// Position returns the derived state of a single catalog object, consulting
// the LRU and then the optional remote cache before propagating.
func (m *Manager) Position(ctx context.Context, catalogID uint64, at time.Time) (model.InstantaneousState, error) {
	_ = m.RefreshIfStale(ctx)

	m.mu.RLock()
	e, ok := m.objects[catalogID]
	m.mu.RUnlock()
	if !ok {
		return model.InstantaneousState{}, ErrNotFound
	}

	ck := cacheKey(catalogID, at)
	if st, ok := m.lru.Get(ck); ok {
		return st, nil
	}
	if m.remote != nil {
		if st, ok, err := m.remote.Get(ctx, catalogID, at); err == nil && ok {
			m.lru.Add(ck, st)
			return st, nil
		}
	}

	st, err := m.computeState(e, at)
	if err != nil {
		observability.IncPropagationError("propagate")
		return model.InstantaneousState{}, fmt.Errorf("%w: %v", ErrPropError, err)
	}
	m.lru.Add(ck, st)
	if m.remote != nil {
		_ = m.remote.Set(ctx, st)
	}
	return st, nil
}

// PositionsAt returns states for every cataloged object at the given
// instant, sorted by catalog_id ascending. Objects whose propagation fails
// are skipped; their failure does not affect the rest of the list.
func (m *Manager) PositionsAt(ctx context.Context, at time.Time, limit int) ([]model.InstantaneousState, error) {
	_ = m.RefreshIfStale(ctx)

	m.mu.RLock()
	ids := append([]uint64(nil), m.order...)
	objects := m.objects
	m.mu.RUnlock()

	out := make([]model.InstantaneousState, 0, len(ids))
	for _, id := range ids {
		st, err := m.computeState(objects[id], at)
		if err != nil {
			observability.IncPropagationError("propagate")
			continue
		}
		out = append(out, st)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ByGroup returns the states of every cataloged object whose name matches
// the group tag's substring rules.
func (m *Manager) ByGroup(ctx context.Context, tag string, at time.Time) ([]model.InstantaneousState, error) {
	_ = m.RefreshIfStale(ctx)

	m.mu.RLock()
	ids := append([]uint64(nil), m.order...)
	objects := m.objects
	m.mu.RUnlock()

	var out []model.InstantaneousState
	for _, id := range ids {
		e := objects[id]
		if !matchesGroup(e.prop.ElementSet().Name, tag) {
			continue
		}
		st, err := m.computeState(e, at)
		if err != nil {
			observability.IncPropagationError("propagate")
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

// Lookup returns the propagator for a single catalog object, used by the
// conjunction and reservation packages to build subsets.
func (m *Manager) Lookup(catalogID uint64) (*propagator.Propagator, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.objects[catalogID]
	if !ok {
		return nil, false
	}
	return e.prop, true
}

// All returns every propagator currently in the catalog, in catalog_id order.
func (m *Manager) All() []*propagator.Propagator {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*propagator.Propagator, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.objects[id].prop)
	}
	return out
}

// Readiness reports whether the catalog has ever loaded successfully, for
// the ops readiness probe.
func (m *Manager) Readiness() (ready bool, lastUpdate time.Time, count int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects) > 0, m.lastUpdate, len(m.objects)
}
