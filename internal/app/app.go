// Package app is the composition root: it wires the catalog, conjunction
// analyzer, reservation engine, risk model, and alert hub into the
// operation surface an external collaborator (an HTTP or gRPC layer, a
// CLI, a test) calls against. No package in internal/ imports this one;
// it only imports them.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/orbitalos/ssa/internal/alerthub"
	"github.com/orbitalos/ssa/internal/catalog"
	"github.com/orbitalos/ssa/internal/conjunction"
	"github.com/orbitalos/ssa/internal/core/model"
	"github.com/orbitalos/ssa/internal/propagator"
	"github.com/orbitalos/ssa/internal/reservation"
	"github.com/orbitalos/ssa/internal/riskmodel"
)

// Service implements the §6-shaped operation contract described in the
// system design: list/get/group/propagate over the catalog, analyze and
// predict_risk over the conjunction pipeline, stream_alerts over the hub,
// and the three reservation operations.
type Service struct {
	catalog      *catalog.Manager
	analyzer     *conjunction.Analyzer
	reservations *reservation.Manager
	riskModel    *riskmodel.Model
	alerts       *alerthub.Hub
	log          *slog.Logger

	defaultParams conjunction.Params
}

func New(
	cat *catalog.Manager,
	analyzer *conjunction.Analyzer,
	reservations *reservation.Manager,
	riskModel *riskmodel.Model,
	alerts *alerthub.Hub,
	defaultParams conjunction.Params,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		catalog:       cat,
		analyzer:      analyzer,
		reservations:  reservations,
		riskModel:     riskModel,
		alerts:        alerts,
		defaultParams: defaultParams,
		log:           log,
	}
}

// ListObjects returns a page of the catalog's current objects, sorted by
// catalog_id ascending. A non-positive page is treated as page 1; a
// non-positive limit returns every object, and page is then ignored.
func (s *Service) ListObjects(ctx context.Context, page, limit int) ([]model.InstantaneousState, error) {
	all, err := s.catalog.PositionsAt(ctx, time.Now().UTC(), 0)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	offset := 0
	if limit > 0 {
		offset = (page - 1) * limit
	}
	if offset >= len(all) {
		return []model.InstantaneousState{}, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], nil
}

// GetObject returns the current state of a single catalog object.
func (s *Service) GetObject(ctx context.Context, catalogID uint64) (model.InstantaneousState, error) {
	return s.catalog.Position(ctx, catalogID, time.Now().UTC())
}

// GetGroup returns the current states of every object matching tag's
// name-substring rule.
func (s *Service) GetGroup(ctx context.Context, tag string) ([]model.InstantaneousState, error) {
	return s.catalog.ByGroup(ctx, tag, time.Now().UTC())
}

// PropagateAll returns every object's state at now+minutesOffset, capped
// at limit when limit > 0.
func (s *Service) PropagateAll(ctx context.Context, minutesOffset float64, limit int) ([]model.InstantaneousState, error) {
	at := time.Now().UTC().Add(time.Duration(minutesOffset * float64(time.Minute)))
	return s.catalog.PositionsAt(ctx, at, limit)
}

// propagatorsFor resolves a subset of catalog IDs to propagators, falling
// back to the whole catalog when subset is empty. IDs that no longer
// resolve are skipped rather than failing the whole call.
func (s *Service) propagatorsFor(subset []uint64) []*propagator.Propagator {
	if len(subset) == 0 {
		return s.catalog.All()
	}
	out := make([]*propagator.Propagator, 0, len(subset))
	for _, id := range subset {
		if p, ok := s.catalog.Lookup(id); ok {
			out = append(out, p)
		}
	}
	return out
}

// Analyze runs a full conjunction-screening pass over subset (or the whole
// catalog when subset is empty) and returns the resulting report.
func (s *Service) Analyze(ctx context.Context, subset []uint64, params conjunction.Params) (model.AnalysisReport, error) {
	merged := mergeParams(s.defaultParams, params)
	return s.analyzer.Analyze(ctx, s.propagatorsFor(subset), time.Now().UTC(), merged)
}

// RiskSummary is the predict_risk response: the fused per-pair
// probabilities already computed by Analyze, plus a band-count rollup.
type RiskSummary struct {
	Pairs      []model.ConjunctionEvent
	BandCounts map[string]int
	PairsTotal int
}

// PredictRisk runs the same pipeline as Analyze — the risk model is fused
// into Pc during that pass — and reshapes the result around per-pair
// probabilities and a band-count summary.
func (s *Service) PredictRisk(ctx context.Context, subset []uint64, horizonHours, threshold float64) (RiskSummary, error) {
	params := s.defaultParams
	if horizonHours > 0 {
		params.HorizonHours = horizonHours
	}
	if threshold > 0 {
		params.ProbabilityThreshold = threshold
	}
	report, err := s.Analyze(ctx, subset, params)
	if err != nil {
		return RiskSummary{}, err
	}
	bands := make(map[string]int, 4)
	for _, ev := range report.Events {
		bands[string(ev.RiskBand)]++
	}
	return RiskSummary{Pairs: report.Events, BandCounts: bands, PairsTotal: len(report.Events)}, nil
}

// StreamAlerts registers a new subscription bound to tenantID; the
// returned subscription is the caller's handle and is restartable simply
// by subscribing again (the hub holds no replay buffer).
func (s *Service) StreamAlerts(tenantID string) alerthub.Subscription {
	return s.alerts.Subscribe(tenantID)
}

// StopStreaming releases a subscription obtained from StreamAlerts.
func (s *Service) StopStreaming(subscriptionID string) {
	s.alerts.Unsubscribe(subscriptionID)
}

// LaunchFeasibility evaluates a proposed launch against the current
// catalog and active reservations without persisting anything.
func (s *Service) LaunchFeasibility(ctx context.Context, req reservation.LaunchFeasibilityRequest) (model.LaunchFeasibilityResult, error) {
	return s.reservations.EvaluateLaunchFeasibility(ctx, req)
}

// CreateReservation persists a new reservation and returns it.
func (s *Service) CreateReservation(_ context.Context, req reservation.CreateRequest) (model.Reservation, error) {
	return s.reservations.Create(req)
}

// CheckConflicts re-evaluates an existing reservation against the current
// catalog and the rest of the reservation index.
func (s *Service) CheckConflicts(ctx context.Context, id string) (model.ReservationCheckResponse, error) {
	return s.reservations.CheckConflicts(ctx, id)
}

// RiskExplanation exposes the risk model's current parameters for
// diagnostics, mirroring predict_risk's companion read in the external
// interface table.
func (s *Service) RiskExplanation() model.RiskModelExplanation {
	return s.riskModel.Explain()
}

// AdvanceReservations runs the Pending→Active→Expired sweep; callers
// drive this from a periodic background task alongside catalog refresh.
func (s *Service) AdvanceReservations(now time.Time) {
	s.reservations.AdvanceLifecycle(now)
}

func mergeParams(base, override conjunction.Params) conjunction.Params {
	if override.HorizonHours != 0 {
		base.HorizonHours = override.HorizonHours
	}
	if override.ScreeningKm != 0 {
		base.ScreeningKm = override.ScreeningKm
	}
	if override.ProbabilityThreshold != 0 {
		base.ProbabilityThreshold = override.ProbabilityThreshold
	}
	if override.CoarseStep != 0 {
		base.CoarseStep = override.CoarseStep
	}
	if override.FineStep != 0 {
		base.FineStep = override.FineStep
	}
	if override.FineWindow != 0 {
		base.FineWindow = override.FineWindow
	}
	return base
}
