// Package reservation manages orbital corridor reservations: launch
// corridors, operational slots, and other exclusion zones that must be
// checked against the live catalog and against each other for conflicts.
package reservation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orbitalos/ssa/internal/core/model"
	"github.com/orbitalos/ssa/internal/core/observability"
	"github.com/orbitalos/ssa/internal/propagator"
)

// CatalogSource is implemented by internal/catalog.Manager; kept as an
// interface so conflict evaluation is testable without a live catalog.
type CatalogSource interface {
	All() []*propagator.Propagator
}

// RiskModel is consulted for the fused collision probability, same shape as
// the conjunction package's model interface.
type RiskModel interface {
	PredictAndUpdate(features [4]float64, label float64) float64
}

// CreateRequest describes a new reservation. At least one of
// CenterElementSet or NewLaunch must be set; when both are, CenterElementSet
// is used and NewLaunch is ignored.
type CreateRequest struct {
	Owner              string
	Kind               model.ReservationKind
	Start              time.Time
	End                time.Time
	CenterElementSet   *model.ElementSet
	NewLaunch          *model.NewLaunch
	ProtectionRadiusKm float64
	Priority           model.Priority
	Constraints        *model.ReservationConstraints
}

// LaunchFeasibilityRequest describes a one-shot feasibility check that does
// not persist a reservation.
type LaunchFeasibilityRequest struct {
	Customer           string
	MissionName        string
	Launch             model.NewLaunch
	WindowHours        float64
	ProtectionRadiusKm float64
	MaxProbability      float64
	Priority           model.Priority
	Rideshare          bool
	Constraints        *model.ReservationConstraints
}

type Manager struct {
	mu           sync.RWMutex
	reservations map[string]model.Reservation

	catalog   CatalogSource
	riskModel RiskModel
	log       *slog.Logger
}

func New(catalog CatalogSource, riskModel RiskModel, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		reservations: map[string]model.Reservation{},
		catalog:      catalog,
		riskModel:    riskModel,
		log:          log,
	}
}

func defaultConstraintsForPriority(priority model.Priority, protectionRadiusKm float64) model.ReservationConstraints {
	maxPc := 1e-4
	switch priority {
	case model.PriorityCritical:
		maxPc = 1e-6
	case model.PriorityHigh:
		maxPc = 1e-5
	case model.PriorityMedium:
		maxPc = 1e-4
	case model.PriorityLow:
		maxPc = 1e-3
	}
	return model.ReservationConstraints{
		MaxPc:                      maxPc,
		MinimumSeparationKm:        protectionRadiusKm,
		NotificationThresholdHours: 24,
		CoordinateSystem:           "ECI",
	}
}

func resolveCenter(req CreateRequest) (model.ElementSet, *model.NewLaunch, error) {
	if req.CenterElementSet != nil {
		return *req.CenterElementSet, nil, nil
	}
	if req.NewLaunch != nil {
		es, err := BuildLaunchElementSet(*req.NewLaunch)
		if err != nil {
			return model.ElementSet{}, nil, err
		}
		launch := *req.NewLaunch
		return es, &launch, nil
	}
	return model.ElementSet{}, nil, fmt.Errorf("%w: reservation requires either center_element_set or new_launch", ErrInvalidRequest)
}

// Create registers a new reservation in Pending status.
func (m *Manager) Create(req CreateRequest) (model.Reservation, error) {
	center, launch, err := resolveCenter(req)
	if err != nil {
		return model.Reservation{}, err
	}

	constraints := defaultConstraintsForPriority(req.Priority, req.ProtectionRadiusKm)
	if req.Constraints != nil {
		constraints = *req.Constraints
	}

	res := model.Reservation{
		ID:                 uuid.NewString(),
		Owner:              req.Owner,
		Kind:               req.Kind,
		Start:              req.Start,
		End:                req.End,
		CenterElementSet:   center,
		NewLaunch:          launch,
		ProtectionRadiusKm: req.ProtectionRadiusKm,
		Priority:           req.Priority,
		Status:             model.StatusPending,
		Constraints:        constraints,
	}

	m.mu.Lock()
	m.reservations[res.ID] = res
	m.mu.Unlock()

	m.log.Info("reservation created", "id", res.ID, "owner", res.Owner, "kind", res.Kind)
	return res, nil
}

func (m *Manager) Get(id string) (model.Reservation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res, ok := m.reservations[id]
	return res, ok
}

func (m *Manager) List() []model.Reservation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Reservation, 0, len(m.reservations))
	for _, res := range m.reservations {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Manager) UpdateStatus(id string, status model.ReservationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.reservations[id]
	if !ok {
		return ErrNotFound
	}
	res.Status = status
	m.reservations[id] = res
	return nil
}

// AdvanceLifecycle sweeps every non-terminal reservation and applies the
// Pending->Active and Active->Expired transitions implied by the clock.
// Cancelled and Violated are set explicitly by the caller.
func (m *Manager) AdvanceLifecycle(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, res := range m.reservations {
		switch res.Status {
		case model.StatusPending:
			if !now.Before(res.Start) && now.Before(res.End) {
				res.Status = model.StatusActive
				m.reservations[id] = res
			}
		case model.StatusActive:
			if !now.Before(res.End) {
				res.Status = model.StatusExpired
				m.reservations[id] = res
			}
		}
	}
}

// CheckConflicts evaluates a stored reservation against the current catalog
// and against every other stored reservation, recording the result in the
// reservation's history by marking it Violated if a Critical conflict
// surfaces against an Active reservation.
func (m *Manager) CheckConflicts(ctx context.Context, id string) (model.ReservationCheckResponse, error) {
	m.mu.RLock()
	res, ok := m.reservations[id]
	var others []model.Reservation
	for otherID, other := range m.reservations {
		if otherID != id {
			others = append(others, other)
		}
	}
	m.mu.RUnlock()
	if !ok {
		return model.ReservationCheckResponse{}, ErrNotFound
	}

	resp, err := m.evaluateConflicts(ctx, res, others)
	if err != nil {
		observability.ObserveReservationEvaluation("error")
		return model.ReservationCheckResponse{}, err
	}
	observability.ObserveReservationEvaluation("ok")

	if res.Status == model.StatusActive && resp.HighestSeverity == model.SeverityCritical {
		_ = m.UpdateStatus(id, model.StatusViolated)
	}
	return resp, nil
}

func (m *Manager) evaluateConflicts(ctx context.Context, res model.Reservation, others []model.Reservation) (model.ReservationCheckResponse, error) {
	centerProp, err := propagator.Init(res.CenterElementSet)
	if err != nil {
		return model.ReservationCheckResponse{}, fmt.Errorf("reservation: center element set: %w", err)
	}

	var conflicts []model.ReservationConflict
	highest := model.SeverityLow

	if m.catalog != nil {
		for _, satProp := range m.catalog.All() {
			select {
			case <-ctx.Done():
				return model.ReservationCheckResponse{}, ctx.Err()
			default:
			}
			if satProp.ElementSet().CatalogID == res.CenterElementSet.CatalogID {
				continue
			}
			conflict, err := m.checkSatelliteConflict(centerProp, satProp, res)
			if err != nil {
				m.log.Warn("skipping satellite in conflict check", "catalog_id", satProp.ElementSet().CatalogID, "err", err)
				observability.IncPropagationError("reservation")
				continue
			}
			if conflict == nil {
				continue
			}
			highest = highest.Max(conflict.Severity)
			observability.IncReservationConflict(string(conflict.Severity))
			conflicts = append(conflicts, *conflict)
		}
	}

	for _, other := range others {
		conflict, err := checkReservationOverlap(res, other)
		if err != nil {
			m.log.Warn("skipping reservation overlap check", "other_id", other.ID, "err", err)
			continue
		}
		if conflict == nil {
			continue
		}
		highest = highest.Max(conflict.Severity)
		conflicts = append(conflicts, *conflict)
	}

	recommendations := generateRecommendations(conflicts)

	return model.ReservationCheckResponse{
		ReservationID:   res.ID,
		Conflicts:       conflicts,
		HighestSeverity: highest,
		Recommendations: recommendations,
	}, nil
}

// checkSatelliteConflict samples the reservation window every 5 minutes,
// tracking the minimum separation and the running maximum of a simple
// distance/uncertainty-based collision probability, then fuses that
// analytical estimate with the shared risk model at the point of closest
// approach.
func (m *Manager) checkSatelliteConflict(centerProp, satProp *propagator.Propagator, res model.Reservation) (*model.ReservationConflict, error) {
	minDistance := -1.0
	var tca time.Time
	var posA, velA, posB, velB model.Vec3
	maxProbability := 0.0

	for t := res.Start; !t.After(res.End); t = t.Add(sampleStep) {
		pa, va, err := centerProp.Propagate(t)
		if err != nil {
			continue
		}
		pb, vb, err := satProp.Propagate(t)
		if err != nil {
			continue
		}
		d := pa.Sub(pb).Norm()
		if minDistance < 0 || d < minDistance {
			minDistance = d
			tca = t
			posA, velA, posB, velB = pa, va, pb, vb
		}

		uncertainty := estimatePositionUncertainty(satProp.AgeHours(t))
		prob := simpleCollisionProbability(d, uncertainty, hardBodyRadiusKm)
		if prob > maxProbability {
			maxProbability = prob
		}
	}

	if minDistance < 0 {
		return nil, fmt.Errorf("reservation: no valid propagation samples in reservation window")
	}
	if minDistance > res.ProtectionRadiusKm && maxProbability < res.Constraints.MaxPc {
		return nil, nil
	}

	relativeVelocity := velA.Sub(velB).Norm()
	tleAge := centerProp.AgeHours(tca)
	if satAge := satProp.AgeHours(tca); satAge > tleAge {
		tleAge = satAge
	}
	altitudeA := posA.Norm() - propagator.EarthRadiusKm
	altitudeB := posB.Norm() - propagator.EarthRadiusKm
	baselineRisk := estimateBaselineRisk(altitudeA, altitudeB)

	analyticalProbability := maxProbability
	mlProbability := 0.0
	fused := analyticalProbability
	if m.riskModel != nil {
		features := [4]float64{
			maxf(minDistance, 0.001),
			maxf(relativeVelocity, 0.001),
			maxf(tleAge, 0),
			baselineRisk,
		}
		label := 0.0
		if analyticalProbability >= res.Constraints.MaxPc {
			label = 1.0
		}
		mlProbability = m.riskModel.PredictAndUpdate(features, label)
		observability.IncRiskModelUpdate()
		if mlProbability > fused {
			fused = mlProbability
		}
	}

	severity := classifySeverity(minDistance, fused)
	conflictType := classifyConflictType(minDistance, fused)

	return &model.ReservationConflict{
		Satellite: model.ConflictingSatellite{
			CatalogID:               satProp.ElementSet().CatalogID,
			Name:                    satProp.ElementSet().Name,
			ObjectType:              classifyObjectType(satProp.ElementSet().Name),
			Operator:                "Unknown",
			TrajectoryUncertaintyKm: estimatePositionUncertainty(satProp.AgeHours(tca)),
		},
		TCA:              tca,
		DMinKm:           minDistance,
		ProbabilityFused: fused,
		Severity:         severity,
		ConflictType:     conflictType,
		Mitigation:       generateMitigations(fused, tca, res)[0],
		DurationSeconds:  res.End.Sub(res.Start).Seconds(),
	}, nil
}

func checkReservationOverlap(res, other model.Reservation) (*model.ReservationConflict, error) {
	if res.End.Before(other.Start) || res.Start.After(other.End) {
		return nil, nil
	}

	overlapStart := res.Start
	if other.Start.After(overlapStart) {
		overlapStart = other.Start
	}
	overlapEnd := res.End
	if other.End.Before(overlapEnd) {
		overlapEnd = other.End
	}
	midTime := overlapStart.Add(overlapEnd.Sub(overlapStart) / 2)

	propA, err := propagator.Init(res.CenterElementSet)
	if err != nil {
		return nil, err
	}
	propB, err := propagator.Init(other.CenterElementSet)
	if err != nil {
		return nil, err
	}
	posA, _, err := propA.Propagate(midTime)
	if err != nil {
		return nil, err
	}
	posB, _, err := propB.Propagate(midTime)
	if err != nil {
		return nil, err
	}

	distance := posA.Sub(posB).Norm()
	combinedRadius := res.ProtectionRadiusKm + other.ProtectionRadiusKm
	if distance >= combinedRadius {
		return nil, nil
	}

	severity := model.SeverityMedium
	if res.Priority == model.PriorityCritical || other.Priority == model.PriorityCritical {
		severity = model.SeverityHigh
	}

	return &model.ReservationConflict{
		Satellite: model.ConflictingSatellite{
			CatalogID:               other.CenterElementSet.CatalogID,
			Name:                    fmt.Sprintf("Reservation: %s", other.Owner),
			ObjectType:              model.ObjectActiveSatellite,
			Operator:                other.Owner,
			TrajectoryUncertaintyKm: 1.0,
		},
		TCA:              midTime,
		DMinKm:           distance,
		ProbabilityFused: 0,
		Severity:         severity,
		ConflictType:     model.ConflictOperationalInterference,
		Mitigation: model.Mitigation{
			Type:              model.MitigationCoordinatedOperation,
			WindowStart:       overlapStart,
			WindowEnd:         overlapEnd,
			SuccessLikelihood: 0.8,
		},
		DurationSeconds: overlapEnd.Sub(overlapStart).Seconds(),
	}, nil
}

// EvaluateLaunchFeasibility runs a one-shot feasibility assessment for a
// proposed launch without persisting a reservation.
func (m *Manager) EvaluateLaunchFeasibility(ctx context.Context, req LaunchFeasibilityRequest) (model.LaunchFeasibilityResult, error) {
	center, err := BuildLaunchElementSet(req.Launch)
	if err != nil {
		return model.LaunchFeasibilityResult{}, err
	}

	windowHours := req.WindowHours
	if windowHours == 0 {
		windowHours = 6
	}
	windowHours = clampf(windowHours, 1, 72)

	start := req.Launch.Epoch
	end := start.Add(time.Duration(windowHours * float64(time.Hour)))

	protectionRadius := req.ProtectionRadiusKm
	if protectionRadius == 0 {
		if req.Rideshare {
			protectionRadius = 5.0
		} else {
			protectionRadius = 25.0
		}
	}

	probabilityCap := req.MaxProbability
	if probabilityCap == 0 {
		if req.Rideshare {
			probabilityCap = 1e-4
		} else {
			probabilityCap = 5e-5
		}
	}
	probabilityCap = clampf(probabilityCap, 1e-8, 1.0)

	priority := req.Priority
	if priority == "" {
		if req.Rideshare {
			priority = model.PriorityHigh
		} else {
			priority = model.PriorityMedium
		}
	}

	kind := model.KindLaunchCorridor
	if req.Rideshare {
		kind = model.KindOperationalSlot
	}

	constraints := model.ReservationConstraints{
		MaxPc:                      probabilityCap,
		MinimumSeparationKm:        protectionRadius,
		NotificationThresholdHours: 12,
		CoordinateSystem:           "ECI",
	}
	if req.Constraints != nil {
		constraints = *req.Constraints
	}

	launch := req.Launch
	preview := model.Reservation{
		ID:                 uuid.NewString(),
		Owner:              req.Customer,
		Kind:               kind,
		Start:              start,
		End:                end,
		CenterElementSet:   center,
		NewLaunch:          &launch,
		ProtectionRadiusKm: protectionRadius,
		Priority:           priority,
		Status:             model.StatusPending,
		Constraints:        constraints,
	}

	assessment, err := m.evaluateConflicts(ctx, preview, nil)
	if err != nil {
		return model.LaunchFeasibilityResult{}, err
	}

	minDistance := -1.0
	maxPc := 0.0
	for _, c := range assessment.Conflicts {
		if minDistance < 0 || c.DMinKm < minDistance {
			minDistance = c.DMinKm
		}
		if c.ProbabilityFused > maxPc {
			maxPc = c.ProbabilityFused
		}
	}
	if minDistance < 0 {
		minDistance = 0
	}

	distanceOK := len(assessment.Conflicts) == 0 || minDistance >= preview.ProtectionRadiusKm
	probabilityOK := len(assessment.Conflicts) == 0 || maxPc <= preview.Constraints.MaxPc
	severityOK := assessment.HighestSeverity == model.SeverityLow || len(assessment.Conflicts) == 0

	return model.LaunchFeasibilityResult{
		SafeToLaunch:    distanceOK && probabilityOK && severityOK,
		MinDistanceKm:   minDistance,
		MaxPc:           maxPc,
		HighestSeverity: assessment.HighestSeverity,
		ConflictsFound:  len(assessment.Conflicts),
		Conflicts:       assessment.Conflicts,
	}, nil
}

func simpleCollisionProbability(distanceKm, uncertaintyKm, hardBodyKm float64) float64 {
	if distanceKm <= hardBodyKm {
		return 1.0
	}
	crossSection := math.Pi * hardBodyKm * hardBodyKm
	uncertaintyArea := math.Pi * uncertaintyKm * uncertaintyKm
	return (crossSection / uncertaintyArea) * math.Exp(-(distanceKm*distanceKm)/(2*uncertaintyKm*uncertaintyKm))
}

func maxf(x, floor float64) float64 {
	if x < floor {
		return floor
	}
	return x
}

func clampf(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
