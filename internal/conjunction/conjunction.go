// Package conjunction implements two-phase close-approach screening, TCA
// search, covariance-weighted collision probability, and ML-fused risk
// scoring for pairs of cataloged objects.
package conjunction

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/orbitalos/ssa/internal/catalog"
	"github.com/orbitalos/ssa/internal/core/model"
	"github.com/orbitalos/ssa/internal/core/observability"
	"github.com/orbitalos/ssa/internal/propagator"
)

// RiskModel is the online classifier consulted for fused probability; its
// unavailability never fails an analysis (see ModelError in the error
// taxonomy) — callers pass a model that degrades gracefully on its own.
type RiskModel interface {
	PredictAndUpdate(features [4]float64, label float64) float64
}

// AlertPublisher fans out CollisionRisk alerts. A nil publisher is valid —
// Analyze simply stops publishing.
type AlertPublisher interface {
	Publish(alert model.LiveAlert)
}

type Analyzer struct {
	riskModel RiskModel
	alerts    AlertPublisher
	log       *slog.Logger
}

func New(riskModel RiskModel, alerts AlertPublisher, log *slog.Logger) *Analyzer {
	if log == nil {
		log = slog.Default()
	}
	return &Analyzer{riskModel: riskModel, alerts: alerts, log: log}
}

type pairKey struct{ a, b uint64 }

func orderedPair(a, b uint64) pairKey {
	if a < b {
		return pairKey{a, b}
	}
	return pairKey{b, a}
}

// Analyze screens subset for close approaches over the look-ahead horizon
// starting at startTime, refines TCA for surviving candidates, scores each
// with covariance-weighted Pc and the fused ML probability, and returns the
// resulting report sorted by probability descending.
func (a *Analyzer) Analyze(ctx context.Context, subset []*propagator.Propagator, startTime time.Time, params Params) (model.AnalysisReport, error) {
	params = params.withDefaults()
	if len(subset) < 2 {
		return model.AnalysisReport{
			HorizonHours: params.HorizonHours, ScreeningKm: params.ScreeningKm, ProbabilityThresh: params.ProbabilityThreshold,
		}, nil
	}

	start := time.Now()
	horizon := time.Duration(params.HorizonHours * float64(time.Hour))
	endTime := startTime.Add(horizon)

	type pair struct {
		pa, pb *propagator.Propagator
	}
	var candidates []pair
	screenedCount := 0

	// candidate pairs are evaluated in lexicographic (min,max) order
	pairs := make([]pair, 0)
	for i := 0; i < len(subset); i++ {
		for j := i + 1; j < len(subset); j++ {
			pairs = append(pairs, pair{subset[i], subset[j]})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		ki := orderedPair(pairs[i].pa.ElementSet().CatalogID, pairs[i].pb.ElementSet().CatalogID)
		kj := orderedPair(pairs[j].pa.ElementSet().CatalogID, pairs[j].pb.ElementSet().CatalogID)
		if ki.a != kj.a {
			return ki.a < kj.a
		}
		return ki.b < kj.b
	})

	for _, pr := range pairs {
		select {
		case <-ctx.Done():
			return model.AnalysisReport{}, ctx.Err()
		default:
		}
		screenedCount++

		aA, errA := propagator.SemiMajorAxisKm(pr.pa.ElementSet())
		aB, errB := propagator.SemiMajorAxisKm(pr.pb.ElementSet())
		if errA == nil && errB == nil {
			if abs(aA-aB) > AltitudePrefilterKm {
				continue
			}
		}

		if tempSamplingHits(ctx, pr.pa, pr.pb, startTime, endTime, params.CoarseStep, params.ScreeningKm) {
			candidates = append(candidates, pr)
		}
	}

	var events []model.ConjunctionEvent
	for _, c := range candidates {
		select {
		case <-ctx.Done():
			return model.AnalysisReport{}, ctx.Err()
		default:
		}
		ev, err := a.analyzePair(c.pa, c.pb, startTime, endTime, params)
		if err != nil {
			a.log.Warn("skipping pair after propagation error", "err", err)
			observability.IncPropagationError("conjunction")
			continue
		}
		events = append(events, ev)
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].Pc != events[j].Pc {
			return events[i].Pc > events[j].Pc
		}
		return events[i].TCA.Before(events[j].TCA)
	})

	bandCounts := map[string]int{}
	for _, e := range events {
		bandCounts[string(e.RiskBand)]++
	}
	observability.ObserveConjunctionAnalysis(screenedCount, len(candidates), time.Since(start).Seconds(), bandCounts)

	return model.AnalysisReport{
		Events:            events,
		CandidatePairs:    len(candidates),
		PairsScreened:     screenedCount,
		HorizonHours:      params.HorizonHours,
		ScreeningKm:       params.ScreeningKm,
		ProbabilityThresh: params.ProbabilityThreshold,
	}, nil
}

// tempSamplingHits steps from start to end by coarseStep; the moment the
// separation first dips below screeningKm, sampling for this pair stops.
// This is intentionally a first-dip check, not a full-window scan — it
// biases the later TCA search toward the earliest pass, matching the
// behavior this analyzer deliberately preserves.
func tempSamplingHits(ctx context.Context, pa, pb *propagator.Propagator, start, end time.Time, step time.Duration, screeningKm float64) bool {
	for t := start; !t.After(end); t = t.Add(step) {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		posA, _, errA := pa.Propagate(t)
		posB, _, errB := pb.Propagate(t)
		if errA != nil || errB != nil {
			continue
		}
		if posA.Sub(posB).Norm() < screeningKm {
			return true
		}
	}
	return false
}

type witness struct {
	t          time.Time
	posA, velA model.Vec3
	posB, velB model.Vec3
	dmin       float64
	found      bool
}

func scanWindow(pa, pb *propagator.Propagator, start, end time.Time, step time.Duration) witness {
	var best witness
	best.dmin = -1
	for t := start; !t.After(end); t = t.Add(step) {
		posA, velA, errA := pa.Propagate(t)
		posB, velB, errB := pb.Propagate(t)
		if errA != nil || errB != nil {
			continue
		}
		d := posA.Sub(posB).Norm()
		if best.dmin < 0 || d < best.dmin {
			best = witness{t: t, posA: posA, velA: velA, posB: posB, velB: velB, dmin: d, found: true}
		}
	}
	return best
}

func (a *Analyzer) analyzePair(pa, pb *propagator.Propagator, start, end time.Time, params Params) (model.ConjunctionEvent, error) {
	coarse := scanWindow(pa, pb, start, end, params.CoarseStep)
	if !coarse.found {
		return model.ConjunctionEvent{}, fmt.Errorf("conjunction: no valid propagation samples for pair %d/%d",
			pa.ElementSet().CatalogID, pb.ElementSet().CatalogID)
	}

	fineStart := coarse.t.Add(-params.FineWindow)
	fineEnd := coarse.t.Add(params.FineWindow)
	if fineStart.Before(start) {
		fineStart = start
	}
	if fineEnd.After(end) {
		fineEnd = end
	}
	fine := scanWindow(pa, pb, fineStart, fineEnd, params.FineStep)
	best := coarse
	if fine.found && fine.dmin < coarse.dmin {
		best = fine
	}

	relVel := best.velA.Sub(best.velB)
	relSpeed := relVel.Norm()

	ageDaysA := pa.AgeHours(best.t) / 24
	ageDaysB := pb.AgeHours(best.t) / 24
	covA := isotropicCovariance(ageDaysA)
	covB := isotropicCovariance(ageDaysB)
	combined := add3x3(covA, covB)
	projected := projectOntoPlane(combined, relVel)
	ellipse := semiAxesKm(projected)

	pc := collisionProbability(projected, relSpeed)
	band := riskBandForPc(pc)

	evID := uuid.NewString()
	ev := model.ConjunctionEvent{
		ID:                  evID,
		ObjectA:             pa.ElementSet().CatalogID,
		ObjectB:             pb.ElementSet().CatalogID,
		TCA:                 best.t,
		DMinKm:              best.dmin,
		Pc:                  pc,
		RelativeVelocityKmS: relSpeed,
		RiskBand:            band,
		PositionA:           best.posA,
		VelocityA:           best.velA,
		PositionB:           best.posB,
		VelocityB:           best.velB,
		CovarianceA:         covA,
		CovarianceB:         covB,
		CombinedCovariance:  combined,
		ProjectedCovariance: projected,
		Ellipse:             ellipse,
	}

	a.fuseAndMaybeAlert(&ev, pa, pb, best.t, params.ProbabilityThreshold)
	return ev, nil
}

// baselineRisk averages the two objects' single-object heuristic risk
// scores at the conjunction instant, the same quantity catalog.Manager
// surfaces as InstantaneousState.RiskScore. When propagation fails at that
// instant for one object, the other object's score is used alone; when it
// fails for both, the cold-start constant 0.25 is returned rather than
// failing the whole feature vector.
func baselineRisk(pa, pb *propagator.Propagator, at time.Time) float64 {
	const fallback = 0.25

	scoreOf := func(p *propagator.Propagator) (float64, bool) {
		pos, vel, err := p.Propagate(at)
		if err != nil {
			return 0, false
		}
		fix := propagator.ECIToGeodetic(pos, at)
		es := p.ElementSet()
		score, _, _ := catalog.ScoreObject(es.Name, fix.AltKm, vel.Norm(), p.AgeHours(at))
		return score, true
	}

	scoreA, okA := scoreOf(pa)
	scoreB, okB := scoreOf(pb)
	switch {
	case okA && okB:
		return (scoreA + scoreB) / 2
	case okA:
		return scoreA
	case okB:
		return scoreB
	default:
		return fallback
	}
}

// fuseAndMaybeAlert builds the 4-feature vector, consults the risk model
// for a fused probability, and publishes a Critical CollisionRisk alert
// when the model crosses 0.6. The model is a best-effort enhancer: if it
// is absent, pc alone stands as the surfaced probability.
func (a *Analyzer) fuseAndMaybeAlert(ev *model.ConjunctionEvent, pa, pb *propagator.Propagator, at time.Time, probabilityThreshold float64) {
	if a.riskModel == nil {
		return
	}

	ageHoursA := pa.AgeHours(at)
	ageHoursB := pb.AgeHours(at)
	tleAge := max0(ageHoursA)
	if ageHoursB > tleAge {
		tleAge = max0(ageHoursB)
	}

	features := [4]float64{
		max0f(ev.DMinKm, 0.001),
		ev.RelativeVelocityKmS,
		max0(tleAge),
		baselineRisk(pa, pb, at),
	}

	label := 0.0
	if ev.Pc >= probabilityThreshold {
		label = 1.0
	}
	mlProb := a.riskModel.PredictAndUpdate(features, label)
	observability.IncRiskModelUpdate()

	fused := ev.Pc
	if mlProb > fused {
		fused = mlProb
	}
	ev.Pc = fused
	ev.RiskBand = riskBandForPc(fused)

	if mlProb >= 0.6 && a.alerts != nil {
		alert := model.LiveAlert{
			ID:        uuid.NewString(),
			TenantID:  model.DefaultTenant,
			Title:     "Elevated collision risk",
			Message:   fmt.Sprintf("objects %d/%d fused probability %.4f at TCA %s", ev.ObjectA, ev.ObjectB, mlProb, ev.TCA.UTC().Format(time.RFC3339)),
			Severity:  model.AlertCritical,
			Category:  model.CategoryCollisionRisk,
			CreatedAt: time.Now().UTC(),
			Metadata: map[string]string{
				"object_a": fmt.Sprint(ev.ObjectA),
				"object_b": fmt.Sprint(ev.ObjectB),
			},
		}
		a.alerts.Publish(alert)
		observability.IncAlertPublished(string(model.CategoryCollisionRisk), string(model.AlertCritical))
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func max0(x float64) float64 {
	if x < 0 {
		return 0
	}
	return x
}

func max0f(x, floor float64) float64 {
	if x < floor {
		return floor
	}
	return x
}
