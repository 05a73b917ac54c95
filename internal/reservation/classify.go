package reservation

import (
	"fmt"
	"strings"
	"time"

	"github.com/orbitalos/ssa/internal/core/model"
)

const (
	hardBodyRadiusKm        = 0.01
	uncertaintyBaseKm       = 0.1
	uncertaintyGrowthPerHr  = 0.01
	sampleStep              = 5 * time.Minute
)

// classifySeverity maps a minimum distance and fused probability onto the
// shared severity scale: either a distance below the band's cut-off or a
// probability strictly above it selects the band. The conjunction package
// bands by probability alone.
func classifySeverity(distanceKm, probability float64) model.Severity {
	switch {
	case distanceKm < 0.1 || probability > 1e-2:
		return model.SeverityCritical
	case distanceKm < 1.0 || probability > 1e-4:
		return model.SeverityHigh
	case distanceKm < 10.0 || probability > 1e-6:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

func classifyConflictType(distanceKm, probability float64) model.ConflictType {
	switch {
	case probability > 1e-3:
		return model.ConflictDirectCollision
	case distanceKm < 5.0:
		return model.ConflictCloseApproach
	case distanceKm < 50.0:
		return model.ConflictOperationalInterference
	default:
		return model.ConflictDebrisRisk
	}
}

// classifyObjectType infers a coarse object type from a catalog name, in the
// absence of any operator-identity database.
func classifyObjectType(name string) model.ObjectType {
	upper := strings.ToUpper(name)
	switch {
	case strings.Contains(upper, "DEB"):
		return model.ObjectDebrisLarge
	case strings.Contains(upper, "R/B"):
		return model.ObjectRocketBody
	case strings.Contains(upper, "FRAGMENT") || strings.Contains(upper, "FRAG"):
		return model.ObjectDebrisSmall
	case upper == "":
		return model.ObjectUnknown
	default:
		return model.ObjectActiveSatellite
	}
}

// estimatePositionUncertainty grows linearly with element-set age; this is
// distinct from the isotropic covariance the conjunction package tracks —
// reservations work off a simpler scalar radius.
func estimatePositionUncertainty(ageHours float64) float64 {
	if ageHours < 0 {
		ageHours = 0
	}
	return uncertaintyBaseKm * (1 + ageHours*uncertaintyGrowthPerHr)
}

func estimateBaselineRisk(altitudeAKm, altitudeBKm float64) float64 {
	mean := (altitudeAKm + altitudeBKm) / 2
	switch {
	case mean < 400:
		return 0.75
	case mean < 1200:
		return 0.6
	case mean < 20000:
		return 0.45
	default:
		return 0.25
	}
}

func generateMitigations(probability float64, tca time.Time, res model.Reservation) []model.Mitigation {
	switch {
	case probability > 1e-3:
		return []model.Mitigation{{
			Type:              model.MitigationManeuverAvoidance,
			DeltaVMS:          2.0,
			WindowStart:       tca.Add(-2 * time.Hour),
			WindowEnd:         tca.Add(-30 * time.Minute),
			SuccessLikelihood: 0.95,
		}}
	case probability > 1e-5:
		return []model.Mitigation{{
			Type:              model.MitigationTimeShift,
			WindowStart:       res.Start,
			WindowEnd:         res.Start.Add(3 * time.Hour),
			SuccessLikelihood: 0.8,
		}}
	default:
		return []model.Mitigation{{
			Type:              model.MitigationWaitAndWatch,
			WindowStart:       tca.Add(-6 * time.Hour),
			WindowEnd:         tca.Add(1 * time.Hour),
			SuccessLikelihood: 0.9,
		}}
	}
}

func generateRecommendations(conflicts []model.ReservationConflict) []string {
	if len(conflicts) == 0 {
		return []string{"No conflicts detected. Reservation appears safe to proceed."}
	}

	var critical, high int
	for _, c := range conflicts {
		switch c.Severity {
		case model.SeverityCritical:
			critical++
		case model.SeverityHigh:
			high++
		}
	}

	var recs []string
	switch {
	case critical > 0:
		recs = append(recs, fmt.Sprintf("CRITICAL: %d critical conflicts detected. Immediate action required.", critical))
		recs = append(recs, "Consider aborting or significantly modifying the operation.")
	case high > 0:
		recs = append(recs, fmt.Sprintf("HIGH RISK: %d high-severity conflicts detected.", high))
		recs = append(recs, "Review all mitigation suggestions and implement appropriate measures.")
	default:
		recs = append(recs, "Medium/low risk conflicts detected. Monitor closely and consider minor adjustments.")
	}
	recs = append(recs, fmt.Sprintf("Total conflicts: %d. Recommend detailed review of each conflict.", len(conflicts)))
	return recs
}
