package catalog

import (
	"fmt"
	"math"
	"strings"

	"github.com/orbitalos/ssa/internal/core/model"
)

var megaConstellationNames = []string{
	"STARLINK", "ONEWEB", "IRIDIUM", "GLOBALSTAR", "NAVSTAR", "GALILEO", "GLONASS", "BEIDOU",
}

func isMegaConstellation(name string) bool {
	upper := strings.ToUpper(name)
	for _, m := range megaConstellationNames {
		if strings.Contains(upper, m) {
			return true
		}
	}
	return false
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// crowdingScore looks up the crowding weight by altitude band and whether
// the object belongs to a recognized mega-constellation.
func crowdingScore(altKm float64, mega bool) float64 {
	switch {
	case altKm <= 1200:
		if mega {
			return 0.85
		}
		return 0.55
	case altKm <= 20000:
		if mega {
			return 0.50
		}
		return 0.30
	default:
		return 0.20
	}
}

// riskInputs bundles the per-object fields the heuristic needs.
type riskInputs struct {
	name      string
	altKm     float64
	speedKmS  float64
	ageHours  float64
}

// ScoreObject exposes the single-object heuristic risk score to callers
// outside this package — the conjunction pipeline uses it to compute
// baseline_risk for its ML feature vector, averaging both objects' scores
// the same way a caller within this package would via computeState.
func ScoreObject(name string, altKm, speedKmS, ageHours float64) (score float64, band model.RiskBand, reason string) {
	return scoreObject(riskInputs{name: name, altKm: altKm, speedKmS: speedKmS, ageHours: ageHours})
}

// scoreObject computes the bounded heuristic risk score for a single
// InstantaneousState (not the ML model — the ML model is consulted only
// for pairs, in the conjunction and reservation packages).
func scoreObject(in riskInputs) (score float64, band model.RiskBand, reason string) {
	altitudeScore := clamp(1-in.altKm/36000, 0.05, 0.98)

	mega := isMegaConstellation(in.name)
	crowding := crowdingScore(in.altKm, mega)

	vNominal := 7.5
	if in.altKm > 2000 {
		vNominal = 3.1
	}
	velocityScore := clamp(math.Abs(in.speedKmS-vNominal)/1.2, 0, 1)

	tleAgeScore := clamp(in.ageHours/72, 0, 1)

	weighted := 0.40*altitudeScore + 0.30*crowding + 0.15*velocityScore + 0.15*tleAgeScore
	score = clamp(weighted, 0, 1)

	switch {
	case score >= 0.70:
		band = model.RiskRed
	case score >= 0.40:
		band = model.RiskAmber
	default:
		band = model.RiskGreen
	}

	var drivers []string
	if altitudeScore >= 0.5 {
		drivers = append(drivers, "low-altitude")
	}
	if mega {
		drivers = append(drivers, "mega-constellation")
	}
	if velocityScore >= 0.5 {
		drivers = append(drivers, "anomalous-velocity")
	}
	if tleAgeScore >= 0.5 {
		drivers = append(drivers, "stale-tle")
	}
	if len(drivers) == 0 {
		drivers = append(drivers, "nominal")
	}
	reason = fmt.Sprintf("score=%.3f (%s)", score, strings.Join(drivers, ", "))
	return score, band, reason
}
