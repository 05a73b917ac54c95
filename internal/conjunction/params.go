package conjunction

import "time"

// Params are the knobs for a single analyze() call; zero values are
// replaced with the defaults below.
type Params struct {
	HorizonHours          float64
	ScreeningKm           float64
	ProbabilityThreshold  float64
	CoarseStep            time.Duration
	FineStep              time.Duration
	FineWindow            time.Duration
}

func DefaultParams() Params {
	return Params{
		HorizonHours:         48,
		ScreeningKm:          100,
		ProbabilityThreshold: 1e-4,
		CoarseStep:           300 * time.Second,
		FineStep:             30 * time.Second,
		FineWindow:           30 * time.Minute,
	}
}

// withDefaults fills any zero field with the package default.
func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.HorizonHours == 0 {
		p.HorizonHours = d.HorizonHours
	}
	if p.ScreeningKm == 0 {
		p.ScreeningKm = d.ScreeningKm
	}
	if p.ProbabilityThreshold == 0 {
		p.ProbabilityThreshold = d.ProbabilityThreshold
	}
	if p.CoarseStep == 0 {
		p.CoarseStep = d.CoarseStep
	}
	if p.FineStep == 0 {
		p.FineStep = d.FineStep
	}
	if p.FineWindow == 0 {
		p.FineWindow = d.FineWindow
	}
	return p
}

const (
	// AltitudePrefilterKm is the maximum semi-major-axis difference a pair
	// may have and still enter temporal sampling.
	AltitudePrefilterKm = 200.0

	// HardBodyRadiusKm is the combined cross-section radius used in the
	// collision-probability formula.
	HardBodyRadiusKm = 0.005

	// CovarianceGrowthRate scales the isotropic covariance's linear growth
	// with TLE age.
	CovarianceGrowthRate = 0.1

	// BaseSigmaKm is the covariance's age-zero standard deviation.
	BaseSigmaKm = 0.1
)

func severityThresholds() struct{ Critical, High, Medium float64 } {
	return struct{ Critical, High, Medium float64 }{
		Critical: 1e-2,
		High:     1e-4,
		Medium:   1e-6,
	}
}
