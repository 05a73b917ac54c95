package reservation

import (
	"fmt"
	"math"
	"time"

	"github.com/orbitalos/ssa/internal/core/model"
	"github.com/orbitalos/ssa/internal/propagator"
)

// proposedCatalogIDBase is added to a timestamp-derived offset when a launch
// request does not pin a catalog_id, keeping synthesized IDs out of the
// range real NORAD catalog numbers currently occupy.
const proposedCatalogIDBase = 900000

// BuildLaunchElementSet synthesizes a two-line element set for a proposed
// launch from its orbital parameters, so the rest of the pipeline (the
// propagator, the conjunction screener) can treat a not-yet-flown vehicle
// exactly like a cataloged object.
func BuildLaunchElementSet(launch model.NewLaunch) (model.ElementSet, error) {
	if launch.ApogeeAltKm < launch.PerigeeAltKm {
		return model.ElementSet{}, fmt.Errorf("%w: apogee_alt_km must be >= perigee_alt_km", ErrInvalidRequest)
	}

	perigeeRadius := propagator.EarthRadiusKm + launch.PerigeeAltKm
	apogeeRadius := propagator.EarthRadiusKm + launch.ApogeeAltKm
	semiMajorAxis := (perigeeRadius + apogeeRadius) / 2
	eccentricity := math.Min(math.Abs((apogeeRadius-perigeeRadius)/(apogeeRadius+perigeeRadius)), 0.99)

	meanMotionRadS := math.Sqrt(propagator.MuKm3S2 / (semiMajorAxis * semiMajorAxis * semiMajorAxis))
	meanMotionRevPerDay := meanMotionRadS * 86400.0 / (2 * math.Pi)

	catalogID := launch.ProposedCatalogID
	if catalogID == 0 {
		catalogID = proposedCatalogIDBase + uint64(time.Now().Unix()%100000)
	}

	epochField := formatEpoch(launch.Epoch)
	eccField := fmt.Sprintf("%07d", int64(math.Round(eccentricity*1e7)))

	line1 := fmt.Sprintf("1 %05dU %8s %14s  .00000000  00000-0  00000-0 0  9991",
		catalogID, "NX0000A", epochField)

	// cols 1-63 of line2 carry the orbital elements; cols 64-68 are the
	// revolution number at epoch (a freshly proposed launch has flown zero
	// revolutions) and col 69 is the TLE checksum, without which line2
	// fails propagator.Init's 69-column length check.
	line2Body := fmt.Sprintf("2 %05d %8.4f %8.4f %7s %8.4f %8.4f %11.8f%5d",
		catalogID, launch.InclinationDeg, launch.RAANDeg, eccField,
		launch.ArgPerigeeDeg, launch.MeanAnomalyDeg, meanMotionRevPerDay, 0)
	line2 := fmt.Sprintf("%s%d", line2Body, tleChecksum(line2Body))

	return model.ElementSet{
		CatalogID: catalogID,
		Name:      launch.VehicleName,
		Line1:     line1,
		Line2:     line2,
		FetchedAt: launch.Epoch,
	}, nil
}

// tleChecksum computes the standard TLE line checksum: the sum of every
// digit in the line mod 10, with '-' counting as 1 and every other
// character (letters, '.', '+', spaces) counting as 0.
func tleChecksum(line string) int {
	sum := 0
	for _, c := range line {
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

// formatEpoch renders a time as a TLE epoch field: 2-digit year, 3-digit
// day-of-year, and an 8-digit fractional day.
func formatEpoch(epoch time.Time) string {
	epoch = epoch.UTC()
	year := epoch.Year() % 100
	dayOfYear := epoch.YearDay()
	secondsFromMidnight := float64(epoch.Hour()*3600+epoch.Minute()*60+epoch.Second()) + float64(epoch.Nanosecond())/1e9
	fractionalDay := secondsFromMidnight / 86400.0
	if fractionalDay < 0 {
		fractionalDay = 0
	}
	if fractionalDay > 0.99999999 {
		fractionalDay = 0.99999999
	}
	fractionalScaled := uint64(math.Round(fractionalDay * 1e8))
	return fmt.Sprintf("%02d%03d.%08d", year, dayOfYear, fractionalScaled)
}
