// Package propagator wraps an SGP4 implementation to turn an element set and
// a UTC instant into an ECI position/velocity and a geodetic fix.
package propagator

import (
	"fmt"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/orbitalos/ssa/internal/core/model"
)

// Earth constants shared with the conjunction and reservation packages.
const (
	EarthRadiusKm = 6378.137
	MuKm3S2       = 398600.4418
	Flattening    = 1.0 / 298.257223563
)

// Propagator wraps one initialized SGP4 satellite record.
type Propagator struct {
	sat   satellite.Satellite
	elems model.ElementSet
	epoch time.Time
}

// Init parses an element set into a ready-to-propagate SGP4 record. An
// element set with a line shorter than 69 columns or an unparseable epoch is
// rejected here so it never enters the catalog; the SGP4 library's own
// initialization status is not checked.
func Init(es model.ElementSet) (*Propagator, error) {
	if len(es.Line1) < 69 || len(es.Line2) < 69 {
		return nil, fmt.Errorf("propagator: element set %d has malformed TLE lines", es.CatalogID)
	}

	sat := satellite.TLEToSat(es.Line1, es.Line2, satellite.GravityWGS84)

	epoch, ok := epochFromLine1(es.Line1)
	if !ok {
		return nil, fmt.Errorf("propagator: element set %d has unparseable epoch", es.CatalogID)
	}

	return &Propagator{sat: sat, elems: es, epoch: epoch}, nil
}

// ElementSet returns the element set this propagator was built from.
func (p *Propagator) ElementSet() model.ElementSet { return p.elems }

// Epoch returns the TLE epoch decoded at Init time.
func (p *Propagator) Epoch() time.Time { return p.epoch }

// AgeHours returns the age of the element set's epoch relative to at.
func (p *Propagator) AgeHours(at time.Time) float64 {
	return at.Sub(p.epoch).Hours()
}

// Propagate yields ECI position (km) and velocity (km/s) at the given UTC
// instant. NaN or overflow in the underlying SGP4 output surfaces as an
// error without touching any other object's state.
func (p *Propagator) Propagate(at time.Time) (posECI, velECI model.Vec3, err error) {
	at = at.UTC()
	pos, vel := satellite.Propagate(p.sat, at.Year(), int(at.Month()), at.Day(), at.Hour(), at.Minute(), at.Second())

	posECI = model.Vec3{X: pos.X, Y: pos.Y, Z: pos.Z}
	velECI = model.Vec3{X: vel.X, Y: vel.Y, Z: vel.Z}

	if !finite3(posECI) || !finite3(velECI) {
		return model.Vec3{}, model.Vec3{}, fmt.Errorf("propagator: non-finite propagation result for catalog %d at %s", p.elems.CatalogID, at)
	}
	return posECI, velECI, nil
}

func finite3(v model.Vec3) bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// SemiMajorAxisKm estimates the semi-major axis from the element set's mean
// motion (revolutions/day, line2 columns 53..63) using Kepler's third law.
func SemiMajorAxisKm(es model.ElementSet) (float64, error) {
	if len(es.Line2) < 63 {
		return 0, fmt.Errorf("propagator: line2 too short to extract mean motion")
	}
	meanMotionRevPerDay, err := parseFloatField(es.Line2, 52, 63)
	if err != nil || meanMotionRevPerDay <= 0 {
		return 0, fmt.Errorf("propagator: invalid mean motion in element set %d", es.CatalogID)
	}
	nRadPerSec := meanMotionRevPerDay * 2 * math.Pi / 86400.0
	a := math.Cbrt(MuKm3S2 / (nRadPerSec * nRadPerSec))
	return a, nil
}

func parseFloatField(line string, start, end int) (float64, error) {
	if end > len(line) {
		end = len(line)
	}
	raw := line[start:end]
	var f float64
	_, err := fmt.Sscanf(raw, "%f", &f)
	return f, err
}

func epochFromLine1(line1 string) (time.Time, bool) {
	if len(line1) < 32 {
		return time.Time{}, false
	}
	raw := line1[18:32]
	var yy int
	var ddd float64
	if _, err := fmt.Sscanf(raw[:2], "%d", &yy); err != nil {
		return time.Time{}, false
	}
	if _, err := fmt.Sscanf(raw[2:], "%f", &ddd); err != nil {
		return time.Time{}, false
	}
	year := 1900 + yy
	if yy < 57 {
		year = 2000 + yy
	}
	dayIdx := int(ddd)
	frac := ddd - float64(dayIdx)
	base := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, dayIdx-1)
	return base.Add(time.Duration(frac * 24 * float64(time.Hour))), true
}
