package propagator

import (
	"math"
	"time"

	"github.com/orbitalos/ssa/internal/core/model"
)

// GMSTRadians computes Greenwich Mean Sidereal Time in radians from a
// Julian date using the standard IAU-1982 polynomial.
func GMSTRadians(jd float64) float64 {
	t := (jd - 2451545.0) / 36525.0
	thetaDeg := 280.46061837 +
		360.98564736629*(jd-2451545.0) +
		0.000387933*t*t -
		t*t*t/38710000.0
	thetaDeg = math.Mod(thetaDeg, 360.0)
	if thetaDeg < 0 {
		thetaDeg += 360.0
	}
	return thetaDeg * math.Pi / 180.0
}

// JulianDate converts a UTC time to a Julian date.
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	a := (14 - int(t.Month())) / 12
	y := t.Year() + 4800 - a
	m := int(t.Month()) + 12*a - 3
	jdn := t.Day() + (153*m+2)/5 + 365*y + y/4 - y/100 + y/400 - 32045
	dayFrac := (float64(t.Hour())-12)/24 + float64(t.Minute())/1440 + float64(t.Second())/86400 + float64(t.Nanosecond())/86400e9
	return float64(jdn) + dayFrac
}

// ECIToECEF rotates an ECI vector into ECEF using the Earth's rotation
// angle at the given Julian date.
func ECIToECEF(eci model.Vec3, jd float64) model.Vec3 {
	gmst := GMSTRadians(jd)
	cosT, sinT := math.Cos(gmst), math.Sin(gmst)
	return model.Vec3{
		X: cosT*eci.X + sinT*eci.Y,
		Y: -sinT*eci.X + cosT*eci.Y,
		Z: eci.Z,
	}
}

// GeodeticFix is the decoded lat/lon/alt for an ECEF position.
type GeodeticFix struct {
	LatDeg float64
	LonDeg float64
	AltKm  float64
}

// ECIToGeodetic converts ECI position (km) at the given UTC instant into a
// WGS-84 latitude/longitude/altitude fix via ECEF and five rounds of the
// standard fixed-point iteration.
func ECIToGeodetic(eci model.Vec3, at time.Time) GeodeticFix {
	jd := JulianDate(at)
	ecef := ECIToECEF(eci, jd)

	lon := math.Atan2(ecef.Y, ecef.X)
	lonDeg := lon * 180.0 / math.Pi
	if lonDeg <= -180 {
		lonDeg += 360
	} else if lonDeg > 180 {
		lonDeg -= 360
	}

	p := math.Hypot(ecef.X, ecef.Y)
	const e2 = 2*Flattening - Flattening*Flattening

	lat := math.Atan2(ecef.Z, p*(1-e2))
	alt := 0.0
	for range 5 {
		sinLat := math.Sin(lat)
		n := EarthRadiusKm / math.Sqrt(1-e2*sinLat*sinLat)
		alt = p*math.Cos(lat) + ecef.Z*sinLat - EarthRadiusKm*math.Sqrt(1-e2*sinLat*sinLat)
		lat = math.Atan2(ecef.Z, p*(1-e2*n/(n+alt)))
	}

	return GeodeticFix{
		LatDeg: lat * 180.0 / math.Pi,
		LonDeg: lonDeg,
		AltKm:  alt,
	}
}
