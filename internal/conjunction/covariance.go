package conjunction

import (
	"math"

	"github.com/orbitalos/ssa/internal/core/model"
)

// isotropicCovariance returns the synthetic 3x3 covariance for an object
// whose element set is ageDays old: sigma grows linearly with age.
func isotropicCovariance(ageDays float64) [3][3]float64 {
	sigma := BaseSigmaKm * (1 + ageDays*CovarianceGrowthRate)
	sigma2 := sigma * sigma
	return [3][3]float64{
		{sigma2, 0, 0},
		{0, sigma2, 0},
		{0, 0, sigma2},
	}
}

func add3x3(a, b [3][3]float64) [3][3]float64 {
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = a[i][j] + b[i][j]
		}
	}
	return out
}

// projectOntoPlane projects a 3x3 covariance into the 2D plane orthogonal
// to the unit relative-velocity vector, returning the 2x2 result expressed
// in an arbitrary orthonormal basis of that plane.
func projectOntoPlane(sigma [3][3]float64, relVel model.Vec3) [2][2]float64 {
	speed := relVel.Norm()
	if speed == 0 {
		// degenerate: no well-defined relative-velocity direction; fall
		// back to the covariance's own first two axes.
		return [2][2]float64{{sigma[0][0], sigma[0][1]}, {sigma[1][0], sigma[1][1]}}
	}
	vhat := model.Vec3{X: relVel.X / speed, Y: relVel.Y / speed, Z: relVel.Z / speed}

	// build an orthonormal basis {u, w} spanning the plane perpendicular to vhat
	ref := model.Vec3{X: 1, Y: 0, Z: 0}
	if math.Abs(vhat.X) > 0.9 {
		ref = model.Vec3{X: 0, Y: 1, Z: 0}
	}
	u := cross(vhat, ref)
	u = u.Scale(1 / u.Norm())
	w := cross(vhat, u)

	su := applyCov(sigma, u)
	sw := applyCov(sigma, w)

	return [2][2]float64{
		{dot(u, su), dot(u, sw)},
		{dot(w, su), dot(w, sw)},
	}
}

func cross(a, b model.Vec3) model.Vec3 {
	return model.Vec3{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

func dot(a, b model.Vec3) float64 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

func applyCov(sigma [3][3]float64, v model.Vec3) model.Vec3 {
	return model.Vec3{
		X: sigma[0][0]*v.X + sigma[0][1]*v.Y + sigma[0][2]*v.Z,
		Y: sigma[1][0]*v.X + sigma[1][1]*v.Y + sigma[1][2]*v.Z,
		Z: sigma[2][0]*v.X + sigma[2][1]*v.Y + sigma[2][2]*v.Z,
	}
}

// eigen2x2 solves the closed-form eigenvalues of a symmetric 2x2 matrix.
// No general-purpose linear-algebra dependency covers this in the
// retrieval pack; a 2x2 symmetric eigenproblem has a two-line closed form.
func eigen2x2(m [2][2]float64) (lambda1, lambda2 float64) {
	tr := m[0][0] + m[1][1]
	det := m[0][0]*m[1][1] - m[0][1]*m[1][0]
	disc := tr*tr - 4*det
	if disc < 0 {
		disc = 0
	}
	sq := math.Sqrt(disc)
	lambda1 = (tr + sq) / 2
	lambda2 = (tr - sq) / 2
	return lambda1, lambda2
}

// semiAxesKm returns the ellipse semi-axes (sqrt of eigenvalues), larger first.
func semiAxesKm(projected [2][2]float64) model.CovarianceEllipse {
	l1, l2 := eigen2x2(projected)
	if l1 < 0 {
		l1 = 0
	}
	if l2 < 0 {
		l2 = 0
	}
	a, b := math.Sqrt(l1), math.Sqrt(l2)
	if a < b {
		a, b = b, a
	}
	return model.CovarianceEllipse{SemiMajorKm: a, SemiMinorKm: b}
}

// collisionProbability implements the bounded 2D circular-approximation Pc
// formula. The Mahalanobis-style quantity some sources compute from dmin
// and the projected covariance's determinant is intentionally not folded
// back into pc_raw: it is unused in the upstream formula this mirrors.
func collisionProbability(projected [2][2]float64, relativeSpeedKmS float64) float64 {
	hbrArea := math.Pi * HardBodyRadiusKm * HardBodyRadiusKm
	det := projected[0][0]*projected[1][1] - projected[0][1]*projected[1][0]
	if det <= 0 {
		return 0
	}
	pcRaw := 1 - math.Exp(-hbrArea/(2*math.Pi*math.Sqrt(det)))
	dilution := relativeSpeedKmS / 10
	if dilution > 1 {
		dilution = 1
	}
	return pcRaw * dilution
}

// riskBandForPc classifies a collision probability into the shared severity scale.
func riskBandForPc(pc float64) model.Severity {
	th := severityThresholds()
	switch {
	case pc >= th.Critical:
		return model.SeverityCritical
	case pc >= th.High:
		return model.SeverityHigh
	case pc >= th.Medium:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}
