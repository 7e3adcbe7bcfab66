package math

import "math"

// Plane is the set of points p with Normal·p == Dist.
type Plane struct {
	Normal Vec3
	Dist   float64
}

// PlaneFromPoint returns the plane through point with the given normal.
// The normal is normalised.
func PlaneFromPoint(normal, point Vec3) Plane {
	n := normal.Normalize()
	return Plane{Normal: n, Dist: n.Dot(point)}
}

// SignedDistance returns the signed distance of p from the plane.
func (p Plane) SignedDistance(pt Vec3) float64 {
	return p.Normal.Dot(pt) - p.Dist
}

// Side classifies pt: +1 in front, -1 behind, 0 within tol.
func (p Plane) Side(pt Vec3, tol float64) int {
	d := p.SignedDistance(pt)
	switch {
	case d > tol:
		return 1
	case d < -tol:
		return -1
	default:
		return 0
	}
}

// Flip returns the plane facing the opposite way.
func (p Plane) Flip() Plane {
	return Plane{Normal: p.Normal.Neg(), Dist: -p.Dist}
}

// Coplanar reports whether q describes the same oriented plane.
func (p Plane) Coplanar(q Plane, normalEps, distTol float64) bool {
	return p.Normal.Dot(q.Normal) > 1-normalEps && math.Abs(p.Dist-q.Dist) <= distTol
}

// Opposite reports whether q is the same plane facing the other way.
func (p Plane) Opposite(q Plane, normalEps, distTol float64) bool {
	return p.Coplanar(q.Flip(), normalEps, distTol)
}

// Project returns the closest point on the plane to pt.
func (p Plane) Project(pt Vec3) Vec3 {
	return pt.Sub(p.Normal.Scale(p.SignedDistance(pt)))
}

// Basis returns two unit vectors spanning the plane, forming a right-handed
// frame with the normal (u × v == normal).
func (p Plane) Basis() (u, v Vec3) {
	u = p.Normal.Perpendicular()
	v = p.Normal.Cross(u).Normalize()
	return u, v
}

// To2D projects pt into the plane's 2D frame.
func (p Plane) To2D(pt Vec3, u, v Vec3) Vec2 {
	return Vec2{pt.Dot(u), pt.Dot(v)}
}
