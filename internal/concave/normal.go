package concave

import (
	gomath "math"

	"gonum.org/v1/gonum/optimize"

	"github.com/Faultbox/sectorforge/internal/sector"
	"github.com/Faultbox/sectorforge/pkg/math"
)

// DefaultNormalTol is the tolerance for "u·n ≤ 0" and perpendicularity tests.
const DefaultNormalTol = 1e-6

// up is the editor's vertical axis.
var up = math.V3(0, 0, 1)

// ProjectNormal finds a direction u with u·n ≤ tol for every internal face
// normal n, so that sweeping internal faces along u never crosses them
// edge-on.
//
// External normals satisfying the constraint are preferred: among them, the
// one perpendicular to the most internal faces wins, ties going to the one
// closest to horizontal, then to the first listed. A candidate must leave at
// least one internal face usable as a knife. Without such a candidate the
// direction is searched for numerically, minimising max(u·n) over the unit
// sphere.
//
// The returned type is ConcaveSimple for an external normal, ConcaveNormal
// for an optimised one and ConcaveComplex when no direction exists.
func ProjectNormal(internal, external []math.Vec3, tol float64) (math.Vec3, sector.ConcaveType) {
	if tol <= 0 {
		tol = DefaultNormalTol
	}
	if len(internal) == 0 {
		return math.Vec3{}, sector.ConcaveComplex
	}

	best, bestScore := -1, -1
	for i, e := range external {
		score, ok := perpendicularScore(e, internal, tol)
		if !ok {
			continue
		}
		if score > bestScore ||
			(score == bestScore && gomath.Abs(e.Dot(up)) < gomath.Abs(external[best].Dot(up))-tol) {
			best, bestScore = i, score
		}
	}
	if best >= 0 {
		return external[best].Normalize(), sector.ConcaveSimple
	}

	if u, ok := optimiseNormal(internal, tol); ok {
		return u, sector.ConcaveNormal
	}
	return math.Vec3{}, sector.ConcaveComplex
}

// perpendicularScore counts the internal normals perpendicular to u. ok is
// false when u violates the constraint or no internal face is usable.
func perpendicularScore(u math.Vec3, internal []math.Vec3, tol float64) (int, bool) {
	score, usable := 0, false
	for _, n := range internal {
		d := u.Dot(n)
		switch {
		case d > tol:
			return 0, false
		case d >= -tol:
			score++
		default:
			usable = true
		}
	}
	return score, usable
}

func fromAngles(x []float64) math.Vec3 {
	st, ct := gomath.Sincos(x[0])
	sp, cp := gomath.Sincos(x[1])
	return math.V3(st*cp, st*sp, ct)
}

// optimiseNormal minimises max(u·n) with Nelder–Mead over spherical angles,
// starting from the direction opposite the mean internal normal.
func optimiseNormal(internal []math.Vec3, tol float64) (math.Vec3, bool) {
	var mean math.Vec3
	for _, n := range internal {
		mean = mean.Add(n)
	}
	start := mean.Neg()
	if start.Length() < tol {
		start = internal[0].Neg()
	}
	start = start.Normalize()

	objective := func(x []float64) float64 {
		u := fromAngles(x)
		worst := gomath.Inf(-1)
		for _, n := range internal {
			worst = gomath.Max(worst, u.Dot(n))
		}
		return worst
	}
	x0 := []float64{gomath.Acos(gomath.Max(-1, gomath.Min(1, start.Z))), gomath.Atan2(start.Y, start.X)}
	res, err := optimize.Minimize(
		optimize.Problem{Func: objective},
		x0,
		&optimize.Settings{FuncEvaluations: 4000},
		&optimize.NelderMead{},
	)
	x := x0
	if res != nil {
		// Limits reached still leave the best location found.
		x = res.X
	} else if err != nil {
		return math.Vec3{}, false
	}
	u := fromAngles(x)
	if _, ok := perpendicularScore(u, internal, tol); !ok {
		return math.Vec3{}, false
	}
	return u, true
}
