package mesh

import (
	"fmt"
	gomath "math"
	"sort"

	"github.com/Faultbox/sectorforge/pkg/math"
)

// HullPlane is one planar facet of a convex hull: its outward plane and the
// hull triangles lying in it.
type HullPlane struct {
	Plane math.Plane
	Tris  [][3]int
}

// Hull is the convex hull of a point set. Triangles index the input points.
type Hull struct {
	Points  []math.Vec3
	Tris    [][3]int
	Planes  []HullPlane
	Extreme []int // sorted indices of points that are corners of the hull
	Eps     float64
}

// ConvexHull builds the 3D convex hull of pts incrementally. Points within
// eps of the current hull are treated as lying on it.
func ConvexHull(pts []math.Vec3, eps float64) (*Hull, error) {
	if len(pts) < 4 {
		return nil, fmt.Errorf("%w: %d points", ErrDegenerate, len(pts))
	}
	if eps <= 0 {
		eps = DefaultTolerance
	}
	simplex, err := initialSimplex(pts, eps)
	if err != nil {
		return nil, err
	}

	type tri struct {
		v     [3]int
		plane math.Plane
	}
	mk := func(a, b, c int) tri {
		n := pts[b].Sub(pts[a]).Cross(pts[c].Sub(pts[a]))
		return tri{v: [3]int{a, b, c}, plane: math.PlaneFromPoint(n, pts[a])}
	}

	centre := math.Centroid([]math.Vec3{pts[simplex[0]], pts[simplex[1]], pts[simplex[2]], pts[simplex[3]]})
	var tris []tri
	for _, t := range [][3]int{{0, 1, 2}, {0, 3, 1}, {1, 3, 2}, {2, 3, 0}} {
		a, b, c := simplex[t[0]], simplex[t[1]], simplex[t[2]]
		f := mk(a, b, c)
		if f.plane.SignedDistance(centre) > 0 {
			f = mk(a, c, b)
		}
		tris = append(tris, f)
	}

	inInit := map[int]bool{simplex[0]: true, simplex[1]: true, simplex[2]: true, simplex[3]: true}
	for pi, p := range pts {
		if inInit[pi] {
			continue
		}
		visible := make([]bool, len(tris))
		seen := false
		for i, t := range tris {
			if t.plane.SignedDistance(p) > eps {
				visible[i] = true
				seen = true
			}
		}
		if !seen {
			continue
		}
		// Horizon: directed edges of visible triangles whose twin is hidden.
		owner := make(map[[2]int]int)
		for i, t := range tris {
			for k := 0; k < 3; k++ {
				owner[[2]int{t.v[k], t.v[(k+1)%3]}] = i
			}
		}
		var horizon [][2]int
		for i, t := range tris {
			if !visible[i] {
				continue
			}
			for k := 0; k < 3; k++ {
				a, b := t.v[k], t.v[(k+1)%3]
				if j, ok := owner[[2]int{b, a}]; ok && !visible[j] {
					horizon = append(horizon, [2]int{a, b})
				}
			}
		}
		kept := tris[:0]
		for i, t := range tris {
			if !visible[i] {
				kept = append(kept, t)
			}
		}
		tris = kept
		for _, e := range horizon {
			tris = append(tris, mk(e[0], e[1], pi))
		}
	}

	h := &Hull{Points: pts, Eps: eps}
	for _, t := range tris {
		h.Tris = append(h.Tris, t.v)
		merged := false
		for i := range h.Planes {
			if h.Planes[i].Plane.Coplanar(t.plane, eps, eps) {
				h.Planes[i].Tris = append(h.Planes[i].Tris, t.v)
				merged = true
				break
			}
		}
		if !merged {
			h.Planes = append(h.Planes, HullPlane{Plane: t.plane, Tris: [][3]int{t.v}})
		}
	}
	h.Extreme = h.extremePoints()
	return h, nil
}

func initialSimplex(pts []math.Vec3, eps float64) ([4]int, error) {
	var s [4]int
	for i, p := range pts {
		if p.X < pts[s[0]].X {
			s[0] = i
		}
	}
	far := func(score func(math.Vec3) float64) (int, float64) {
		best, bestD := -1, -1.0
		for i, p := range pts {
			if d := score(p); d > bestD {
				best, bestD = i, d
			}
		}
		return best, bestD
	}
	var d float64
	s[1], d = far(func(p math.Vec3) float64 { return p.Distance(pts[s[0]]) })
	if d <= eps {
		return s, fmt.Errorf("%w: coincident points", ErrDegenerate)
	}
	dir := pts[s[1]].Sub(pts[s[0]]).Normalize()
	s[2], d = far(func(p math.Vec3) float64 {
		v := p.Sub(pts[s[0]])
		return v.Sub(dir.Scale(v.Dot(dir))).Length()
	})
	if d <= eps {
		return s, fmt.Errorf("%w: collinear points", ErrDegenerate)
	}
	n := pts[s[1]].Sub(pts[s[0]]).Cross(pts[s[2]].Sub(pts[s[0]]))
	pl := math.PlaneFromPoint(n, pts[s[0]])
	s[3], d = far(func(p math.Vec3) float64 { return gomath.Abs(pl.SignedDistance(p)) })
	if d <= eps {
		return s, fmt.Errorf("%w: coplanar points", ErrDegenerate)
	}
	return s, nil
}

// extremePoints returns the points lying on at least three hull planes with
// independent normals.
func (h *Hull) extremePoints() []int {
	var out []int
	for i, p := range h.Points {
		var normals []math.Vec3
		for _, hp := range h.Planes {
			if gomath.Abs(hp.Plane.SignedDistance(p)) <= h.Eps {
				normals = append(normals, hp.Plane.Normal)
			}
		}
		if spans3(normals) {
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}

func spans3(ns []math.Vec3) bool {
	for i := 0; i < len(ns); i++ {
		for j := i + 1; j < len(ns); j++ {
			c := ns[i].Cross(ns[j])
			if c.Length() < 1e-6 {
				continue
			}
			for k := j + 1; k < len(ns); k++ {
				if gomath.Abs(c.Dot(ns[k])) > 1e-6 {
					return true
				}
			}
		}
	}
	return false
}

// OnSurface reports whether p lies on the hull boundary.
func (h *Hull) OnSurface(p math.Vec3) bool {
	maxD := gomath.Inf(-1)
	for _, hp := range h.Planes {
		maxD = gomath.Max(maxD, hp.Plane.SignedDistance(p))
	}
	return maxD >= -h.Eps
}

// PlaneFor returns the index of the hull plane coinciding with pl, or -1.
func (h *Hull) PlaneFor(pl math.Plane, normalEps float64) int {
	for i, hp := range h.Planes {
		if hp.Plane.Coplanar(pl, normalEps, h.Eps) {
			return i
		}
	}
	return -1
}

// Volume returns the enclosed hull volume.
func (h *Hull) Volume() float64 {
	var v float64
	for _, t := range h.Tris {
		v += h.Points[t[0]].Dot(h.Points[t[1]].Cross(h.Points[t[2]]))
	}
	return v / 6
}
