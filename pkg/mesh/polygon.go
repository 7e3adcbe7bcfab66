package mesh

import (
	gomath "math"
	"sort"

	"github.com/Faultbox/sectorforge/pkg/math"
)

// ProjectLoop maps points into the 2D frame of plane p.
func ProjectLoop(pts []math.Vec3, p math.Plane) []math.Vec2 {
	u, v := p.Basis()
	out := make([]math.Vec2, len(pts))
	for i, pt := range pts {
		out[i] = p.To2D(pt, u, v)
	}
	return out
}

// Unproject maps a point of plane p's 2D frame back into 3D.
func Unproject(pt math.Vec2, p math.Plane) math.Vec3 {
	u, v := p.Basis()
	return p.Normal.Scale(p.Dist).Add(u.Scale(pt.X)).Add(v.Scale(pt.Y))
}

// Area2D returns the signed area of a polygon, positive when
// counter-clockwise.
func Area2D(poly []math.Vec2) float64 {
	var a float64
	for i, p := range poly {
		a += p.Cross(poly[(i+1)%len(poly)])
	}
	return a / 2
}

// PointInPolygon reports whether pt lies strictly inside poly, using the
// even-odd crossing rule.
func PointInPolygon(pt math.Vec2, poly []math.Vec2) bool {
	in := false
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		a, b := poly[i], poly[j]
		if (a.Y > pt.Y) != (b.Y > pt.Y) {
			x := (b.X-a.X)*(pt.Y-a.Y)/(b.Y-a.Y) + a.X
			if pt.X < x {
				in = !in
			}
		}
	}
	return in
}

// IsConvex2D reports whether a counter-clockwise polygon is convex.
// Collinear vertices within tol are allowed.
func IsConvex2D(poly []math.Vec2, tol float64) bool {
	n := len(poly)
	if n < 3 {
		return false
	}
	for i := range poly {
		a, b, c := poly[i], poly[(i+1)%n], poly[(i+2)%n]
		e1, e2 := b.Sub(a), c.Sub(b)
		if e1.Cross(e2) < -tol*e1.Length()*e2.Length() {
			return false
		}
	}
	return true
}

// IsConvexLoop reports whether a planar 3D loop is convex when seen along
// normal.
func IsConvexLoop(pts []math.Vec3, normal math.Vec3, tol float64) bool {
	n := len(pts)
	if n < 3 {
		return false
	}
	for i := range pts {
		a, b, c := pts[i], pts[(i+1)%n], pts[(i+2)%n]
		e1, e2 := b.Sub(a), c.Sub(b)
		if e1.Cross(e2).Dot(normal) < -tol*e1.Length()*e2.Length() {
			return false
		}
	}
	return true
}

// ConvexClip clips subject against a convex, counter-clockwise clip polygon
// (Sutherland–Hodgman). The result may be empty.
func ConvexClip(subject, clip []math.Vec2) []math.Vec2 {
	out := append([]math.Vec2(nil), subject...)
	for i := range clip {
		if len(out) == 0 {
			break
		}
		a, b := clip[i], clip[(i+1)%len(clip)]
		edge := b.Sub(a)
		inside := func(p math.Vec2) float64 { return edge.Cross(p.Sub(a)) }
		in := out
		out = nil
		for j := range in {
			cur, next := in[j], in[(j+1)%len(in)]
			dc, dn := inside(cur), inside(next)
			if dc >= 0 {
				out = append(out, cur)
			}
			if (dc >= 0) != (dn >= 0) {
				t := dc / (dc - dn)
				out = append(out, cur.Add(next.Sub(cur).Scale(t)))
			}
		}
	}
	return out
}

// EarClip triangulates a simple counter-clockwise polygon and returns
// triangles as index triples into poly.
func EarClip(poly []math.Vec2) [][3]int {
	idx := make([]int, len(poly))
	for i := range idx {
		idx[i] = i
	}
	var tris [][3]int
	guard := 0
	for len(idx) > 3 && guard < len(poly)*len(poly) {
		guard++
		n := len(idx)
		clipped := false
		for i := 0; i < n; i++ {
			ia, ib, ic := idx[(i+n-1)%n], idx[i], idx[(i+1)%n]
			a, b, c := poly[ia], poly[ib], poly[ic]
			if b.Sub(a).Cross(c.Sub(b)) <= 1e-12 {
				continue
			}
			ear := true
			for _, k := range idx {
				if k == ia || k == ib || k == ic {
					continue
				}
				if inTriangle(poly[k], a, b, c) {
					ear = false
					break
				}
			}
			if !ear {
				continue
			}
			tris = append(tris, [3]int{ia, ib, ic})
			idx = append(idx[:i], idx[i+1:]...)
			clipped = true
			break
		}
		if !clipped {
			// Only collinear or reflex corners remain: drop one collinear point.
			for i := 0; i < n; i++ {
				a, b, c := poly[idx[(i+n-1)%n]], poly[idx[i]], poly[idx[(i+1)%n]]
				if gomath.Abs(b.Sub(a).Cross(c.Sub(b))) <= 1e-12 {
					idx = append(idx[:i], idx[i+1:]...)
					clipped = true
					break
				}
			}
		}
		if !clipped {
			break
		}
	}
	if len(idx) == 3 {
		tris = append(tris, [3]int{idx[0], idx[1], idx[2]})
	}
	return tris
}

func inTriangle(p, a, b, c math.Vec2) bool {
	d1 := b.Sub(a).Cross(p.Sub(a))
	d2 := c.Sub(b).Cross(p.Sub(b))
	d3 := a.Sub(c).Cross(p.Sub(c))
	return d1 >= 0 && d2 >= 0 && d3 >= 0
}

// GiftWrap orders points into a counter-clockwise convex loop, keeping
// points that lie on hull edges within tol. It starts from the lowest point
// and repeatedly takes the candidate that continues the sweep with the
// smallest turn, preferring the nearest of several collinear candidates.
// The result indexes pts; interior points are omitted.
func GiftWrap(pts []math.Vec2, tol float64) []int {
	if len(pts) < 3 {
		return nil
	}
	start := 0
	for i, p := range pts {
		s := pts[start]
		if p.Y < s.Y-tol || (gomath.Abs(p.Y-s.Y) <= tol && p.X < s.X) {
			start = i
		}
	}
	loop := []int{start}
	used := map[int]bool{start: true}
	cur := start
	for len(loop) <= len(pts) {
		next := -1
		for i, p := range pts {
			if i == cur || (used[i] && i != start) {
				continue
			}
			if next < 0 {
				next = i
				continue
			}
			d := pts[next].Sub(pts[cur])
			e := p.Sub(pts[cur])
			c := d.Cross(e)
			scale := d.Length() * e.Length()
			switch {
			case c < -tol*scale:
				next = i
			case c <= tol*scale && e.Dot(d) > 0 && e.Length() < d.Length():
				next = i
			}
		}
		if next < 0 || next == start {
			break
		}
		loop = append(loop, next)
		used[next] = true
		cur = next
	}
	if len(loop) < 3 || Area2D(pickPoints(pts, loop)) <= 0 {
		return nil
	}
	return loop
}

func pickPoints(pts []math.Vec2, idx []int) []math.Vec2 {
	out := make([]math.Vec2, len(idx))
	for i, k := range idx {
		out[i] = pts[k]
	}
	return out
}

// SortAroundCentroid orders points counter-clockwise about their centroid.
func SortAroundCentroid(pts []math.Vec2) []int {
	var c math.Vec2
	for _, p := range pts {
		c = c.Add(p)
	}
	c = c.Scale(1 / float64(len(pts)))
	idx := make([]int, len(pts))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		pa, pb := pts[idx[a]].Sub(c), pts[idx[b]].Sub(c)
		return gomath.Atan2(pa.Y, pa.X) < gomath.Atan2(pb.Y, pb.X)
	})
	return idx
}
