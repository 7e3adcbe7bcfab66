package mesh

import (
	gomath "math"
	"sort"

	"github.com/Faultbox/sectorforge/pkg/math"
)

// Weld merges vertices whose positions round to the same multiple of tol and
// drops faces that collapse. The mesh is compacted when anything merged. It
// returns the number of vertices merged away.
func (m *Mesh) Weld(tol float64) int {
	if tol <= 0 {
		tol = DefaultTolerance
	}
	key := func(p math.Vec3) [3]int64 {
		return [3]int64{
			int64(gomath.Round(p.X / tol)),
			int64(gomath.Round(p.Y / tol)),
			int64(gomath.Round(p.Z / tol)),
		}
	}
	first := make(map[[3]int64]int, len(m.Verts))
	remap := make([]int, len(m.Verts))
	merged := 0
	for i, v := range m.Verts {
		k := key(v)
		if j, ok := first[k]; ok {
			remap[i] = j
			merged++
			continue
		}
		first[k] = i
		remap[i] = i
	}
	if merged == 0 {
		return 0
	}
	var drop []int
	for fi, f := range m.Faces {
		for i, v := range f.Verts {
			f.Verts[i] = remap[v]
		}
		f.Verts = dedupeLoop(f.Verts)
		if len(f.Verts) < 3 {
			drop = append(drop, fi)
		}
	}
	m.RemoveFaces(drop)
	m.Compact()
	return merged
}

// RepairTJunctions splits boundary edges that have other boundary vertices
// lying strictly inside their span, so fragments of one logical edge match
// up again. It returns the number of vertices inserted.
func (m *Mesh) RepairTJunctions(tol float64) int {
	if tol <= 0 {
		tol = DefaultTolerance
	}
	inserted := 0
	for pass := 0; pass < 4*len(m.Verts)+16; pass++ {
		boundary := m.BoundaryEdges()
		if len(boundary) == 0 {
			break
		}
		bverts := make(map[int]bool)
		for _, e := range boundary {
			bverts[e.A] = true
			bverts[e.B] = true
		}
		cands := make([]int, 0, len(bverts))
		for v := range bverts {
			cands = append(cands, v)
		}
		sort.Ints(cands)

		changed := false
		for _, e := range boundary {
			v := m.interiorPoint(e, cands, tol)
			if v < 0 {
				continue
			}
			for _, f := range m.Faces {
				if insertBetween(f, e.A, e.B, v) {
					inserted++
					changed = true
				}
			}
			if changed {
				break
			}
		}
		if !changed {
			break
		}
	}
	return inserted
}

// interiorPoint returns the candidate vertex closest to e.A that lies on the
// segment e strictly between its end points, or -1.
func (m *Mesh) interiorPoint(e Edge, cands []int, tol float64) int {
	a, b := m.Verts[e.A], m.Verts[e.B]
	dir := b.Sub(a)
	l := dir.Length()
	if l <= tol {
		return -1
	}
	dir = dir.Scale(1 / l)
	best, bestT := -1, l
	for _, v := range cands {
		if v == e.A || v == e.B {
			continue
		}
		rel := m.Verts[v].Sub(a)
		t := rel.Dot(dir)
		if t <= tol || t >= l-tol {
			continue
		}
		if rel.Sub(dir.Scale(t)).Length() > tol {
			continue
		}
		if t < bestT {
			best, bestT = v, t
		}
	}
	return best
}

// insertBetween inserts v between adjacent loop vertices a and b.
func insertBetween(f *Face, a, b, v int) bool {
	n := len(f.Verts)
	for i, x := range f.Verts {
		y := f.Verts[(i+1)%n]
		if (x == a && y == b) || (x == b && y == a) {
			out := make([]int, 0, n+1)
			out = append(out, f.Verts[:i+1]...)
			out = append(out, v)
			out = append(out, f.Verts[i+1:]...)
			f.Verts = out
			return true
		}
	}
	return false
}
