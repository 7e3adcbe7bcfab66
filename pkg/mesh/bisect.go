package mesh

import (
	"fmt"
	"sort"

	"github.com/Faultbox/sectorforge/pkg/math"
)

// DefaultTolerance is the bisect tolerance in mesh units.
const DefaultTolerance = 1e-4

// CutResult describes the geometry a bisection introduced.
type CutResult struct {
	Edges   []Edge // new edges lying on the cutting plane
	Verts   []int  // vertices on the cutting plane used by the cut, sorted
	Faces   []int  // faces created or modified by the split, sorted
	Skipped int    // crossing faces that could not be split
}

// Bisect splits every face crossing p into two faces along the plane. Faces
// entirely on one side, or lying in the plane, are left alone. The mesh is
// modified in place; ErrNoCut is returned when no face crosses the plane.
func (m *Mesh) Bisect(p math.Plane, tol float64) (*CutResult, error) {
	return m.BisectFaces(p, tol, nil)
}

// BisectFaces is Bisect restricted to the faces sel accepts (all faces when
// sel is nil). Split vertices are still inserted into unselected faces that
// share a cut edge, so the mesh stays watertight.
func (m *Mesh) BisectFaces(p math.Plane, tol float64, sel func(*Face) bool) (*CutResult, error) {
	if tol <= 0 {
		tol = DefaultTolerance
	}
	side := make([]int, len(m.Verts))
	for i, v := range m.Verts {
		side[i] = p.Side(v, tol)
	}

	var crossing []*Face
	for _, f := range m.Faces {
		if sel != nil && !sel(f) {
			continue
		}
		var pos, neg bool
		for _, v := range f.Verts {
			switch side[v] {
			case 1:
				pos = true
			case -1:
				neg = true
			}
		}
		if pos && neg {
			crossing = append(crossing, f)
		}
	}
	if len(crossing) == 0 {
		return nil, ErrNoCut
	}

	// Split every strictly crossing edge once.
	split := make(map[Edge]int)
	for _, f := range crossing {
		for i, a := range f.Verts {
			b := f.Verts[(i+1)%len(f.Verts)]
			if side[a]*side[b] != -1 {
				continue
			}
			e := MakeEdge(a, b)
			if _, ok := split[e]; ok {
				continue
			}
			pa, pb := m.Verts[e.A], m.Verts[e.B]
			da, db := p.SignedDistance(pa), p.SignedDistance(pb)
			nv := m.AddVertex(pa.Lerp(pb, da/(da-db)))
			side = append(side, 0)
			split[e] = nv
		}
	}

	res := &CutResult{}
	touched := make(map[*Face]bool)
	if len(split) > 0 {
		for _, f := range m.Faces {
			if insertSplitVerts(f, split) {
				touched[f] = true
			}
		}
	}

	onPlane := make(map[int]bool)
	for _, nv := range split {
		onPlane[nv] = true
	}
	var created []*Face
	for _, f := range crossing {
		pos, neg, c1, c2, ok := splitLoop(f.Verts, side)
		if !ok {
			res.Skipped++
			continue
		}
		nf := &Face{Verts: neg, Normal: f.Normal, Dist: f.Dist, Attr: f.Attr}
		f.Verts = pos
		touched[f] = true
		created = append(created, nf)
		res.Edges = append(res.Edges, MakeEdge(c1, c2))
		onPlane[c1] = true
		onPlane[c2] = true
	}
	m.Faces = append(m.Faces, created...)

	for i, f := range m.Faces {
		if touched[f] {
			res.Faces = append(res.Faces, i)
		}
	}
	for v := range onPlane {
		res.Verts = append(res.Verts, v)
	}
	sort.Ints(res.Verts)
	sortEdges(res.Edges)
	sort.Ints(res.Faces)

	if len(res.Edges) == 0 {
		return res, fmt.Errorf("%w: %d crossing faces could not be split", ErrNoCut, res.Skipped)
	}
	return res, nil
}

// insertSplitVerts places split vertices between the endpoints of every
// split edge of f.
func insertSplitVerts(f *Face, split map[Edge]int) bool {
	changed := false
	out := make([]int, 0, len(f.Verts)+2)
	for i, a := range f.Verts {
		b := f.Verts[(i+1)%len(f.Verts)]
		out = append(out, a)
		if nv, ok := split[MakeEdge(a, b)]; ok {
			out = append(out, nv)
			changed = true
		}
	}
	if changed {
		f.Verts = out
	}
	return changed
}

// splitLoop divides a loop whose crossing edges already carry on-plane
// vertices. It returns the positive and negative sub-loops and the two
// on-plane vertices they share. A loop that enters the negative side more
// than once is rejected.
func splitLoop(loop []int, side []int) (pos, neg []int, c1, c2 int, ok bool) {
	n := len(loop)
	start := -1
	for i, v := range loop {
		if side[v] == 1 {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, nil, 0, 0, false
	}
	at := func(i int) int { return loop[(start+i)%n] }

	// First negative vertex after the positive run.
	j := -1
	for i := 1; i < n; i++ {
		if side[at(i)] == -1 {
			j = i
			break
		}
	}
	if j < 0 || side[at(j-1)] != 0 {
		return nil, nil, 0, 0, false
	}
	// First positive vertex after the negative run.
	k := -1
	for i := j + 1; i < n; i++ {
		if side[at(i)] == 1 {
			k = i
			break
		}
	}
	if k < 0 {
		k = n
	}
	if side[at(k-1)] != 0 {
		return nil, nil, 0, 0, false
	}
	for i := k; i < n; i++ {
		if side[at(i)] == -1 {
			return nil, nil, 0, 0, false
		}
	}

	c1, c2 = at(j-1), at(k-1)
	if c1 == c2 {
		return nil, nil, 0, 0, false
	}
	for i := j - 1; i <= k-1; i++ {
		neg = append(neg, at(i))
	}
	for i := k - 1; i <= n+j-1; i++ {
		pos = append(pos, at(i))
	}
	return pos, neg, c1, c2, len(pos) >= 3 && len(neg) >= 3
}
