package mesh

import (
	"sort"

	"github.com/Faultbox/sectorforge/pkg/math"
)

// NormalEpsilon is the flood-fill threshold: adjacent faces join a group
// when the dot product of their normals exceeds 1 - NormalEpsilon.
const NormalEpsilon = 1e-5

// GroupOptions restrict CoplanarGroup.
type GroupOptions struct {
	Limit        map[Edge]bool  // edges the fill may not cross
	Within       func(int) bool // faces the fill may enter; nil for all
	IgnoreNormal bool           // follow connectivity only
	NormalEps    float64        // defaults to NormalEpsilon
}

// CoplanarGroup flood-fills from face start across shared edges and returns
// the sorted indices of the maximal flat patch containing it.
func (m *Mesh) CoplanarGroup(start int, opt GroupOptions) []int {
	return m.coplanarGroup(start, opt, m.EdgeFaces())
}

func (m *Mesh) coplanarGroup(start int, opt GroupOptions, ef map[Edge][]int) []int {
	eps := opt.NormalEps
	if eps <= 0 {
		eps = NormalEpsilon
	}
	seen := map[int]bool{start: true}
	group := []int{start}
	queue := []int{start}
	for len(queue) > 0 {
		fi := queue[0]
		queue = queue[1:]
		f := m.Faces[fi]
		for _, e := range FaceEdges(f) {
			if opt.Limit[e] {
				continue
			}
			for _, n := range ef[e] {
				if seen[n] {
					continue
				}
				if opt.Within != nil && !opt.Within(n) {
					continue
				}
				if !opt.IgnoreNormal && f.Normal.Dot(m.Faces[n].Normal) <= 1-eps {
					continue
				}
				seen[n] = true
				group = append(group, n)
				queue = append(queue, n)
			}
		}
	}
	sort.Ints(group)
	return group
}

// FlatGroups partitions every face into coplanar groups, ordered by their
// smallest face index.
func (m *Mesh) FlatGroups(eps float64) [][]int {
	ef := m.EdgeFaces()
	seen := make([]bool, len(m.Faces))
	var out [][]int
	for fi := range m.Faces {
		if seen[fi] {
			continue
		}
		g := m.coplanarGroup(fi, GroupOptions{NormalEps: eps}, ef)
		for _, x := range g {
			seen[x] = true
		}
		out = append(out, g)
	}
	return out
}

// mergeable reports whether two adjacent faces may become one.
func mergeable(a, b *Face, eps float64) bool {
	return a.Normal.Dot(b.Normal) > 1-eps &&
		a.Attr.ConnectedID == b.Attr.ConnectedID &&
		a.Attr.FlatLight == b.Attr.FlatLight &&
		a.Attr.SameTexture(b.Attr)
}

// MergeCoplanar dissolves edges between coplanar faces carrying the same
// attributes wherever the merged face stays convex. It returns the number of
// merges.
func (m *Mesh) MergeCoplanar(eps float64) int {
	return m.mergeWhere(eps, nil)
}

// mergeWhere merges faces for which keep returns true (all when nil).
func (m *Mesh) mergeWhere(eps float64, keep map[*Face]bool) int {
	if eps <= 0 {
		eps = NormalEpsilon
	}
	merged := 0
	for {
		he, _ := m.halfEdges()
		done := true
		for fi, f := range m.Faces {
			if keep != nil && !keep[f] {
				continue
			}
			for i, a := range f.Verts {
				b := f.Verts[(i+1)%len(f.Verts)]
				gi, ok := he[[2]int{b, a}]
				if !ok || gi == fi {
					continue
				}
				g := m.Faces[gi]
				if keep != nil && !keep[g] {
					continue
				}
				if !mergeable(f, g, eps) {
					continue
				}
				loop, ok := joinLoops(f.Verts, g.Verts, a, b)
				if !ok || !IsConvexLoop(m.pick(loop), f.Normal, 1e-9) {
					continue
				}
				f.Verts = loop
				m.RemoveFaces([]int{gi})
				merged++
				done = false
				break
			}
			if !done {
				break
			}
		}
		if done {
			return merged
		}
	}
}

// joinLoops merges loop f (containing a→b) with loop g (containing b→a).
// Faces sharing more than the one edge are refused.
func joinLoops(f, g []int, a, b int) ([]int, bool) {
	shared := 0
	for _, x := range f {
		for _, y := range g {
			if x == y {
				shared++
			}
		}
	}
	if shared != 2 {
		return nil, false
	}
	rf := rotateTo(f, b)
	rg := rotateTo(g, a)
	if rf[len(rf)-1] != a || rg[len(rg)-1] != b {
		return nil, false
	}
	out := append([]int(nil), rf...)
	out = append(out, rg[1:len(rg)-1]...)
	return out, len(out) >= 3
}

func rotateTo(loop []int, v int) []int {
	for i, x := range loop {
		if x == v {
			out := make([]int, 0, len(loop))
			out = append(out, loop[i:]...)
			return append(out, loop[:i]...)
		}
	}
	return loop
}

func (m *Mesh) pick(loop []int) []math.Vec3 {
	pts := make([]math.Vec3, len(loop))
	for i, v := range loop {
		pts[i] = m.Verts[v]
	}
	return pts
}

// ConvexifyFaces replaces every non-convex face by convex pieces: the face is
// ear-clipped and the triangles are merged back greedily. It returns the
// number of faces rewritten.
func (m *Mesh) ConvexifyFaces() int {
	fixed := 0
	fresh := make(map[*Face]bool)
	var drop []int
	for fi, f := range m.Faces {
		pts := m.FacePoints(f)
		if IsConvexLoop(pts, f.Normal, 1e-9) {
			continue
		}
		poly := ProjectLoop(pts, f.Plane())
		tris := EarClip(poly)
		if len(tris) == 0 {
			continue
		}
		for _, t := range tris {
			nf := &Face{
				Verts:  []int{f.Verts[t[0]], f.Verts[t[1]], f.Verts[t[2]]},
				Normal: f.Normal,
				Dist:   f.Dist,
				Attr:   f.Attr,
			}
			m.Faces = append(m.Faces, nf)
			fresh[nf] = true
		}
		drop = append(drop, fi)
		fixed++
	}
	if fixed == 0 {
		return 0
	}
	m.RemoveFaces(drop)
	m.mergeWhere(NormalEpsilon, fresh)
	return fixed
}
