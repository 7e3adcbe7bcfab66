package mesh

// CollinearEpsilon bounds how far two edge directions may deviate from
// anti-parallel for their shared vertex to count as a subdivision point.
const CollinearEpsilon = 1e-5

// Unsubdivide removes vertices with exactly two incident edges whose edges
// are collinear, merging each chain into its end points. The mesh is
// compacted when anything was removed. It returns the number of vertices
// dropped; a second call always returns 0.
func (m *Mesh) Unsubdivide(eps float64) int {
	if eps <= 0 {
		eps = CollinearEpsilon
	}
	removed := 0
	for {
		nb := m.VertexNeighbours()
		var victims []int
		for _, v := range m.UsedVertices() {
			n := nb[v]
			if len(n) != 2 {
				continue
			}
			d1 := m.Verts[n[0]].Sub(m.Verts[v]).Normalize()
			d2 := m.Verts[n[1]].Sub(m.Verts[v]).Normalize()
			if d1.Dot(d2) < -(1 - eps) {
				victims = append(victims, v)
			}
		}
		changed := false
		for _, v := range victims {
			// Chains lie on one line, so dropping all members in one pass is safe.
			if m.dropVertex(v) {
				removed++
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	if removed > 0 {
		m.Compact()
	}
	return removed
}

// dropVertex removes v from every face loop, refusing when a face would fall
// below three vertices.
func (m *Mesh) dropVertex(v int) bool {
	var owners []*Face
	for _, f := range m.Faces {
		if f.Has(v) {
			if len(f.Verts) <= 3 {
				return false
			}
			owners = append(owners, f)
		}
	}
	for _, f := range owners {
		out := f.Verts[:0]
		for _, x := range f.Verts {
			if x != v {
				out = append(out, x)
			}
		}
		f.Verts = out
	}
	return len(owners) > 0
}
