package mesh

import "sort"

// Edge is an undirected edge with A < B.
type Edge struct {
	A, B int
}

// MakeEdge returns the canonical edge between a and b.
func MakeEdge(a, b int) Edge {
	if a > b {
		a, b = b, a
	}
	return Edge{a, b}
}

// FaceEdges returns the edges of a face loop in order.
func FaceEdges(f *Face) []Edge {
	out := make([]Edge, len(f.Verts))
	for i, v := range f.Verts {
		out[i] = MakeEdge(v, f.Verts[(i+1)%len(f.Verts)])
	}
	return out
}

// EdgeFaces maps every edge to the indices of the faces using it.
func (m *Mesh) EdgeFaces() map[Edge][]int {
	ef := make(map[Edge][]int)
	for fi, f := range m.Faces {
		for _, e := range FaceEdges(f) {
			ef[e] = append(ef[e], fi)
		}
	}
	return ef
}

// Edges returns every edge sorted by (A, B).
func (m *Mesh) Edges() []Edge {
	ef := m.EdgeFaces()
	out := make([]Edge, 0, len(ef))
	for e := range ef {
		out = append(out, e)
	}
	sortEdges(out)
	return out
}

// BoundaryEdges returns the edges used by exactly one face, sorted.
func (m *Mesh) BoundaryEdges() []Edge {
	var out []Edge
	for e, faces := range m.EdgeFaces() {
		if len(faces) == 1 {
			out = append(out, e)
		}
	}
	sortEdges(out)
	return out
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].A != edges[j].A {
			return edges[i].A < edges[j].A
		}
		return edges[i].B < edges[j].B
	})
}

// halfEdges maps each directed edge (a→b) to the face traversing it.
// A second face traversing the same direction is reported through dup.
func (m *Mesh) halfEdges() (he map[[2]int]int, dup bool) {
	he = make(map[[2]int]int)
	for fi, f := range m.Faces {
		for i, a := range f.Verts {
			b := f.Verts[(i+1)%len(f.Verts)]
			k := [2]int{a, b}
			if _, ok := he[k]; ok {
				dup = true
			}
			he[k] = fi
		}
	}
	return he, dup
}

// Adjacency returns, for every face, the faces sharing an edge with it.
func (m *Mesh) Adjacency() [][]int {
	adj := make([][]int, len(m.Faces))
	for _, faces := range m.EdgeFaces() {
		for _, a := range faces {
			for _, b := range faces {
				if a != b {
					adj[a] = append(adj[a], b)
				}
			}
		}
	}
	for i := range adj {
		sort.Ints(adj[i])
	}
	return adj
}

// Components partitions the faces into edge-connected components. Each
// component is sorted; components are ordered by their smallest face.
func (m *Mesh) Components() [][]int {
	adj := m.Adjacency()
	seen := make([]bool, len(m.Faces))
	var out [][]int
	for start := range m.Faces {
		if seen[start] {
			continue
		}
		comp := []int{start}
		seen[start] = true
		queue := []int{start}
		for len(queue) > 0 {
			fi := queue[0]
			queue = queue[1:]
			for _, n := range adj[fi] {
				if !seen[n] {
					seen[n] = true
					comp = append(comp, n)
					queue = append(queue, n)
				}
			}
		}
		sort.Ints(comp)
		out = append(out, comp)
	}
	return out
}

// Separate splits the mesh into one mesh per edge-connected component.
func (m *Mesh) Separate() []*Mesh {
	comps := m.Components()
	out := make([]*Mesh, len(comps))
	for i, c := range comps {
		out[i] = m.Extract(c)
	}
	return out
}

// Is2DSphere reports whether the mesh is a closed, connected, manifold
// surface of genus zero. The Euler characteristic alone is not enough: the
// edge, vertex-link and connectivity checks all have to pass.
func (m *Mesh) Is2DSphere() bool {
	if len(m.Faces) < 4 {
		return false
	}
	ef := m.EdgeFaces()
	for _, faces := range ef {
		if len(faces) != 2 {
			return false
		}
	}
	used := m.UsedVertices()
	if len(used)-len(ef)+len(m.Faces) != 2 {
		return false
	}
	if !m.verticesManifold(used) {
		return false
	}
	comps := m.Components()
	return len(comps) == 1
}

// verticesManifold checks that the faces around every vertex form a single
// fan closing on itself.
func (m *Mesh) verticesManifold(used []int) bool {
	type link struct {
		edges int
		adj   map[int][]int
	}
	links := make(map[int]*link, len(used))
	for _, v := range used {
		links[v] = &link{adj: make(map[int][]int)}
	}
	for _, f := range m.Faces {
		n := len(f.Verts)
		for i, v := range f.Verts {
			prev := f.Verts[(i+n-1)%n]
			next := f.Verts[(i+1)%n]
			l := links[v]
			l.edges++
			l.adj[prev] = append(l.adj[prev], next)
			l.adj[next] = append(l.adj[next], prev)
		}
	}
	for _, l := range links {
		if len(l.adj) != l.edges {
			return false
		}
		var start int
		for k, nb := range l.adj {
			if len(nb) != 2 {
				return false
			}
			start = k
		}
		// Walk the link cycle; it must visit every neighbour.
		prev, cur, steps := -1, start, 0
		for {
			nb := l.adj[cur]
			next := nb[0]
			if next == prev {
				next = nb[1]
			}
			prev, cur = cur, next
			steps++
			if cur == start || steps > l.edges {
				break
			}
		}
		if steps != l.edges {
			return false
		}
	}
	return true
}

// ConsistentWinding reports whether every shared edge is traversed in
// opposite directions by its two faces.
func (m *Mesh) ConsistentWinding() bool {
	_, dup := m.halfEdges()
	return !dup
}

// BoundaryLoops chains the directed boundary edges of the given faces into
// closed loops. Loops follow the faces' winding; the result is sorted by
// descending loop length.
func (m *Mesh) BoundaryLoops(faces []int) [][]int {
	in := make(map[[2]int]bool)
	for _, fi := range faces {
		f := m.Faces[fi]
		for i, a := range f.Verts {
			in[[2]int{a, f.Verts[(i+1)%len(f.Verts)]}] = true
		}
	}
	next := make(map[int][]int)
	var starts []int
	for k := range in {
		if !in[[2]int{k[1], k[0]}] {
			next[k[0]] = append(next[k[0]], k[1])
			starts = append(starts, k[0])
		}
	}
	sort.Ints(starts)
	for _, nb := range next {
		sort.Ints(nb)
	}
	var loops [][]int
	for _, s := range starts {
		if len(next[s]) == 0 {
			continue
		}
		loop := []int{s}
		cur := s
		for {
			nb := next[cur]
			if len(nb) == 0 {
				break
			}
			nxt := nb[0]
			next[cur] = nb[1:]
			if nxt == s {
				break
			}
			loop = append(loop, nxt)
			cur = nxt
			if len(loop) > len(in) {
				break
			}
		}
		if len(loop) >= 3 {
			loops = append(loops, loop)
		}
	}
	sort.SliceStable(loops, func(i, j int) bool { return len(loops[i]) > len(loops[j]) })
	return loops
}

// VertexNeighbours returns, for every vertex, the sorted set of vertices it
// shares an edge with.
func (m *Mesh) VertexNeighbours() map[int][]int {
	out := make(map[int][]int)
	for _, e := range m.Edges() {
		out[e.A] = append(out[e.A], e.B)
		out[e.B] = append(out[e.B], e.A)
	}
	for k := range out {
		sort.Ints(out[k])
	}
	return out
}
