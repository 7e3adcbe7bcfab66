package facesplit

import (
	"errors"
	"fmt"

	"github.com/Faultbox/sectorforge/pkg/bw"
	"github.com/Faultbox/sectorforge/pkg/math"
	"github.com/Faultbox/sectorforge/pkg/mesh"
)

// Split builds the plan for a flat face group of m. The mesh is not
// modified.
func Split(m *mesh.Mesh, group []int, opt Options) (*Plan, error) {
	frag := m.Extract(group)
	all := faceRange(frag)
	loops := frag.BoundaryLoops(all)
	if len(loops) != 1 {
		return nil, fmt.Errorf("%w: %d loops", ErrNotSimple, len(loops))
	}
	head := frag.Faces[0]
	plan := &Plan{
		Normal:  head.Normal,
		Dist:    head.Dist,
		Outline: frag.FacePoints(&mesh.Face{Verts: loops[0]}),
	}

	holes, rem := holeRegions(frag), remainder(frag)
	plan.Type = classify(frag, holes, rem)
	plan.Attr = dominantAttr(frag, rem)
	switch plan.Type {
	case bw.FacePortal:
		plan.Neighbor = frag.Faces[holes[0][0]].Attr.ConnectedID
	case bw.FaceHole:
		plan.Holes = []Hole{describeHole(frag, holes[0], opt)}
	case bw.FaceSplit:
		if err := plan.buildCuts(frag, opt); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

type workItem struct {
	frag *mesh.Mesh
	slot **Node
}

// buildCuts partitions frag with an explicit worklist. Items are popped
// negative side first, so holes are numbered in stream order.
func (p *Plan) buildCuts(frag *mesh.Mesh, opt Options) error {
	limit := 4*len(frag.Faces) + 16
	stack := []workItem{{frag, &p.Cuts}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		holes, rem := holeRegions(it.frag), remainder(it.frag)
		if len(holes) <= 1 && textureUniform(it.frag, rem) {
			leaf := &Node{Leaf: true, HoleRef: -1}
			if len(rem) > 0 {
				if a := it.frag.Faces[rem[0]].Attr; !a.SameTexture(p.Attr) {
					a.ConnectedID = 0
					leaf.Attr = &a
				}
			}
			if len(holes) == 1 {
				leaf.HoleRef = len(p.Holes)
				p.Holes = append(p.Holes, describeHole(it.frag, holes[0], opt))
			}
			*it.slot = leaf
			continue
		}

		if limit--; limit < 0 {
			return fmt.Errorf("%w: cut limit reached", ErrNoProgress)
		}
		line, ok := chooseCut(it.frag, holes, rem, p.Normal, opt)
		if !ok {
			return ErrNoProgress
		}
		neg, pos, err := splitFragment(it.frag, line, opt)
		if err != nil {
			return err
		}
		node := &Node{Line: line}
		*it.slot = node
		stack = append(stack, workItem{pos, &node.Pos}, workItem{neg, &node.Neg})
	}
	return nil
}

// describeHole returns the hole formed by faces of frag. Its lines are the
// hole boundary edges that are not on frag's boundary, one per distinct line.
func describeHole(frag *mesh.Mesh, faces []int, opt Options) Hole {
	h := Hole{Neighbor: frag.Faces[faces[0]].Attr.ConnectedID}
	loops := frag.BoundaryLoops(faces)
	if len(loops) == 0 {
		return h
	}
	loop := loops[0]
	h.Loop = frag.FacePoints(&mesh.Face{Verts: loop})

	outer := make(map[[2]int]bool)
	for _, l := range frag.BoundaryLoops(faceRange(frag)) {
		for i, a := range l {
			outer[[2]int{a, l[(i+1)%len(l)]}] = true
		}
	}
	normal := frag.Faces[faces[0]].Normal
	for i, a := range loop {
		b := loop[(i+1)%len(loop)]
		if outer[[2]int{a, b}] {
			continue
		}
		line, ok := lineThrough(frag.Verts[a], frag.Verts[b], normal)
		if !ok || containsLine(h.Lines, line, opt) {
			continue
		}
		h.Lines = append(h.Lines, line)
	}
	return h
}

func containsLine(lines []Line, l Line, opt Options) bool {
	for _, x := range lines {
		if x.same(l, opt) {
			return true
		}
	}
	return false
}

// candidate is a cut line with its ranking.
type candidate struct {
	line      Line
	polluted  int // regions the line would split
	separated int // regions moved away from the region being isolated
}

func (c candidate) better(o candidate) bool {
	if c.polluted != o.polluted {
		return c.polluted < o.polluted
	}
	return c.separated > o.separated
}

// chooseCut picks the next line. With several holes, lines along a hole's
// boundary are ranked by how few holes they split and how many they set
// apart. Otherwise lines along the smallest texture class are ranked by
// whether they split the hole and how many faces they leave on the correct
// side.
func chooseCut(frag *mesh.Mesh, holes [][]int, rem []int, normal math.Vec3, opt Options) (Line, bool) {
	if len(holes) > 1 {
		for pi, primary := range holes {
			var best *candidate
			for _, line := range boundaryLines(frag, primary, normal, opt) {
				if !cuts(frag, faceRange(frag), line, opt) {
					continue
				}
				c := candidate{line: line}
				if regionSide(frag, primary, line, opt) == 0 {
					c.polluted++
				}
				for hi, h := range holes {
					if hi == pi {
						continue
					}
					switch regionSide(frag, h, line, opt) {
					case 0:
						c.polluted++
					case 1:
						c.separated++
					}
				}
				if best == nil || c.better(*best) {
					cc := c
					best = &cc
				}
			}
			if best != nil && best.separated > 0 {
				return best.line, true
			}
		}
		return Line{}, false
	}

	classes := textureClasses(frag, rem)
	if len(classes) < 2 {
		return Line{}, false
	}
	minority := classes[0]
	inMinority := make(map[int]bool, len(minority))
	for _, fi := range minority {
		inMinority[fi] = true
	}
	var best *candidate
	for _, line := range boundaryLines(frag, minority, normal, opt) {
		if !cuts(frag, faceRange(frag), line, opt) {
			continue
		}
		c := candidate{line: line}
		for _, h := range holes {
			if regionSide(frag, h, line, opt) == 0 {
				c.polluted++
			}
		}
		for _, fi := range rem {
			side := regionSide(frag, []int{fi}, line, opt)
			if (inMinority[fi] && side == -1) || (!inMinority[fi] && side == 1) {
				c.separated++
			}
		}
		if best == nil || c.better(*best) {
			cc := c
			best = &cc
		}
	}
	if best == nil {
		return Line{}, false
	}
	return best.line, true
}

// boundaryLines returns the distinct lines along the boundary of a region,
// normals pointing out of it.
func boundaryLines(frag *mesh.Mesh, faces []int, normal math.Vec3, opt Options) []Line {
	var out []Line
	for _, loop := range frag.BoundaryLoops(faces) {
		for i, a := range loop {
			b := loop[(i+1)%len(loop)]
			line, ok := lineThrough(frag.Verts[a], frag.Verts[b], normal)
			if !ok || containsLine(out, line, opt) {
				continue
			}
			out = append(out, line)
		}
	}
	return out
}

// regionSide returns -1 when every vertex of the faces is behind or on the
// line, 1 when every vertex is in front or on it, 0 when they straddle it.
func regionSide(m *mesh.Mesh, faces []int, l Line, opt Options) int {
	p := l.Plane()
	var front, back bool
	for _, fi := range faces {
		for _, v := range m.Faces[fi].Verts {
			switch p.Side(m.Verts[v], opt.Tol) {
			case 1:
				front = true
			case -1:
				back = true
			}
		}
	}
	switch {
	case front && back:
		return 0
	case front:
		return 1
	default:
		return -1
	}
}

// cuts reports whether the line has vertices of the faces strictly on both
// sides.
func cuts(m *mesh.Mesh, faces []int, l Line, opt Options) bool {
	return regionSide(m, faces, l, opt) == 0
}

// splitFragment cuts frag by the line and returns the parts behind and in
// front of it. Both parts must be non-empty.
func splitFragment(frag *mesh.Mesh, l Line, opt Options) (neg, pos *mesh.Mesh, err error) {
	neg, pos, err = divide(frag, l, opt)
	if err != nil {
		return nil, nil, err
	}
	if neg == nil || pos == nil {
		return nil, nil, fmt.Errorf("%w: line leaves one side empty", ErrNoProgress)
	}
	return neg, pos, nil
}

// divide is splitFragment without the progress check: an empty side is nil.
// Faces are assigned by the side of their centroid.
func divide(frag *mesh.Mesh, l Line, opt Options) (neg, pos *mesh.Mesh, err error) {
	c := frag.Clone()
	p := l.Plane()
	if _, err := c.Bisect(p, opt.Tol); err != nil && !errors.Is(err, mesh.ErrNoCut) {
		return nil, nil, err
	}
	var back, front []int
	for fi, f := range c.Faces {
		if p.SignedDistance(c.FaceCentroid(f)) < 0 {
			back = append(back, fi)
		} else {
			front = append(front, fi)
		}
	}
	if len(back) > 0 {
		neg = c.Extract(back)
	}
	if len(front) > 0 {
		pos = c.Extract(front)
	}
	return neg, pos, nil
}

func faceRange(m *mesh.Mesh) []int {
	out := make([]int, len(m.Faces))
	for i := range out {
		out[i] = i
	}
	return out
}
