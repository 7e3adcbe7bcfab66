package mesh

import (
	"fmt"
	gomath "math"

	"github.com/Faultbox/sectorforge/pkg/math"
)

// SplitByPlane cuts a closed mesh along p into closed pieces. Each side is
// capped with faces in the cutting plane, then separated into connected
// components; pieces without volume are dropped. Pieces behind the plane
// come first. The receiver is not modified.
func (m *Mesh) SplitByPlane(p math.Plane, tol float64) ([]*Mesh, error) {
	if tol <= 0 {
		tol = DefaultTolerance
	}
	c := m.Clone()
	if _, err := c.Bisect(p, tol); err != nil {
		return nil, err
	}

	var sides [2][]int // 0: behind, 1: in front
	for fi, f := range c.Faces {
		var sum, maxAbs float64
		for _, v := range f.Verts {
			d := p.SignedDistance(c.Verts[v])
			sum += d
			maxAbs = gomath.Max(maxAbs, gomath.Abs(d))
		}
		switch {
		case maxAbs <= tol:
			// A face lying in the plane bounds the side its normal leaves.
			if f.Normal.Dot(p.Normal) > 0 {
				sides[0] = append(sides[0], fi)
			} else {
				sides[1] = append(sides[1], fi)
			}
		case sum < 0:
			sides[0] = append(sides[0], fi)
		default:
			sides[1] = append(sides[1], fi)
		}
	}
	if len(sides[0]) == 0 || len(sides[1]) == 0 {
		return nil, ErrNoCut
	}

	var out []*Mesh
	for s, faces := range sides {
		piece := c.Extract(faces)
		capNormal := p.Normal
		if s == 1 {
			capNormal = capNormal.Neg()
		}
		if err := piece.capHoles(capNormal); err != nil {
			return nil, err
		}
		for _, part := range piece.Separate() {
			if gomath.Abs(part.Volume()) <= tol*tol*tol {
				continue
			}
			out = append(out, part)
		}
	}
	return out, nil
}

// capHoles closes every boundary loop with a face. Loops are reversed so the
// cap faces outward; attributes come from the first unconnected face.
func (m *Mesh) capHoles(normal math.Vec3) error {
	attr := DefaultAttributes()
	for _, f := range m.Faces {
		if f.Attr.ConnectedID == 0 {
			attr = f.Attr
			break
		}
	}
	attr.ConnectedID = 0
	attr.FlatLight = false
	attr.TexVX, attr.TexVY = math.Vec3{}, math.Vec3{}

	loops := m.BoundaryLoops(allFaces(m))
	capped := 0
	for _, loop := range loops {
		rev := make([]int, len(loop))
		for i, v := range loop {
			rev[len(loop)-1-i] = v
		}
		f, err := m.AddFace(rev, attr)
		if err != nil {
			continue
		}
		if f.Normal.Dot(normal) < 0 {
			return fmt.Errorf("%w: cap faces inward", ErrDegenerate)
		}
		capped++
	}
	if len(loops) > 0 && capped == 0 {
		return fmt.Errorf("%w: no cap could be built", ErrDegenerate)
	}
	m.ConvexifyFaces()
	return nil
}

func allFaces(m *Mesh) []int {
	out := make([]int, len(m.Faces))
	for i := range out {
		out[i] = i
	}
	return out
}
