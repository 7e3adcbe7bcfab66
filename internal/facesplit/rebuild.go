package facesplit

import (
	"errors"
	"fmt"

	"github.com/Faultbox/sectorforge/pkg/bw"
	"github.com/Faultbox/sectorforge/pkg/math"
	"github.com/Faultbox/sectorforge/pkg/mesh"
)

// ErrBadPlan is returned when a plan cannot be turned back into faces.
var ErrBadPlan = errors.New("invalid face plan")

// Rebuild turns a plan back into convex faces: the outline is filled with
// the plan's texture, then holes are carved and leaf textures applied by
// replaying the cut tree. The result is welded and free of T-junctions.
func Rebuild(p *Plan, opt Options) (*mesh.Mesh, error) {
	if len(p.Outline) < 3 {
		return nil, fmt.Errorf("%w: outline has %d points", ErrBadPlan, len(p.Outline))
	}
	attr := p.Attr
	switch p.Type {
	case bw.FaceSky:
		attr.TextureID = mesh.SkyTexture
	case bw.FacePortal:
		attr.ConnectedID = p.Neighbor
	}

	base := mesh.New()
	loop := make([]int, len(p.Outline))
	for i, pt := range p.Outline {
		loop[i] = base.AddVertex(pt)
	}
	if _, err := base.AddFace(loop, attr); err != nil {
		return nil, fmt.Errorf("%w: outline: %w", ErrBadPlan, err)
	}
	base.ConvexifyFaces()

	switch p.Type {
	case bw.FaceHole:
		if len(p.Holes) != 1 {
			return nil, fmt.Errorf("%w: hole face with %d holes", ErrBadPlan, len(p.Holes))
		}
		if err := carve(base, p.Holes[0], p.Plane(), opt); err != nil {
			return nil, err
		}
	case bw.FaceSplit:
		out, err := p.replay(base, opt)
		if err != nil {
			return nil, err
		}
		base = out
	}
	base.Weld(opt.Tol)
	base.RepairTJunctions(opt.Tol)
	return base, nil
}

type replayItem struct {
	frag *mesh.Mesh
	node *Node
}

func (p *Plan) replay(base *mesh.Mesh, opt Options) (*mesh.Mesh, error) {
	if p.Cuts == nil {
		return nil, fmt.Errorf("%w: split face without cuts", ErrBadPlan)
	}
	out := mesh.New()
	stack := []replayItem{{base, p.Cuts}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if it.frag == nil {
			continue
		}
		n := it.node
		if n == nil {
			return nil, fmt.Errorf("%w: missing cut node", ErrBadPlan)
		}
		if !n.Leaf {
			neg, pos, err := divide(it.frag, n.Line, opt)
			if err != nil {
				return nil, err
			}
			stack = append(stack, replayItem{pos, n.Pos}, replayItem{neg, n.Neg})
			continue
		}
		if n.Attr != nil {
			for _, f := range it.frag.Faces {
				f.Attr = *n.Attr
			}
		}
		if n.HoleRef >= 0 {
			if n.HoleRef >= len(p.Holes) {
				return nil, fmt.Errorf("%w: hole reference %d of %d", ErrBadPlan, n.HoleRef, len(p.Holes))
			}
			if err := carve(it.frag, p.Holes[n.HoleRef], p.Plane(), opt); err != nil {
				return nil, err
			}
		}
		out.Append(it.frag)
	}
	return out, nil
}

// carve cuts frag along the hole's lines and links the faces lying inside
// the hole loop to the hole's neighbour.
func carve(frag *mesh.Mesh, h Hole, plane math.Plane, opt Options) error {
	for _, l := range h.Lines {
		if _, err := frag.Bisect(l.Plane(), opt.Tol); err != nil && !errors.Is(err, mesh.ErrNoCut) {
			return fmt.Errorf("carve hole: %w", err)
		}
	}
	if len(h.Loop) < 3 {
		return fmt.Errorf("%w: hole loop has %d points", ErrBadPlan, len(h.Loop))
	}
	poly := mesh.ProjectLoop(h.Loop, plane)
	for _, f := range frag.Faces {
		c := mesh.ProjectLoop([]math.Vec3{frag.FaceCentroid(f)}, plane)[0]
		if mesh.PointInPolygon(c, poly) {
			f.Attr.ConnectedID = h.Neighbor
		}
	}
	return nil
}
