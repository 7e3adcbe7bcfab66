package connect

import (
	gomath "math"

	"go.uber.org/zap"

	"github.com/Faultbox/sectorforge/internal/logger"
	"github.com/Faultbox/sectorforge/internal/sector"
	"github.com/Faultbox/sectorforge/pkg/math"
	"github.com/Faultbox/sectorforge/pkg/mesh"
)

// Reconcile re-validates every connection in the registry. A link survives
// when both sides point at each other with opposite planes, equal area
// within AreaTol and the same number of boundary corners; otherwise both
// sides are disconnected and cleaned up. It returns the number of faces
// disconnected.
func Reconcile(r *sector.Registry, opt Options) int {
	dropped := 0
	for _, s := range r.All() {
		for _, id := range s.Neighbours() {
			t, ok := r.Get(id)
			if !ok {
				n := s.Disconnect(id)
				dropped += n
				logger.Warn("connection to missing sector dropped",
					zap.Int("sector", s.ID),
					zap.Int("neighbour", id),
					zap.Int("faces", n))
				cleanup(s, opt)
				continue
			}
			if consistent(s, t, opt) {
				continue
			}
			n := s.Disconnect(t.ID) + t.Disconnect(s.ID)
			dropped += n
			logger.Warn("inconsistent connection dropped",
				zap.Int("sector", s.ID),
				zap.Int("neighbour", t.ID),
				zap.Int("faces", n))
			cleanup(s, opt)
			cleanup(t, opt)
		}
	}
	return dropped
}

// Link resolves every touching pair of sectors and then reconciles the
// registry, so no link that fails validation survives. It returns the
// resolve counts and the number of faces disconnected.
func Link(r *sector.Registry, opt Options) (Result, int, error) {
	res, err := ResolveAll(r, opt)
	return res, Reconcile(r, opt), err
}

func cleanup(s *sector.Sector, opt Options) {
	s.Mesh.MergeCoplanar(opt.NormalEps)
	s.Mesh.Unsubdivide(mesh.CollinearEpsilon)
	s.Refresh(mesh.ConvexEpsilon)
}

// linkGroup is the set of faces of one sector linked to one neighbour in one
// plane.
type linkGroup struct {
	plane   math.Plane
	faces   []int
	area    float64
	corners int
}

func linkGroups(m *mesh.Mesh, to int, opt Options) []linkGroup {
	var out []linkGroup
next:
	for fi, f := range m.Faces {
		if f.Attr.ConnectedID != to {
			continue
		}
		for i := range out {
			if out[i].plane.Coplanar(f.Plane(), opt.NormalEps, opt.Tol) {
				out[i].faces = append(out[i].faces, fi)
				continue next
			}
		}
		out = append(out, linkGroup{plane: f.Plane(), faces: []int{fi}})
	}
	for i := range out {
		g := &out[i]
		g.area = m.Area(g.faces)
		for _, loop := range m.BoundaryLoops(g.faces) {
			g.corners += Corners(m.FacePoints(&mesh.Face{Verts: loop}), mesh.CollinearEpsilon)
		}
	}
	return out
}

func consistent(s, t *sector.Sector, opt Options) bool {
	gs := linkGroups(s.Mesh, t.ID, opt)
	gt := linkGroups(t.Mesh, s.ID, opt)
	if len(gs) != len(gt) {
		return false
	}
	for _, a := range gs {
		found := false
		for _, b := range gt {
			if !a.plane.Opposite(b.plane, opt.NormalEps, opt.Tol) {
				continue
			}
			found = gomath.Abs(a.area-b.area) <= opt.AreaTol && a.corners == b.corners
			break
		}
		if !found {
			return false
		}
	}
	return true
}

// Corners counts the vertices of a closed loop at which the boundary turns,
// ignoring collinear subdivision points.
func Corners(pts []math.Vec3, eps float64) int {
	n := len(pts)
	count := 0
	for i := range pts {
		prev, cur, next := pts[(i+n-1)%n], pts[i], pts[(i+1)%n]
		d1 := prev.Sub(cur).Normalize()
		d2 := next.Sub(cur).Normalize()
		if d1.Dot(d2) >= -(1 - eps) {
			count++
		}
	}
	return count
}
