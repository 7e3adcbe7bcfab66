// Package connect finds the walls two sectors share and links their faces.
//
// Two faces are candidates when they are coplanar and face opposite ways.
// Groups whose vertex sets coincide are linked directly; otherwise the
// overlapping region is computed in the shared plane, both meshes are cut
// along its boundary and the sub-faces inside it are linked.
package connect

import (
	"errors"
	"fmt"
	gomath "math"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat/combin"

	"github.com/Faultbox/sectorforge/internal/logger"
	"github.com/Faultbox/sectorforge/internal/sector"
	"github.com/Faultbox/sectorforge/pkg/math"
	"github.com/Faultbox/sectorforge/pkg/mesh"
)

// ErrSelf is returned when a sector is resolved against itself.
var ErrSelf = errors.New("sector cannot connect to itself")

// Options are the resolver tolerances.
type Options struct {
	Tol       float64 // vertex and plane distance tolerance
	NormalEps float64 // normals match when their dot exceeds 1 - NormalEps
	AreaTol   float64 // minimum shared area, and allowed area mismatch
}

// DefaultOptions returns the standard tolerances.
func DefaultOptions() Options {
	return Options{
		Tol:       mesh.DefaultTolerance,
		NormalEps: mesh.NormalEpsilon,
		AreaTol:   1e-3,
	}
}

// Result counts the connections made.
type Result struct {
	Exact   int // groups linked by identical vertex sets
	Clipped int // planes linked through an overlap cut
}

// Total returns the number of connections made.
func (r Result) Total() int {
	return r.Exact + r.Clipped
}

func (r *Result) add(o Result) {
	r.Exact += o.Exact
	r.Clipped += o.Clipped
}

// Resolve links every shared wall between a and b. Both sectors are
// refreshed when anything changed.
func Resolve(a, b *sector.Sector, opt Options) (Result, error) {
	var res Result
	if a.ID == b.ID {
		return res, fmt.Errorf("%w: %d", ErrSelf, a.ID)
	}
	for _, p := range freePlanes(a.Mesh, opt) {
		r, err := resolvePlane(a, b, p, opt)
		if err != nil {
			return res, err
		}
		res.add(r)
	}
	if res.Total() == 0 {
		return res, nil
	}
	for _, s := range []*sector.Sector{a, b} {
		s.Mesh.MergeCoplanar(opt.NormalEps)
		s.Mesh.Unsubdivide(mesh.CollinearEpsilon)
		s.Refresh(mesh.ConvexEpsilon)
	}
	logger.Debug("sectors connected",
		zap.Int("sector", a.ID),
		zap.Int("neighbour", b.ID),
		zap.Int("exact", res.Exact),
		zap.Int("clipped", res.Clipped))
	return res, nil
}

// ResolveAll resolves every pair of sectors whose bounds touch. Pair
// failures are collected; the remaining pairs are still processed.
func ResolveAll(r *sector.Registry, opt Options) (Result, error) {
	var total Result
	secs := r.All()
	if len(secs) < 2 {
		return total, nil
	}
	var errs error
	for _, c := range combin.Combinations(len(secs), 2) {
		a, b := secs[c[0]], secs[c[1]]
		if a.Mesh == nil || b.Mesh == nil || !boundsTouch(a.Mesh, b.Mesh, opt.Tol) {
			continue
		}
		res, err := Resolve(a, b, opt)
		if err != nil {
			logger.Warn("connect failed",
				zap.Int("sector", a.ID),
				zap.Int("neighbour", b.ID),
				zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("sectors %d and %d: %w", a.ID, b.ID, err))
			continue
		}
		total.add(res)
	}
	return total, errs
}

// resolvePlane links the free faces of a in plane p with the free faces of b
// in the opposite plane.
func resolvePlane(a, b *sector.Sector, p math.Plane, opt Options) (Result, error) {
	var res Result
	selA := freeIn(a.Mesh, p, opt)
	selB := freeIn(b.Mesh, p.Flip(), opt)
	fa, fb := selected(a.Mesh, selA), selected(b.Mesh, selB)
	if len(fa) == 0 || len(fb) == 0 {
		return res, nil
	}

	// Exact fast path: whole groups with identical vertex sets.
	groupsB := groupsWithin(b.Mesh, fb, opt)
	for _, ga := range groupsWithin(a.Mesh, fa, opt) {
		ka := vertexKeys(a.Mesh, ga, opt.Tol)
		for _, gb := range groupsB {
			if b.Mesh.Faces[gb[0]].Attr.ConnectedID != 0 || !sameKeys(ka, vertexKeys(b.Mesh, gb, opt.Tol)) {
				continue
			}
			link(a.Mesh, ga, b.ID)
			link(b.Mesh, gb, a.ID)
			res.Exact++
			break
		}
	}
	fa, fb = selected(a.Mesh, selA), selected(b.Mesh, selB)
	if len(fa) == 0 || len(fb) == 0 {
		return res, nil
	}

	// Overlap path.
	overlap, area := overlaps(a.Mesh, fa, b.Mesh, fb, p, opt)
	if area <= opt.AreaTol {
		return res, nil
	}
	for _, cut := range cutPlanes(overlap, p, opt) {
		for _, m := range []struct {
			mesh *mesh.Mesh
			sel  func(*mesh.Face) bool
		}{{a.Mesh, selA}, {b.Mesh, selB}} {
			if _, err := m.mesh.BisectFaces(cut, opt.Tol, m.sel); err != nil && !errors.Is(err, mesh.ErrNoCut) {
				return res, fmt.Errorf("cutting shared wall: %w", err)
			}
		}
	}
	areaA := mark(a.Mesh, selA, overlap, p, b.ID)
	areaB := mark(b.Mesh, selB, overlap, p, a.ID)
	if areaA == 0 || areaB == 0 {
		return res, nil
	}
	if gomath.Abs(areaA-areaB) > opt.AreaTol {
		logger.Warn("shared wall area mismatch",
			zap.Int("sector", a.ID),
			zap.Int("neighbour", b.ID),
			zap.Float64("area", areaA),
			zap.Float64("neighbour_area", areaB))
	}
	res.Clipped++
	return res, nil
}

// freePlanes returns the distinct planes of m's unconnected faces in face
// order.
func freePlanes(m *mesh.Mesh, opt Options) []math.Plane {
	var out []math.Plane
next:
	for _, f := range m.Faces {
		if f.Attr.ConnectedID != 0 {
			continue
		}
		p := f.Plane()
		for _, q := range out {
			if q.Coplanar(p, opt.NormalEps, opt.Tol) {
				continue next
			}
		}
		out = append(out, p)
	}
	return out
}

func freeIn(m *mesh.Mesh, p math.Plane, opt Options) func(*mesh.Face) bool {
	return func(f *mesh.Face) bool {
		return f.Attr.ConnectedID == 0 && f.Plane().Coplanar(p, opt.NormalEps, opt.Tol)
	}
}

func selected(m *mesh.Mesh, sel func(*mesh.Face) bool) []int {
	var out []int
	for i, f := range m.Faces {
		if sel(f) {
			out = append(out, i)
		}
	}
	return out
}

// groupsWithin splits faces into edge-connected groups.
func groupsWithin(m *mesh.Mesh, faces []int, opt Options) [][]int {
	in := make(map[int]bool, len(faces))
	for _, fi := range faces {
		in[fi] = true
	}
	seen := make(map[int]bool, len(faces))
	var out [][]int
	for _, fi := range faces {
		if seen[fi] {
			continue
		}
		g := m.CoplanarGroup(fi, mesh.GroupOptions{
			Within:    func(i int) bool { return in[i] },
			NormalEps: opt.NormalEps,
		})
		for _, x := range g {
			seen[x] = true
		}
		out = append(out, g)
	}
	return out
}

type vkey [3]int64

func quantize(p math.Vec3, tol float64) vkey {
	return vkey{
		int64(gomath.Round(p.X / tol)),
		int64(gomath.Round(p.Y / tol)),
		int64(gomath.Round(p.Z / tol)),
	}
}

func vertexKeys(m *mesh.Mesh, faces []int, tol float64) map[vkey]bool {
	out := make(map[vkey]bool)
	for _, fi := range faces {
		for _, v := range m.Faces[fi].Verts {
			out[quantize(m.Verts[v], tol)] = true
		}
	}
	return out
}

func sameKeys(a, b map[vkey]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func link(m *mesh.Mesh, faces []int, id int) {
	for _, fi := range faces {
		m.Faces[fi].Attr.ConnectedID = id
	}
}

// overlaps intersects every face of fa with every face of fb in the 2D frame
// of p and returns the positive-area pieces with their summed area.
func overlaps(a *mesh.Mesh, fa []int, b *mesh.Mesh, fb []int, p math.Plane, opt Options) ([][]math.Vec2, float64) {
	polysB := make([][]math.Vec2, len(fb))
	for i, fi := range fb {
		poly := mesh.ProjectLoop(b.FacePoints(b.Faces[fi]), p)
		for l, r := 0, len(poly)-1; l < r; l, r = l+1, r-1 {
			poly[l], poly[r] = poly[r], poly[l]
		}
		polysB[i] = poly
	}
	var out [][]math.Vec2
	var total float64
	for _, fi := range fa {
		pa := mesh.ProjectLoop(a.FacePoints(a.Faces[fi]), p)
		for _, pb := range polysB {
			clip := mesh.ConvexClip(pa, pb)
			if len(clip) < 3 {
				continue
			}
			area := mesh.Area2D(clip)
			if area <= opt.Tol*opt.Tol {
				continue
			}
			out = append(out, clip)
			total += area
		}
	}
	return out, total
}

// cutPlanes returns the planes perpendicular to p through every edge of the
// overlap polygons, without duplicates.
func cutPlanes(polys [][]math.Vec2, p math.Plane, opt Options) []math.Plane {
	var out []math.Plane
	for _, poly := range polys {
	edges:
		for i := range poly {
			a := mesh.Unproject(poly[i], p)
			b := mesh.Unproject(poly[(i+1)%len(poly)], p)
			dir := b.Sub(a)
			if dir.Length() <= opt.Tol {
				continue
			}
			cut := math.PlaneFromPoint(dir.Cross(p.Normal), a)
			for _, q := range out {
				if q.Coplanar(cut, opt.NormalEps, opt.Tol) || q.Opposite(cut, opt.NormalEps, opt.Tol) {
					continue edges
				}
			}
			out = append(out, cut)
		}
	}
	return out
}

// mark links the selected faces whose centroid lies inside an overlap
// polygon and returns their area.
func mark(m *mesh.Mesh, sel func(*mesh.Face) bool, polys [][]math.Vec2, p math.Plane, id int) float64 {
	var area float64
	for _, f := range m.Faces {
		if !sel(f) {
			continue
		}
		c := mesh.ProjectLoop([]math.Vec3{m.FaceCentroid(f)}, p)[0]
		for _, poly := range polys {
			if mesh.PointInPolygon(c, poly) {
				f.Attr.ConnectedID = id
				area += m.FaceArea(f)
				break
			}
		}
	}
	return area
}

func boundsTouch(a, b *mesh.Mesh, tol float64) bool {
	loA, hiA := a.Bounds()
	loB, hiB := b.Bounds()
	return loA.X <= hiB.X+tol && loB.X <= hiA.X+tol &&
		loA.Y <= hiB.Y+tol && loB.Y <= hiA.Y+tol &&
		loA.Z <= hiB.Z+tol && loB.Z <= hiA.Z+tol
}
