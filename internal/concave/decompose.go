// Package concave splits non-convex sectors into convex pieces.
//
// A projection direction u is chosen so that no internal face is seen
// edge-on. Every edge of an internal face, swept along u, is a knife: the
// strip of the swept plane between the edge's ends. A non-convex piece is
// cut by a knife only where its section in the knife plane meets the strip.
// Decomposition is a single pass: pieces that remain concave are reported,
// not re-cut.
package concave

import (
	"errors"
	"fmt"
	gomath "math"

	"go.uber.org/zap"

	"github.com/Faultbox/sectorforge/internal/logger"
	"github.com/Faultbox/sectorforge/internal/sector"
	"github.com/Faultbox/sectorforge/pkg/math"
	"github.com/Faultbox/sectorforge/pkg/mesh"
)

// Decomposition errors.
var (
	ErrNotSphere = errors.New("mesh is not a closed 2D sphere")
	ErrComplex   = errors.New("complex concave shape")
	ErrNoKnife   = errors.New("no internal face usable as knife")
)

// Options are the decomposer tolerances.
type Options struct {
	Tol       float64 // bisect tolerance
	ConvexEps float64 // convexity plane tolerance
	NormalTol float64 // projection normal tolerance
}

// DefaultOptions returns the standard tolerances.
func DefaultOptions() Options {
	return Options{
		Tol:       mesh.DefaultTolerance,
		ConvexEps: mesh.ConvexEpsilon,
		NormalTol: DefaultNormalTol,
	}
}

// Result is the outcome of decomposing one mesh.
type Result struct {
	Type   sector.ConcaveType
	Normal math.Vec3
	Knife  []Knife
	Pieces []*mesh.Mesh
}

// Knife is an internal face edge swept along the projection direction.
type Knife struct {
	Plane  math.Plane
	Origin math.Vec3 // edge start
	Across math.Vec3 // unit, in Plane, perpendicular to the sweep
	Width  float64   // edge extent along Across
}

// newKnife sweeps the edge a-b along u. Edges parallel to u give no knife.
func newKnife(a, b, u math.Vec3, tol float64) (Knife, bool) {
	e := b.Sub(a)
	n := e.Cross(u)
	if n.Length() <= tol {
		return Knife{}, false
	}
	un := u.Normalize()
	across := e.Sub(un.Scale(e.Dot(un)))
	w := across.Length()
	if w <= tol {
		return Knife{}, false
	}
	return Knife{
		Plane:  math.PlaneFromPoint(n, a),
		Origin: a,
		Across: across.Scale(1 / w),
		Width:  w,
	}, true
}

// span returns the extent of pts along the strip, ignoring points off the
// knife plane. lo > hi when no point lies in the plane.
func (k Knife) span(pts []math.Vec3, tol float64) (lo, hi float64) {
	lo, hi = gomath.Inf(1), gomath.Inf(-1)
	for _, p := range pts {
		if gomath.Abs(k.Plane.SignedDistance(p)) > tol {
			continue
		}
		s := p.Sub(k.Origin).Dot(k.Across)
		lo, hi = gomath.Min(lo, s), gomath.Max(hi, s)
	}
	return lo, hi
}

// covers reports whether the strip of o lies inside the strip of k.
func (k Knife) covers(o Knife, tol float64) bool {
	if !k.Plane.Coplanar(o.Plane, mesh.NormalEpsilon, tol) && !k.Plane.Opposite(o.Plane, mesh.NormalEpsilon, tol) {
		return false
	}
	lo, hi := k.span([]math.Vec3{o.Origin, o.Origin.Add(o.Across.Scale(o.Width))}, tol)
	return lo >= -tol && hi <= k.Width+tol
}

// split cuts m along the knife plane. ErrNoCut is returned when the plane
// misses m or the section of m in the plane does not meet the strip.
func (k Knife) split(m *mesh.Mesh, tol float64) ([]*mesh.Mesh, error) {
	parts, err := m.SplitByPlane(k.Plane, tol)
	if err != nil {
		return nil, err
	}
	var section []math.Vec3
	for _, part := range parts {
		for _, v := range part.UsedVertices() {
			section = append(section, part.Verts[v])
		}
	}
	lo, hi := k.span(section, tol)
	if gomath.Min(hi, k.Width)-gomath.Max(lo, 0) <= tol {
		return nil, mesh.ErrNoCut
	}
	return parts, nil
}

// Convex reports how many pieces passed the convexity check.
func (r *Result) Convex() int {
	n := 0
	for _, p := range r.Pieces {
		if p.IsConvex() {
			n++
		}
	}
	return n
}

// Decompose analyses s and, when it is concave, cuts a copy of its mesh into
// pieces. The sector itself is only updated with its concave type. A convex
// sector yields a result without pieces.
func Decompose(s *sector.Sector, opt Options) (*Result, error) {
	s.Refresh(opt.ConvexEps)
	if !s.Is2DSphere {
		return nil, ErrNotSphere
	}
	if s.IsConvex {
		return &Result{Type: sector.ConcaveNone}, nil
	}

	internal := make([]math.Vec3, len(s.FacesIntIdx))
	for i, fi := range s.FacesIntIdx {
		internal[i] = s.Mesh.Faces[fi].Normal
	}
	u, typ := ProjectNormal(internal, s.FlatExt, opt.NormalTol)
	s.ConcaveType = typ
	if typ == sector.ConcaveComplex {
		return nil, ErrComplex
	}

	knife := knives(s.Mesh, s.FacesIntIdx, u, opt)
	if len(knife) == 0 {
		s.ConcaveType = sector.ConcaveComplex
		return nil, fmt.Errorf("%w: %w", ErrComplex, ErrNoKnife)
	}

	pieces, err := cut(s.Mesh, knife, opt)
	if err != nil {
		return nil, err
	}
	if len(pieces) < 2 {
		s.ConcaveType = sector.ConcaveComplex
		return nil, fmt.Errorf("%w: knife left the mesh whole", ErrComplex)
	}
	return &Result{Type: typ, Normal: u, Knife: knife, Pieces: pieces}, nil
}

// knives sweeps every edge of each usable internal face along u. Faces
// seen edge-on from u, or projecting to fewer than three distinct points,
// are skipped. A knife whose strip another knife already covers is dropped.
func knives(m *mesh.Mesh, internal []int, u math.Vec3, opt Options) []Knife {
	var out []Knife
	for _, fi := range internal {
		f := m.Faces[fi]
		if gomath.Abs(f.Normal.Dot(u)) <= opt.NormalTol {
			continue
		}
		pts := m.FacePoints(f)
		if distinctProjected(pts, u, opt.Tol) < 3 {
			continue
		}
	edges:
		for i, a := range pts {
			k, ok := newKnife(a, pts[(i+1)%len(pts)], u, opt.Tol)
			if !ok {
				continue
			}
			for _, q := range out {
				if q.covers(k, opt.Tol) {
					continue edges
				}
			}
			out = append(out, k)
		}
	}
	return out
}

// distinctProjected counts the distinct points of pts once projected onto
// the plane perpendicular to u.
func distinctProjected(pts []math.Vec3, u math.Vec3, tol float64) int {
	flat := math.Plane{Normal: u.Normalize()}
	var seen []math.Vec3
next:
	for _, p := range pts {
		q := flat.Project(p)
		for _, s := range seen {
			if s.ApproxEqual(q, tol) {
				continue next
			}
		}
		seen = append(seen, q)
	}
	return len(seen)
}

// cut applies every knife to the pieces that are still concave.
func cut(m *mesh.Mesh, knife []Knife, opt Options) ([]*mesh.Mesh, error) {
	pieces := []*mesh.Mesh{m.Clone()}
	for _, k := range knife {
		var next []*mesh.Mesh
		for _, piece := range pieces {
			if piece.Convexity(opt.ConvexEps).Convex {
				next = append(next, piece)
				continue
			}
			parts, err := k.split(piece, opt.Tol)
			switch {
			case errors.Is(err, mesh.ErrNoCut):
				next = append(next, piece)
			case err != nil:
				return nil, fmt.Errorf("knife cut: %w", err)
			default:
				next = append(next, parts...)
			}
		}
		pieces = next
	}
	for _, piece := range pieces {
		piece.MergeCoplanar(mesh.NormalEpsilon)
		piece.Unsubdivide(mesh.CollinearEpsilon)
	}
	return pieces, nil
}

// Replace decomposes s and swaps it for its pieces in r. The pieces take the
// sector's lighting and atmosphere, are named after it and are connected to
// each other and to the sector's former neighbours.
func Replace(r *sector.Registry, s *sector.Sector, opt Options, resolve func(a, b *sector.Sector) error) ([]*sector.Sector, error) {
	res, err := Decompose(s, opt)
	if err != nil {
		return nil, err
	}
	if len(res.Pieces) == 0 {
		return nil, nil
	}

	neighbours := s.Neighbours()
	if err := r.Delete(s.ID); err != nil {
		return nil, err
	}
	var created []*sector.Sector
	for i, m := range res.Pieces {
		for _, f := range m.Faces {
			f.Attr.ConnectedID = 0
		}
		p := r.Create(fmt.Sprintf("%s_%d", s.Name, i+1), m)
		p.Atmosphere = s.Atmosphere
		p.Ambient = s.Ambient
		p.Flat = s.Flat
		p.GroupFlags = s.GroupFlags
		created = append(created, p)
	}
	logger.Info("sector decomposed",
		zap.Int("sector", s.ID),
		zap.String("name", s.Name),
		zap.Stringer("type", res.Type),
		zap.Int("pieces", len(created)),
		zap.Int("convex", res.Convex()))

	if resolve == nil {
		return created, nil
	}
	var targets []*sector.Sector
	for _, id := range neighbours {
		if n, ok := r.Get(id); ok {
			targets = append(targets, n)
		}
	}
	for i, p := range created {
		for _, q := range created[i+1:] {
			if err := resolve(p, q); err != nil {
				return created, err
			}
		}
		for _, n := range targets {
			if err := resolve(p, n); err != nil {
				return created, err
			}
		}
	}
	return created, nil
}
