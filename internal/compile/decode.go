package compile

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/sectorforge/internal/connect"
	"github.com/Faultbox/sectorforge/internal/facesplit"
	"github.com/Faultbox/sectorforge/internal/logger"
	"github.com/Faultbox/sectorforge/internal/sector"
	"github.com/Faultbox/sectorforge/pkg/bw"
	"github.com/Faultbox/sectorforge/pkg/math"
	"github.com/Faultbox/sectorforge/pkg/mesh"
)

// Result lists the sectors an import created, in file order.
type Result struct {
	Sectors  []*sector.Sector
	NeedsFix []string // not closed after the repair passes; manual review
	Abnormal []string // ambiguous hole references in at least one face
	Dropped  int      // inconsistent link faces removed by reconciliation
}

// Decode adds the sectors of f to r. Faces that cannot be rebuilt are
// skipped and reported through the returned error; the other sectors are
// still created.
func Decode(f *bw.File, r *sector.Registry, opt Options) (*Result, error) {
	var errs error
	for _, a := range f.Atmospheres {
		if _, ok := r.Atmosphere(a.Name); ok {
			continue
		}
		r.Atmospheres = append(r.Atmospheres, sector.Atmosphere{
			Name: a.Name, Color: sector.Color{R: a.R, G: a.G, B: a.B}, Alpha: a.Alpha,
		})
	}
	verts := make([]math.Vec3, len(f.Vertices))
	for i, v := range f.Vertices {
		verts[i] = math.FromEngine(v)
	}

	res := &Result{}
	ids := make([]int, len(f.Sectors))
	d := &decoder{verts: verts, sectors: len(f.Sectors), tex: r.Textures, opt: opt}
	for i, bs := range f.Sectors {
		m, abnormal, err := d.sector(bs)
		name := fmt.Sprintf("sector_%d", i+1)
		if i < len(f.Names) && f.Names[i] != "" {
			name = f.Names[i]
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("sector %d (%s): %w", i, name, err))
		}
		s := r.Create(name, m)
		s.Atmosphere = bs.Atmosphere
		s.Ambient = decodeLight(bs.Ambient)
		s.Flat = sector.FlatLight{Light: decodeLight(bs.Flat.Light), Direction: math.DirFromEngine(bs.Flat.Direction)}
		if i < len(f.GroupFlags) {
			s.GroupFlags = f.GroupFlags[i]
		}
		if abnormal {
			res.Abnormal = append(res.Abnormal, name)
		}
		ids[i] = s.ID
		res.Sectors = append(res.Sectors, s)
		opt.progress(i+1, len(f.Sectors))
	}

	// Links were decoded as file index + 1.
	for _, s := range res.Sectors {
		for _, fc := range s.Mesh.Faces {
			if c := fc.Attr.ConnectedID; c != 0 {
				fc.Attr.ConnectedID = ids[c-1]
			}
		}
		s.Refresh(mesh.ConvexEpsilon)
	}
	decodeLights(f, r, ids)

	if opt.Fixups {
		if err := fixup(r, res, opt); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	for _, s := range res.Sectors {
		if !s.Is2DSphere {
			res.NeedsFix = append(res.NeedsFix, s.Name)
		}
	}
	logger.Info("sectors decoded",
		zap.Int("sectors", len(res.Sectors)),
		zap.Int("needs_fix", len(res.NeedsFix)),
		zap.Int("abnormal", len(res.Abnormal)),
		zap.Int("dropped", res.Dropped))
	return res, errs
}

// fixup closes open seams between imported sectors by vertex matching, then
// drops links the two sides disagree on.
func fixup(r *sector.Registry, res *Result, opt Options) error {
	var open []*sector.Sector
	for _, s := range res.Sectors {
		if !s.Is2DSphere {
			open = append(open, s)
		}
	}
	var errs error
	for i, a := range open {
		for _, b := range open[i+1:] {
			n, err := connect.MatchVertices(a, b, opt.Connect)
			switch {
			case errors.Is(err, connect.ErrNoMatch):
			case err != nil:
				errs = multierr.Append(errs, fmt.Errorf("matching %s and %s: %w", a.Name, b.Name, err))
			case n > 0:
				a.Refresh(mesh.ConvexEpsilon)
				b.Refresh(mesh.ConvexEpsilon)
				logger.Debug("seam closed by vertex matching",
					zap.String("sector", a.Name), zap.String("neighbour", b.Name), zap.Int("faces", n))
			}
		}
	}
	res.Dropped = connect.Reconcile(r, opt.Connect)
	return errs
}

func decodeLights(f *bw.File, r *sector.Registry, ids []int) {
	id := func(i int32) (int, bool) {
		if i < 0 || int(i) >= len(ids) {
			return 0, false
		}
		return ids[i], true
	}
	for _, l := range f.ExtLights {
		el := sector.ExtLight{Light: decodeLight(l.Light), Direction: math.DirFromEngine(l.Direction)}
		for _, i := range l.Sectors {
			if s, ok := id(i); ok {
				el.Sectors = append(el.Sectors, s)
			}
		}
		r.ExtLights = append(r.ExtLights, el)
	}
	for _, b := range f.Bulbs {
		s, ok := id(b.Sector)
		if !ok {
			logger.Warn("bulb references unknown sector", zap.Int32("sector", b.Sector))
			continue
		}
		r.Bulbs = append(r.Bulbs, sector.Bulb{Light: decodeLight(b.Light), Position: math.FromEngine(b.Position), Sector: s})
	}
}

type decoder struct {
	verts   []math.Vec3
	sectors int
	tex     *sector.TextureTable
	opt     Options
}

// sector rebuilds the mesh of one sector record. Links hold file index + 1.
func (d *decoder) sector(bs bw.Sector) (*mesh.Mesh, bool, error) {
	m := mesh.New()
	abnormal := false
	var errs error
	for fi, face := range bs.Faces {
		plan, ambiguous, err := d.plan(face)
		if err == nil {
			var part *mesh.Mesh
			if part, err = facesplit.Rebuild(plan, d.opt.Split); err == nil {
				m.Append(part)
			}
		}
		if err != nil {
			logger.Warn("face not decoded", zap.Int("face", fi), zap.Stringer("type", face.Type), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("face %d: %w", fi, err))
			continue
		}
		abnormal = abnormal || ambiguous
	}
	m.Weld(d.opt.Split.Tol)
	m.RepairTJunctions(d.opt.Split.Tol)
	m.MergeCoplanar(d.opt.Split.NormalEps)
	m.Unsubdivide(mesh.CollinearEpsilon)
	return m, abnormal, errs
}

func (d *decoder) neighbor(i int32) (int, error) {
	if i < 0 || int(i) >= d.sectors {
		return 0, fmt.Errorf("%w: %d of %d", ErrBadNeighbor, i, d.sectors)
	}
	return int(i) + 1, nil
}

func (d *decoder) loop(idx []uint32) []math.Vec3 {
	out := make([]math.Vec3, len(idx))
	for i, v := range idx {
		out[i] = d.verts[v]
	}
	return out
}

// plan converts a face record back into a face plan. The flag reports
// ambiguous hole references: a hole used by several leaves or by none.
// Several holes may lead to the same neighbour when cuts divide its opening.
func (d *decoder) plan(f bw.Face) (*facesplit.Plan, bool, error) {
	p := &facesplit.Plan{
		Type:    f.Type,
		Normal:  math.DirFromEngine(f.Normal),
		Dist:    math.DistFromEngine(f.Distance),
		Outline: d.loop(f.Verts),
		Attr:    mesh.DefaultAttributes(),
	}
	if f.Type.HasTexture() {
		p.Attr = decodeTexture(d.tex, f.Texture, d.opt.SkyTexture)
	}
	switch f.Type {
	case bw.FaceSky:
		p.Attr.TextureID = mesh.SkyTexture
	case bw.FacePortal:
		n, err := d.neighbor(f.Neighbor)
		if err != nil {
			return nil, false, err
		}
		p.Neighbor = n
	}

	ambiguous := false
	for _, h := range f.Holes {
		n, err := d.neighbor(h.Neighbor)
		if err != nil {
			return nil, false, err
		}
		hole := facesplit.Hole{Loop: d.loop(h.Verts), Neighbor: n}
		for _, l := range h.Lines {
			hole.Lines = append(hole.Lines, decodeLine(l))
		}
		p.Holes = append(p.Holes, hole)
	}

	if f.Type == bw.FaceSplit {
		p.Cuts = d.cuts(f.Cuts)
		refs := make([]int, len(p.Holes))
		for _, l := range p.Cuts.Leaves() {
			if l.HoleRef >= 0 && l.HoleRef < len(refs) {
				refs[l.HoleRef]++
			}
		}
		for _, n := range refs {
			ambiguous = ambiguous || n != 1
		}
	}
	return p, ambiguous, nil
}

func (d *decoder) cuts(n *bw.CutNode) *facesplit.Node {
	if n == nil {
		return nil
	}
	if n.Leaf {
		out := &facesplit.Node{Leaf: true, HoleRef: int(n.HoleRef)}
		if n.Texture != nil {
			a := decodeTexture(d.tex, n.Texture, d.opt.SkyTexture)
			out.Attr = &a
		}
		return out
	}
	return &facesplit.Node{
		Line: decodeLine(n.Line),
		Neg:  d.cuts(n.Neg),
		Pos:  d.cuts(n.Pos),
	}
}
