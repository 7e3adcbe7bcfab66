package compile

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/sectorforge/internal/facesplit"
	"github.com/Faultbox/sectorforge/internal/logger"
	"github.com/Faultbox/sectorforge/internal/sector"
	"github.com/Faultbox/sectorforge/pkg/bw"
	"github.com/Faultbox/sectorforge/pkg/math"
	"github.com/Faultbox/sectorforge/pkg/mesh"
)

// Stats summarises an export.
type Stats struct {
	Vertices int
	Faces    int
	Sectors  int
	Failed   []string // sectors with at least one face group that could not be encoded
}

// encoder holds the state shared by all sectors of one export.
type encoder struct {
	reg   *sector.Registry
	opt   Options
	verts *VertexTable
	index map[int]int // sector ID -> file index
}

// Encode builds the .bw file for the listed sectors (all sectors when ids is
// empty), in list order. Face groups that cannot be encoded are skipped and
// reported through the returned error; the file is still complete.
func Encode(r *sector.Registry, ids []int, opt Options) (*bw.File, Stats, error) {
	var stats Stats
	var errs error
	var secs []*sector.Sector
	if len(ids) == 0 {
		secs = r.All()
	} else {
		for _, id := range ids {
			s, ok := r.Get(id)
			if !ok {
				errs = multierr.Append(errs, fmt.Errorf("%w: %d", sector.ErrNotFound, id))
				continue
			}
			secs = append(secs, s)
		}
	}
	if len(secs) == 0 {
		return nil, stats, multierr.Append(errs, ErrNoSectors)
	}

	e := &encoder{
		reg:   r,
		opt:   opt,
		verts: NewVertexTable(),
		index: make(map[int]int, len(secs)),
	}
	for i, s := range secs {
		e.index[s.ID] = i
	}

	f := &bw.File{Meta: opt.Meta}
	for _, a := range r.Atmospheres {
		f.Atmospheres = append(f.Atmospheres, bw.Atmosphere{
			Name: a.Name, R: a.Color.R, G: a.Color.G, B: a.Color.B, Alpha: a.Alpha,
		})
	}
	for i, s := range secs {
		bs, err := e.sector(s)
		if err != nil {
			stats.Failed = append(stats.Failed, s.Name)
			errs = multierr.Append(errs, fmt.Errorf("sector %d (%s): %w", s.ID, s.Name, err))
		}
		f.Sectors = append(f.Sectors, bs)
		f.GroupFlags = append(f.GroupFlags, s.GroupFlags)
		f.Names = append(f.Names, s.Name)
		opt.progress(i+1, len(secs))
	}
	e.lights(f)
	f.Vertices = e.verts.Vertices()

	stats.Vertices = len(f.Vertices)
	stats.Faces = f.FaceCount()
	stats.Sectors = len(f.Sectors)
	logger.Info("sectors encoded",
		zap.Int("sectors", stats.Sectors),
		zap.Int("faces", stats.Faces),
		zap.Int("vertices", stats.Vertices),
		zap.Int("failed", len(stats.Failed)))
	return f, stats, errs
}

// sector encodes one sector. Links to sectors outside the export are
// written as plain walls.
func (e *encoder) sector(s *sector.Sector) (bw.Sector, error) {
	bs := bw.Sector{
		Atmosphere: s.Atmosphere,
		Ambient:    encodeLight(s.Ambient),
		Flat: bw.FlatLight{
			Light:     encodeLight(s.Flat.Light),
			Direction: math.DirToEngine(s.Flat.Direction),
		},
	}
	m := s.Mesh.Clone()
	for _, f := range m.Faces {
		if id := f.Attr.ConnectedID; id != 0 {
			if _, ok := e.index[id]; !ok {
				logger.Debug("dropping link to unexported sector",
					zap.Int("sector", s.ID), zap.Int("neighbour", id))
				f.Attr.ConnectedID = 0
			}
		}
	}

	var errs error
	if _, err := s.FlatLightFace(); err != nil {
		errs = multierr.Append(errs, err)
	}
	for gi, g := range m.FlatGroups(e.opt.Split.NormalEps) {
		plan, err := facesplit.Split(m, g, e.opt.Split)
		if err != nil {
			logger.Warn("face group not encoded",
				zap.Int("sector", s.ID), zap.Int("group", gi), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("face group %d: %w", gi, err))
			continue
		}
		bs.Faces = append(bs.Faces, e.face(plan))
	}
	return bs, errs
}

// face converts a plan into its record.
func (e *encoder) face(p *facesplit.Plan) bw.Face {
	f := bw.Face{
		Type:     p.Type,
		Normal:   math.DirToEngine(p.Normal),
		Distance: math.DistToEngine(p.Dist),
		Verts:    e.verts.Loop(p.Outline),
	}
	if p.Type.HasTexture() {
		f.Texture = e.texture(p.Attr, p.Normal)
	}
	switch p.Type {
	case bw.FacePortal:
		f.Neighbor = int32(e.index[p.Neighbor])
	case bw.FaceHole, bw.FaceSplit:
		for _, h := range p.Holes {
			f.Holes = append(f.Holes, e.hole(h))
		}
		if p.Type == bw.FaceSplit {
			f.Cuts = e.cuts(p.Cuts, p.Normal)
		}
	}
	return f
}

func (e *encoder) texture(a mesh.FaceAttributes, normal math.Vec3) *bw.Texture {
	return encodeTexture(e.reg.Textures, a, normal, e.opt.SkyTexture)
}

func (e *encoder) hole(h facesplit.Hole) bw.Hole {
	bh := bw.Hole{
		Verts:    e.verts.Loop(h.Loop),
		Neighbor: int32(e.index[h.Neighbor]),
	}
	for _, l := range h.Lines {
		bh.Lines = append(bh.Lines, encodeLine(l))
	}
	return bh
}

func (e *encoder) cuts(n *facesplit.Node, normal math.Vec3) *bw.CutNode {
	if n == nil {
		return nil
	}
	if n.Leaf {
		c := &bw.CutNode{Leaf: true, HoleRef: int32(n.HoleRef)}
		if n.Attr != nil {
			c.Texture = e.texture(*n.Attr, normal)
		}
		return c
	}
	return &bw.CutNode{
		Line: encodeLine(n.Line),
		Neg:  e.cuts(n.Neg, normal),
		Pos:  e.cuts(n.Pos, normal),
	}
}

// lights copies the lights of exported sectors. External lights keep only
// exported sectors and are dropped when none remain.
func (e *encoder) lights(f *bw.File) {
	for _, l := range e.reg.ExtLights {
		el := bw.ExtLight{Light: encodeLight(l.Light), Direction: math.DirToEngine(l.Direction)}
		for _, id := range l.Sectors {
			if i, ok := e.index[id]; ok {
				el.Sectors = append(el.Sectors, int32(i))
			}
		}
		if len(el.Sectors) > 0 {
			f.ExtLights = append(f.ExtLights, el)
		}
	}
	for _, b := range e.reg.Bulbs {
		i, ok := e.index[b.Sector]
		if !ok {
			continue
		}
		f.Bulbs = append(f.Bulbs, bw.Bulb{
			Light:    encodeLight(b.Light),
			Position: math.ToEngine(b.Position),
			Sector:   int32(i),
		})
	}
}
