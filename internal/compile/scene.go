package compile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/sectorforge/internal/sector"
	"github.com/Faultbox/sectorforge/pkg/math"
	"github.com/Faultbox/sectorforge/pkg/mesh"
)

// ErrScene is returned for scene files that reference unknown sectors or
// carry unusable geometry.
var ErrScene = errors.New("invalid scene")

// Scene is the YAML authoring form of a registry. Positions are in editor
// space; links and lights name sectors instead of numbering them.
type Scene struct {
	Atmospheres []SceneAtmosphere `yaml:"atmospheres,omitempty"`
	Sectors     []SceneSector     `yaml:"sectors"`
	ExtLights   []SceneExtLight   `yaml:"ext_lights,omitempty"`
	Bulbs       []SceneBulb       `yaml:"bulbs,omitempty"`
}

// SceneAtmosphere is a named fog colour.
type SceneAtmosphere struct {
	Name  string   `yaml:"name"`
	Color [3]uint8 `yaml:"color,flow"`
	Alpha float32  `yaml:"alpha"`
}

// SceneLight is a colour and intensity.
type SceneLight struct {
	Color     [3]uint8 `yaml:"color,flow"`
	Intensity float32  `yaml:"intensity"`
}

// SceneSector is one sector. Geometry is either a box or explicit vertices
// and faces.
type SceneSector struct {
	Name       string          `yaml:"name"`
	Atmosphere string          `yaml:"atmosphere,omitempty"`
	Ambient    *SceneLight     `yaml:"ambient,omitempty"`
	Flat       *SceneLight     `yaml:"flat_light,omitempty"`
	FlatDir    [3]float64      `yaml:"flat_direction,flow,omitempty"`
	GroupFlags int32           `yaml:"group_flags,omitempty"`
	Transform  *SceneTransform `yaml:"transform,omitempty"`
	Box        *SceneBox       `yaml:"box,omitempty"`
	Vertices   [][3]float64    `yaml:"vertices,omitempty"`
	Faces      []SceneFace     `yaml:"faces,omitempty"`
}

// SceneBox is an axis-aligned box sector.
type SceneBox struct {
	Min [3]float64 `yaml:"min,flow"`
	Max [3]float64 `yaml:"max,flow"`
}

// SceneTransform places the sector geometry. Rotation is in radians and
// applied X, then Y, then Z.
type SceneTransform struct {
	Location [3]float64 `yaml:"location,flow,omitempty"`
	Rotation [3]float64 `yaml:"rotation,flow,omitempty"`
	Scale    [3]float64 `yaml:"scale,flow,omitempty"`
}

// matrix returns the world matrix. A zero scale reads as 1.
func (t *SceneTransform) matrix() (math.Mat4, error) {
	if t == nil {
		return math.Identity(), nil
	}
	scale := t.Scale
	if scale == [3]float64{} {
		scale = [3]float64{1, 1, 1}
	}
	if scale[0]*scale[1]*scale[2] <= 0 {
		return math.Mat4{}, fmt.Errorf("scale %v would flip or flatten the sector", scale)
	}
	return math.Compose(v3(t.Location), v3(t.Rotation), v3(scale)), nil
}

// SceneFace is one face loop, counter-clockwise seen from outside the
// sector.
type SceneFace struct {
	Verts     []int      `yaml:"verts,flow"`
	Texture   string     `yaml:"texture,omitempty"`
	Sky       bool       `yaml:"sky,omitempty"`
	Neighbor  string     `yaml:"neighbor,omitempty"`
	FlatLight bool       `yaml:"flat_light,omitempty"` // at most one plane per sector
	Offset    [2]float64 `yaml:"offset,flow,omitempty"`
	Angle     float64    `yaml:"angle,omitempty"`
	Zoom      [2]float64 `yaml:"zoom,flow,omitempty"`
}

// SceneExtLight is an external light shared by sectors.
type SceneExtLight struct {
	SceneLight `yaml:",inline"`
	Direction  [3]float64 `yaml:"direction,flow"`
	Sectors    []string   `yaml:"sectors,flow"`
}

// SceneBulb is a point light inside a sector.
type SceneBulb struct {
	SceneLight `yaml:",inline"`
	Position   [3]float64 `yaml:"position,flow"`
	Sector     string     `yaml:"sector"`
}

// LoadScene reads a scene file.
func LoadScene(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scene
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &sc, nil
}

// Save writes the scene to path.
func (sc *Scene) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(sc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func v3(a [3]float64) math.Vec3 {
	return math.V3(a[0], a[1], a[2])
}

func arr(v math.Vec3) [3]float64 {
	return v.Array()
}

func (l *SceneLight) light(def sector.Light) sector.Light {
	if l == nil {
		return def
	}
	return sector.Light{Color: sector.Color{R: l.Color[0], G: l.Color[1], B: l.Color[2]}, Intensity: l.Intensity}
}

func sceneLight(l sector.Light) *SceneLight {
	return &SceneLight{Color: [3]uint8{l.Color.R, l.Color.G, l.Color.B}, Intensity: l.Intensity}
}

// Apply creates the scene's sectors in r and returns them in scene order.
func (sc *Scene) Apply(r *sector.Registry) ([]*sector.Sector, error) {
	for _, a := range sc.Atmospheres {
		if _, ok := r.Atmosphere(a.Name); !ok {
			r.Atmospheres = append(r.Atmospheres, sector.Atmosphere{
				Name:  a.Name,
				Color: sector.Color{R: a.Color[0], G: a.Color[1], B: a.Color[2]},
				Alpha: a.Alpha,
			})
		}
	}

	index := make(map[string]int, len(sc.Sectors))
	for i, ss := range sc.Sectors {
		if _, dup := index[ss.Name]; dup || ss.Name == "" {
			return nil, fmt.Errorf("%w: sector %d has a missing or duplicate name %q", ErrScene, i, ss.Name)
		}
		index[ss.Name] = i
	}

	// Links are built as scene index + 1 and renumbered once every sector
	// has its ID.
	out := make([]*sector.Sector, 0, len(sc.Sectors))
	for _, ss := range sc.Sectors {
		m, err := ss.mesh(r.Textures, index)
		if err != nil {
			return out, fmt.Errorf("%w: sector %q: %w", ErrScene, ss.Name, err)
		}
		s := r.Create(ss.Name, m)
		if ss.Atmosphere != "" {
			s.Atmosphere = ss.Atmosphere
		}
		s.Ambient = ss.Ambient.light(s.Ambient)
		s.Flat = sector.FlatLight{Light: ss.Flat.light(sector.Light{}), Direction: v3(ss.FlatDir)}
		s.GroupFlags = ss.GroupFlags
		out = append(out, s)
		if _, err := s.FlatLightFace(); err != nil {
			return out, fmt.Errorf("%w: %w", ErrScene, err)
		}
	}
	byName := make(map[string]int, len(out))
	for _, s := range out {
		byName[s.Name] = s.ID
	}
	for _, s := range out {
		for _, f := range s.Mesh.Faces {
			if c := f.Attr.ConnectedID; c != 0 {
				f.Attr.ConnectedID = out[c-1].ID
			}
		}
		s.Refresh(mesh.ConvexEpsilon)
	}

	for _, l := range sc.ExtLights {
		el := sector.ExtLight{Light: l.light(sector.Light{}), Direction: v3(l.Direction)}
		for _, name := range l.Sectors {
			id, ok := byName[name]
			if !ok {
				return out, fmt.Errorf("%w: external light names unknown sector %q", ErrScene, name)
			}
			el.Sectors = append(el.Sectors, id)
		}
		r.ExtLights = append(r.ExtLights, el)
	}
	for _, b := range sc.Bulbs {
		id, ok := byName[b.Sector]
		if !ok {
			return out, fmt.Errorf("%w: bulb names unknown sector %q", ErrScene, b.Sector)
		}
		r.Bulbs = append(r.Bulbs, sector.Bulb{Light: b.light(sector.Light{}), Position: v3(b.Position), Sector: id})
	}
	return out, nil
}

// mesh builds the sector geometry with links as scene index + 1.
func (ss *SceneSector) mesh(tex *sector.TextureTable, index map[string]int) (*mesh.Mesh, error) {
	world, err := ss.Transform.matrix()
	if err != nil {
		return nil, err
	}
	if ss.Box != nil {
		m := mesh.Box(v3(ss.Box.Min), v3(ss.Box.Max))
		m.Transform(world)
		return m, nil
	}
	if len(ss.Faces) == 0 {
		return nil, errors.New("no geometry")
	}
	m := mesh.New()
	for _, v := range ss.Vertices {
		m.AddVertex(v3(v))
	}
	for fi, f := range ss.Faces {
		for _, v := range f.Verts {
			if v < 0 || v >= len(ss.Vertices) {
				return nil, fmt.Errorf("face %d references vertex %d", fi, v)
			}
		}
		a := f.attr(tex)
		if f.Neighbor != "" {
			i, ok := index[f.Neighbor]
			if !ok {
				return nil, fmt.Errorf("face %d links to unknown sector %q", fi, f.Neighbor)
			}
			a.ConnectedID = i + 1
		}
		if _, err := m.AddFace(f.Verts, a); err != nil {
			return nil, fmt.Errorf("face %d: %w", fi, err)
		}
	}
	m.Transform(world)
	m.ConvexifyFaces()
	return m, nil
}

func (f *SceneFace) attr(tex *sector.TextureTable) mesh.FaceAttributes {
	a := mesh.DefaultAttributes()
	switch {
	case f.Sky:
		a.TextureID = mesh.SkyTexture
	case f.Texture != "":
		a.TextureID = tex.Ensure(f.Texture)
	}
	a.XPos, a.YPos = f.Offset[0], f.Offset[1]
	a.Angle = f.Angle
	a.FlatLight = f.FlatLight
	if f.Zoom != [2]float64{} {
		a.XZoom, a.YZoom = f.Zoom[0], f.Zoom[1]
	}
	return a
}

// SceneFrom captures the listed sectors of r (all when ids is empty).
func SceneFrom(r *sector.Registry, ids []int) *Scene {
	var secs []*sector.Sector
	if len(ids) == 0 {
		secs = r.All()
	} else {
		for _, id := range ids {
			if s, ok := r.Get(id); ok {
				secs = append(secs, s)
			}
		}
	}
	names := make(map[int]string, len(secs))
	for _, s := range secs {
		names[s.ID] = s.Name
	}

	sc := &Scene{}
	for _, a := range r.Atmospheres {
		sc.Atmospheres = append(sc.Atmospheres, SceneAtmosphere{
			Name: a.Name, Color: [3]uint8{a.Color.R, a.Color.G, a.Color.B}, Alpha: a.Alpha,
		})
	}
	for _, s := range secs {
		m := s.Mesh.Clone()
		m.Compact()
		ss := SceneSector{
			Name:       s.Name,
			Atmosphere: s.Atmosphere,
			Ambient:    sceneLight(s.Ambient),
			Flat:       sceneLight(s.Flat.Light),
			FlatDir:    arr(s.Flat.Direction),
			GroupFlags: s.GroupFlags,
		}
		for _, v := range m.Verts {
			ss.Vertices = append(ss.Vertices, arr(v))
		}
		for _, f := range m.Faces {
			sf := SceneFace{
				Verts:     append([]int(nil), f.Verts...),
				Neighbor:  names[f.Attr.ConnectedID],
				FlatLight: f.Attr.FlatLight,
				Offset:    [2]float64{f.Attr.XPos, f.Attr.YPos},
				Angle:     f.Attr.Angle,
				Zoom:      [2]float64{f.Attr.XZoom, f.Attr.YZoom},
			}
			if f.Attr.TextureID == mesh.SkyTexture {
				sf.Sky = true
			} else if f.Attr.TextureID != 0 {
				sf.Texture, _ = r.Textures.Name(f.Attr.TextureID)
			}
			ss.Faces = append(ss.Faces, sf)
		}
		sc.Sectors = append(sc.Sectors, ss)
	}
	for _, l := range r.ExtLights {
		el := SceneExtLight{SceneLight: *sceneLight(l.Light), Direction: arr(l.Direction)}
		for _, id := range l.Sectors {
			if n, ok := names[id]; ok {
				el.Sectors = append(el.Sectors, n)
			}
		}
		if len(el.Sectors) > 0 {
			sc.ExtLights = append(sc.ExtLights, el)
		}
	}
	for _, b := range r.Bulbs {
		if n, ok := names[b.Sector]; ok {
			sc.Bulbs = append(sc.Bulbs, SceneBulb{SceneLight: *sceneLight(b.Light), Position: arr(b.Position), Sector: n})
		}
	}
	return sc
}
