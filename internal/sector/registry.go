package sector

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/sectorforge/internal/logger"
	"github.com/Faultbox/sectorforge/pkg/math"
	"github.com/Faultbox/sectorforge/pkg/mesh"
)

// Registry errors.
var (
	ErrDuplicateID = errors.New("sector ID already in use")
	ErrInvalidID   = errors.New("invalid sector ID")
	ErrNotFound    = errors.New("sector not found")
)

// DefaultAtmosphere is assigned to new sectors.
const DefaultAtmosphere = "Default"

// Atmosphere is a named fog colour.
type Atmosphere struct {
	Name  string
	Color Color
	Alpha float32
}

// ExtLight is an external directional light shared by several sectors.
type ExtLight struct {
	Light
	Direction math.Vec3
	Sectors   []int
}

// Bulb is a point light owned by one sector.
type Bulb struct {
	Light
	Position math.Vec3
	Sector   int
}

// Registry owns every sector of a scene keyed by ID, plus the shared texture
// table, atmospheres and lights. IDs start at 1; IDs of deleted sectors are
// reused, lowest first, before new ones are handed out.
//
// Methods are safe for concurrent use, but sector meshes are not: callers
// that mutate a mesh must not run alongside a resolver reading it.
type Registry struct {
	mu      sync.RWMutex
	sectors map[int]*Sector
	next    int
	deleted []int

	Textures    *TextureTable
	Atmospheres []Atmosphere
	ExtLights   []ExtLight
	Bulbs       []Bulb
}

// NewRegistry returns an empty registry whose texture table holds
// defaultTexture at ID 0.
func NewRegistry(defaultTexture string) *Registry {
	return &Registry{
		sectors:     make(map[int]*Sector),
		next:        1,
		Textures:    NewTextureTable(defaultTexture),
		Atmospheres: []Atmosphere{{Name: DefaultAtmosphere, Alpha: 1}},
	}
}

// Create converts m into a new sector: an ID is assigned, the default
// atmosphere and full ambient light are set and the convexity fields are
// computed.
func (r *Registry) Create(name string, m *mesh.Mesh) *Sector {
	r.mu.Lock()
	id := r.allocID()
	s := &Sector{
		ID:         id,
		Name:       name,
		Mesh:       m,
		Atmosphere: DefaultAtmosphere,
		Ambient:    Light{Color: Color{255, 255, 255}, Intensity: 1},
	}
	r.sectors[id] = s
	r.mu.Unlock()

	s.Refresh(mesh.ConvexEpsilon)
	logger.Debug("sector created",
		zap.Int("sector", id),
		zap.String("name", name),
		zap.Bool("convex", s.IsConvex))
	return s
}

// Add registers a sector that already carries an ID, as the decoder does.
func (r *Registry) Add(s *Sector) error {
	if s.ID <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidID, s.ID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sectors[s.ID]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateID, s.ID)
	}
	r.sectors[s.ID] = s
	for i, d := range r.deleted {
		if d == s.ID {
			r.deleted = append(r.deleted[:i], r.deleted[i+1:]...)
			break
		}
	}
	for r.next <= s.ID {
		if _, ok := r.sectors[r.next]; !ok {
			r.deleted = append(r.deleted, r.next)
		}
		r.next++
	}
	sort.Ints(r.deleted)
	return nil
}

// allocID must be called with mu held.
func (r *Registry) allocID() int {
	if len(r.deleted) > 0 {
		id := r.deleted[0]
		r.deleted = r.deleted[1:]
		return id
	}
	id := r.next
	r.next++
	return id
}

// Delete removes a sector, clears every connection to it held by other
// sectors and drops its bulbs and external-light references. Its ID becomes
// reusable.
func (r *Registry) Delete(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sectors[id]; !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	delete(r.sectors, id)
	r.deleted = append(r.deleted, id)
	sort.Ints(r.deleted)

	for _, other := range r.sectors {
		other.Disconnect(id)
	}
	bulbs := r.Bulbs[:0]
	for _, b := range r.Bulbs {
		if b.Sector != id {
			bulbs = append(bulbs, b)
		}
	}
	r.Bulbs = bulbs
	for i := range r.ExtLights {
		ids := r.ExtLights[i].Sectors[:0]
		for _, s := range r.ExtLights[i].Sectors {
			if s != id {
				ids = append(ids, s)
			}
		}
		r.ExtLights[i].Sectors = ids
	}
	logger.Debug("sector deleted", zap.Int("sector", id))
	return nil
}

// Get returns the sector with the given ID.
func (r *Registry) Get(id int) (*Sector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sectors[id]
	return s, ok
}

// ByName returns the first sector, by ID, carrying name.
func (r *Registry) ByName(name string) (*Sector, bool) {
	for _, s := range r.All() {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// All returns every sector ordered by ID.
func (r *Registry) All() []*Sector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Sector, 0, len(r.sectors))
	for _, s := range r.sectors {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of sectors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sectors)
}

// DeletedCount returns how many freed IDs are waiting to be reused.
func (r *Registry) DeletedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.deleted)
}

// Atmosphere returns the atmosphere called name.
func (r *Registry) Atmosphere(name string) (Atmosphere, bool) {
	for _, a := range r.Atmospheres {
		if a.Name == name {
			return a, true
		}
	}
	return Atmosphere{}, false
}
