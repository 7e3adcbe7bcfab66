// Package sector holds the sector entity and the scene-wide tables the
// compiler resolves against: sector registry, texture table, atmospheres
// and lights.
package sector

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Faultbox/sectorforge/pkg/math"
	"github.com/Faultbox/sectorforge/pkg/mesh"
)

// ErrFlatLight is returned when faces in different planes are marked as the
// flat-light emitter.
var ErrFlatLight = errors.New("flat light marked on more than one face")

// ConcaveType classifies how a non-convex sector can be decomposed.
type ConcaveType int

// Concave types.
const (
	ConcaveNone    ConcaveType = iota // convex, nothing to do
	ConcaveSimple                     // an external plane normal serves as projection
	ConcaveNormal                     // an optimised projection normal was needed
	ConcaveComplex                    // no projection found; manual fix required
)

// String returns the name of the concave type.
func (c ConcaveType) String() string {
	switch c {
	case ConcaveNone:
		return "NONE"
	case ConcaveSimple:
		return "SIMPLE"
	case ConcaveNormal:
		return "NORMAL"
	case ConcaveComplex:
		return "COMPLEX"
	default:
		return fmt.Sprintf("ConcaveType(%d)", int(c))
	}
}

// Color is an 8-bit RGB triple.
type Color struct {
	R, G, B uint8
}

// Light is a colour and intensity.
type Light struct {
	Color     Color
	Intensity float32
}

// FlatLight is a sector's directional light. Direction is in editor space
// and follows the marked flat-light face when the mesh has one.
type FlatLight struct {
	Light
	Direction math.Vec3
}

// Sector is a named volume of playable space. Its mesh is stored in world
// space; any object transform is baked in when the sector is created.
type Sector struct {
	ID         int
	Name       string
	Mesh       *mesh.Mesh
	Atmosphere string
	Ambient    Light
	Flat       FlatLight
	GroupFlags int32

	IsConvex   bool
	Is2DSphere bool
	ConnectNum int

	// Decomposition scratch, refreshed by Refresh.
	FlatExt     []math.Vec3 // hull plane normals that bound the mesh
	FacesIntIdx []int       // faces that make the mesh concave
	ConcaveType ConcaveType
}

// Refresh recomputes the topology and convexity fields, the connection
// count and the flat-light direction. It must run after every geometry edit.
func (s *Sector) Refresh(eps float64) {
	if fi, err := s.FlatLightFace(); err == nil && fi >= 0 {
		s.Flat.Direction = s.Mesh.Faces[fi].Normal
	}
	info := s.Mesh.Convexity(eps)
	s.Is2DSphere = info.Sphere
	s.IsConvex = info.Convex
	s.FlatExt = info.ExternalNormals
	s.FacesIntIdx = info.InternalFaces
	if s.IsConvex {
		s.ConcaveType = ConcaveNone
	}
	s.ConnectNum = len(s.Neighbours())
}

// Neighbours returns the sorted IDs of the sectors any face connects to.
func (s *Sector) Neighbours() []int {
	seen := make(map[int]bool)
	var out []int
	for _, f := range s.Mesh.Faces {
		id := f.Attr.ConnectedID
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// Disconnect clears every face connection to sector id and returns the
// number of faces changed.
func (s *Sector) Disconnect(id int) int {
	n := 0
	for _, f := range s.Mesh.Faces {
		if f.Attr.ConnectedID == id {
			f.Attr.ConnectedID = 0
			n++
		}
	}
	if n > 0 {
		s.ConnectNum = len(s.Neighbours())
	}
	return n
}

// FlatLightFace returns the index of the first face marked as flat-light
// emitter, or -1. Cuts through the marked face leave several marked pieces
// in one plane; marks in a second plane fail with ErrFlatLight.
func (s *Sector) FlatLightFace() (int, error) {
	first := -1
	for i, f := range s.Mesh.Faces {
		if !f.Attr.FlatLight {
			continue
		}
		if first < 0 {
			first = i
			continue
		}
		if !f.Plane().Coplanar(s.Mesh.Faces[first].Plane(), mesh.NormalEpsilon, mesh.DefaultTolerance) {
			return first, fmt.Errorf("%w: faces %d and %d of %q", ErrFlatLight, first, i, s.Name)
		}
	}
	return first, nil
}
