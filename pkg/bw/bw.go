// Package bw reads and writes the .bw binary world format.
//
// A .bw file is a little-endian record stream: atmospheres, a metadata
// record, a global vertex table, sector records with one variable-length
// record per face, then the light, group-flag and name blocks. All positions
// and distances are engine values (millimetres, engine axes); conversion from
// editor space happens before records reach this package.
package bw

import (
	"errors"
	"fmt"

	"github.com/Faultbox/sectorforge/pkg/math"
)

// Format errors.
var (
	ErrTruncated       = errors.New("truncated BW data")
	ErrUnknownFaceType = errors.New("unknown BW face type")
	ErrBadMarker       = errors.New("unexpected BW marker")
	ErrBadPrecision    = errors.New("unexpected BW light precision")
	ErrBadVertex       = errors.New("BW vertex index out of range")
)

// Fixed markers.
const (
	MetadataMarker uint32 = 0x0BF00001
	MarkerLeaf     uint32 = 8001 // fragment is texture-uniform with at most one hole
	MarkerCut      uint32 = 8002 // fragment is not uniform yet and is cut by a line

	// LightPrecision is the fixed precision field of every light record.
	LightPrecision int32 = 1000

	lightReserved = 24
)

// FaceType identifies the payload layout of a face record.
type FaceType uint32

// Face types.
const (
	FacePlain  FaceType = 7001 // opaque, unconnected
	FacePortal FaceType = 7002 // fully connected to one neighbour
	FaceHole   FaceType = 7003 // opaque with one connected hole
	FaceSplit  FaceType = 7004 // several holes and/or textures
	FaceSky    FaceType = 7005 // open sky
)

// String returns a short name for the face type.
func (t FaceType) String() string {
	switch t {
	case FacePlain:
		return "plain"
	case FacePortal:
		return "portal"
	case FaceHole:
		return "hole"
	case FaceSplit:
		return "split"
	case FaceSky:
		return "sky"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(t))
	}
}

// Valid reports whether t is one of the known face types.
func (t FaceType) Valid() bool {
	return t >= FacePlain && t <= FaceSky
}

// HasTexture reports whether records of this type carry a texture block.
func (t FaceType) HasTexture() bool {
	return t == FacePlain || t == FaceHole || t == FaceSplit
}

// Atmosphere is a named fog/sky colour.
type Atmosphere struct {
	Name    string
	R, G, B uint8
	Alpha   float32
}

// Metadata identifies the tool that wrote the file.
type Metadata struct {
	Tool    string
	Version string
	URL     string
}

// Light is the shared colour/intensity head of every light record.
type Light struct {
	R, G, B   uint8
	Intensity float32
}

// FlatLight is a sector's directional light.
type FlatLight struct {
	Light
	Direction math.Vec3
}

// ExtLight is an external light shared by several sectors.
type ExtLight struct {
	Light
	Direction math.Vec3
	Sectors   []int32
}

// Bulb is a point light owned by one sector.
type Bulb struct {
	Light
	Position math.Vec3
	Sector   int32
}

// Texture is a texture block. XPos and YPos are already divided by
// 0.001 × zoom.
type Texture struct {
	Name   string
	VX, VY math.Vec3
	XPos   float64
	YPos   float64
	Angle  float64
	XZoom  float64
	YZoom  float64
}

// Line is a cutting line in a face plane: points p with Normal·p == Offset.
type Line struct {
	Normal math.Vec3
	Offset float64
}

// Hole is a connected sub-region of a face.
type Hole struct {
	Verts    []uint32
	Neighbor int32
	Lines    []Line
}

// CutNode is one node of a 7004 cut tree. Inner nodes carry a Line and both
// children; leaves carry a hole reference (-1 for none) and optionally their
// own texture.
type CutNode struct {
	Line Line
	Neg  *CutNode
	Pos  *CutNode

	Leaf    bool
	HoleRef int32
	Texture *Texture
}

// CutCount returns the number of inner nodes in the tree.
func (n *CutNode) CutCount() int {
	if n == nil || n.Leaf {
		return 0
	}
	return 1 + n.Neg.CutCount() + n.Pos.CutCount()
}

// Leaves returns the leaves in stream order (negative side first).
func (n *CutNode) Leaves() []*CutNode {
	if n == nil {
		return nil
	}
	if n.Leaf {
		return []*CutNode{n}
	}
	return append(n.Neg.Leaves(), n.Pos.Leaves()...)
}

// Face is one face record.
type Face struct {
	Type     FaceType
	Normal   math.Vec3
	Distance float64
	Texture  *Texture // FacePlain, FaceHole, FaceSplit
	Verts    []uint32
	Neighbor int32    // FacePortal
	Holes    []Hole   // one for FaceHole, any number for FaceSplit
	Cuts     *CutNode // FaceSplit
}

// Sector is one sector record.
type Sector struct {
	Atmosphere string
	Ambient    Light
	Flat       FlatLight
	Faces      []Face
}

// File is a complete .bw world.
type File struct {
	Atmospheres []Atmosphere
	Meta        Metadata
	Vertices    []math.Vec3
	Sectors     []Sector
	ExtLights   []ExtLight
	Bulbs       []Bulb
	GroupFlags  []int32 // one per sector
	Names       []string
}

// FaceCount returns the total number of face records.
func (f *File) FaceCount() int {
	n := 0
	for _, s := range f.Sectors {
		n += len(s.Faces)
	}
	return n
}

// CountByType returns the number of faces of each type.
func (f *File) CountByType() map[FaceType]int {
	counts := make(map[FaceType]int)
	for _, s := range f.Sectors {
		for _, fc := range s.Faces {
			counts[fc.Type]++
		}
	}
	return counts
}
