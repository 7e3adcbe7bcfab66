// Package mesh implements the editable polygon mesh used for sector geometry
// and the primitive operations the compiler is built from: plane bisection,
// coplanar grouping, un-subdivision, topology and convexity checks.
//
// Every face is a planar, convex loop of at least three distinct vertices.
// Operations that could break that invariant (capping, decoding) re-establish
// it with ConvexifyFaces.
package mesh

import (
	"errors"
	"fmt"
	gomath "math"

	"github.com/Faultbox/sectorforge/pkg/math"
)

// Mesh errors.
var (
	ErrDegenerateFace = errors.New("degenerate face")
	ErrNoCut          = errors.New("plane does not cut the mesh")
	ErrDegenerate     = errors.New("degenerate geometry")
)

// SkyTexture marks an open face with no opaque texture.
const SkyTexture = -1

// FaceAttributes are the per-face values carried through every split.
type FaceAttributes struct {
	ConnectedID int // 0 when unconnected, else neighbouring sector ID
	TextureID   int // index into the texture table, SkyTexture for sky
	XPos        float64
	YPos        float64
	Angle       float64
	XZoom       float64
	YZoom       float64
	TexVX       math.Vec3
	TexVY       math.Vec3
	FlatLight   bool
}

// DefaultAttributes returns unconnected attributes using texture 0.
func DefaultAttributes() FaceAttributes {
	return FaceAttributes{XZoom: 1, YZoom: 1}
}

// SameTexture reports whether a and b render identically (texture and
// placement compared exactly; connection and flat light ignored).
func (a FaceAttributes) SameTexture(b FaceAttributes) bool {
	return a.TextureID == b.TextureID &&
		a.XPos == b.XPos && a.YPos == b.YPos && a.Angle == b.Angle &&
		a.XZoom == b.XZoom && a.YZoom == b.YZoom &&
		a.TexVX == b.TexVX && a.TexVY == b.TexVY
}

// Basis returns the texture basis vectors, deriving them from normal when
// they were never set.
func (a FaceAttributes) Basis(normal math.Vec3) (vx, vy math.Vec3) {
	if !a.TexVX.IsZero() && !a.TexVY.IsZero() {
		return a.TexVX, a.TexVY
	}
	return math.Plane{Normal: normal}.Basis()
}

// Face is one polygon of a mesh.
type Face struct {
	Verts  []int // vertex loop, counter-clockwise seen from the front
	Normal math.Vec3
	Dist   float64
	Attr   FaceAttributes
}

// Plane returns the face's supporting plane.
func (f *Face) Plane() math.Plane {
	return math.Plane{Normal: f.Normal, Dist: f.Dist}
}

// Has reports whether vertex v is part of the face loop.
func (f *Face) Has(v int) bool {
	for _, x := range f.Verts {
		if x == v {
			return true
		}
	}
	return false
}

// Mesh is an indexed polygon mesh. Vertices that no face references are
// allowed until Compact is called.
type Mesh struct {
	Verts []math.Vec3
	Faces []*Face
}

// New returns an empty mesh.
func New() *Mesh {
	return &Mesh{}
}

// AddVertex appends a vertex and returns its index.
func (m *Mesh) AddVertex(p math.Vec3) int {
	m.Verts = append(m.Verts, p)
	return len(m.Verts) - 1
}

// AddFace appends a face over the given loop. Consecutive duplicate indices
// are dropped; fewer than three remaining vertices or a zero-area loop is an
// error.
func (m *Mesh) AddFace(loop []int, attr FaceAttributes) (*Face, error) {
	clean := dedupeLoop(loop)
	if len(clean) < 3 {
		return nil, fmt.Errorf("%w: %d distinct vertices", ErrDegenerateFace, len(clean))
	}
	f := &Face{Verts: clean, Attr: attr}
	if !m.updateFace(f) {
		return nil, fmt.Errorf("%w: zero area", ErrDegenerateFace)
	}
	m.Faces = append(m.Faces, f)
	return f, nil
}

// updateFace recomputes normal and distance; false for zero-area loops.
func (m *Mesh) updateFace(f *Face) bool {
	pts := m.FacePoints(f)
	n := math.NewellNormal(pts)
	if n.Length() < 1e-12 {
		return false
	}
	f.Normal = n.Normalize()
	f.Dist = f.Normal.Dot(math.Centroid(pts))
	return true
}

// UpdateNormals recomputes every face plane.
func (m *Mesh) UpdateNormals() {
	for _, f := range m.Faces {
		m.updateFace(f)
	}
}

func dedupeLoop(loop []int) []int {
	out := make([]int, 0, len(loop))
	for _, v := range loop {
		if len(out) > 0 && out[len(out)-1] == v {
			continue
		}
		out = append(out, v)
	}
	for len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	seen := make(map[int]bool, len(out))
	for _, v := range out {
		if seen[v] {
			return nil
		}
		seen[v] = true
	}
	return out
}

// FacePoints returns the positions of the face loop.
func (m *Mesh) FacePoints(f *Face) []math.Vec3 {
	pts := make([]math.Vec3, len(f.Verts))
	for i, v := range f.Verts {
		pts[i] = m.Verts[v]
	}
	return pts
}

// FaceCentroid returns the vertex average of the face.
func (m *Mesh) FaceCentroid(f *Face) math.Vec3 {
	return math.Centroid(m.FacePoints(f))
}

// FaceArea returns the area of the face.
func (m *Mesh) FaceArea(f *Face) float64 {
	return math.NewellNormal(m.FacePoints(f)).Length() / 2
}

// Area returns the summed area of the listed faces.
func (m *Mesh) Area(faces []int) float64 {
	var a float64
	for _, fi := range faces {
		a += m.FaceArea(m.Faces[fi])
	}
	return a
}

// Volume returns the enclosed volume of a closed, outward-facing mesh.
func (m *Mesh) Volume() float64 {
	var v float64
	for _, f := range m.Faces {
		p0 := m.Verts[f.Verts[0]]
		for i := 1; i+1 < len(f.Verts); i++ {
			p1 := m.Verts[f.Verts[i]]
			p2 := m.Verts[f.Verts[i+1]]
			v += p0.Dot(p1.Cross(p2))
		}
	}
	return v / 6
}

// UsedVertices returns the sorted indices of vertices referenced by faces.
func (m *Mesh) UsedVertices() []int {
	used := make([]bool, len(m.Verts))
	for _, f := range m.Faces {
		for _, v := range f.Verts {
			used[v] = true
		}
	}
	var out []int
	for i, u := range used {
		if u {
			out = append(out, i)
		}
	}
	return out
}

// Clone returns a deep copy.
func (m *Mesh) Clone() *Mesh {
	c := &Mesh{
		Verts: append([]math.Vec3(nil), m.Verts...),
		Faces: make([]*Face, len(m.Faces)),
	}
	for i, f := range m.Faces {
		nf := *f
		nf.Verts = append([]int(nil), f.Verts...)
		c.Faces[i] = &nf
	}
	return c
}

// Compact drops unreferenced vertices and renumbers the rest.
func (m *Mesh) Compact() {
	remap := make([]int, len(m.Verts))
	for i := range remap {
		remap[i] = -1
	}
	var verts []math.Vec3
	for _, f := range m.Faces {
		for i, v := range f.Verts {
			if remap[v] < 0 {
				remap[v] = len(verts)
				verts = append(verts, m.Verts[v])
			}
			f.Verts[i] = remap[v]
		}
	}
	m.Verts = verts
}

// Extract returns a new compacted mesh holding copies of the listed faces.
func (m *Mesh) Extract(faces []int) *Mesh {
	out := New()
	remap := make(map[int]int)
	for _, fi := range faces {
		f := m.Faces[fi]
		nf := *f
		nf.Verts = make([]int, len(f.Verts))
		for i, v := range f.Verts {
			idx, ok := remap[v]
			if !ok {
				idx = out.AddVertex(m.Verts[v])
				remap[v] = idx
			}
			nf.Verts[i] = idx
		}
		out.Faces = append(out.Faces, &nf)
	}
	return out
}

// Append copies every face of other into m.
func (m *Mesh) Append(other *Mesh) {
	base := len(m.Verts)
	m.Verts = append(m.Verts, other.Verts...)
	for _, f := range other.Faces {
		nf := *f
		nf.Verts = make([]int, len(f.Verts))
		for i, v := range f.Verts {
			nf.Verts[i] = v + base
		}
		m.Faces = append(m.Faces, &nf)
	}
}

// Transform applies a world transform to every vertex and face plane.
func (m *Mesh) Transform(t math.Mat4) {
	if t.IsIdentity() {
		return
	}
	for i, v := range m.Verts {
		m.Verts[i] = t.TransformVec3(v)
	}
	m.UpdateNormals()
}

// RemoveFaces deletes the listed faces.
func (m *Mesh) RemoveFaces(faces []int) {
	drop := make(map[int]bool, len(faces))
	for _, fi := range faces {
		drop[fi] = true
	}
	kept := m.Faces[:0]
	for i, f := range m.Faces {
		if !drop[i] {
			kept = append(kept, f)
		}
	}
	for i := len(kept); i < len(m.Faces); i++ {
		m.Faces[i] = nil
	}
	m.Faces = kept
}

// FindVertex returns the index of a vertex within tol of p, or -1.
func (m *Mesh) FindVertex(p math.Vec3, tol float64) int {
	for i, v := range m.Verts {
		if v.ApproxEqual(p, tol) {
			return i
		}
	}
	return -1
}

// Bounds returns the axis-aligned bounding box of the referenced vertices.
func (m *Mesh) Bounds() (lo, hi math.Vec3) {
	lo = math.Vec3{X: gomath.Inf(1), Y: gomath.Inf(1), Z: gomath.Inf(1)}
	hi = math.Vec3{X: gomath.Inf(-1), Y: gomath.Inf(-1), Z: gomath.Inf(-1)}
	for _, vi := range m.UsedVertices() {
		v := m.Verts[vi]
		lo = math.Vec3{X: gomath.Min(lo.X, v.X), Y: gomath.Min(lo.Y, v.Y), Z: gomath.Min(lo.Z, v.Z)}
		hi = math.Vec3{X: gomath.Max(hi.X, v.X), Y: gomath.Max(hi.Y, v.Y), Z: gomath.Max(hi.Z, v.Z)}
	}
	return lo, hi
}
