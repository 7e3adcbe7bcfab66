// Package facesplit decides how a flat face group is written out and, for
// groups bordering several neighbours or mixing textures, partitions it with
// a tree of cutting lines into leaves holding at most one hole and a single
// texture.
//
// All geometry here is in editor space. Lines lie in the group's plane:
// points p with Normal·p == Offset, Normal perpendicular to the plane normal.
package facesplit

import (
	"errors"
	gomath "math"
	"sort"

	"github.com/Faultbox/sectorforge/pkg/bw"
	"github.com/Faultbox/sectorforge/pkg/math"
	"github.com/Faultbox/sectorforge/pkg/mesh"
)

// Split errors.
var (
	ErrNoProgress = errors.New("no cut separates the face group")
	ErrNotSimple  = errors.New("face group outline is not a single loop")
)

// Options are the splitter tolerances.
type Options struct {
	Tol       float64
	NormalEps float64
}

// DefaultOptions returns the standard tolerances.
func DefaultOptions() Options {
	return Options{Tol: mesh.DefaultTolerance, NormalEps: mesh.NormalEpsilon}
}

// Line is a cutting line in a face plane.
type Line struct {
	Normal math.Vec3
	Offset float64
}

// Plane returns the plane through the line perpendicular to the face.
func (l Line) Plane() math.Plane {
	return math.Plane{Normal: l.Normal, Dist: l.Offset}
}

// lineThrough returns the line through a and b whose normal points to the
// right of a→b when seen from the front of a plane with the given normal.
func lineThrough(a, b, normal math.Vec3) (Line, bool) {
	n := b.Sub(a).Cross(normal)
	if n.Length() < 1e-12 {
		return Line{}, false
	}
	n = n.Normalize()
	return Line{Normal: n, Offset: n.Dot(a)}, true
}

func (l Line) same(o Line, opt Options) bool {
	return l.Normal.Dot(o.Normal) > 1-opt.NormalEps && gomath.Abs(l.Offset-o.Offset) <= opt.Tol
}

// Hole is a connected region of a face group linked to one neighbour.
// Lines are the hole's boundary lines not already on the boundary of the
// region holding it; cutting that region by them and keeping what lies
// inside Loop recovers the hole.
type Hole struct {
	Loop     []math.Vec3
	Neighbor int
	Lines    []Line
}

// Node is a node of a cut tree. Inner nodes cut their region by Line; the
// part behind the line (Normal·p < Offset) goes to Neg. Leaves reference a
// hole (HoleRef, -1 for none) and carry Attr when their texture differs
// from the plan's.
type Node struct {
	Line Line
	Neg  *Node
	Pos  *Node

	Leaf    bool
	HoleRef int
	Attr    *mesh.FaceAttributes
}

// CutCount returns the number of inner nodes.
func (n *Node) CutCount() int {
	if n == nil || n.Leaf {
		return 0
	}
	return 1 + n.Neg.CutCount() + n.Pos.CutCount()
}

// Leaves returns the leaves in stream order (negative side first).
func (n *Node) Leaves() []*Node {
	if n == nil {
		return nil
	}
	if n.Leaf {
		return []*Node{n}
	}
	return append(n.Neg.Leaves(), n.Pos.Leaves()...)
}

// Plan is the description of one face group record.
type Plan struct {
	Type     bw.FaceType
	Normal   math.Vec3
	Dist     float64
	Outline  []math.Vec3
	Attr     mesh.FaceAttributes // texture of the remainder
	Neighbor int                 // FacePortal
	Holes    []Hole              // FaceHole, FaceSplit
	Cuts     *Node               // FaceSplit
}

// Plane returns the group plane.
func (p *Plan) Plane() math.Plane {
	return math.Plane{Normal: p.Normal, Dist: p.Dist}
}

// Classify returns the record type for a flat face group of m:
// FacePortal when every face links to one neighbour region, FaceSky when all
// faces are sky, FacePlain for one texture without holes, FaceHole for one
// hole in a single-texture remainder and FaceSplit otherwise.
func Classify(m *mesh.Mesh, group []int) bw.FaceType {
	frag := m.Extract(group)
	return classify(frag, holeRegions(frag), remainder(frag))
}

func classify(frag *mesh.Mesh, holes [][]int, rem []int) bw.FaceType {
	uniform := textureUniform(frag, rem)
	switch {
	case len(rem) == 0 && len(holes) == 1:
		return bw.FacePortal
	case len(holes) == 0 && uniform && frag.Faces[rem[0]].Attr.TextureID == mesh.SkyTexture:
		return bw.FaceSky
	case len(holes) == 0 && uniform:
		return bw.FacePlain
	case len(holes) == 1 && uniform:
		return bw.FaceHole
	default:
		return bw.FaceSplit
	}
}

// holeRegions returns the edge-connected regions of faces sharing one
// non-zero ConnectedID, ordered by their first face.
func holeRegions(m *mesh.Mesh) [][]int {
	seen := make(map[int]bool)
	var out [][]int
	for fi, f := range m.Faces {
		id := f.Attr.ConnectedID
		if id == 0 || seen[fi] {
			continue
		}
		g := m.CoplanarGroup(fi, mesh.GroupOptions{
			Within:       func(i int) bool { return m.Faces[i].Attr.ConnectedID == id },
			IgnoreNormal: true,
		})
		for _, x := range g {
			seen[x] = true
		}
		out = append(out, g)
	}
	return out
}

// remainder returns the unconnected faces.
func remainder(m *mesh.Mesh) []int {
	var out []int
	for fi, f := range m.Faces {
		if f.Attr.ConnectedID == 0 {
			out = append(out, fi)
		}
	}
	return out
}

func textureUniform(m *mesh.Mesh, faces []int) bool {
	for _, fi := range faces[min(1, len(faces)):] {
		if !m.Faces[fi].Attr.SameTexture(m.Faces[faces[0]].Attr) {
			return false
		}
	}
	return true
}

// textureClasses partitions faces by texture, smallest class first (ties by
// area, then first face).
func textureClasses(m *mesh.Mesh, faces []int) [][]int {
	var out [][]int
next:
	for _, fi := range faces {
		for i, c := range out {
			if m.Faces[c[0]].Attr.SameTexture(m.Faces[fi].Attr) {
				out[i] = append(out[i], fi)
				continue next
			}
		}
		out = append(out, []int{fi})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) < len(out[j])
		}
		return m.Area(out[i]) < m.Area(out[j])
	})
	return out
}

// dominantAttr returns the attributes of the remainder texture covering the
// largest area.
func dominantAttr(m *mesh.Mesh, rem []int) mesh.FaceAttributes {
	classes := textureClasses(m, rem)
	if len(classes) == 0 {
		return mesh.DefaultAttributes()
	}
	best := classes[0]
	for _, c := range classes[1:] {
		if m.Area(c) > m.Area(best) {
			best = c
		}
	}
	attr := m.Faces[best[0]].Attr
	attr.ConnectedID = 0
	return attr
}
