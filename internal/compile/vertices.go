package compile

import (
	gomath "math"

	"github.com/Faultbox/sectorforge/pkg/math"
)

// VertexTable is the global vertex table of one export. Positions are keyed
// by their engine coordinates rounded to the millimetre, so vertices of
// different sectors that meet within half a millimetre share one index.
// The first position seen for a key is the one written.
type VertexTable struct {
	index map[[3]int64]uint32
	verts []math.Vec3
}

// NewVertexTable returns an empty table.
func NewVertexTable() *VertexTable {
	return &VertexTable{index: make(map[[3]int64]uint32)}
}

func mmKey(p math.Vec3) [3]int64 {
	return [3]int64{
		int64(gomath.Round(p.X)),
		int64(gomath.Round(p.Y)),
		int64(gomath.Round(p.Z)),
	}
}

// Index returns the index of an editor-space position, adding it when new.
func (t *VertexTable) Index(p math.Vec3) uint32 {
	e := math.ToEngine(p)
	k := mmKey(e)
	if i, ok := t.index[k]; ok {
		return i
	}
	i := uint32(len(t.verts))
	t.index[k] = i
	t.verts = append(t.verts, e)
	return i
}

// Loop returns the indices of a loop of editor-space positions.
func (t *VertexTable) Loop(pts []math.Vec3) []uint32 {
	out := make([]uint32, len(pts))
	for i, p := range pts {
		out[i] = t.Index(p)
	}
	return out
}

// Len returns the number of distinct vertices.
func (t *VertexTable) Len() int {
	return len(t.verts)
}

// Vertices returns the engine-space positions in index order.
func (t *VertexTable) Vertices() []math.Vec3 {
	return t.verts
}
