package mesh

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Faultbox/sectorforge/pkg/math"
)

func unitCube() *Mesh {
	return Box(math.V3(0, 0, 0), math.V3(1, 1, 1))
}

func tetrahedron(t *testing.T) *Mesh {
	t.Helper()
	verts := []math.Vec3{
		math.V3(0, 0, 0),
		math.V3(1, 0, 0),
		math.V3(0, 1, 0),
		math.V3(0, 0, 1),
	}
	m, err := Build(verts, [][]int{{0, 2, 1}, {0, 1, 3}, {1, 2, 3}, {0, 3, 2}}, DefaultAttributes())
	require.NoError(t, err)
	return m
}

func octahedron(t *testing.T) *Mesh {
	t.Helper()
	verts := []math.Vec3{
		math.V3(1, 0, 0), math.V3(-1, 0, 0),
		math.V3(0, 1, 0), math.V3(0, -1, 0),
		math.V3(0, 0, 1), math.V3(0, 0, -1),
	}
	loops := [][]int{
		{0, 2, 4}, {2, 1, 4}, {1, 3, 4}, {3, 0, 4},
		{2, 0, 5}, {1, 2, 5}, {3, 1, 5}, {0, 3, 5},
	}
	m, err := Build(verts, loops, DefaultAttributes())
	require.NoError(t, err)
	return m
}

// lPrism is the L-shaped footprint [0,2]x[0,2] minus [1,2]x[1,2], extruded
// over z in [0,1]. Its two internal faces are y=1 (x in [1,2]) and x=1
// (y in [1,2]).
func lPrism(t *testing.T) *Mesh {
	t.Helper()
	var verts []math.Vec3
	for _, z := range []float64{0, 1} {
		verts = append(verts,
			math.V3(0, 0, z), math.V3(2, 0, z), math.V3(2, 1, z), math.V3(1, 1, z),
			math.V3(1, 2, z), math.V3(0, 2, z), math.V3(0, 1, z))
	}
	loops := [][]int{
		{0, 6, 3, 2, 1},      // bottom, y<1
		{6, 5, 4, 3},         // bottom, y>1
		{7, 8, 9, 10, 13},    // top, y<1
		{13, 10, 11, 12},     // top, y>1
		{0, 1, 8, 7},         // y=0
		{1, 2, 9, 8},         // x=2
		{2, 3, 10, 9},        // y=1, internal
		{3, 4, 11, 10},       // x=1, internal
		{4, 5, 12, 11},       // y=2
		{5, 6, 0, 7, 13, 12}, // x=0
	}
	m, err := Build(verts, loops, DefaultAttributes())
	require.NoError(t, err)
	return m
}

// finDecoy is a cube with an extra triangle hanging off one edge. Its Euler
// characteristic is still 2 but that edge has three faces.
func finDecoy() *Mesh {
	m := unitCube()
	apex := m.AddVertex(math.V3(0.5, -1, 0))
	// Edge 0-1 of the cube runs along y=0, z=0.
	m.Faces = append(m.Faces, &Face{Verts: []int{0, 1, apex}, Attr: DefaultAttributes()})
	m.updateFace(m.Faces[len(m.Faces)-1])
	return m
}
