package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Faultbox/sectorforge/pkg/math"
)

func TestIs2DSphere(t *testing.T) {
	open := unitCube()
	open.RemoveFaces([]int{5})

	twoCubes := unitCube()
	twoCubes.Append(Box(math.V3(3, 0, 0), math.V3(4, 1, 1)))

	tests := []struct {
		name string
		mesh *Mesh
		want bool
	}{
		{"cube", unitCube(), true},
		{"tetrahedron", tetrahedron(t), true},
		{"octahedron", octahedron(t), true},
		{"l prism", lPrism(t), true},
		{"open box", open, false},
		{"disjoint cubes", twoCubes, false},
		{"fin decoy", finDecoy(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.mesh.Is2DSphere())
		})
	}
}

func TestFinDecoyHasSphereEuler(t *testing.T) {
	m := finDecoy()
	euler := len(m.UsedVertices()) - len(m.Edges()) + len(m.Faces)
	assert.Equal(t, 2, euler)
	assert.False(t, m.Is2DSphere())
}

func TestComponents(t *testing.T) {
	m := unitCube()
	m.Append(Box(math.V3(3, 0, 0), math.V3(4, 1, 1)))

	comps := m.Components()
	assert.Equal(t, [][]int{{0, 1, 2, 3, 4, 5}, {6, 7, 8, 9, 10, 11}}, comps)

	parts := m.Separate()
	assert.Len(t, parts, 2)
	for _, p := range parts {
		assert.Len(t, p.Verts, 8)
		assert.InDelta(t, 1.0, p.Volume(), 1e-9)
	}
}

func TestBoundaryLoops(t *testing.T) {
	m := unitCube()
	// The four side faces form a tube with two boundary loops.
	loops := m.BoundaryLoops([]int{0, 1, 2, 3})
	assert.Len(t, loops, 2)
	for _, l := range loops {
		assert.Len(t, l, 4)
	}
	assert.Empty(t, m.BoundaryLoops([]int{0, 1, 2, 3, 4, 5}))
}

func TestConsistentWinding(t *testing.T) {
	m := unitCube()
	assert.True(t, m.ConsistentWinding())

	f := m.Faces[0]
	for i, j := 0, len(f.Verts)-1; i < j; i, j = i+1, j-1 {
		f.Verts[i], f.Verts[j] = f.Verts[j], f.Verts[i]
	}
	assert.False(t, m.ConsistentWinding())
}
