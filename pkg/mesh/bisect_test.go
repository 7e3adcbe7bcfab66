package mesh

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/sectorforge/pkg/math"
)

func TestBisectCube(t *testing.T) {
	m := unitCube()
	cut, err := m.Bisect(math.PlaneFromPoint(math.V3(1, 0, 0), math.V3(0.5, 0, 0)), DefaultTolerance)
	require.NoError(t, err)

	assert.Len(t, m.Faces, 10)
	assert.Len(t, m.Verts, 12)
	assert.Len(t, cut.Edges, 4)
	assert.Len(t, cut.Verts, 4)
	assert.Zero(t, cut.Skipped)
	for _, v := range cut.Verts {
		assert.InDelta(t, 0.5, m.Verts[v].X, 1e-12)
	}

	assert.True(t, m.Is2DSphere())
	assert.True(t, m.ConsistentWinding())
	assert.InDelta(t, 1.0, m.Volume(), 1e-9)
}

func TestBisectNoCut(t *testing.T) {
	m := unitCube()
	before := m.Clone()

	_, err := m.Bisect(math.PlaneFromPoint(math.V3(1, 0, 0), math.V3(2, 0, 0)), DefaultTolerance)
	assert.True(t, errors.Is(err, ErrNoCut))
	assert.Equal(t, before, m)

	// A plane through a face only touches it.
	_, err = m.Bisect(math.PlaneFromPoint(math.V3(0, 0, 1), math.V3(0, 0, 1)), DefaultTolerance)
	assert.ErrorIs(t, err, ErrNoCut)
}

func TestBisectThroughVertices(t *testing.T) {
	m := unitCube()
	// Diagonal plane through the vertical edges at (0,0) and (1,1).
	p := math.PlaneFromPoint(math.V3(1, -1, 0), math.V3(0, 0, 0))
	cut, err := m.Bisect(p, DefaultTolerance)
	require.NoError(t, err)

	assert.Len(t, m.Verts, 8, "existing vertices are reused")
	assert.Len(t, cut.Edges, 2)
	assert.Len(t, m.Faces, 8)
	assert.True(t, m.Is2DSphere())
}

func TestBisectFacesSelection(t *testing.T) {
	m := unitCube()
	p := math.PlaneFromPoint(math.V3(1, 0, 0), math.V3(0.5, 0, 0))
	top := func(f *Face) bool { return f.Normal.Z > 0.5 }

	cut, err := m.BisectFaces(p, DefaultTolerance, top)
	require.NoError(t, err)
	assert.Len(t, cut.Edges, 1)
	assert.Len(t, m.Faces, 7)
	// The split vertices are shared with the side faces, so the mesh stays
	// closed.
	assert.True(t, m.Is2DSphere())
}

func TestBisectCarriesAttributes(t *testing.T) {
	m := unitCube()
	m.Faces[5].Attr.TextureID = 7
	m.Faces[5].Attr.ConnectedID = 3

	_, err := m.Bisect(math.PlaneFromPoint(math.V3(1, 0, 0), math.V3(0.25, 0, 0)), DefaultTolerance)
	require.NoError(t, err)

	var tagged int
	for _, f := range m.Faces {
		if f.Attr.TextureID == 7 {
			tagged++
			assert.Equal(t, 3, f.Attr.ConnectedID)
			assert.InDelta(t, 1.0, f.Normal.Z, 1e-12)
		}
	}
	assert.Equal(t, 2, tagged)
}
