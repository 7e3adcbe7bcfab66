package sector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/sectorforge/pkg/math"
	"github.com/Faultbox/sectorforge/pkg/mesh"
)

func cube(x float64) *mesh.Mesh {
	return mesh.Box(math.V3(x, 0, 0), math.V3(x+1, 1, 1))
}

func TestCreateAssignsIDs(t *testing.T) {
	r := NewRegistry("Default")
	a := r.Create("a", cube(0))
	b := r.Create("b", cube(1))
	assert.Equal(t, 1, a.ID)
	assert.Equal(t, 2, b.ID)
	assert.True(t, a.IsConvex)
	assert.True(t, a.Is2DSphere)
	assert.Equal(t, ConcaveNone, a.ConcaveType)
	assert.Equal(t, DefaultAtmosphere, a.Atmosphere)
	assert.Equal(t, 2, r.Len())
}

func TestDeleteReusesIDs(t *testing.T) {
	r := NewRegistry("Default")
	for i := 0; i < 4; i++ {
		r.Create("s", cube(float64(i)))
	}
	require.NoError(t, r.Delete(3))
	require.NoError(t, r.Delete(2))
	assert.Equal(t, 2, r.DeletedCount())

	assert.Equal(t, 2, r.Create("x", cube(9)).ID)
	assert.Equal(t, 3, r.Create("y", cube(9)).ID)
	assert.Equal(t, 5, r.Create("z", cube(9)).ID)
	assert.Zero(t, r.DeletedCount())

	assert.ErrorIs(t, r.Delete(42), ErrNotFound)
}

func TestDeleteDisconnectsNeighbours(t *testing.T) {
	r := NewRegistry("Default")
	a := r.Create("a", cube(0))
	b := r.Create("b", cube(1))
	a.Mesh.Faces[1].Attr.ConnectedID = b.ID
	b.Mesh.Faces[0].Attr.ConnectedID = a.ID
	a.Refresh(mesh.ConvexEpsilon)
	assert.Equal(t, 1, a.ConnectNum)
	r.Bulbs = []Bulb{{Sector: b.ID}, {Sector: a.ID}}
	r.ExtLights = []ExtLight{{Sectors: []int{a.ID, b.ID}}}

	require.NoError(t, r.Delete(b.ID))
	assert.Zero(t, a.ConnectNum)
	assert.Zero(t, a.Mesh.Faces[1].Attr.ConnectedID)
	assert.Equal(t, []Bulb{{Sector: a.ID}}, r.Bulbs)
	assert.Equal(t, []int{a.ID}, r.ExtLights[0].Sectors)
}

func TestAddKeepsFreeList(t *testing.T) {
	r := NewRegistry("Default")
	require.NoError(t, r.Add(&Sector{ID: 3, Mesh: cube(0)}))
	assert.Equal(t, 2, r.DeletedCount())
	assert.ErrorIs(t, r.Add(&Sector{ID: 3, Mesh: cube(0)}), ErrDuplicateID)
	assert.ErrorIs(t, r.Add(&Sector{ID: 0, Mesh: cube(0)}), ErrInvalidID)

	require.NoError(t, r.Add(&Sector{ID: 1, Mesh: cube(0)}))
	assert.Equal(t, 2, r.Create("next", cube(0)).ID)
	assert.Equal(t, 4, r.Create("after", cube(0)).ID)

	s, ok := r.ByName("after")
	require.True(t, ok)
	assert.Equal(t, 4, s.ID)
	ids := []int{}
	for _, s := range r.All() {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []int{1, 2, 3, 4}, ids)
}

func TestRefreshConcave(t *testing.T) {
	// Two boxes glued along x=1 with an extra notch: a non-convex L shape.
	m, err := mesh.Build([]math.Vec3{
		{X: 0, Y: 0, Z: 0}, {X: 2, Y: 0, Z: 0}, {X: 2, Y: 1, Z: 0}, {X: 1, Y: 1, Z: 0}, {X: 1, Y: 2, Z: 0}, {X: 0, Y: 2, Z: 0},
		{X: 0, Y: 0, Z: 1}, {X: 2, Y: 0, Z: 1}, {X: 2, Y: 1, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: 1, Y: 2, Z: 1}, {X: 0, Y: 2, Z: 1},
	}, [][]int{
		{5, 4, 3, 2, 1, 0},
		{6, 7, 8, 9, 10, 11},
		{0, 1, 7, 6},
		{1, 2, 8, 7},
		{2, 3, 9, 8},
		{3, 4, 10, 9},
		{4, 5, 11, 10},
		{5, 0, 6, 11},
	}, mesh.DefaultAttributes())
	require.NoError(t, err)

	s := &Sector{Mesh: m, ConcaveType: ConcaveComplex}
	s.Refresh(mesh.ConvexEpsilon)
	assert.True(t, s.Is2DSphere)
	assert.False(t, s.IsConvex)
	assert.NotEmpty(t, s.FacesIntIdx)
	assert.NotEmpty(t, s.FlatExt)
	assert.Equal(t, ConcaveComplex, s.ConcaveType, "kept until decomposition reclassifies")
}

func TestTextureTable(t *testing.T) {
	tt := NewTextureTable("Default")
	assert.Equal(t, 0, tt.Ensure("Default"))
	assert.Equal(t, 1, tt.Ensure("Brick"))
	assert.Equal(t, 1, tt.Ensure("Brick"))
	assert.Equal(t, mesh.SkyTexture, tt.Ensure(""))
	assert.Equal(t, 2, tt.Len())

	name, ok := tt.Name(1)
	assert.True(t, ok)
	assert.Equal(t, "Brick", name)
	_, ok = tt.Name(7)
	assert.False(t, ok)
	name, ok = tt.Name(mesh.SkyTexture)
	assert.True(t, ok)
	assert.Empty(t, name)
}

func TestConcaveTypeString(t *testing.T) {
	assert.Equal(t, "SIMPLE", ConcaveSimple.String())
	assert.Equal(t, "ConcaveType(9)", ConcaveType(9).String())
}

func TestFlatLightFace(t *testing.T) {
	s := &Sector{Name: "room", Mesh: cube(0), Flat: FlatLight{Direction: math.V3(1, 0, 0)}}
	fi, err := s.FlatLightFace()
	require.NoError(t, err)
	assert.Equal(t, -1, fi)
	s.Refresh(mesh.ConvexEpsilon)
	assert.Equal(t, math.V3(1, 0, 0), s.Flat.Direction, "kept without a marked face")

	// Box face 5 is +Z.
	s.Mesh.Faces[5].Attr.FlatLight = true
	s.Refresh(mesh.ConvexEpsilon)
	assert.True(t, s.Flat.Direction.ApproxEqual(math.V3(0, 0, 1), 1e-12))

	// Cut pieces of the marked face still count as one.
	_, err = s.Mesh.Bisect(math.PlaneFromPoint(math.V3(1, 0, 0), math.V3(0.5, 0, 0)), mesh.DefaultTolerance)
	require.NoError(t, err)
	fi, err = s.FlatLightFace()
	require.NoError(t, err)
	assert.True(t, s.Mesh.Faces[fi].Attr.FlatLight)

	for _, f := range s.Mesh.Faces {
		if f.Normal.X < -0.5 {
			f.Attr.FlatLight = true
		}
	}
	_, err = s.FlatLightFace()
	assert.ErrorIs(t, err, ErrFlatLight)
}
