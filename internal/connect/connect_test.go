package connect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/sectorforge/internal/sector"
	"github.com/Faultbox/sectorforge/pkg/math"
	"github.com/Faultbox/sectorforge/pkg/mesh"
)

func box(r *sector.Registry, name string, lo, hi math.Vec3) *sector.Sector {
	return r.Create(name, mesh.Box(lo, hi))
}

// linked returns the faces of s connected to id.
func linked(s *sector.Sector, id int) []int {
	var out []int
	for i, f := range s.Mesh.Faces {
		if f.Attr.ConnectedID == id {
			out = append(out, i)
		}
	}
	return out
}

// assertSymmetric checks that a and b link to each other with opposite
// normals and equal area.
func assertSymmetric(t *testing.T, a, b *sector.Sector) {
	t.Helper()
	fa, fb := linked(a, b.ID), linked(b, a.ID)
	require.NotEmpty(t, fa)
	require.NotEmpty(t, fb)
	for _, i := range fa {
		for _, j := range fb {
			assert.InDelta(t, -1, a.Mesh.Faces[i].Normal.Dot(b.Mesh.Faces[j].Normal), 1e-9)
		}
	}
	assert.InDelta(t, a.Mesh.Area(fa), b.Mesh.Area(fb), 1e-3)
}

func TestResolveExactMatch(t *testing.T) {
	r := sector.NewRegistry("Default")
	a := box(r, "a", math.V3(0, 0, 0), math.V3(1, 1, 1))
	b := box(r, "b", math.V3(1, 0, 0), math.V3(2, 1, 1))

	res, err := Resolve(a, b, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, Result{Exact: 1}, res)
	assert.Equal(t, 1, a.ConnectNum)
	assert.Equal(t, 1, b.ConnectNum)
	assert.Len(t, linked(a, b.ID), 1)
	assert.Len(t, linked(b, a.ID), 1)
	assert.Len(t, a.Mesh.Faces, 6)
	assertSymmetric(t, a, b)

	again, err := Resolve(a, b, DefaultOptions())
	require.NoError(t, err)
	assert.Zero(t, again.Total(), "already linked walls are left alone")
}

func TestResolveOverlap(t *testing.T) {
	r := sector.NewRegistry("Default")
	a := box(r, "room", math.V3(0, 0, 0), math.V3(1, 1, 1))
	b := box(r, "duct", math.V3(1, 0.25, 0.25), math.V3(2, 0.75, 0.75))

	res, err := Resolve(a, b, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, Result{Clipped: 1}, res)
	assertSymmetric(t, a, b)
	assert.InDelta(t, 0.25, a.Mesh.Area(linked(a, b.ID)), 1e-9)

	for _, s := range []*sector.Sector{a, b} {
		assert.True(t, s.Is2DSphere, s.Name)
		assert.True(t, s.IsConvex, s.Name)
		assert.Equal(t, 1, s.ConnectNum, s.Name)
		for _, f := range s.Mesh.Faces {
			assert.True(t, mesh.IsConvexLoop(s.Mesh.FacePoints(f), f.Normal, 1e-9))
		}
	}
	assert.InDelta(t, 1, a.Mesh.Volume(), 1e-9)
}

func TestResolveContact(t *testing.T) {
	tests := []struct {
		name   string
		lo, hi math.Vec3
		want   int
	}{
		{"apart", math.V3(3, 0, 0), math.V3(4, 1, 1), 0},
		{"edge only", math.V3(1, 1, 0), math.V3(2, 2, 1), 0},
		{"stacked", math.V3(0, 0, 1), math.V3(1, 1, 2), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := sector.NewRegistry("Default")
			a := box(r, "a", math.V3(0, 0, 0), math.V3(1, 1, 1))
			b := box(r, "b", tt.lo, tt.hi)
			res, err := Resolve(a, b, DefaultOptions())
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Total())
			assert.Equal(t, tt.want, a.ConnectNum)
			assert.Equal(t, tt.want, b.ConnectNum)
		})
	}

	r := sector.NewRegistry("Default")
	a := box(r, "a", math.V3(0, 0, 0), math.V3(1, 1, 1))
	_, err := Resolve(a, a, DefaultOptions())
	assert.ErrorIs(t, err, ErrSelf)
}

func TestResolveAll(t *testing.T) {
	r := sector.NewRegistry("Default")
	a := box(r, "a", math.V3(0, 0, 0), math.V3(1, 1, 1))
	b := box(r, "b", math.V3(1, 0, 0), math.V3(2, 1, 1))
	c := box(r, "c", math.V3(2, 0, 0), math.V3(3, 1, 1))

	res, err := ResolveAll(r, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Exact)
	assert.Equal(t, 1, a.ConnectNum)
	assert.Equal(t, 2, b.ConnectNum)
	assert.Equal(t, 1, c.ConnectNum)
	assert.Equal(t, []int{a.ID, c.ID}, b.Neighbours())
	assertSymmetric(t, a, b)
	assertSymmetric(t, b, c)
}

func TestReconcile(t *testing.T) {
	r := sector.NewRegistry("Default")
	a := box(r, "a", math.V3(0, 0, 0), math.V3(1, 1, 1))
	b := box(r, "b", math.V3(1, 0, 0), math.V3(2, 1, 1))
	_, err := Resolve(a, b, DefaultOptions())
	require.NoError(t, err)

	assert.Zero(t, Reconcile(r, DefaultOptions()), "consistent links survive")
	assert.Equal(t, 1, a.ConnectNum)

	// Break one side: the other side must follow.
	b.Disconnect(a.ID)
	assert.Equal(t, 1, Reconcile(r, DefaultOptions()))
	assert.Zero(t, a.ConnectNum)
	assert.Empty(t, linked(a, b.ID))

	// Dangling reference.
	a.Mesh.Faces[0].Attr.ConnectedID = 99
	assert.Equal(t, 1, Reconcile(r, DefaultOptions()))
	assert.Zero(t, a.Mesh.Faces[0].Attr.ConnectedID)
}

func TestReconcileAreaMismatch(t *testing.T) {
	r := sector.NewRegistry("Default")
	a := box(r, "a", math.V3(0, 0, 0), math.V3(1, 1, 1))
	b := box(r, "b", math.V3(1, 0.25, 0.25), math.V3(2, 0.75, 0.75))
	// Link whole walls of different size by hand.
	a.Mesh.Faces[1].Attr.ConnectedID = b.ID
	b.Mesh.Faces[0].Attr.ConnectedID = a.ID

	assert.Equal(t, 2, Reconcile(r, DefaultOptions()))
	assert.Zero(t, a.ConnectNum)
	assert.Zero(t, b.ConnectNum)
}

func TestMatchVertices(t *testing.T) {
	r := sector.NewRegistry("Default")
	ma := mesh.Box(math.V3(0, 0, 0), math.V3(1, 1, 1))
	ma.RemoveFaces([]int{1})
	mb := mesh.Box(math.V3(1, 0, 0), math.V3(2, 1, 1))
	mb.RemoveFaces([]int{0})
	a := r.Create("a", ma)
	b := r.Create("b", mb)
	require.False(t, a.Is2DSphere)

	n, err := MatchVertices(a, b, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	for _, s := range []*sector.Sector{a, b} {
		assert.True(t, s.Is2DSphere, s.Name)
		assert.True(t, s.IsConvex, s.Name)
		assert.Equal(t, 1, s.ConnectNum, s.Name)
	}
	fa := linked(a, b.ID)
	require.Len(t, fa, 1)
	assert.InDelta(t, 1, a.Mesh.Faces[fa[0]].Normal.X, 1e-9)
	assertSymmetric(t, a, b)

	_, err = MatchVertices(a, b, DefaultOptions())
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestCorners(t *testing.T) {
	square := []math.Vec3{{X: 0}, {X: 0.5}, {X: 1}, {X: 1, Y: 1}, {Y: 1}}
	assert.Equal(t, 4, Corners(square, mesh.CollinearEpsilon))
}

func TestLink(t *testing.T) {
	r := sector.NewRegistry("Default")
	a := box(r, "a", math.V3(0, 0, 0), math.V3(1, 1, 1))
	b := box(r, "b", math.V3(1, 0, 0), math.V3(2, 1, 1))
	c := box(r, "c", math.V3(5, 0, 0), math.V3(6, 1, 1))
	// A stale one-sided link that resolving alone would export.
	c.Mesh.Faces[0].Attr.ConnectedID = a.ID

	res, dropped, err := Link(r, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Exact)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, []int{b.ID}, a.Neighbours())
	assert.Empty(t, c.Neighbours())
	assert.Zero(t, c.ConnectNum)
	assertSymmetric(t, a, b)
}
