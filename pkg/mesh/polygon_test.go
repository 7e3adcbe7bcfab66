package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Faultbox/sectorforge/pkg/math"
)

func square(x0, y0, x1, y1 float64) []math.Vec2 {
	return []math.Vec2{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

func TestArea2D(t *testing.T) {
	sq := square(0, 0, 2, 3)
	assert.InDelta(t, 6.0, Area2D(sq), 1e-12)
	rev := []math.Vec2{sq[3], sq[2], sq[1], sq[0]}
	assert.InDelta(t, -6.0, Area2D(rev), 1e-12)
}

func TestPointInPolygon(t *testing.T) {
	sq := square(0, 0, 1, 1)
	tests := []struct {
		pt   math.Vec2
		want bool
	}{
		{math.Vec2{X: 0.5, Y: 0.5}, true},
		{math.Vec2{X: 1.5, Y: 0.5}, false},
		{math.Vec2{X: 0.5, Y: -0.1}, false},
		{math.Vec2{X: 0.01, Y: 0.99}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PointInPolygon(tt.pt, sq), "%v", tt.pt)
	}
}

func TestConvexClip(t *testing.T) {
	a := square(0, 0, 2, 2)
	b := square(1, 1, 3, 3)
	out := ConvexClip(a, b)
	assert.InDelta(t, 1.0, Area2D(out), 1e-12)

	assert.Empty(t, ConvexClip(a, square(5, 5, 6, 6)))
	assert.InDelta(t, 4.0, Area2D(ConvexClip(a, square(-1, -1, 3, 3))), 1e-12)
}

func TestGiftWrapKeepsCollinear(t *testing.T) {
	pts := []math.Vec2{
		{X: 1, Y: 1}, // interior
		{X: 0, Y: 0},
		{X: 2, Y: 2},
		{X: 1, Y: 0}, // on the bottom edge
		{X: 2, Y: 0},
		{X: 0, Y: 2},
		{X: 0, Y: 1}, // on the left edge
	}
	loop := GiftWrap(pts, 1e-9)
	assert.Equal(t, []int{1, 3, 4, 2, 5, 6}, loop)
	assert.Nil(t, GiftWrap(pts[:2], 1e-9))
}

func TestIsConvex2D(t *testing.T) {
	assert.True(t, IsConvex2D(square(0, 0, 1, 1), 1e-9))
	l := []math.Vec2{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 2}, {X: 0, Y: 2}}
	assert.False(t, IsConvex2D(l, 1e-9))
	tris := EarClip(l)
	assert.Len(t, tris, 4)
	var area float64
	for _, tr := range tris {
		area += Area2D([]math.Vec2{l[tr[0]], l[tr[1]], l[tr[2]]})
	}
	assert.InDelta(t, 3.0, area, 1e-12)
}
