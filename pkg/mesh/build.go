package mesh

import (
	"fmt"

	"github.com/Faultbox/sectorforge/pkg/math"
)

// Build creates a mesh from vertex positions and face loops, all faces using
// attr. Non-convex faces are split into convex pieces.
func Build(verts []math.Vec3, loops [][]int, attr FaceAttributes) (*Mesh, error) {
	m := &Mesh{Verts: append([]math.Vec3(nil), verts...)}
	for i, loop := range loops {
		for _, v := range loop {
			if v < 0 || v >= len(verts) {
				return nil, fmt.Errorf("%w: face %d references vertex %d", ErrDegenerateFace, i, v)
			}
		}
		if _, err := m.AddFace(loop, attr); err != nil {
			return nil, fmt.Errorf("face %d: %w", i, err)
		}
	}
	m.ConvexifyFaces()
	return m, nil
}

// Box returns an axis-aligned box with outward-facing quads. Face order is
// -X, +X, -Y, +Y, -Z, +Z.
func Box(lo, hi math.Vec3) *Mesh {
	verts := []math.Vec3{
		{X: lo.X, Y: lo.Y, Z: lo.Z}, // 0
		{X: hi.X, Y: lo.Y, Z: lo.Z}, // 1
		{X: hi.X, Y: hi.Y, Z: lo.Z}, // 2
		{X: lo.X, Y: hi.Y, Z: lo.Z}, // 3
		{X: lo.X, Y: lo.Y, Z: hi.Z}, // 4
		{X: hi.X, Y: lo.Y, Z: hi.Z}, // 5
		{X: hi.X, Y: hi.Y, Z: hi.Z}, // 6
		{X: lo.X, Y: hi.Y, Z: hi.Z}, // 7
	}
	loops := [][]int{
		{0, 4, 7, 3}, // -X
		{1, 2, 6, 5}, // +X
		{0, 1, 5, 4}, // -Y
		{3, 7, 6, 2}, // +Y
		{0, 3, 2, 1}, // -Z
		{4, 5, 6, 7}, // +Z
	}
	m, err := Build(verts, loops, DefaultAttributes())
	if err != nil {
		panic(err)
	}
	return m
}
