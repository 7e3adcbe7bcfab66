package connect

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/sectorforge/internal/logger"
	"github.com/Faultbox/sectorforge/internal/sector"
	"github.com/Faultbox/sectorforge/pkg/math"
	"github.com/Faultbox/sectorforge/pkg/mesh"
)

// ErrNoMatch is returned when two sectors share no open boundary.
var ErrNoMatch = errors.New("no shared open boundary")

// MatchVertices closes the open boundary loops a and b share. For every
// boundary loop of a, the vertices that also sit on a boundary of b are
// wrapped into a convex polygon, and a face over that polygon is added to
// each side, linked to the other. It returns the number of face pairs
// created.
func MatchVertices(a, b *sector.Sector, opt Options) (int, error) {
	if a.ID == b.ID {
		return 0, fmt.Errorf("%w: %d", ErrSelf, a.ID)
	}
	onB := make(map[vkey]int)
	for _, loop := range b.Mesh.BoundaryLoops(allFaces(b.Mesh)) {
		for _, v := range loop {
			onB[quantize(b.Mesh.Verts[v], opt.Tol)] = v
		}
	}

	made := 0
	for _, loop := range a.Mesh.BoundaryLoops(allFaces(a.Mesh)) {
		var va, vb []int
		for _, v := range loop {
			if w, ok := onB[quantize(a.Mesh.Verts[v], opt.Tol)]; ok {
				va = append(va, v)
				vb = append(vb, w)
			}
		}
		if len(va) < 3 {
			continue
		}
		pts := a.Mesh.FacePoints(&mesh.Face{Verts: va})
		// The new face closes the hole, so it winds against the boundary.
		want := math.NewellNormal(a.Mesh.FacePoints(&mesh.Face{Verts: loop})).Neg()
		if want.Length() < 1e-12 {
			continue
		}
		plane := math.PlaneFromPoint(want, math.Centroid(pts))
		order := mesh.GiftWrap(mesh.ProjectLoop(pts, plane), opt.Tol)
		if order == nil {
			continue
		}
		loopA := make([]int, len(order))
		loopB := make([]int, len(order))
		for i, k := range order {
			loopA[i] = va[k]
			loopB[len(order)-1-i] = vb[k]
		}

		attr := mesh.DefaultAttributes()
		attr.ConnectedID = b.ID
		if _, err := a.Mesh.AddFace(loopA, attr); err != nil {
			return made, fmt.Errorf("sector %d: %w", a.ID, err)
		}
		attr.ConnectedID = a.ID
		if _, err := b.Mesh.AddFace(loopB, attr); err != nil {
			a.Mesh.RemoveFaces([]int{len(a.Mesh.Faces) - 1})
			return made, fmt.Errorf("sector %d: %w", b.ID, err)
		}
		made++
	}
	if made == 0 {
		return 0, ErrNoMatch
	}
	a.Refresh(mesh.ConvexEpsilon)
	b.Refresh(mesh.ConvexEpsilon)
	logger.Debug("boundary matched",
		zap.Int("sector", a.ID),
		zap.Int("neighbour", b.ID),
		zap.Int("faces", made))
	return made, nil
}

func allFaces(m *mesh.Mesh) []int {
	out := make([]int, len(m.Faces))
	for i := range out {
		out[i] = i
	}
	return out
}
