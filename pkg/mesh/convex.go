package mesh

import "github.com/Faultbox/sectorforge/pkg/math"

// ConvexEpsilon is the plane-matching tolerance used by Convexity.
const ConvexEpsilon = 1e-4

// ConvexInfo is the result of a convexity analysis.
type ConvexInfo struct {
	Sphere bool
	Convex bool
	// InternalFaces lists faces whose plane is not a hull plane; they are
	// what makes the mesh concave.
	InternalFaces []int
	// ExternalNormals are the hull planes that coincide with at least one
	// mesh face, in the order of the first face matching each.
	ExternalNormals []math.Vec3
	Hull            *Hull
}

// Convexity analyses the mesh. A mesh that is not a 2D sphere is reported as
// non-convex without building a hull.
func (m *Mesh) Convexity(eps float64) ConvexInfo {
	if eps <= 0 {
		eps = ConvexEpsilon
	}
	var info ConvexInfo
	info.Sphere = m.Is2DSphere()
	if !info.Sphere {
		return info
	}
	used := m.UsedVertices()
	pts := make([]math.Vec3, len(used))
	for i, v := range used {
		pts[i] = m.Verts[v]
	}
	hull, err := ConvexHull(pts, eps)
	if err != nil {
		return info
	}
	info.Hull = hull

	matched := make([]bool, len(hull.Planes))
	for fi, f := range m.Faces {
		hp := hull.PlaneFor(f.Plane(), eps)
		if hp < 0 {
			info.InternalFaces = append(info.InternalFaces, fi)
			continue
		}
		if !matched[hp] {
			matched[hp] = true
			info.ExternalNormals = append(info.ExternalNormals, hull.Planes[hp].Plane.Normal)
		}
	}

	info.Convex = len(info.InternalFaces) == 0
	if info.Convex {
		for _, p := range pts {
			if !hull.OnSurface(p) {
				info.Convex = false
				break
			}
		}
	}
	return info
}

// IsConvex reports whether the mesh is a closed convex polyhedron.
func (m *Mesh) IsConvex() bool {
	return m.Convexity(ConvexEpsilon).Convex
}
