package math

// UnitsPerMetre converts editor units (metres) to engine millimetres.
const UnitsPerMetre = 1000.0

// ToEngine converts an editor (Z-up) position to engine coordinates:
// (x, y, z) → (x, −z, y), scaled to millimetres.
func ToEngine(p Vec3) Vec3 {
	return Vec3{p.X * UnitsPerMetre, -p.Z * UnitsPerMetre, p.Y * UnitsPerMetre}
}

// FromEngine is the inverse of ToEngine.
func FromEngine(p Vec3) Vec3 {
	return Vec3{p.X / UnitsPerMetre, p.Z / UnitsPerMetre, -p.Y / UnitsPerMetre}
}

// DirToEngine applies the axis remap without scaling.
func DirToEngine(d Vec3) Vec3 {
	return Vec3{d.X, -d.Z, d.Y}
}

// DirFromEngine is the inverse of DirToEngine.
func DirFromEngine(d Vec3) Vec3 {
	return Vec3{d.X, d.Z, -d.Y}
}

// DistToEngine converts a plane distance to millimetres.
func DistToEngine(d float64) float64 {
	return d * UnitsPerMetre
}

// DistFromEngine converts a plane distance from millimetres.
func DistFromEngine(d float64) float64 {
	return d / UnitsPerMetre
}
