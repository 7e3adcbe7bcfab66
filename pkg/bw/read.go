package bw

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/Faultbox/sectorforge/pkg/encoding"
	"github.com/Faultbox/sectorforge/pkg/math"
)

// Parse decodes a complete .bw file. Any unexpected tag or marker is a hard
// error; no attempt is made to resynchronise a damaged stream.
func Parse(data []byte) (*File, error) {
	r := bytes.NewReader(data)
	f := &File{}

	n, err := readCount(r, 4+3+4, "atmosphere count")
	if err != nil {
		return nil, err
	}
	f.Atmospheres = makeSlice[Atmosphere](n)
	for i := range f.Atmospheres {
		a, err := parseAtmosphere(r)
		if err != nil {
			return nil, fmt.Errorf("atmosphere %d: %w", i, err)
		}
		f.Atmospheres[i] = a
	}

	if f.Meta, err = parseMetadata(r); err != nil {
		return nil, err
	}

	n, err = readCount(r, 24, "vertex count")
	if err != nil {
		return nil, err
	}
	f.Vertices = makeSlice[math.Vec3](n)
	for i := range f.Vertices {
		if f.Vertices[i], err = readVec3(r, "vertex"); err != nil {
			return nil, fmt.Errorf("vertex %d: %w", i, err)
		}
	}

	n, err = readCount(r, 4, "sector count")
	if err != nil {
		return nil, err
	}
	f.Sectors = makeSlice[Sector](n)
	for i := range f.Sectors {
		s, err := parseSector(r, len(f.Vertices))
		if err != nil {
			return nil, fmt.Errorf("sector %d: %w", i, err)
		}
		f.Sectors[i] = s
	}

	if err := parseLights(r, f); err != nil {
		return nil, err
	}

	f.GroupFlags = make([]int32, len(f.Sectors))
	for i := range f.GroupFlags {
		if err := binary.Read(r, binary.LittleEndian, &f.GroupFlags[i]); err != nil {
			return nil, fmt.Errorf("%w: reading group flags %d", ErrTruncated, i)
		}
	}
	f.Names = make([]string, len(f.Sectors))
	for i := range f.Names {
		if f.Names[i], err = readString(r, "sector name"); err != nil {
			return nil, fmt.Errorf("sector %d: %w", i, err)
		}
	}
	return f, nil
}

// ParseFile parses a .bw file from disk.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading BW file: %w", err)
	}
	return Parse(data)
}

func parseAtmosphere(r *bytes.Reader) (Atmosphere, error) {
	var a Atmosphere
	var err error
	if a.Name, err = readString(r, "atmosphere name"); err != nil {
		return a, err
	}
	var rgb [3]uint8
	if err := binary.Read(r, binary.LittleEndian, &rgb); err != nil {
		return a, fmt.Errorf("%w: reading atmosphere colour", ErrTruncated)
	}
	a.R, a.G, a.B = rgb[0], rgb[1], rgb[2]
	if err := binary.Read(r, binary.LittleEndian, &a.Alpha); err != nil {
		return a, fmt.Errorf("%w: reading atmosphere alpha", ErrTruncated)
	}
	return a, nil
}

func parseMetadata(r *bytes.Reader) (Metadata, error) {
	var m Metadata
	marker, err := readU32(r, "metadata marker")
	if err != nil {
		return m, err
	}
	if marker != MetadataMarker {
		return m, fmt.Errorf("%w: metadata marker 0x%08X", ErrBadMarker, marker)
	}
	if m.Tool, err = readString(r, "tool name"); err != nil {
		return m, err
	}
	if m.Version, err = readString(r, "tool version"); err != nil {
		return m, err
	}
	if m.URL, err = readString(r, "tool url"); err != nil {
		return m, err
	}
	return m, nil
}

func parseSector(r *bytes.Reader, nverts int) (Sector, error) {
	var s Sector
	var err error
	if s.Atmosphere, err = readString(r, "sector atmosphere"); err != nil {
		return s, err
	}
	if s.Ambient, err = parseLight(r, "ambient"); err != nil {
		return s, err
	}
	if err := skip(r, lightReserved, "ambient reserved"); err != nil {
		return s, err
	}
	if s.Flat.Light, err = parseLight(r, "flat light"); err != nil {
		return s, err
	}
	if err := skip(r, lightReserved, "flat light reserved"); err != nil {
		return s, err
	}
	if s.Flat.Direction, err = readVec3(r, "flat light direction"); err != nil {
		return s, err
	}

	n, err := readCount(r, 4+24+8, "face count")
	if err != nil {
		return s, err
	}
	s.Faces = makeSlice[Face](n)
	for i := range s.Faces {
		if s.Faces[i], err = parseFace(r, nverts); err != nil {
			return s, fmt.Errorf("face %d: %w", i, err)
		}
	}
	return s, nil
}

// parseLight reads colour, intensity and the fixed precision field.
func parseLight(r *bytes.Reader, what string) (Light, error) {
	var l Light
	var rgb [3]uint8
	if err := binary.Read(r, binary.LittleEndian, &rgb); err != nil {
		return l, fmt.Errorf("%w: reading %s colour", ErrTruncated, what)
	}
	l.R, l.G, l.B = rgb[0], rgb[1], rgb[2]
	if err := binary.Read(r, binary.LittleEndian, &l.Intensity); err != nil {
		return l, fmt.Errorf("%w: reading %s intensity", ErrTruncated, what)
	}
	var precision int32
	if err := binary.Read(r, binary.LittleEndian, &precision); err != nil {
		return l, fmt.Errorf("%w: reading %s precision", ErrTruncated, what)
	}
	if precision != LightPrecision {
		return l, fmt.Errorf("%w: %s precision %d", ErrBadPrecision, what, precision)
	}
	return l, nil
}

func parseFace(r *bytes.Reader, nverts int) (Face, error) {
	var f Face
	t, err := readU32(r, "face type")
	if err != nil {
		return f, err
	}
	f.Type = FaceType(t)
	if !f.Type.Valid() {
		return f, fmt.Errorf("%w: %d", ErrUnknownFaceType, t)
	}
	if f.Normal, err = readVec3(r, "face normal"); err != nil {
		return f, err
	}
	if err := binary.Read(r, binary.LittleEndian, &f.Distance); err != nil {
		return f, fmt.Errorf("%w: reading face distance", ErrTruncated)
	}

	if f.Type.HasTexture() {
		if f.Texture, err = parseTexture(r); err != nil {
			return f, err
		}
	}
	if f.Verts, err = readVerts(r, nverts, "face vertices"); err != nil {
		return f, err
	}

	switch f.Type {
	case FacePortal:
		if err := binary.Read(r, binary.LittleEndian, &f.Neighbor); err != nil {
			return f, fmt.Errorf("%w: reading neighbour", ErrTruncated)
		}
	case FaceHole:
		h, err := parseHole(r, nverts)
		if err != nil {
			return f, err
		}
		f.Holes = []Hole{h}
	case FaceSplit:
		n, err := readCount(r, 4+4+4, "hole count")
		if err != nil {
			return f, err
		}
		f.Holes = makeSlice[Hole](n)
		for i := range f.Holes {
			if f.Holes[i], err = parseHole(r, nverts); err != nil {
				return f, fmt.Errorf("hole %d: %w", i, err)
			}
		}
		if f.Cuts, err = parseCuts(r); err != nil {
			return f, err
		}
	}
	return f, nil
}

func parseHole(r *bytes.Reader, nverts int) (Hole, error) {
	var h Hole
	var err error
	if h.Verts, err = readVerts(r, nverts, "hole vertices"); err != nil {
		return h, err
	}
	if err := binary.Read(r, binary.LittleEndian, &h.Neighbor); err != nil {
		return h, fmt.Errorf("%w: reading hole neighbour", ErrTruncated)
	}
	n, err := readCount(r, 32, "hole line count")
	if err != nil {
		return h, err
	}
	h.Lines = makeSlice[Line](n)
	for i := range h.Lines {
		if h.Lines[i], err = parseLine(r); err != nil {
			return h, err
		}
	}
	return h, nil
}

func parseLine(r *bytes.Reader) (Line, error) {
	var l Line
	var err error
	if l.Normal, err = readVec3(r, "line normal"); err != nil {
		return l, err
	}
	if err := binary.Read(r, binary.LittleEndian, &l.Offset); err != nil {
		return l, fmt.Errorf("%w: reading line offset", ErrTruncated)
	}
	return l, nil
}

func parseTexture(r *bytes.Reader) (*Texture, error) {
	t := &Texture{}
	var err error
	if t.Name, err = readString(r, "texture name"); err != nil {
		return nil, err
	}
	if t.VX, err = readVec3(r, "texture vx"); err != nil {
		return nil, err
	}
	if t.VY, err = readVec3(r, "texture vy"); err != nil {
		return nil, err
	}
	var vals [5]float64
	if err := binary.Read(r, binary.LittleEndian, &vals); err != nil {
		return nil, fmt.Errorf("%w: reading texture placement", ErrTruncated)
	}
	t.XPos, t.YPos, t.Angle, t.XZoom, t.YZoom = vals[0], vals[1], vals[2], vals[3], vals[4]
	return t, nil
}

// parseCuts reads the cut count and the pre-order cut stream with an
// explicit stack of child slots.
func parseCuts(r *bytes.Reader) (*CutNode, error) {
	want, err := readU32(r, "cut count")
	if err != nil {
		return nil, err
	}
	var root *CutNode
	stack := []**CutNode{&root}
	cuts := uint32(0)
	for len(stack) > 0 {
		slot := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		tag, err := readU32(r, "cut marker")
		if err != nil {
			return nil, err
		}
		switch tag {
		case MarkerCut:
			cuts++
			if cuts > want {
				return nil, fmt.Errorf("%w: more than %d cuts", ErrBadMarker, want)
			}
			node := &CutNode{}
			if node.Line, err = parseLine(r); err != nil {
				return nil, err
			}
			*slot = node
			// Negative child is read first.
			stack = append(stack, &node.Pos, &node.Neg)
		case MarkerLeaf:
			node := &CutNode{Leaf: true}
			if err := binary.Read(r, binary.LittleEndian, &node.HoleRef); err != nil {
				return nil, fmt.Errorf("%w: reading hole reference", ErrTruncated)
			}
			hasTex, err := r.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("%w: reading leaf texture flag", ErrTruncated)
			}
			if hasTex != 0 {
				if node.Texture, err = parseTexture(r); err != nil {
					return nil, err
				}
			}
			*slot = node
		default:
			return nil, fmt.Errorf("%w: cut stream tag %d", ErrBadMarker, tag)
		}
	}
	if cuts != want {
		return nil, fmt.Errorf("%w: cut count %d, stream has %d", ErrBadMarker, want, cuts)
	}
	return root, nil
}

func parseLights(r *bytes.Reader, f *File) error {
	n, err := readCount(r, 3+4+4+24+4, "external light count")
	if err != nil {
		return err
	}
	f.ExtLights = makeSlice[ExtLight](n)
	for i := range f.ExtLights {
		l := &f.ExtLights[i]
		if l.Light, err = parseLight(r, "external light"); err != nil {
			return fmt.Errorf("external light %d: %w", i, err)
		}
		if l.Direction, err = readVec3(r, "external light direction"); err != nil {
			return err
		}
		k, err := readCount(r, 4, "external light sector count")
		if err != nil {
			return err
		}
		l.Sectors = makeSlice[int32](k)
		if err := binary.Read(r, binary.LittleEndian, l.Sectors); err != nil {
			return fmt.Errorf("%w: reading external light sectors", ErrTruncated)
		}
	}

	n, err = readCount(r, 3+4+4+24+4, "bulb count")
	if err != nil {
		return err
	}
	f.Bulbs = makeSlice[Bulb](n)
	for i := range f.Bulbs {
		b := &f.Bulbs[i]
		if b.Light, err = parseLight(r, "bulb"); err != nil {
			return fmt.Errorf("bulb %d: %w", i, err)
		}
		if b.Position, err = readVec3(r, "bulb position"); err != nil {
			return err
		}
		if err := binary.Read(r, binary.LittleEndian, &b.Sector); err != nil {
			return fmt.Errorf("%w: reading bulb sector", ErrTruncated)
		}
	}
	return nil
}

func readU32(r *bytes.Reader, what string) (uint32, error) {
	var v uint32
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, fmt.Errorf("%w: reading %s", ErrTruncated, what)
	}
	return v, nil
}

// readCount reads an element count and rejects counts that cannot fit in
// the remaining data, given the minimum encoded size of one element.
func readCount(r *bytes.Reader, minSize int, what string) (int, error) {
	n, err := readU32(r, what)
	if err != nil {
		return 0, err
	}
	if uint64(n)*uint64(minSize) > uint64(r.Len()) {
		return 0, fmt.Errorf("%w: %s %d exceeds remaining %d bytes", ErrTruncated, what, n, r.Len())
	}
	return int(n), nil
}

func readString(r *bytes.Reader, what string) (string, error) {
	n, err := readCount(r, 1, what+" length")
	if err != nil {
		return "", err
	}
	buf := makeSlice[byte](n)
	if _, err := r.Read(buf); err != nil && n > 0 {
		return "", fmt.Errorf("%w: reading %s", ErrTruncated, what)
	}
	return encoding.LegacyToUTF8(buf), nil
}

func readVec3(r *bytes.Reader, what string) (math.Vec3, error) {
	var v [3]float64
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return math.Vec3{}, fmt.Errorf("%w: reading %s", ErrTruncated, what)
	}
	return math.Vec3{X: v[0], Y: v[1], Z: v[2]}, nil
}

func readVerts(r *bytes.Reader, nverts int, what string) ([]uint32, error) {
	n, err := readCount(r, 4, what)
	if err != nil {
		return nil, err
	}
	out := makeSlice[uint32](n)
	if err := binary.Read(r, binary.LittleEndian, out); err != nil {
		return nil, fmt.Errorf("%w: reading %s", ErrTruncated, what)
	}
	for _, v := range out {
		if int(v) >= nverts {
			return nil, fmt.Errorf("%w: %d of %d", ErrBadVertex, v, nverts)
		}
	}
	return out, nil
}

// makeSlice returns nil for zero lengths so decoded records compare equal to
// freshly built ones.
func makeSlice[T any](n int) []T {
	if n == 0 {
		return nil
	}
	return make([]T, n)
}

func skip(r *bytes.Reader, n int, what string) error {
	if r.Len() < n {
		return fmt.Errorf("%w: reading %s", ErrTruncated, what)
	}
	_, err := r.Seek(int64(n), io.SeekCurrent)
	return err
}
