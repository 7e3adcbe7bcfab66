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

// Marshal encodes f into a byte slice.
func Marshal(f *File) ([]byte, error) {
	if len(f.GroupFlags) != 0 && len(f.GroupFlags) != len(f.Sectors) {
		return nil, fmt.Errorf("group flags: %d for %d sectors", len(f.GroupFlags), len(f.Sectors))
	}
	if len(f.Names) != 0 && len(f.Names) != len(f.Sectors) {
		return nil, fmt.Errorf("names: %d for %d sectors", len(f.Names), len(f.Sectors))
	}

	buf := new(bytes.Buffer)
	putU32(buf, uint32(len(f.Atmospheres)))
	for _, a := range f.Atmospheres {
		putString(buf, a.Name)
		buf.Write([]byte{a.R, a.G, a.B})
		binary.Write(buf, binary.LittleEndian, a.Alpha)
	}

	putU32(buf, MetadataMarker)
	putString(buf, f.Meta.Tool)
	putString(buf, f.Meta.Version)
	putString(buf, f.Meta.URL)

	putU32(buf, uint32(len(f.Vertices)))
	for _, v := range f.Vertices {
		putVec3(buf, v)
	}

	putU32(buf, uint32(len(f.Sectors)))
	for i := range f.Sectors {
		if err := writeSector(buf, &f.Sectors[i], len(f.Vertices)); err != nil {
			return nil, fmt.Errorf("sector %d: %w", i, err)
		}
	}

	putU32(buf, uint32(len(f.ExtLights)))
	for _, l := range f.ExtLights {
		putLight(buf, l.Light)
		putVec3(buf, l.Direction)
		putU32(buf, uint32(len(l.Sectors)))
		binary.Write(buf, binary.LittleEndian, l.Sectors)
	}
	putU32(buf, uint32(len(f.Bulbs)))
	for _, b := range f.Bulbs {
		putLight(buf, b.Light)
		putVec3(buf, b.Position)
		binary.Write(buf, binary.LittleEndian, b.Sector)
	}

	for i := range f.Sectors {
		var flags int32
		if i < len(f.GroupFlags) {
			flags = f.GroupFlags[i]
		}
		binary.Write(buf, binary.LittleEndian, flags)
	}
	for i := range f.Sectors {
		var name string
		if i < len(f.Names) {
			name = f.Names[i]
		}
		putString(buf, name)
	}
	return buf.Bytes(), nil
}

// Write encodes f and writes it to w in one call.
func Write(w io.Writer, f *File) error {
	data, err := Marshal(f)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteFile encodes f to path.
func WriteFile(path string, f *File) error {
	data, err := Marshal(f)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing BW file: %w", err)
	}
	return nil
}

func writeSector(buf *bytes.Buffer, s *Sector, nverts int) error {
	putString(buf, s.Atmosphere)
	putLight(buf, s.Ambient)
	buf.Write(make([]byte, lightReserved))
	putLight(buf, s.Flat.Light)
	buf.Write(make([]byte, lightReserved))
	putVec3(buf, s.Flat.Direction)

	putU32(buf, uint32(len(s.Faces)))
	for i := range s.Faces {
		if err := writeFace(buf, &s.Faces[i], nverts); err != nil {
			return fmt.Errorf("face %d: %w", i, err)
		}
	}
	return nil
}

func writeFace(buf *bytes.Buffer, f *Face, nverts int) error {
	if !f.Type.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownFaceType, uint32(f.Type))
	}
	if err := checkVerts(f.Verts, nverts); err != nil {
		return err
	}
	putU32(buf, uint32(f.Type))
	putVec3(buf, f.Normal)
	binary.Write(buf, binary.LittleEndian, f.Distance)

	if f.Type.HasTexture() {
		if f.Texture == nil {
			return fmt.Errorf("%s face without texture", f.Type)
		}
		putTexture(buf, f.Texture)
	}
	putVerts(buf, f.Verts)

	switch f.Type {
	case FacePortal:
		binary.Write(buf, binary.LittleEndian, f.Neighbor)
	case FaceHole:
		if len(f.Holes) != 1 {
			return fmt.Errorf("hole face with %d holes", len(f.Holes))
		}
		if err := writeHole(buf, &f.Holes[0], nverts); err != nil {
			return err
		}
	case FaceSplit:
		putU32(buf, uint32(len(f.Holes)))
		for i := range f.Holes {
			if err := writeHole(buf, &f.Holes[i], nverts); err != nil {
				return fmt.Errorf("hole %d: %w", i, err)
			}
		}
		if f.Cuts == nil {
			return fmt.Errorf("split face without cut stream")
		}
		if err := writeCuts(buf, f.Cuts); err != nil {
			return err
		}
	}
	return nil
}

func writeHole(buf *bytes.Buffer, h *Hole, nverts int) error {
	if err := checkVerts(h.Verts, nverts); err != nil {
		return err
	}
	putVerts(buf, h.Verts)
	binary.Write(buf, binary.LittleEndian, h.Neighbor)
	putU32(buf, uint32(len(h.Lines)))
	for _, l := range h.Lines {
		putLine(buf, l)
	}
	return nil
}

// writeCuts emits the cut count followed by the tree in pre-order, negative
// child first.
func writeCuts(buf *bytes.Buffer, root *CutNode) error {
	putU32(buf, uint32(root.CutCount()))
	stack := []*CutNode{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil {
			return fmt.Errorf("%w: cut without both children", ErrBadMarker)
		}
		if n.Leaf {
			putU32(buf, MarkerLeaf)
			binary.Write(buf, binary.LittleEndian, n.HoleRef)
			if n.Texture == nil {
				buf.WriteByte(0)
				continue
			}
			buf.WriteByte(1)
			putTexture(buf, n.Texture)
			continue
		}
		putU32(buf, MarkerCut)
		putLine(buf, n.Line)
		stack = append(stack, n.Pos, n.Neg)
	}
	return nil
}

func checkVerts(verts []uint32, nverts int) error {
	for _, v := range verts {
		if int(v) >= nverts {
			return fmt.Errorf("%w: %d of %d", ErrBadVertex, v, nverts)
		}
	}
	return nil
}

func putU32(buf *bytes.Buffer, v uint32) {
	binary.Write(buf, binary.LittleEndian, v)
}

func putString(buf *bytes.Buffer, s string) {
	b := encoding.UTF8ToLegacy(s)
	putU32(buf, uint32(len(b)))
	buf.Write(b)
}

func putVec3(buf *bytes.Buffer, v math.Vec3) {
	binary.Write(buf, binary.LittleEndian, v.Array())
}

func putVerts(buf *bytes.Buffer, verts []uint32) {
	putU32(buf, uint32(len(verts)))
	binary.Write(buf, binary.LittleEndian, verts)
}

func putLine(buf *bytes.Buffer, l Line) {
	putVec3(buf, l.Normal)
	binary.Write(buf, binary.LittleEndian, l.Offset)
}

func putLight(buf *bytes.Buffer, l Light) {
	buf.Write([]byte{l.R, l.G, l.B})
	binary.Write(buf, binary.LittleEndian, l.Intensity)
	binary.Write(buf, binary.LittleEndian, LightPrecision)
}

func putTexture(buf *bytes.Buffer, t *Texture) {
	putString(buf, t.Name)
	putVec3(buf, t.VX)
	putVec3(buf, t.VY)
	binary.Write(buf, binary.LittleEndian, [5]float64{t.XPos, t.YPos, t.Angle, t.XZoom, t.YZoom})
}
