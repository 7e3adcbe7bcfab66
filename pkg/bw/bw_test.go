package bw

import (
	"bytes"
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/sectorforge/pkg/math"
)

func testTexture(name string) *Texture {
	return &Texture{
		Name:  name,
		VX:    math.V3(1, 0, 0),
		VY:    math.V3(0, 0, 1),
		XPos:  250,
		YPos:  -500,
		Angle: 0.5,
		XZoom: 2,
		YZoom: 1,
	}
}

// testFile builds a file exercising every face type.
func testFile() *File {
	verts := make([]math.Vec3, 8)
	for i := range verts {
		verts[i] = math.V3(float64(i*1000), float64(-i*500), 3000)
	}
	cuts := &CutNode{
		Line: Line{Normal: math.V3(1, 0, 0), Offset: 1500},
		Neg:  &CutNode{Leaf: true, HoleRef: 0},
		Pos: &CutNode{
			Line: Line{Normal: math.V3(0, 0, 1), Offset: 250},
			Neg:  &CutNode{Leaf: true, HoleRef: 1, Texture: testTexture("Brick")},
			Pos:  &CutNode{Leaf: true, HoleRef: -1},
		},
	}
	return &File{
		Atmospheres: []Atmosphere{{Name: "Fog", R: 10, G: 20, B: 30, Alpha: 0.5}},
		Meta:        Metadata{Tool: "sectorforge", Version: "1.0.0", URL: "https://example.invalid"},
		Vertices:    verts,
		Sectors: []Sector{
			{
				Atmosphere: "Fog",
				Ambient:    Light{R: 255, G: 200, B: 100, Intensity: 0.75},
				Flat:       FlatLight{Light: Light{R: 1, G: 2, B: 3, Intensity: 1}, Direction: math.V3(0, -1, 0)},
				Faces: []Face{
					{Type: FacePlain, Normal: math.V3(0, 0, 1), Distance: 3000, Texture: testTexture("Wall"), Verts: []uint32{0, 1, 2}},
					{Type: FacePortal, Normal: math.V3(1, 0, 0), Distance: 0, Verts: []uint32{2, 3, 4, 5}, Neighbor: 1},
					{Type: FaceSky, Normal: math.V3(0, -1, 0), Distance: 10, Verts: []uint32{5, 6, 7}},
				},
			},
			{
				Atmosphere: "Fog",
				Ambient:    Light{Intensity: 1},
				Faces: []Face{
					{
						Type: FaceHole, Normal: math.V3(0, 1, 0), Distance: 5,
						Texture: testTexture("Café"), Verts: []uint32{0, 1, 2, 3},
						Holes: []Hole{{Verts: []uint32{4, 5, 6}, Neighbor: 0, Lines: []Line{{Normal: math.V3(0, 0, 1), Offset: 7}}}},
					},
					{
						Type: FaceSplit, Normal: math.V3(0, 1, 0), Distance: 5,
						Texture: testTexture("Wall"), Verts: []uint32{0, 1, 2, 3},
						Holes: []Hole{
							{Verts: []uint32{4, 5, 6}, Neighbor: 0},
							{Verts: []uint32{5, 6, 7}, Neighbor: 2, Lines: []Line{{Normal: math.V3(1, 0, 0), Offset: -2}}},
						},
						Cuts: cuts,
					},
				},
			},
		},
		ExtLights:  []ExtLight{{Light: Light{R: 9, Intensity: 2}, Direction: math.V3(0, -1, 0), Sectors: []int32{0, 1}}},
		Bulbs:      []Bulb{{Light: Light{G: 9, Intensity: 3}, Position: math.V3(100, 200, 300), Sector: 1}},
		GroupFlags: []int32{0, -1},
		Names:      []string{"Hall", "Crypt"},
	}
}

func TestRoundTrip(t *testing.T) {
	want := testFile()
	data, err := Marshal(want)
	require.NoError(t, err)

	got, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	again, err := Marshal(got)
	require.NoError(t, err)
	assert.Equal(t, data, again, "encoding is deterministic")
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.bw")
	require.NoError(t, WriteFile(path, testFile()))

	f, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5, f.FaceCount())
	assert.Equal(t, map[FaceType]int{
		FacePlain: 1, FacePortal: 1, FaceSky: 1, FaceHole: 1, FaceSplit: 1,
	}, f.CountByType())

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, f))
	assert.NotZero(t, buf.Len())
}

func TestCutStreamLayout(t *testing.T) {
	root := testFile().Sectors[1].Faces[1].Cuts
	assert.Equal(t, 2, root.CutCount())

	buf := new(bytes.Buffer)
	require.NoError(t, writeCuts(buf, root))

	r := bytes.NewReader(buf.Bytes())
	var count uint32
	require.NoError(t, binary.Read(r, binary.LittleEndian, &count))
	assert.Equal(t, uint32(2), count)

	// Pre-order, negative child first: cut, leaf 0, cut, leaf 1, leaf -1.
	var tags []uint32
	var refs []int32
	for r.Len() > 0 {
		var tag uint32
		require.NoError(t, binary.Read(r, binary.LittleEndian, &tag))
		tags = append(tags, tag)
		switch tag {
		case MarkerCut:
			_, err := parseLine(r)
			require.NoError(t, err)
		case MarkerLeaf:
			var ref int32
			require.NoError(t, binary.Read(r, binary.LittleEndian, &ref))
			refs = append(refs, ref)
			flag, err := r.ReadByte()
			require.NoError(t, err)
			if flag != 0 {
				_, err := parseTexture(r)
				require.NoError(t, err)
			}
		}
	}
	assert.Equal(t, []uint32{MarkerCut, MarkerLeaf, MarkerCut, MarkerLeaf, MarkerLeaf}, tags)
	assert.Equal(t, []int32{0, 1, -1}, refs)

	leaves := root.Leaves()
	require.Len(t, leaves, 3)
	assert.Equal(t, "Brick", leaves[1].Texture.Name)
}

func TestParseErrors(t *testing.T) {
	good, err := Marshal(testFile())
	require.NoError(t, err)

	// Offsets into a minimal file with one sector and one face.
	minimal := &File{
		Vertices: []math.Vec3{{}, {}, {}},
		Sectors: []Sector{{Faces: []Face{
			{Type: FaceSky, Verts: []uint32{0, 1, 2}},
		}}},
	}
	data, err := Marshal(minimal)
	require.NoError(t, err)

	// atmosphere count, marker, three empty strings, vertex count, vertices,
	// sector count, empty atmosphere name.
	sectorStart := 4 + 4 + 3*4 + 4 + 3*24 + 4
	ambientPrecision := sectorStart + 4 + 3 + 4
	faceType := sectorStart + 4 + (3 + 4 + 4 + 24) + (3 + 4 + 4 + 24 + 24) + 4

	corrupt := func(off int, v uint32) []byte {
		out := append([]byte(nil), data...)
		binary.LittleEndian.PutUint32(out[off:], v)
		return out
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrTruncated},
		{"truncated", good[:len(good)-3], ErrTruncated},
		{"bad metadata marker", corrupt(4, 0xDEADBEEF), ErrBadMarker},
		{"bad precision", corrupt(ambientPrecision, 999), ErrBadPrecision},
		{"unknown face type", corrupt(faceType, 7009), ErrUnknownFaceType},
		{"vertex out of range", corrupt(faceType+4+24+8+4, 3), ErrBadVertex},
		{"huge count", corrupt(0, 0xFFFFFFFF), ErrTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	_, err = Parse(data)
	require.NoError(t, err)
}

func TestParseBadCutMarker(t *testing.T) {
	f := testFile()
	f.Sectors = f.Sectors[1:]
	f.GroupFlags = f.GroupFlags[1:]
	f.Names = f.Names[1:]
	data, err := Marshal(f)
	require.NoError(t, err)

	// The first cut-stream tag follows the cut count; find it by value.
	idx := bytes.Index(data, binary.LittleEndian.AppendUint32(nil, MarkerCut))
	require.Positive(t, idx)
	data[idx] = 0x43

	_, err = Parse(data)
	assert.ErrorIs(t, err, ErrBadMarker)
}

func TestWriteRejectsInvalidFaces(t *testing.T) {
	tests := []struct {
		name string
		face Face
	}{
		{"unknown type", Face{Type: 42}},
		{"missing texture", Face{Type: FacePlain, Verts: []uint32{0}}},
		{"hole without hole", Face{Type: FaceHole, Texture: testTexture("x")}},
		{"split without cuts", Face{Type: FaceSplit, Texture: testTexture("x")}},
		{"incomplete cut tree", Face{Type: FaceSplit, Texture: testTexture("x"), Cuts: &CutNode{Neg: &CutNode{Leaf: true}}}},
		{"vertex out of range", Face{Type: FaceSky, Verts: []uint32{9}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &File{Vertices: []math.Vec3{{}}, Sectors: []Sector{{Faces: []Face{tt.face}}}}
			_, err := Marshal(f)
			assert.Error(t, err)
		})
	}
}

func TestFaceType(t *testing.T) {
	assert.Equal(t, "split", FaceSplit.String())
	assert.Equal(t, "Unknown(1)", FaceType(1).String())
	assert.True(t, FacePlain.HasTexture())
	assert.False(t, FacePortal.HasTexture())
	assert.False(t, FaceSky.HasTexture())
}
