// Package compile converts between sector registries and .bw worlds.
//
// Encoding walks every flat face group of every exported sector, lets the
// face splitter choose the record type and writes outlines, holes and cut
// lines in engine space through a shared vertex table. Decoding rebuilds
// each face from its record, welds the faces of a sector back into one mesh
// and repairs what the record stream cannot carry unambiguously.
package compile

import (
	"errors"

	"github.com/Faultbox/sectorforge/internal/connect"
	"github.com/Faultbox/sectorforge/internal/facesplit"
	"github.com/Faultbox/sectorforge/internal/sector"
	"github.com/Faultbox/sectorforge/pkg/bw"
	"github.com/Faultbox/sectorforge/pkg/math"
	"github.com/Faultbox/sectorforge/pkg/mesh"
)

// Compile errors.
var (
	ErrNoSectors   = errors.New("no sectors to export")
	ErrBadNeighbor = errors.New("neighbour index out of range")
)

// Options control encoding and decoding.
type Options struct {
	Split   facesplit.Options
	Connect connect.Options
	Meta    bw.Metadata

	// SkyTexture is the texture name written for sky regions inside split
	// faces. Imported textures with this name become sky.
	SkyTexture string

	// Fixups enables the post-import repair passes.
	Fixups bool

	// Progress, when set, receives the completed percentage after each
	// sector.
	Progress func(pct float64)
}

// DefaultOptions returns the standard options.
func DefaultOptions() Options {
	return Options{
		Split:   facesplit.DefaultOptions(),
		Connect: connect.DefaultOptions(),
		Meta: bw.Metadata{
			Tool:    "sectorforge",
			Version: "0.1.0",
			URL:     "https://github.com/Faultbox/sectorforge",
		},
		Fixups: true,
	}
}

func (o Options) progress(done, total int) {
	if o.Progress == nil || total == 0 {
		return
	}
	o.Progress(100 * float64(done) / float64(total))
}

// zoom guards against unset texture zoom.
func zoom(z float64) float64 {
	if z == 0 {
		return 1
	}
	return z
}

// encodeTexture builds the texture block for attributes of a face with the
// given editor-space normal.
func encodeTexture(tex *sector.TextureTable, a mesh.FaceAttributes, normal math.Vec3, sky string) *bw.Texture {
	name := sky
	if a.TextureID != mesh.SkyTexture {
		n, ok := tex.Name(a.TextureID)
		if !ok {
			n, _ = tex.Name(0)
		}
		name = n
	}
	vx, vy := a.Basis(normal)
	return &bw.Texture{
		Name:  name,
		VX:    math.DirToEngine(vx),
		VY:    math.DirToEngine(vy),
		XPos:  a.XPos / (0.001 * zoom(a.XZoom)),
		YPos:  a.YPos / (0.001 * zoom(a.YZoom)),
		Angle: a.Angle,
		XZoom: a.XZoom,
		YZoom: a.YZoom,
	}
}

// decodeTexture is the inverse of encodeTexture. Unknown names are added to
// the table.
func decodeTexture(tex *sector.TextureTable, t *bw.Texture, sky string) mesh.FaceAttributes {
	a := mesh.DefaultAttributes()
	if t == nil {
		return a
	}
	if t.Name == sky {
		a.TextureID = mesh.SkyTexture
	} else {
		a.TextureID = tex.Ensure(t.Name)
	}
	a.TexVX = math.DirFromEngine(t.VX)
	a.TexVY = math.DirFromEngine(t.VY)
	a.XZoom = t.XZoom
	a.YZoom = t.YZoom
	a.XPos = t.XPos * 0.001 * zoom(t.XZoom)
	a.YPos = t.YPos * 0.001 * zoom(t.YZoom)
	a.Angle = t.Angle
	return a
}

func encodeLine(l facesplit.Line) bw.Line {
	return bw.Line{Normal: math.DirToEngine(l.Normal), Offset: math.DistToEngine(l.Offset)}
}

func decodeLine(l bw.Line) facesplit.Line {
	return facesplit.Line{Normal: math.DirFromEngine(l.Normal), Offset: math.DistFromEngine(l.Offset)}
}

func encodeLight(l sector.Light) bw.Light {
	return bw.Light{R: l.Color.R, G: l.Color.G, B: l.Color.B, Intensity: l.Intensity}
}

func decodeLight(l bw.Light) sector.Light {
	return sector.Light{Color: sector.Color{R: l.R, G: l.G, B: l.B}, Intensity: l.Intensity}
}
