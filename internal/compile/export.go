package compile

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/sectorforge/internal/logger"
	"github.com/Faultbox/sectorforge/internal/sector"
	"github.com/Faultbox/sectorforge/pkg/bw"
)

// ExportSectors encodes the listed sectors (all when ids is empty) and
// writes them to path. The file is written even when some face groups
// failed; the returned error aggregates every failure and is nil only for
// a clean export.
func ExportSectors(r *sector.Registry, ids []int, path string, opt Options) (Stats, error) {
	f, stats, errs := Encode(r, ids, opt)
	if f == nil {
		return stats, errs
	}
	if err := bw.WriteFile(path, f); err != nil {
		return stats, multierr.Append(errs, fmt.Errorf("writing %s: %w", path, err))
	}
	logger.Info("world exported",
		zap.String("path", path),
		zap.Int("sectors", stats.Sectors),
		zap.Int("faces", stats.Faces),
		zap.Int("vertices", stats.Vertices),
		zap.Bool("ok", errs == nil))
	return stats, errs
}

// ImportBW reads a .bw file into r. A malformed file fails as a whole and
// leaves r untouched.
func ImportBW(path string, r *sector.Registry, opt Options) (*Result, error) {
	f, err := bw.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	logger.Info("world read",
		zap.String("path", path),
		zap.String("tool", f.Meta.Tool),
		zap.Int("sectors", len(f.Sectors)),
		zap.Int("faces", f.FaceCount()),
		zap.Int("vertices", len(f.Vertices)))
	return Decode(f, r, opt)
}
