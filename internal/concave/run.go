package concave

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/sectorforge/internal/connect"
	"github.com/Faultbox/sectorforge/internal/logger"
	"github.com/Faultbox/sectorforge/internal/sector"
)

// Report partitions a batch decomposition by outcome. Entries are sector
// names.
type Report struct {
	Separated []string // replaced by convex pieces
	Skipped   []string // already convex
	Complex   []string // no decomposition found; manual fix required
	NeedsFix  []string // not a closed 2D sphere
	Created   []int    // IDs of the pieces
}

// String summarises the counts.
func (r Report) String() string {
	return fmt.Sprintf("separated %d, skipped %d, complex %d, needs fix %d",
		len(r.Separated), len(r.Skipped), len(r.Complex), len(r.NeedsFix))
}

// Run decomposes the listed sectors (all sectors when ids is empty). Pieces
// are connected to each other and to the original neighbours. Failures other
// than the reported outcomes are aggregated into the returned error.
func Run(r *sector.Registry, ids []int, opt Options, copt connect.Options) (Report, error) {
	var rep Report
	var errs error
	if len(ids) == 0 {
		for _, s := range r.All() {
			ids = append(ids, s.ID)
		}
	}
	resolve := func(a, b *sector.Sector) error {
		_, err := connect.Resolve(a, b, copt)
		return err
	}
	for _, id := range ids {
		s, ok := r.Get(id)
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("%w: %d", sector.ErrNotFound, id))
			continue
		}
		created, err := Replace(r, s, opt, resolve)
		switch {
		case errors.Is(err, ErrNotSphere):
			rep.NeedsFix = append(rep.NeedsFix, s.Name)
			logger.Warn("sector is not a closed 2D sphere", zap.Int("sector", id), zap.String("name", s.Name))
		case errors.Is(err, ErrComplex):
			rep.Complex = append(rep.Complex, s.Name)
			logger.Warn("complex concave sector", zap.Int("sector", id), zap.String("name", s.Name), zap.Error(err))
		case err != nil:
			errs = multierr.Append(errs, fmt.Errorf("sector %d (%s): %w", id, s.Name, err))
			logger.Error("decomposition failed", zap.Int("sector", id), zap.Error(err))
		case len(created) == 0:
			rep.Skipped = append(rep.Skipped, s.Name)
		default:
			rep.Separated = append(rep.Separated, s.Name)
			for _, p := range created {
				rep.Created = append(rep.Created, p.ID)
			}
		}
	}
	logger.Info("decomposition finished",
		zap.Int("separated", len(rep.Separated)),
		zap.Int("skipped", len(rep.Skipped)),
		zap.Int("complex", len(rep.Complex)),
		zap.Int("needs_fix", len(rep.NeedsFix)))
	return rep, errs
}
