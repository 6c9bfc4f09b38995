package service

import (
	"context"
	"time"

	"github.com/playcore/tally/pkg/logger"
)

// runSweeper periodically recalculates every statistics record whose
// watermark is due or whose version is outdated. The sweep is the
// self-healing half of the hybrid counter design: incremental deltas
// keep reads immediately correct, the sweep repairs any drift within
// the grace period bound.
func (s *Service) runSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			repaired, err := s.stats.Sweep(ctx)
			if err != nil {
				s.log.Error(ctx, "statistics sweep failed", logger.Error(err))
				continue
			}
			if repaired > 0 {
				s.log.Debug(ctx, "statistics sweep completed",
					logger.Int("recalculated", repaired),
				)
			}
		}
	}
}

// SweepNow runs one sweep pass immediately, returning how many records
// were recalculated. Exposed for operational tooling and tests; the
// background loop uses the same path.
func (s *Service) SweepNow(ctx context.Context) (int, error) {
	return s.stats.Sweep(ctx)
}
