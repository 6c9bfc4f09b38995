package stats

import (
	"context"

	"github.com/playcore/tally/internal/domain/model"
)

// WithStats is the write-scope coordinator: it wraps a mutation with
// its statistics side effects as one storage unit. The sequence is
// ensure/recalculate-if-stale, then the mutation (relation write plus
// incremental counter delta), then mark-dirty — atomically, so a failed
// unit leaves no partial counter drift.
//
// There is deliberately no per-subject lock here: atomicity of a single
// unit comes from the backend, and the periodic exact recompute corrects
// any lost-update drift between concurrent deltas.
func (s *Store) WithStats(ctx context.Context, subject model.Subject, mutation func(ctx context.Context) error) error {
	return s.backend.Atomically(ctx, func(ctx context.Context) error {
		if err := s.RecalculateIfStale(ctx, subject); err != nil {
			return err
		}
		if err := mutation(ctx); err != nil {
			return err
		}
		return s.MarkDirty(ctx, subject)
	})
}

// WithStatsPair runs the same sequence for two subjects inside one
// unit, for mutations that touch both sides of a relation (favouriting
// a level updates the level's and the user's statistics).
func (s *Store) WithStatsPair(ctx context.Context, a, b model.Subject, mutation func(ctx context.Context) error) error {
	return s.backend.Atomically(ctx, func(ctx context.Context) error {
		if err := s.RecalculateIfStale(ctx, a); err != nil {
			return err
		}
		if err := s.RecalculateIfStale(ctx, b); err != nil {
			return err
		}
		if err := mutation(ctx); err != nil {
			return err
		}
		if err := s.MarkDirty(ctx, a); err != nil {
			return err
		}
		return s.MarkDirty(ctx, b)
	})
}
