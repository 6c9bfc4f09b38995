// Package stats implements the lazy, self-healing denormalized
// statistics engine: per-subject counter records with a versioned
// recompute watermark, maintained by incremental deltas and repaired by
// exact recomputation from the raw relation rows.
package stats

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/playcore/tally/internal/domain/model"
	"github.com/playcore/tally/pkg/logger"
	"github.com/playcore/tally/pkg/metrics"
)

// defaultGracePeriod bounds staleness: a record marked dirty becomes
// eligible for recompute this long after the first uncounted mutation.
const defaultGracePeriod = 5 * time.Minute

// Backend is the storage capability set the engine runs against. The
// engine never assumes a particular storage engine, only these
// operations, each scoped to subject identities.
type Backend interface {
	// CountRelations counts relation rows matching the filter.
	CountRelations(ctx context.Context, f model.RelationFilter) (int, error)

	// SumRelations sums the Value field over rows matching the filter.
	SumRelations(ctx context.Context, f model.RelationFilter) (int, error)

	// LinkedStats loads the statistics record linked to a subject.
	LinkedStats(ctx context.Context, subjectID uuid.UUID) (model.StatsRecord, bool, error)

	// OrphanedStats loads a statistics record that exists for the
	// subject id without being linked to it.
	OrphanedStats(ctx context.Context, subjectID uuid.UUID) (model.StatsRecord, bool, error)

	// CreateStats stores a new record and links it to its subject.
	CreateStats(ctx context.Context, rec model.StatsRecord) error

	// LinkStats links an existing orphaned record to its subject.
	LinkStats(ctx context.Context, subjectID uuid.UUID) error

	// SaveStats persists a mutated record.
	SaveStats(ctx context.Context, rec model.StatsRecord) error

	// StaleStats returns every record whose watermark is due at now or
	// whose version differs from the given one.
	StaleStats(ctx context.Context, now time.Time, version int) ([]model.StatsRecord, error)

	// Subject resolves the owning subject of a statistics record.
	Subject(ctx context.Context, id uuid.UUID) (model.Subject, bool, error)

	// Atomically runs fn as one storage unit: either every write inside
	// fn commits or none do.
	Atomically(ctx context.Context, fn func(ctx context.Context) error) error
}

// EnsureResult distinguishes the three outcomes of EnsureCreated, so
// callers and tests can tell the anomaly-repair path from normal lazy
// creation.
type EnsureResult int

const (
	// EnsureAlreadyPresent means the subject already had a linked record.
	EnsureAlreadyPresent EnsureResult = iota

	// EnsureCreatedNew means a zero-valued record was allocated.
	EnsureCreatedNew

	// EnsureRepaired means an orphaned record was found and relinked.
	EnsureRepaired
)

// Store is the statistics engine. All mutations of statistics records
// go through it; feature code never touches counter state directly.
type Store struct {
	backend Backend
	grace   time.Duration
	now     func() time.Time
	log     logger.Logger
}

// New constructs a Store over the given backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		grace:   defaultGracePeriod,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("stats")
	}
	return s
}

// EnsureCreated guarantees the subject holds a statistics record.
//
// If a linked record exists this is a no-op. Otherwise an orphaned
// record for the subject id is searched for first; finding one is a
// stale-read anomaly that is repaired by linking rather than creating a
// duplicate. Only when neither exists is a fresh zero-valued record
// allocated at the current schema version.
func (s *Store) EnsureCreated(ctx context.Context, subject model.Subject) (EnsureResult, error) {
	id := subject.SubjectID()

	if _, ok, err := s.backend.LinkedStats(ctx, id); err != nil {
		return EnsureAlreadyPresent, err
	} else if ok {
		return EnsureAlreadyPresent, nil
	}

	if _, ok, err := s.backend.OrphanedStats(ctx, id); err != nil {
		return EnsureAlreadyPresent, err
	} else if ok {
		// Self-correct silently; surfaced only through debug logging
		// and the repair counter.
		s.log.Debug(ctx, "statistics record existed without subject link; relinking",
			logger.String("subject", id.String()),
			logger.String("kind", subject.SubjectKind().String()),
		)
		metrics.RecordAnomalyRepair()
		if err := s.backend.LinkStats(ctx, id); err != nil {
			return EnsureAlreadyPresent, err
		}
		return EnsureRepaired, nil
	}

	rec := model.StatsRecord{
		ID:        uuid.New(),
		SubjectID: id,
		Kind:      subject.SubjectKind(),
		Version:   model.StatsVersion,
	}
	if err := s.backend.CreateStats(ctx, rec); err != nil {
		return EnsureAlreadyPresent, err
	}
	metrics.RecordStatsCreated()
	return EnsureCreatedNew, nil
}

// Recalculate forces an exact recomputation of every counter from the
// live relation rows, regardless of dirty state. On success the record
// is fresh: watermark cleared, version current.
func (s *Store) Recalculate(ctx context.Context, subject model.Subject) error {
	if _, err := s.EnsureCreated(ctx, subject); err != nil {
		return err
	}
	return s.recalculate(ctx, subject)
}

// RecalculateIfStale is the lazy-initialization path: it recomputes
// only when EnsureCreated actually allocated a fresh record. A record
// that already existed is trusted until its watermark fires.
func (s *Store) RecalculateIfStale(ctx context.Context, subject model.Subject) error {
	res, err := s.EnsureCreated(ctx, subject)
	if err != nil {
		return err
	}
	if res != EnsureCreatedNew {
		return nil
	}
	return s.recalculate(ctx, subject)
}

// MarkDirty sets the recompute watermark to now plus the grace period,
// unless one is already pending. Repeated marks inside the grace window
// never push the watermark further out, which bounds staleness to the
// grace period after the first uncounted mutation.
func (s *Store) MarkDirty(ctx context.Context, subject model.Subject) error {
	rec, ok, err := s.backend.LinkedStats(ctx, subject.SubjectID())
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoStats
	}
	if rec.RecalculateAt != nil {
		return nil
	}
	at := s.now().Add(s.grace)
	rec.RecalculateAt = &at
	metrics.RecordDirtyMark()
	return s.backend.SaveStats(ctx, rec)
}

// Record returns the statistics record currently linked to the subject.
func (s *Store) Record(ctx context.Context, subject model.Subject) (model.StatsRecord, error) {
	rec, ok, err := s.backend.LinkedStats(ctx, subject.SubjectID())
	if err != nil {
		return model.StatsRecord{}, err
	}
	if !ok {
		return model.StatsRecord{}, ErrNoStats
	}
	return rec, nil
}

// FindStatisticsNeedingUpdate returns every record whose watermark is
// due or whose version is behind the current schema version. It is
// polled by the sweep, which recalculates each hit.
func (s *Store) FindStatisticsNeedingUpdate(ctx context.Context) ([]model.StatsRecord, error) {
	return s.backend.StaleStats(ctx, s.now(), model.StatsVersion)
}

// Sweep recalculates every record needing update and returns how many
// were repaired. Records whose subject no longer resolves are skipped;
// deletion cascades remove them separately.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	start := s.now()
	stale, err := s.FindStatisticsNeedingUpdate(ctx)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, rec := range stale {
		subject, ok, err := s.backend.Subject(ctx, rec.SubjectID)
		if err != nil {
			return repaired, err
		}
		if !ok {
			s.log.Warn(ctx, "stale statistics record has no subject; skipping",
				logger.String("subject", rec.SubjectID.String()),
			)
			continue
		}
		if err := s.Recalculate(ctx, subject); err != nil {
			return repaired, err
		}
		repaired++
	}

	metrics.RecordSweepRun()
	metrics.RecordSweepRecalculated(repaired)
	metrics.RecordSweepDuration(float64(s.now().Sub(start).Milliseconds()))
	return repaired, nil
}

// ApplyDelta applies an incremental counter mutation to the subject's
// record. Deltas are a latency optimization layered on top of exact
// recomputation, never the only correct path; the derived karma field
// is re-derived after every delta.
func (s *Store) ApplyDelta(ctx context.Context, subject model.Subject, delta func(*model.Counters)) error {
	rec, ok, err := s.backend.LinkedStats(ctx, subject.SubjectID())
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoStats
	}
	delta(&rec.Counters)
	rec.Counters.Karma = rec.Counters.YayCount - rec.Counters.BooCount
	return s.backend.SaveStats(ctx, rec)
}
