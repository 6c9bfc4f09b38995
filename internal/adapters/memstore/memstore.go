package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/playcore/tally/internal/domain/model"
)

// MemStore implements Store with plain maps behind one RWMutex.
//
// Atomicity of a storage unit comes from holding the write lock for the
// whole unit and journaling undo actions; there are no finer-grained
// per-subject locks. Concurrent units on the same subject may interleave
// arbitrarily, which the statistics engine tolerates because exact
// recomputation re-derives counters from the rows, not the delta history.
type MemStore struct {
	mu sync.RWMutex

	levels     map[uuid.UUID]model.Level
	users      map[uuid.UUID]model.User
	playlists  map[uuid.UUID]model.Playlist
	challenges map[uuid.UUID]model.Challenge

	relations map[uuid.UUID]model.Relation
	scores    map[uuid.UUID]model.Score
	events    []model.Event

	// statsRecords is keyed by record id; statsLinks maps a subject id
	// to its linked record id. A record whose subject id has no link
	// entry is an orphan.
	statsRecords map[uuid.UUID]model.StatsRecord
	statsLinks   map[uuid.UUID]uuid.UUID

	now func() time.Time
}

// New creates an empty MemStore.
func New(opts ...Option) *MemStore {
	s := &MemStore{
		levels:       make(map[uuid.UUID]model.Level),
		users:        make(map[uuid.UUID]model.User),
		playlists:    make(map[uuid.UUID]model.Playlist),
		challenges:   make(map[uuid.UUID]model.Challenge),
		relations:    make(map[uuid.UUID]model.Relation),
		scores:       make(map[uuid.UUID]model.Score),
		statsRecords: make(map[uuid.UUID]model.StatsRecord),
		statsLinks:   make(map[uuid.UUID]uuid.UUID),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// tx journals undo actions for a storage unit in progress.
type tx struct {
	undo []func()
}

type txKey struct{}

func txFrom(ctx context.Context) *tx {
	t, _ := ctx.Value(txKey{}).(*tx)
	return t
}

// Atomically runs fn as one storage unit under the write lock. On error
// every journaled mutation is undone in reverse order, so no partial
// state is ever visible. A nested call joins the enclosing unit.
func (s *MemStore) Atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{}
	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
		return err
	}
	return nil
}

// readLocked runs fn under the read lock unless a unit already holds
// the write lock.
func (s *MemStore) readLocked(ctx context.Context, fn func()) {
	if txFrom(ctx) != nil {
		fn()
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn()
}

// writeLocked runs fn under the write lock, reusing the lock and the
// journal of an enclosing unit when present.
func (s *MemStore) writeLocked(ctx context.Context, fn func(t *tx)) {
	if t := txFrom(ctx); t != nil {
		fn(t)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(nil)
}

func record(t *tx, undo func()) {
	if t != nil {
		t.undo = append(t.undo, undo)
	}
}

// Subjects.

// PutLevel stores a level.
func (s *MemStore) PutLevel(ctx context.Context, level model.Level) error {
	s.writeLocked(ctx, func(t *tx) {
		prev, had := s.levels[level.ID]
		s.levels[level.ID] = level
		record(t, func() {
			if had {
				s.levels[level.ID] = prev
			} else {
				delete(s.levels, level.ID)
			}
		})
	})
	return nil
}

// Level loads a level by id.
func (s *MemStore) Level(ctx context.Context, id uuid.UUID) (model.Level, bool, error) {
	var (
		level model.Level
		ok    bool
	)
	s.readLocked(ctx, func() { level, ok = s.levels[id] })
	return level, ok, nil
}

// DeleteLevel removes a level and cascades to its relations, scores,
// events, attached challenges and statistics record.
func (s *MemStore) DeleteLevel(ctx context.Context, id uuid.UUID) error {
	return s.Atomically(ctx, func(ctx context.Context) error {
		t := txFrom(ctx)

		level, had := s.levels[id]
		if !had {
			return ErrNotFound
		}
		delete(s.levels, id)
		record(t, func() { s.levels[id] = level })

		s.removeRelationRows(t, func(r model.Relation) bool {
			return r.SubjectID == id || r.TargetID == id
		})
		s.removeScoreRows(t, func(sc model.Score) bool { return sc.SubjectID == id })

		for cid, ch := range s.challenges {
			if ch.LevelID != id {
				continue
			}
			cid, ch := cid, ch
			delete(s.challenges, cid)
			record(t, func() { s.challenges[cid] = ch })
			s.removeScoreRows(t, func(sc model.Score) bool { return sc.SubjectID == cid })
		}

		s.removeEventRows(t, func(e model.Event) bool { return e.SubjectID == id })
		s.deleteStatsRows(t, id)
		return nil
	})
}

// PutUser stores a user.
func (s *MemStore) PutUser(ctx context.Context, user model.User) error {
	s.writeLocked(ctx, func(t *tx) {
		prev, had := s.users[user.ID]
		s.users[user.ID] = user
		record(t, func() {
			if had {
				s.users[user.ID] = prev
			} else {
				delete(s.users, user.ID)
			}
		})
	})
	return nil
}

// User loads a user by id.
func (s *MemStore) User(ctx context.Context, id uuid.UUID) (model.User, bool, error) {
	var (
		user model.User
		ok   bool
	)
	s.readLocked(ctx, func() { user, ok = s.users[id] })
	return user, ok, nil
}

// PutPlaylist stores a playlist.
func (s *MemStore) PutPlaylist(ctx context.Context, playlist model.Playlist) error {
	s.writeLocked(ctx, func(t *tx) {
		prev, had := s.playlists[playlist.ID]
		s.playlists[playlist.ID] = playlist
		record(t, func() {
			if had {
				s.playlists[playlist.ID] = prev
			} else {
				delete(s.playlists, playlist.ID)
			}
		})
	})
	return nil
}

// Playlist loads a playlist by id.
func (s *MemStore) Playlist(ctx context.Context, id uuid.UUID) (model.Playlist, bool, error) {
	var (
		playlist model.Playlist
		ok       bool
	)
	s.readLocked(ctx, func() { playlist, ok = s.playlists[id] })
	return playlist, ok, nil
}

// PutChallenge stores a challenge.
func (s *MemStore) PutChallenge(ctx context.Context, challenge model.Challenge) error {
	s.writeLocked(ctx, func(t *tx) {
		prev, had := s.challenges[challenge.ID]
		s.challenges[challenge.ID] = challenge
		record(t, func() {
			if had {
				s.challenges[challenge.ID] = prev
			} else {
				delete(s.challenges, challenge.ID)
			}
		})
	})
	return nil
}

// Challenge loads a challenge by id.
func (s *MemStore) Challenge(ctx context.Context, id uuid.UUID) (model.Challenge, bool, error) {
	var (
		challenge model.Challenge
		ok        bool
	)
	s.readLocked(ctx, func() { challenge, ok = s.challenges[id] })
	return challenge, ok, nil
}

// Subject resolves any statistics-owning subject by id.
func (s *MemStore) Subject(ctx context.Context, id uuid.UUID) (model.Subject, bool, error) {
	var (
		subject model.Subject
		ok      bool
	)
	s.readLocked(ctx, func() {
		if level, found := s.levels[id]; found {
			subject, ok = level, true
			return
		}
		if user, found := s.users[id]; found {
			subject, ok = user, true
			return
		}
		if playlist, found := s.playlists[id]; found {
			subject, ok = playlist, true
		}
	})
	return subject, ok, nil
}

// Relation rows.

func matches(r model.Relation, f model.RelationFilter) bool {
	if r.Kind != f.Kind {
		return false
	}
	if f.SubjectID != nil && r.SubjectID != *f.SubjectID {
		return false
	}
	if f.ActorID != nil && r.ActorID != *f.ActorID {
		return false
	}
	if f.TargetID != nil && r.TargetID != *f.TargetID {
		return false
	}
	if f.ExcludeActorID != nil && r.ActorID == *f.ExcludeActorID {
		return false
	}
	return true
}

// InsertRelation stores one relation row, stamping CreatedAt when unset.
func (s *MemStore) InsertRelation(ctx context.Context, r model.Relation) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	var err error
	s.writeLocked(ctx, func(t *tx) {
		if _, dup := s.relations[r.ID]; dup {
			err = ErrDuplicateID
			return
		}
		s.relations[r.ID] = r
		record(t, func() { delete(s.relations, r.ID) })
	})
	return err
}

// RemoveRelations deletes every row matching the filter and returns how
// many were removed.
func (s *MemStore) RemoveRelations(ctx context.Context, f model.RelationFilter) (int, error) {
	removed := 0
	s.writeLocked(ctx, func(t *tx) {
		removed = s.removeRelationRows(t, func(r model.Relation) bool { return matches(r, f) })
	})
	return removed, nil
}

// removeRelationRows deletes rows matching the predicate. Callers hold
// the write lock.
func (s *MemStore) removeRelationRows(t *tx, pred func(model.Relation) bool) int {
	removed := 0
	for id, r := range s.relations {
		if !pred(r) {
			continue
		}
		id, r := id, r
		delete(s.relations, id)
		record(t, func() { s.relations[id] = r })
		removed++
	}
	return removed
}

// RelationExists reports whether any row matches the filter.
func (s *MemStore) RelationExists(ctx context.Context, f model.RelationFilter) (bool, error) {
	found := false
	s.readLocked(ctx, func() {
		for _, r := range s.relations {
			if matches(r, f) {
				found = true
				return
			}
		}
	})
	return found, nil
}

// CountRelations counts rows matching the filter.
func (s *MemStore) CountRelations(ctx context.Context, f model.RelationFilter) (int, error) {
	n := 0
	s.readLocked(ctx, func() {
		for _, r := range s.relations {
			if matches(r, f) {
				n++
			}
		}
	})
	return n, nil
}

// SumRelations sums the Value field over rows matching the filter.
func (s *MemStore) SumRelations(ctx context.Context, f model.RelationFilter) (int, error) {
	sum := 0
	s.readLocked(ctx, func() {
		for _, r := range s.relations {
			if matches(r, f) {
				sum += r.Value
			}
		}
	})
	return sum, nil
}

// Score rows.

// AddScore stores one score row, stamping CreatedAt when unset.
func (s *MemStore) AddScore(ctx context.Context, score model.Score) error {
	if score.ID == uuid.Nil {
		score.ID = uuid.New()
	}
	if score.CreatedAt.IsZero() {
		score.CreatedAt = s.now()
	}
	var err error
	s.writeLocked(ctx, func(t *tx) {
		if _, dup := s.scores[score.ID]; dup {
			err = ErrDuplicateID
			return
		}
		s.scores[score.ID] = score
		record(t, func() { delete(s.scores, score.ID) })
	})
	return err
}

// Score loads a score row by id.
func (s *MemStore) Score(ctx context.Context, id uuid.UUID) (model.Score, bool, error) {
	var (
		score model.Score
		ok    bool
	)
	s.readLocked(ctx, func() { score, ok = s.scores[id] })
	return score, ok, nil
}

// DeleteScore removes a score row and every event referencing it.
func (s *MemStore) DeleteScore(ctx context.Context, id uuid.UUID) error {
	var err error
	s.writeLocked(ctx, func(t *tx) {
		score, had := s.scores[id]
		if !had {
			err = ErrNotFound
			return
		}
		delete(s.scores, id)
		record(t, func() { s.scores[id] = score })
		s.removeEventRows(t, func(e model.Event) bool { return e.ScoreID == id })
	})
	return err
}

func (s *MemStore) removeScoreRows(t *tx, pred func(model.Score) bool) {
	for id, sc := range s.scores {
		if !pred(sc) {
			continue
		}
		id, sc := id, sc
		delete(s.scores, id)
		record(t, func() { s.scores[id] = sc })
		s.removeEventRows(t, func(e model.Event) bool { return e.ScoreID == id })
	}
}

// ScoresFor returns every score row on one (subject, scoreType) board,
// ordered by submission time for determinism.
func (s *MemStore) ScoresFor(ctx context.Context, subjectID uuid.UUID, scoreType model.ScoreType) ([]model.Score, error) {
	var out []model.Score
	s.readLocked(ctx, func() {
		for _, sc := range s.scores {
			if sc.SubjectID == subjectID && sc.Type == scoreType {
				out = append(out, sc)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// Domain events.

// AppendEvent records a domain event, stamping CreatedAt when unset.
func (s *MemStore) AppendEvent(ctx context.Context, e model.Event) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	s.writeLocked(ctx, func(t *tx) {
		s.events = append(s.events, e)
		record(t, func() { s.events = s.events[:len(s.events)-1] })
	})
	return nil
}

// EventsFor returns the events recorded against one subject in order.
func (s *MemStore) EventsFor(ctx context.Context, subjectID uuid.UUID) ([]model.Event, error) {
	var out []model.Event
	s.readLocked(ctx, func() {
		for _, e := range s.events {
			if e.SubjectID == subjectID {
				out = append(out, e)
			}
		}
	})
	return out, nil
}

func (s *MemStore) removeEventRows(t *tx, pred func(model.Event) bool) {
	kept := s.events[:0:0]
	removedAny := false
	for _, e := range s.events {
		if pred(e) {
			removedAny = true
			continue
		}
		kept = append(kept, e)
	}
	if !removedAny {
		return
	}
	prev := s.events
	s.events = kept
	record(t, func() { s.events = prev })
}

// Statistics records.

// LinkedStats loads the record linked to a subject.
func (s *MemStore) LinkedStats(ctx context.Context, subjectID uuid.UUID) (model.StatsRecord, bool, error) {
	var (
		rec model.StatsRecord
		ok  bool
	)
	s.readLocked(ctx, func() {
		recID, linked := s.statsLinks[subjectID]
		if !linked {
			return
		}
		rec, ok = s.statsRecords[recID]
	})
	return rec, ok, nil
}

// OrphanedStats loads a record stored for the subject id without a link.
func (s *MemStore) OrphanedStats(ctx context.Context, subjectID uuid.UUID) (model.StatsRecord, bool, error) {
	var (
		rec model.StatsRecord
		ok  bool
	)
	s.readLocked(ctx, func() {
		if _, linked := s.statsLinks[subjectID]; linked {
			return
		}
		for _, candidate := range s.statsRecords {
			if candidate.SubjectID == subjectID {
				rec, ok = candidate, true
				return
			}
		}
	})
	return rec, ok, nil
}

// CreateStats stores a new record and links it to its subject.
func (s *MemStore) CreateStats(ctx context.Context, rec model.StatsRecord) error {
	var err error
	s.writeLocked(ctx, func(t *tx) {
		if _, dup := s.statsRecords[rec.ID]; dup {
			err = ErrDuplicateID
			return
		}
		if _, linked := s.statsLinks[rec.SubjectID]; linked {
			err = ErrAlreadyLinked
			return
		}
		s.statsRecords[rec.ID] = rec
		s.statsLinks[rec.SubjectID] = rec.ID
		record(t, func() {
			delete(s.statsRecords, rec.ID)
			delete(s.statsLinks, rec.SubjectID)
		})
	})
	return err
}

// LinkStats links an existing orphaned record to its subject.
func (s *MemStore) LinkStats(ctx context.Context, subjectID uuid.UUID) error {
	var err error
	s.writeLocked(ctx, func(t *tx) {
		if _, linked := s.statsLinks[subjectID]; linked {
			err = ErrAlreadyLinked
			return
		}
		for id, candidate := range s.statsRecords {
			if candidate.SubjectID != subjectID {
				continue
			}
			s.statsLinks[subjectID] = id
			record(t, func() { delete(s.statsLinks, subjectID) })
			return
		}
		err = ErrNotFound
	})
	return err
}

// SaveStats persists a mutated record.
func (s *MemStore) SaveStats(ctx context.Context, rec model.StatsRecord) error {
	var err error
	s.writeLocked(ctx, func(t *tx) {
		prev, had := s.statsRecords[rec.ID]
		if !had {
			err = ErrNotFound
			return
		}
		s.statsRecords[rec.ID] = rec
		record(t, func() { s.statsRecords[rec.ID] = prev })
	})
	return err
}

// StaleStats returns every record due for recompute at now or carrying
// an outdated version.
func (s *MemStore) StaleStats(ctx context.Context, now time.Time, version int) ([]model.StatsRecord, error) {
	var out []model.StatsRecord
	s.readLocked(ctx, func() {
		for _, rec := range s.statsRecords {
			due := rec.RecalculateAt != nil && !rec.RecalculateAt.After(now)
			if due || rec.Version != version {
				out = append(out, rec)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubjectID.String() < out[j].SubjectID.String()
	})
	return out, nil
}

// deleteStatsRows removes the record and link of a subject. Callers
// hold the write lock.
func (s *MemStore) deleteStatsRows(t *tx, subjectID uuid.UUID) {
	recID, linked := s.statsLinks[subjectID]
	if linked {
		delete(s.statsLinks, subjectID)
		record(t, func() { s.statsLinks[subjectID] = recID })
	}
	for id, rec := range s.statsRecords {
		if rec.SubjectID != subjectID {
			continue
		}
		id, rec := id, rec
		delete(s.statsRecords, id)
		record(t, func() { s.statsRecords[id] = rec })
	}
}

// Unlink drops the link between a subject and its record while keeping
// the record itself, leaving an orphan behind. Tests use this to stage
// the stale-read anomaly EnsureCreated repairs.
func (s *MemStore) Unlink(ctx context.Context, subjectID uuid.UUID) error {
	var err error
	s.writeLocked(ctx, func(t *tx) {
		recID, linked := s.statsLinks[subjectID]
		if !linked {
			err = ErrNotFound
			return
		}
		delete(s.statsLinks, subjectID)
		record(t, func() { s.statsLinks[subjectID] = recID })
	})
	return err
}
