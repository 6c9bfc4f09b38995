// Package memstore provides the in-memory storage adapter backing the
// statistics and ranking engines. The relational engine proper is an
// external collaborator; this adapter implements the abstract relation
// capabilities (filter, count, sum, insert, remove) the core needs.
package memstore

import (
	"context"

	"github.com/google/uuid"

	"github.com/playcore/tally/internal/domain/model"
	"github.com/playcore/tally/internal/domain/stats"
)

// Store provides read/write access to the game state: subjects,
// relation rows, score rows, domain events and statistics records.
// It includes the statistics backend capability set, so one storage
// unit can cover relation writes and counter updates together.
type Store interface {
	stats.Backend

	// Subjects.
	PutLevel(ctx context.Context, level model.Level) error
	Level(ctx context.Context, id uuid.UUID) (model.Level, bool, error)
	DeleteLevel(ctx context.Context, id uuid.UUID) error
	PutUser(ctx context.Context, user model.User) error
	User(ctx context.Context, id uuid.UUID) (model.User, bool, error)
	PutPlaylist(ctx context.Context, playlist model.Playlist) error
	Playlist(ctx context.Context, id uuid.UUID) (model.Playlist, bool, error)
	PutChallenge(ctx context.Context, challenge model.Challenge) error
	Challenge(ctx context.Context, id uuid.UUID) (model.Challenge, bool, error)

	// Relation rows.
	InsertRelation(ctx context.Context, r model.Relation) error
	RemoveRelations(ctx context.Context, f model.RelationFilter) (int, error)
	RelationExists(ctx context.Context, f model.RelationFilter) (bool, error)

	// Score rows.
	AddScore(ctx context.Context, score model.Score) error
	Score(ctx context.Context, id uuid.UUID) (model.Score, bool, error)
	DeleteScore(ctx context.Context, id uuid.UUID) error
	ScoresFor(ctx context.Context, subjectID uuid.UUID, scoreType model.ScoreType) ([]model.Score, error)

	// Domain events.
	AppendEvent(ctx context.Context, e model.Event) error
	EventsFor(ctx context.Context, subjectID uuid.UUID) ([]model.Event, error)
}
