// Package model contains domain entities passed between layers.
package model

import (
	"time"

	"github.com/google/uuid"
)

// SubjectKind discriminates the entities that own a statistics record.
type SubjectKind int

const (
	SubjectLevel SubjectKind = iota + 1
	SubjectUser
	SubjectPlaylist
)

// String returns a stable label for logging and metrics.
func (k SubjectKind) String() string {
	switch k {
	case SubjectLevel:
		return "level"
	case SubjectUser:
		return "user"
	case SubjectPlaylist:
		return "playlist"
	default:
		return "unknown"
	}
}

// Subject is implemented by entities that own a statistics record.
type Subject interface {
	SubjectID() uuid.UUID
	SubjectKind() SubjectKind
}

// Level is a playable level published by a user.
type Level struct {
	ID          uuid.UUID
	PublisherID uuid.UUID
	Title       string
	CreatedAt   time.Time
}

func (l Level) SubjectID() uuid.UUID     { return l.ID }
func (l Level) SubjectKind() SubjectKind { return SubjectLevel }

// User is a player account.
type User struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

func (u User) SubjectID() uuid.UUID     { return u.ID }
func (u User) SubjectKind() SubjectKind { return SubjectUser }

// Playlist is a curated collection of levels owned by a user.
type Playlist struct {
	ID          uuid.UUID
	PublisherID uuid.UUID
	Name        string
	CreatedAt   time.Time
}

func (p Playlist) SubjectID() uuid.UUID     { return p.ID }
func (p Playlist) SubjectKind() SubjectKind { return SubjectPlaylist }

// Challenge is a scored challenge attached to a level. Challenges carry
// scores only; they do not own a statistics record.
type Challenge struct {
	ID          uuid.UUID
	LevelID     uuid.UUID
	PublisherID uuid.UUID
	Name        string
	CreatedAt   time.Time
}

// RelationKind discriminates the raw relation rows the statistics engine
// aggregates over.
type RelationKind int

const (
	RelationFavouriteLevel RelationKind = iota + 1
	RelationFavouriteUser
	RelationFavouritePlaylist
	RelationPlay
	RelationUniquePlay
	RelationCompletion
	RelationReview
	RelationComment
	RelationPhoto
	RelationRatingYay
	RelationRatingBoo
	RelationQueue
	RelationPublishedLevel
	RelationPublishedPlaylist
	RelationPlaylistLevel
	RelationPlaylistLink
)

// Relation is one raw user-action row. SubjectID is the entity the row
// is attached to, ActorID the acting user, TargetID an optional
// secondary entity (e.g. the sub-playlist of a playlist link).
type Relation struct {
	ID        uuid.UUID
	Kind      RelationKind
	SubjectID uuid.UUID
	ActorID   uuid.UUID
	TargetID  uuid.UUID
	Value     int
	CreatedAt time.Time
}

// RelationFilter is the predicate vocabulary of the relation store:
// Kind is required, the identity fields are optional narrowing filters.
type RelationFilter struct {
	Kind           RelationKind
	SubjectID      *uuid.UUID
	ActorID        *uuid.UUID
	TargetID       *uuid.UUID
	ExcludeActorID *uuid.UUID
}

// ScoreType discriminates leaderboard boards on one subject, e.g.
// single-player vs. multi-player score counts.
type ScoreType byte

// Score is one submitted score row. PlayerIDs is ordered; the first
// entry is the submitting/primary player.
type Score struct {
	ID        uuid.UUID
	SubjectID uuid.UUID
	Type      ScoreType
	Value     int64
	PlayerIDs []uuid.UUID
	CreatedAt time.Time
}

// PrimaryPlayer returns the submitting player of the score.
func (s Score) PrimaryPlayer() uuid.UUID {
	if len(s.PlayerIDs) == 0 {
		return uuid.Nil
	}
	return s.PlayerIDs[0]
}

// EventKind discriminates recorded domain events.
type EventKind int

const (
	EventScoreSubmitted EventKind = iota + 1
	EventChallengeScoreSubmitted
)

// Event is an append-only domain event recorded for the activity feed.
// Deleting a score cascades to the events referencing it.
type Event struct {
	ID        uuid.UUID
	Kind      EventKind
	ActorID   uuid.UUID
	SubjectID uuid.UUID
	ScoreID   uuid.UUID
	CreatedAt time.Time
}

// Notification is a fire-and-forget message for a player.
type Notification struct {
	RecipientID uuid.UUID
	Title       string
	Text        string
	Icon        string
}

// StatsVersion is the current schema/logic version of the aggregation
// rules. Bumping it forces a global recompute through the sweep.
const StatsVersion = 3

// Counters is the fixed set of named counters of a statistics record.
// Which fields are populated depends on the subject kind:
//
//	level:    Favourite, Play, UniquePlay, Completion, Review, Comment,
//	          Photo, Yay, Boo, Karma
//	user:     Favourite, Comment, Photo, Level, Review, Queue, Playlist
//	playlist: Favourite, Level, SubPlaylist, ParentPlaylist
type Counters struct {
	FavouriteCount      int
	PlayCount           int
	UniquePlayCount     int
	CompletionCount     int
	ReviewCount         int
	CommentCount        int
	PhotoCount          int
	YayCount            int
	BooCount            int
	Karma               int
	LevelCount          int
	QueueCount          int
	PlaylistCount       int
	SubPlaylistCount    int
	ParentPlaylistCount int
}

// StatsRecord is the denormalized statistics aggregate of one subject.
// A nil RecalculateAt means the record is fresh; a set watermark means
// it is due for recompute no earlier than that time. A Version behind
// StatsVersion makes the record stale regardless of the watermark.
type StatsRecord struct {
	ID            uuid.UUID
	SubjectID     uuid.UUID
	Kind          SubjectKind
	Version       int
	RecalculateAt *time.Time
	Counters      Counters
}

// Stale reports whether the record must be recomputed before being
// trusted, evaluated at the given time.
func (r StatsRecord) Stale(now time.Time) bool {
	if r.Version != StatsVersion {
		return true
	}
	return r.RecalculateAt != nil && !r.RecalculateAt.After(now)
}
