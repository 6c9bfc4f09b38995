package stats

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/playcore/tally/internal/domain/model"
	"github.com/playcore/tally/pkg/metrics"
)

// recalculate re-derives every counter of the subject's record from the
// live relation rows. This routine is the single source of truth for
// counter values; on success the watermark is cleared and the version
// stamped current.
func (s *Store) recalculate(ctx context.Context, subject model.Subject) error {
	start := s.now()

	rec, ok, err := s.backend.LinkedStats(ctx, subject.SubjectID())
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoStats
	}

	switch sub := subject.(type) {
	case model.Level:
		err = s.recalculateLevel(ctx, &rec, sub)
	case model.User:
		err = s.recalculateUser(ctx, &rec, sub)
	case model.Playlist:
		err = s.recalculatePlaylist(ctx, &rec, sub)
	default:
		err = fmt.Errorf("%w: %T", ErrUnknownSubject, subject)
	}
	if err != nil {
		return err
	}

	rec.RecalculateAt = nil
	rec.Version = model.StatsVersion
	if err := s.backend.SaveStats(ctx, rec); err != nil {
		return err
	}

	metrics.RecordRecalculation(subject.SubjectKind().String())
	metrics.RecordRecalculationDuration(float64(s.now().Sub(start).Milliseconds()))
	return nil
}

// recalculateLevel derives the level counters. The unique-play counter
// uses the exclude-publisher variant: plays by the level's own
// publisher do not count towards it. Publisher exclusion is a counter
// concern only; it composes independently of leaderboard dedup.
func (s *Store) recalculateLevel(ctx context.Context, rec *model.StatsRecord, level model.Level) error {
	id := level.ID
	c := model.Counters{}

	var err error
	if c.FavouriteCount, err = s.backend.CountRelations(ctx, subjectFilter(model.RelationFavouriteLevel, id)); err != nil {
		return err
	}
	if c.PlayCount, err = s.backend.SumRelations(ctx, subjectFilter(model.RelationPlay, id)); err != nil {
		return err
	}
	uniq := subjectFilter(model.RelationUniquePlay, id)
	uniq.ExcludeActorID = &level.PublisherID
	if c.UniquePlayCount, err = s.backend.CountRelations(ctx, uniq); err != nil {
		return err
	}
	if c.CompletionCount, err = s.backend.CountRelations(ctx, subjectFilter(model.RelationCompletion, id)); err != nil {
		return err
	}
	if c.ReviewCount, err = s.backend.CountRelations(ctx, subjectFilter(model.RelationReview, id)); err != nil {
		return err
	}
	if c.CommentCount, err = s.backend.CountRelations(ctx, subjectFilter(model.RelationComment, id)); err != nil {
		return err
	}
	if c.PhotoCount, err = s.backend.CountRelations(ctx, subjectFilter(model.RelationPhoto, id)); err != nil {
		return err
	}
	if c.YayCount, err = s.backend.CountRelations(ctx, subjectFilter(model.RelationRatingYay, id)); err != nil {
		return err
	}
	if c.BooCount, err = s.backend.CountRelations(ctx, subjectFilter(model.RelationRatingBoo, id)); err != nil {
		return err
	}
	c.Karma = c.YayCount - c.BooCount

	rec.Counters = c
	return nil
}

// recalculateUser derives the user counters. The favourite counter is
// the number of favourites the user has made, across all three
// favourite kinds.
func (s *Store) recalculateUser(ctx context.Context, rec *model.StatsRecord, user model.User) error {
	id := user.ID
	c := model.Counters{}

	favKinds := []model.RelationKind{
		model.RelationFavouriteLevel,
		model.RelationFavouriteUser,
		model.RelationFavouritePlaylist,
	}
	for _, kind := range favKinds {
		n, err := s.backend.CountRelations(ctx, actorFilter(kind, id))
		if err != nil {
			return err
		}
		c.FavouriteCount += n
	}

	var err error
	if c.CommentCount, err = s.backend.CountRelations(ctx, subjectFilter(model.RelationComment, id)); err != nil {
		return err
	}
	if c.PhotoCount, err = s.backend.CountRelations(ctx, actorFilter(model.RelationPhoto, id)); err != nil {
		return err
	}
	if c.LevelCount, err = s.backend.CountRelations(ctx, subjectFilter(model.RelationPublishedLevel, id)); err != nil {
		return err
	}
	if c.ReviewCount, err = s.backend.CountRelations(ctx, actorFilter(model.RelationReview, id)); err != nil {
		return err
	}
	if c.QueueCount, err = s.backend.CountRelations(ctx, actorFilter(model.RelationQueue, id)); err != nil {
		return err
	}
	if c.PlaylistCount, err = s.backend.CountRelations(ctx, subjectFilter(model.RelationPublishedPlaylist, id)); err != nil {
		return err
	}

	rec.Counters = c
	return nil
}

// recalculatePlaylist derives the playlist counters.
func (s *Store) recalculatePlaylist(ctx context.Context, rec *model.StatsRecord, playlist model.Playlist) error {
	id := playlist.ID
	c := model.Counters{}

	var err error
	if c.FavouriteCount, err = s.backend.CountRelations(ctx, subjectFilter(model.RelationFavouritePlaylist, id)); err != nil {
		return err
	}
	if c.LevelCount, err = s.backend.CountRelations(ctx, subjectFilter(model.RelationPlaylistLevel, id)); err != nil {
		return err
	}
	if c.SubPlaylistCount, err = s.backend.CountRelations(ctx, subjectFilter(model.RelationPlaylistLink, id)); err != nil {
		return err
	}
	parents := model.RelationFilter{Kind: model.RelationPlaylistLink, TargetID: &id}
	if c.ParentPlaylistCount, err = s.backend.CountRelations(ctx, parents); err != nil {
		return err
	}

	rec.Counters = c
	return nil
}

func subjectFilter(kind model.RelationKind, subjectID uuid.UUID) model.RelationFilter {
	return model.RelationFilter{Kind: kind, SubjectID: &subjectID}
}

func actorFilter(kind model.RelationKind, actorID uuid.UUID) model.RelationFilter {
	return model.RelationFilter{Kind: kind, ActorID: &actorID}
}
