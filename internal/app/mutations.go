package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/playcore/tally/internal/domain/model"
)

// All relation mutations below run through the write-scope coordinator:
// the statistics record is materialized first, the relation row and its
// incremental counter delta land together, and the record is marked
// dirty so the sweep re-derives the exact value within the grace bound.
// Feature code never mutates counter state outside this path.

// CreateUser stores a new user. Statistics are created lazily on the
// first tracked action, not here.
func (s *Service) CreateUser(ctx context.Context, name string) (model.User, error) {
	user := model.User{ID: uuid.New(), Name: name, CreatedAt: s.now()}
	if err := s.store.PutUser(ctx, user); err != nil {
		return model.User{}, err
	}
	return user, nil
}

// PublishLevel stores a new level and its publication relation. This is
// one of the creation paths that materializes the level's statistics
// record immediately rather than deferring to the first action.
func (s *Service) PublishLevel(ctx context.Context, publisher model.User, title string) (model.Level, error) {
	level := model.Level{ID: uuid.New(), PublisherID: publisher.ID, Title: title, CreatedAt: s.now()}
	err := s.stats.WithStatsPair(ctx, level, publisher, func(ctx context.Context) error {
		if err := s.store.PutLevel(ctx, level); err != nil {
			return err
		}
		if err := s.store.InsertRelation(ctx, model.Relation{
			Kind:      model.RelationPublishedLevel,
			SubjectID: publisher.ID,
			ActorID:   publisher.ID,
			TargetID:  level.ID,
		}); err != nil {
			return err
		}
		return s.stats.ApplyDelta(ctx, publisher, func(c *model.Counters) { c.LevelCount++ })
	})
	if err != nil {
		return model.Level{}, err
	}
	return level, nil
}

// DeleteLevel removes a level, cascading to its relations, scores,
// events, challenges and statistics record.
func (s *Service) DeleteLevel(ctx context.Context, level model.Level) error {
	return s.store.DeleteLevel(ctx, level.ID)
}

// CreatePlaylist stores a new playlist and its publication relation.
func (s *Service) CreatePlaylist(ctx context.Context, owner model.User, name string) (model.Playlist, error) {
	playlist := model.Playlist{ID: uuid.New(), PublisherID: owner.ID, Name: name, CreatedAt: s.now()}
	err := s.stats.WithStatsPair(ctx, playlist, owner, func(ctx context.Context) error {
		if err := s.store.PutPlaylist(ctx, playlist); err != nil {
			return err
		}
		if err := s.store.InsertRelation(ctx, model.Relation{
			Kind:      model.RelationPublishedPlaylist,
			SubjectID: owner.ID,
			ActorID:   owner.ID,
			TargetID:  playlist.ID,
		}); err != nil {
			return err
		}
		return s.stats.ApplyDelta(ctx, owner, func(c *model.Counters) { c.PlaylistCount++ })
	})
	if err != nil {
		return model.Playlist{}, err
	}
	return playlist, nil
}

// CreateChallenge stores a new challenge on a level. Challenges carry
// scores only and own no statistics record.
func (s *Service) CreateChallenge(ctx context.Context, level model.Level, name string) (model.Challenge, error) {
	challenge := model.Challenge{
		ID:          uuid.New(),
		LevelID:     level.ID,
		PublisherID: level.PublisherID,
		Name:        name,
		CreatedAt:   s.now(),
	}
	if err := s.store.PutChallenge(ctx, challenge); err != nil {
		return model.Challenge{}, err
	}
	return challenge, nil
}

// favourite inserts one favourite row and bumps both sides, unless the
// actor already favourited the subject (idempotent no-op).
func (s *Service) favourite(ctx context.Context, kind model.RelationKind, subject model.Subject, user model.User) error {
	subjectID := subject.SubjectID()
	return s.stats.WithStatsPair(ctx, subject, user, func(ctx context.Context) error {
		f := model.RelationFilter{Kind: kind, SubjectID: &subjectID, ActorID: &user.ID}
		exists, err := s.store.RelationExists(ctx, f)
		if err != nil || exists {
			return err
		}
		if err := s.store.InsertRelation(ctx, model.Relation{
			Kind:      kind,
			SubjectID: subjectID,
			ActorID:   user.ID,
		}); err != nil {
			return err
		}
		if err := s.stats.ApplyDelta(ctx, subject, func(c *model.Counters) { c.FavouriteCount++ }); err != nil {
			return err
		}
		return s.stats.ApplyDelta(ctx, user, func(c *model.Counters) { c.FavouriteCount++ })
	})
}

// unfavourite removes the favourite row and decrements both sides.
func (s *Service) unfavourite(ctx context.Context, kind model.RelationKind, subject model.Subject, user model.User) error {
	subjectID := subject.SubjectID()
	return s.stats.WithStatsPair(ctx, subject, user, func(ctx context.Context) error {
		f := model.RelationFilter{Kind: kind, SubjectID: &subjectID, ActorID: &user.ID}
		removed, err := s.store.RemoveRelations(ctx, f)
		if err != nil || removed == 0 {
			return err
		}
		if err := s.stats.ApplyDelta(ctx, subject, func(c *model.Counters) { c.FavouriteCount-- }); err != nil {
			return err
		}
		return s.stats.ApplyDelta(ctx, user, func(c *model.Counters) { c.FavouriteCount-- })
	})
}

// FavouriteLevel records user favouriting level; touches both the
// level's and the user's statistics in one unit.
func (s *Service) FavouriteLevel(ctx context.Context, user model.User, level model.Level) error {
	return s.favourite(ctx, model.RelationFavouriteLevel, level, user)
}

// UnfavouriteLevel removes the favourite.
func (s *Service) UnfavouriteLevel(ctx context.Context, user model.User, level model.Level) error {
	return s.unfavourite(ctx, model.RelationFavouriteLevel, level, user)
}

// FavouriteUser records user favouriting another user.
func (s *Service) FavouriteUser(ctx context.Context, user, target model.User) error {
	return s.favourite(ctx, model.RelationFavouriteUser, target, user)
}

// UnfavouriteUser removes the favourite.
func (s *Service) UnfavouriteUser(ctx context.Context, user, target model.User) error {
	return s.unfavourite(ctx, model.RelationFavouriteUser, target, user)
}

// FavouritePlaylist records user favouriting a playlist.
func (s *Service) FavouritePlaylist(ctx context.Context, user model.User, playlist model.Playlist) error {
	return s.favourite(ctx, model.RelationFavouritePlaylist, playlist, user)
}

// UnfavouritePlaylist removes the favourite.
func (s *Service) UnfavouritePlaylist(ctx context.Context, user model.User, playlist model.Playlist) error {
	return s.unfavourite(ctx, model.RelationFavouritePlaylist, playlist, user)
}

// PlayLevel records one play of the level by the user. The first play
// by a given user also lands a unique-play row; the unique-play counter
// delta is skipped for the level's own publisher to match the
// exclude-publisher recompute variant.
func (s *Service) PlayLevel(ctx context.Context, user model.User, level model.Level) error {
	return s.stats.WithStats(ctx, level, func(ctx context.Context) error {
		if err := s.store.InsertRelation(ctx, model.Relation{
			Kind:      model.RelationPlay,
			SubjectID: level.ID,
			ActorID:   user.ID,
			Value:     1,
		}); err != nil {
			return err
		}
		if err := s.stats.ApplyDelta(ctx, level, func(c *model.Counters) { c.PlayCount++ }); err != nil {
			return err
		}

		f := model.RelationFilter{Kind: model.RelationUniquePlay, SubjectID: &level.ID, ActorID: &user.ID}
		played, err := s.store.RelationExists(ctx, f)
		if err != nil || played {
			return err
		}
		if err := s.store.InsertRelation(ctx, model.Relation{
			Kind:      model.RelationUniquePlay,
			SubjectID: level.ID,
			ActorID:   user.ID,
		}); err != nil {
			return err
		}
		if user.ID == level.PublisherID {
			return nil
		}
		return s.stats.ApplyDelta(ctx, level, func(c *model.Counters) { c.UniquePlayCount++ })
	})
}

// CompleteLevel records the user completing the level.
func (s *Service) CompleteLevel(ctx context.Context, user model.User, level model.Level) error {
	return s.stats.WithStats(ctx, level, func(ctx context.Context) error {
		if err := s.store.InsertRelation(ctx, model.Relation{
			Kind:      model.RelationCompletion,
			SubjectID: level.ID,
			ActorID:   user.ID,
		}); err != nil {
			return err
		}
		return s.stats.ApplyDelta(ctx, level, func(c *model.Counters) { c.CompletionCount++ })
	})
}

// ReviewLevel records a review of the level written by the user,
// bumping the level's and the reviewer's counters in one unit.
func (s *Service) ReviewLevel(ctx context.Context, user model.User, level model.Level) error {
	return s.stats.WithStatsPair(ctx, level, user, func(ctx context.Context) error {
		if err := s.store.InsertRelation(ctx, model.Relation{
			Kind:      model.RelationReview,
			SubjectID: level.ID,
			ActorID:   user.ID,
		}); err != nil {
			return err
		}
		if err := s.stats.ApplyDelta(ctx, level, func(c *model.Counters) { c.ReviewCount++ }); err != nil {
			return err
		}
		return s.stats.ApplyDelta(ctx, user, func(c *model.Counters) { c.ReviewCount++ })
	})
}

// CommentOnLevel records a comment on the level.
func (s *Service) CommentOnLevel(ctx context.Context, user model.User, level model.Level) error {
	return s.stats.WithStats(ctx, level, func(ctx context.Context) error {
		if err := s.store.InsertRelation(ctx, model.Relation{
			Kind:      model.RelationComment,
			SubjectID: level.ID,
			ActorID:   user.ID,
		}); err != nil {
			return err
		}
		return s.stats.ApplyDelta(ctx, level, func(c *model.Counters) { c.CommentCount++ })
	})
}

// CommentOnUser records a comment on the target user's profile.
func (s *Service) CommentOnUser(ctx context.Context, actor, target model.User) error {
	return s.stats.WithStats(ctx, target, func(ctx context.Context) error {
		if err := s.store.InsertRelation(ctx, model.Relation{
			Kind:      model.RelationComment,
			SubjectID: target.ID,
			ActorID:   actor.ID,
		}); err != nil {
			return err
		}
		return s.stats.ApplyDelta(ctx, target, func(c *model.Counters) { c.CommentCount++ })
	})
}

// PublishPhoto records a photo taken by the user in the level.
func (s *Service) PublishPhoto(ctx context.Context, user model.User, level model.Level) error {
	return s.stats.WithStatsPair(ctx, level, user, func(ctx context.Context) error {
		if err := s.store.InsertRelation(ctx, model.Relation{
			Kind:      model.RelationPhoto,
			SubjectID: level.ID,
			ActorID:   user.ID,
		}); err != nil {
			return err
		}
		if err := s.stats.ApplyDelta(ctx, level, func(c *model.Counters) { c.PhotoCount++ }); err != nil {
			return err
		}
		return s.stats.ApplyDelta(ctx, user, func(c *model.Counters) { c.PhotoCount++ })
	})
}

// RateLevel records the user's yay/boo rating of the level, replacing
// any previous rating by the same user. Karma is re-derived from the
// rating counters on every delta.
func (s *Service) RateLevel(ctx context.Context, user model.User, level model.Level, yay bool) error {
	return s.stats.WithStats(ctx, level, func(ctx context.Context) error {
		for _, kind := range []model.RelationKind{model.RelationRatingYay, model.RelationRatingBoo} {
			f := model.RelationFilter{Kind: kind, SubjectID: &level.ID, ActorID: &user.ID}
			removed, err := s.store.RemoveRelations(ctx, f)
			if err != nil {
				return err
			}
			if removed > 0 {
				kind := kind
				if err := s.stats.ApplyDelta(ctx, level, func(c *model.Counters) {
					if kind == model.RelationRatingYay {
						c.YayCount -= removed
					} else {
						c.BooCount -= removed
					}
				}); err != nil {
					return err
				}
			}
		}

		kind := model.RelationRatingBoo
		if yay {
			kind = model.RelationRatingYay
		}
		if err := s.store.InsertRelation(ctx, model.Relation{
			Kind:      kind,
			SubjectID: level.ID,
			ActorID:   user.ID,
		}); err != nil {
			return err
		}
		return s.stats.ApplyDelta(ctx, level, func(c *model.Counters) {
			if yay {
				c.YayCount++
			} else {
				c.BooCount++
			}
		})
	})
}

// QueueLevel adds the level to the user's play queue.
func (s *Service) QueueLevel(ctx context.Context, user model.User, level model.Level) error {
	return s.stats.WithStats(ctx, user, func(ctx context.Context) error {
		f := model.RelationFilter{Kind: model.RelationQueue, SubjectID: &level.ID, ActorID: &user.ID}
		exists, err := s.store.RelationExists(ctx, f)
		if err != nil || exists {
			return err
		}
		if err := s.store.InsertRelation(ctx, model.Relation{
			Kind:      model.RelationQueue,
			SubjectID: level.ID,
			ActorID:   user.ID,
		}); err != nil {
			return err
		}
		return s.stats.ApplyDelta(ctx, user, func(c *model.Counters) { c.QueueCount++ })
	})
}

// DequeueLevel removes the level from the user's play queue.
func (s *Service) DequeueLevel(ctx context.Context, user model.User, level model.Level) error {
	return s.stats.WithStats(ctx, user, func(ctx context.Context) error {
		f := model.RelationFilter{Kind: model.RelationQueue, SubjectID: &level.ID, ActorID: &user.ID}
		removed, err := s.store.RemoveRelations(ctx, f)
		if err != nil || removed == 0 {
			return err
		}
		return s.stats.ApplyDelta(ctx, user, func(c *model.Counters) { c.QueueCount -= removed })
	})
}

// AddLevelToPlaylist appends a level to the playlist.
func (s *Service) AddLevelToPlaylist(ctx context.Context, playlist model.Playlist, level model.Level) error {
	return s.stats.WithStats(ctx, playlist, func(ctx context.Context) error {
		if err := s.store.InsertRelation(ctx, model.Relation{
			Kind:      model.RelationPlaylistLevel,
			SubjectID: playlist.ID,
			ActorID:   playlist.PublisherID,
			TargetID:  level.ID,
		}); err != nil {
			return err
		}
		return s.stats.ApplyDelta(ctx, playlist, func(c *model.Counters) { c.LevelCount++ })
	})
}

// AddSubPlaylist links child under parent, bumping the parent's
// sub-playlist counter and the child's parent counter in one unit.
func (s *Service) AddSubPlaylist(ctx context.Context, parent, child model.Playlist) error {
	return s.stats.WithStatsPair(ctx, parent, child, func(ctx context.Context) error {
		if err := s.store.InsertRelation(ctx, model.Relation{
			Kind:      model.RelationPlaylistLink,
			SubjectID: parent.ID,
			ActorID:   parent.PublisherID,
			TargetID:  child.ID,
		}); err != nil {
			return err
		}
		if err := s.stats.ApplyDelta(ctx, parent, func(c *model.Counters) { c.SubPlaylistCount++ }); err != nil {
			return err
		}
		return s.stats.ApplyDelta(ctx, child, func(c *model.Counters) { c.ParentPlaylistCount++ })
	})
}
