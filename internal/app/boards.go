package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/playcore/tally/internal/adapters/memstore"
	"github.com/playcore/tally/internal/domain/model"
	"github.com/playcore/tally/internal/domain/page"
	"github.com/playcore/tally/internal/domain/ranking"
	"github.com/playcore/tally/pkg/metrics"
)

// SubmitScore persists a score on a level board, records the submission
// event, bumps the level's play counter through the write scope, and
// returns the centered window around the new score.
//
// When the new score takes rank 1 from a different player whose value
// was positive, every player on the overtaken score is notified. The
// positive-value guard keeps an all-zero board from spamming
// notifications. A failed submission is reported back to the submitting
// player through the notification sink rather than silently dropped.
func (s *Service) SubmitScore(ctx context.Context, levelID uuid.UUID, scoreType model.ScoreType, value int64, playerIDs []uuid.UUID) (model.Score, page.Page[ranking.Entry], error) {
	if len(playerIDs) == 0 {
		return model.Score{}, page.Empty[ranking.Entry](), ErrNoPlayers
	}
	level, ok, err := s.store.Level(ctx, levelID)
	if err != nil {
		return model.Score{}, page.Empty[ranking.Entry](), err
	}
	if !ok {
		return model.Score{}, page.Empty[ranking.Entry](), ErrSubjectNotFound
	}

	prior, err := s.store.ScoresFor(ctx, level.ID, scoreType)
	if err != nil {
		return model.Score{}, page.Empty[ranking.Entry](), err
	}
	prevTop, hadPrev := ranking.Top(ranking.Rank(prior))

	score := model.Score{
		ID:        uuid.New(),
		SubjectID: level.ID,
		Type:      scoreType,
		Value:     value,
		PlayerIDs: playerIDs,
		CreatedAt: s.now(),
	}
	err = s.stats.WithStats(ctx, level, func(ctx context.Context) error {
		if err := s.store.AddScore(ctx, score); err != nil {
			return err
		}
		if err := s.store.AppendEvent(ctx, model.Event{
			Kind:      model.EventScoreSubmitted,
			ActorID:   score.PrimaryPlayer(),
			SubjectID: level.ID,
			ScoreID:   score.ID,
		}); err != nil {
			return err
		}
		// A submitted score is a completed play.
		if err := s.store.InsertRelation(ctx, model.Relation{
			Kind:      model.RelationPlay,
			SubjectID: level.ID,
			ActorID:   score.PrimaryPlayer(),
			Value:     1,
		}); err != nil {
			return err
		}
		return s.stats.ApplyDelta(ctx, level, func(c *model.Counters) { c.PlayCount++ })
	})
	if err != nil {
		s.notifyAsync(ctx, model.Notification{
			RecipientID: score.PrimaryPlayer(),
			Title:       "Score submission failed",
			Text:        fmt.Sprintf("Your score of %d on %s could not be recorded.", value, level.Title),
			Icon:        "error",
		})
		return model.Score{}, page.Empty[ranking.Entry](), err
	}
	metrics.RecordScoreSubmitted("level")

	window, ranked, werr := s.windowAround(ctx, level.ID, scoreType, score.ID, s.windowSize)
	if werr != nil {
		return score, page.Empty[ranking.Entry](), werr
	}

	s.notifyOvertaken(ctx, prevTop, hadPrev, ranked, score,
		fmt.Sprintf("Your #1 spot on %s has been taken.", level.Title))
	return score, window, nil
}

// notifyOvertaken applies the overtake guard and notifies every player
// on the previous rank-1 score: the new score must hold rank 1, the
// previous leader must be a different player, and the previous value
// must be positive.
func (s *Service) notifyOvertaken(ctx context.Context, prevTop ranking.Entry, hadPrev bool, ranked []ranking.Entry, submitted model.Score, text string) {
	if !hadPrev || prevTop.Score.Value <= 0 {
		return
	}
	newTop, ok := ranking.Top(ranked)
	if !ok || newTop.Score.ID != submitted.ID {
		return
	}
	if prevTop.Score.PrimaryPlayer() == submitted.PrimaryPlayer() {
		return
	}
	for _, player := range prevTop.Score.PlayerIDs {
		s.notifyAsync(ctx, model.Notification{
			RecipientID: player,
			Title:       "You've been overtaken!",
			Text:        text,
			Icon:        "trophy",
		})
	}
	metrics.RecordOvertakeNotification()
}

// windowAround computes the deduplicated board and the size-wide window
// centered on scoreID. A score that was deduplicated off the board (the
// player already holds a better one) yields an empty window.
func (s *Service) windowAround(ctx context.Context, subjectID uuid.UUID, scoreType model.ScoreType, scoreID uuid.UUID, size int) (page.Page[ranking.Entry], []ranking.Entry, error) {
	scores, err := s.store.ScoresFor(ctx, subjectID, scoreType)
	if err != nil {
		return page.Empty[ranking.Entry](), nil, err
	}
	ranked := ranking.Rank(scores)
	window, start, err := ranking.Window(ranked, scoreID, size)
	if err != nil {
		if errors.Is(err, ranking.ErrScoreNotRanked) {
			return page.Empty[ranking.Entry](), ranked, nil
		}
		return page.Empty[ranking.Entry](), ranked, err
	}
	return page.FromPartial(window, len(ranked), start, size), ranked, nil
}

// RankedHighScores returns one page of the deduplicated, descending
// board for a (subject, scoreType) pair.
func (s *Service) RankedHighScores(ctx context.Context, subjectID uuid.UUID, scoreType model.ScoreType, skip, count int) (page.Page[ranking.Entry], error) {
	scores, err := s.store.ScoresFor(ctx, subjectID, scoreType)
	if err != nil {
		return page.Empty[ranking.Entry](), err
	}
	return page.FromSlice(ranking.Rank(scores), skip, count), nil
}

// TopScores returns one page of the board, optionally keeping every row
// instead of deduplicating per player (raw/administrative views).
func (s *Service) TopScores(ctx context.Context, subjectID uuid.UUID, scoreType model.ScoreType, includeDuplicates bool, skip, count int) (page.Page[ranking.Entry], error) {
	scores, err := s.store.ScoresFor(ctx, subjectID, scoreType)
	if err != nil {
		return page.Empty[ranking.Entry](), err
	}
	if includeDuplicates {
		return page.FromSlice(ranking.RankWithDuplicates(scores), skip, count), nil
	}
	return page.FromSlice(ranking.Rank(scores), skip, count), nil
}

// ScoreWindow returns the size-wide window of the board centered on an
// existing score. size must be odd and positive.
func (s *Service) ScoreWindow(ctx context.Context, scoreID uuid.UUID, size int) (page.Page[ranking.Entry], error) {
	if size <= 0 || size%2 == 0 {
		return page.Empty[ranking.Entry](), ranking.ErrWindowSize
	}
	score, ok, err := s.store.Score(ctx, scoreID)
	if err != nil {
		return page.Empty[ranking.Entry](), err
	}
	if !ok {
		return page.Empty[ranking.Entry](), ErrScoreNotFound
	}
	window, _, err := s.windowAround(ctx, score.SubjectID, score.Type, scoreID, size)
	return window, err
}

// ScoresByMutualPlayers returns the board restricted to scores whose
// primary player is the requesting player or one of their mutual
// connections (each has favourited the other). Ranks are renumbered
// 1..N over the restricted subset, not inherited from the global board.
func (s *Service) ScoresByMutualPlayers(ctx context.Context, subjectID, playerID uuid.UUID, scoreType model.ScoreType, skip, count int) (page.Page[ranking.Entry], error) {
	scores, err := s.store.ScoresFor(ctx, subjectID, scoreType)
	if err != nil {
		return page.Empty[ranking.Entry](), err
	}

	mutual := map[uuid.UUID]bool{playerID: true}
	filtered := scores[:0:0]
	for _, sc := range scores {
		primary := sc.PrimaryPlayer()
		include, known := mutual[primary]
		if !known {
			include, err = s.isMutual(ctx, playerID, primary)
			if err != nil {
				return page.Empty[ranking.Entry](), err
			}
			mutual[primary] = include
		}
		if include {
			filtered = append(filtered, sc)
		}
	}
	return page.FromSlice(ranking.Rank(filtered), skip, count), nil
}

// isMutual reports whether two players have each favourited the other.
func (s *Service) isMutual(ctx context.Context, a, b uuid.UUID) (bool, error) {
	forward := model.RelationFilter{Kind: model.RelationFavouriteUser, SubjectID: &b, ActorID: &a}
	ok, err := s.store.RelationExists(ctx, forward)
	if err != nil || !ok {
		return false, err
	}
	backward := model.RelationFilter{Kind: model.RelationFavouriteUser, SubjectID: &a, ActorID: &b}
	return s.store.RelationExists(ctx, backward)
}

// DeleteScore removes a score row and the events referencing it.
func (s *Service) DeleteScore(ctx context.Context, scoreID uuid.UUID) error {
	err := s.store.DeleteScore(ctx, scoreID)
	if errors.Is(err, memstore.ErrNotFound) {
		return ErrScoreNotFound
	}
	return err
}
