package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/playcore/tally/internal/domain/model"
	"github.com/playcore/tally/internal/domain/page"
	"github.com/playcore/tally/internal/domain/ranking"
	"github.com/playcore/tally/pkg/metrics"
)

// challengeScoreType is the single score type challenge boards use.
const challengeScoreType model.ScoreType = 0

// SubmitChallengeScore persists a score on a challenge board and
// returns the centered window around it. Challenges carry no statistics
// record of their own, so the write runs against the parent level's
// write scope to keep its play counter and watermark consistent.
//
// The very first score on a challenge never notifies anyone, regardless
// of the overtake guard: there is no leader to overtake. From the
// second score on, the level-board rules apply unchanged.
func (s *Service) SubmitChallengeScore(ctx context.Context, challengeID uuid.UUID, value int64, playerIDs []uuid.UUID) (model.Score, page.Page[ranking.Entry], error) {
	if len(playerIDs) == 0 {
		return model.Score{}, page.Empty[ranking.Entry](), ErrNoPlayers
	}
	challenge, ok, err := s.store.Challenge(ctx, challengeID)
	if err != nil {
		return model.Score{}, page.Empty[ranking.Entry](), err
	}
	if !ok {
		return model.Score{}, page.Empty[ranking.Entry](), ErrSubjectNotFound
	}
	level, ok, err := s.store.Level(ctx, challenge.LevelID)
	if err != nil {
		return model.Score{}, page.Empty[ranking.Entry](), err
	}
	if !ok {
		return model.Score{}, page.Empty[ranking.Entry](), ErrSubjectNotFound
	}

	prior, err := s.store.ScoresFor(ctx, challenge.ID, challengeScoreType)
	if err != nil {
		return model.Score{}, page.Empty[ranking.Entry](), err
	}
	firstEver := len(prior) == 0
	prevTop, hadPrev := ranking.Top(ranking.Rank(prior))

	score := model.Score{
		ID:        uuid.New(),
		SubjectID: challenge.ID,
		Type:      challengeScoreType,
		Value:     value,
		PlayerIDs: playerIDs,
		CreatedAt: s.now(),
	}
	err = s.stats.WithStats(ctx, level, func(ctx context.Context) error {
		if err := s.store.AddScore(ctx, score); err != nil {
			return err
		}
		if err := s.store.AppendEvent(ctx, model.Event{
			Kind:      model.EventChallengeScoreSubmitted,
			ActorID:   score.PrimaryPlayer(),
			SubjectID: challenge.ID,
			ScoreID:   score.ID,
		}); err != nil {
			return err
		}
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
			Text:        fmt.Sprintf("Your score of %d on %s could not be recorded.", value, challenge.Name),
			Icon:        "error",
		})
		return model.Score{}, page.Empty[ranking.Entry](), err
	}
	metrics.RecordScoreSubmitted("challenge")

	window, ranked, werr := s.windowAround(ctx, challenge.ID, challengeScoreType, score.ID, s.windowSize)
	if werr != nil {
		return score, page.Empty[ranking.Entry](), werr
	}

	if !firstEver {
		s.notifyOvertaken(ctx, prevTop, hadPrev, ranked, score,
			fmt.Sprintf("Your #1 spot on the challenge %s has been taken.", challenge.Name))
	}
	return score, window, nil
}

// RankedChallengeScores returns one page of the deduplicated,
// descending board for a challenge.
func (s *Service) RankedChallengeScores(ctx context.Context, challengeID uuid.UUID, skip, count int) (page.Page[ranking.Entry], error) {
	return s.RankedHighScores(ctx, challengeID, challengeScoreType, skip, count)
}

// TopChallengeScores returns one page of a challenge board, optionally
// keeping every row per player.
func (s *Service) TopChallengeScores(ctx context.Context, challengeID uuid.UUID, includeDuplicates bool, skip, count int) (page.Page[ranking.Entry], error) {
	return s.TopScores(ctx, challengeID, challengeScoreType, includeDuplicates, skip, count)
}

// ChallengeScoresByMutualPlayers returns a challenge board restricted
// to the player's mutual connections, ranks renumbered over the subset.
func (s *Service) ChallengeScoresByMutualPlayers(ctx context.Context, challengeID, playerID uuid.UUID, skip, count int) (page.Page[ranking.Entry], error) {
	return s.ScoresByMutualPlayers(ctx, challengeID, playerID, challengeScoreType, skip, count)
}
