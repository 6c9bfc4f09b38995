// Package ranking implements the deduplicated, windowed score ranking
// shared by level leaderboards and challenge high-scores.
package ranking

import (
	"sort"

	"github.com/google/uuid"

	"github.com/playcore/tally/internal/domain/model"
)

// Entry pairs a score with its 1-based rank on a board. Entries are
// computed at query time and never persisted.
type Entry struct {
	Score model.Score
	Rank  int
}

// Rank produces the ranked board over the given score rows: descending
// by value, deduplicated so only each primary player's best score
// counts, ranks assigned by position. Ties break on earlier submission,
// then on score id, so ordering is deterministic across calls.
//
// The caller is expected to have filtered rows to one (subject,
// scoreType) board already.
func Rank(scores []model.Score) []Entry {
	return rank(scores, false)
}

// RankWithDuplicates keeps every row on the board, skipping the
// per-player dedup step. Used for raw/administrative views.
func RankWithDuplicates(scores []model.Score) []Entry {
	return rank(scores, true)
}

func rank(scores []model.Score, includeDuplicates bool) []Entry {
	ordered := make([]model.Score, len(scores))
	copy(ordered, scores)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Value != ordered[j].Value {
			return ordered[i].Value > ordered[j].Value
		}
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID.String() < ordered[j].ID.String()
	})

	entries := make([]Entry, 0, len(ordered))
	seen := make(map[uuid.UUID]struct{}, len(ordered))
	for _, s := range ordered {
		if !includeDuplicates {
			player := s.PrimaryPlayer()
			if _, dup := seen[player]; dup {
				// A player cannot occupy two ranks on one board;
				// the first (best) score wins, the rest are dropped.
				continue
			}
			seen[player] = struct{}{}
		}
		entries = append(entries, Entry{Score: s, Rank: len(entries) + 1})
	}
	return entries
}

// Window returns size consecutive entries of the ranked board centered
// on the entry holding scoreID, clamped at both board edges so a full
// window is returned near the top or bottom. It also returns the start
// offset of the window within the board.
//
// size must be odd and positive, otherwise ErrWindowSize is returned.
// If scoreID is not on the board (e.g. it was deduplicated away),
// ErrScoreNotRanked is returned.
func Window(ranked []Entry, scoreID uuid.UUID, size int) ([]Entry, int, error) {
	if size <= 0 || size%2 == 0 {
		return nil, 0, ErrWindowSize
	}

	idx := -1
	for i, e := range ranked {
		if e.Score.ID == scoreID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, 0, ErrScoreNotRanked
	}

	start := idx - size/2
	if start > len(ranked)-size {
		start = len(ranked) - size
	}
	if start < 0 {
		start = 0
	}
	end := start + size
	if end > len(ranked) {
		end = len(ranked)
	}

	window := make([]Entry, end-start)
	copy(window, ranked[start:end])
	return window, start, nil
}

// Top returns the entry at rank 1, or false for an empty board.
func Top(ranked []Entry) (Entry, bool) {
	if len(ranked) == 0 {
		return Entry{}, false
	}
	return ranked[0], true
}
