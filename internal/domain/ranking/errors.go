package ranking

import "errors"

// Sentinel kinds for ranking errors.
var (
	// ErrWindowSize marks an invalid-argument failure: window sizes
	// must be odd and positive.
	ErrWindowSize = errors.New("window size must be odd and positive")

	// ErrScoreNotRanked reports that the reference score is absent from
	// the ranked board.
	ErrScoreNotRanked = errors.New("score not present on ranked board")
)
