package api

import (
	"net/http"

	"github.com/playcore/tally/internal/domain/model"
)

// StatsHandler handles statistics read requests.
type StatsHandler struct {
	deps Dependencies
}

// NewStatsHandler creates a new statistics handler.
func NewStatsHandler(deps Dependencies) *StatsHandler {
	return &StatsHandler{deps: deps}
}

// statsView is the JSON shape of one statistics record.
type statsView struct {
	SubjectID           string `json:"subject_id"`
	FavouriteCount      int    `json:"favourite_count"`
	PlayCount           int    `json:"play_count"`
	UniquePlayCount     int    `json:"unique_play_count"`
	CompletionCount     int    `json:"completion_count"`
	ReviewCount         int    `json:"review_count"`
	CommentCount        int    `json:"comment_count"`
	PhotoCount          int    `json:"photo_count"`
	YayCount            int    `json:"yay_count"`
	BooCount            int    `json:"boo_count"`
	Karma               int    `json:"karma"`
	LevelCount          int    `json:"level_count"`
	QueueCount          int    `json:"queue_count"`
	PlaylistCount       int    `json:"playlist_count"`
	SubPlaylistCount    int    `json:"sub_playlist_count"`
	ParentPlaylistCount int    `json:"parent_playlist_count"`
}

func newStatsView(rec model.StatsRecord) statsView {
	return statsView{
		SubjectID:           rec.SubjectID.String(),
		FavouriteCount:      rec.Counters.FavouriteCount,
		PlayCount:           rec.Counters.PlayCount,
		UniquePlayCount:     rec.Counters.UniquePlayCount,
		CompletionCount:     rec.Counters.CompletionCount,
		ReviewCount:         rec.Counters.ReviewCount,
		CommentCount:        rec.Counters.CommentCount,
		PhotoCount:          rec.Counters.PhotoCount,
		YayCount:            rec.Counters.YayCount,
		BooCount:            rec.Counters.BooCount,
		Karma:               rec.Counters.Karma,
		LevelCount:          rec.Counters.LevelCount,
		QueueCount:          rec.Counters.QueueCount,
		PlaylistCount:       rec.Counters.PlaylistCount,
		SubPlaylistCount:    rec.Counters.SubPlaylistCount,
		ParentPlaylistCount: rec.Counters.ParentPlaylistCount,
	}
}

// HandleGetStatistics handles GET /statistics?subject=ID requests.
func (h *StatsHandler) HandleGetStatistics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	subjectID, err := queryUUID(r, "subject")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	rec, err := h.deps.Statistics(r.Context(), subjectID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newStatsView(rec))
}
