package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/playcore/tally/internal/domain/model"
	"github.com/playcore/tally/internal/domain/page"
	"github.com/playcore/tally/internal/domain/ranking"
)

// LeaderboardHandler handles board read requests.
type LeaderboardHandler struct {
	deps        Dependencies
	maxPageSize int
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps Dependencies, maxPageSize int) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps, maxPageSize: maxPageSize}
}

// entryView is the JSON shape of one board row.
type entryView struct {
	Rank      int      `json:"rank"`
	ScoreID   string   `json:"score_id"`
	Value     int64    `json:"value"`
	PlayerIDs []string `json:"player_ids"`
}

// windowView is the JSON shape of one board page.
type windowView struct {
	Entries       []entryView `json:"entries"`
	TotalItems    int         `json:"total_items"`
	NextPageIndex int         `json:"next_page_index"`
}

func newWindowView(p page.Page[ranking.Entry]) windowView {
	entries := make([]entryView, 0, len(p.Items))
	for _, e := range p.Items {
		players := make([]string, 0, len(e.Score.PlayerIDs))
		for _, id := range e.Score.PlayerIDs {
			players = append(players, id.String())
		}
		entries = append(entries, entryView{
			Rank:      e.Rank,
			ScoreID:   e.Score.ID.String(),
			Value:     e.Score.Value,
			PlayerIDs: players,
		})
	}
	return windowView{
		Entries:       entries,
		TotalItems:    p.TotalItems,
		NextPageIndex: p.NextPageIndex,
	}
}

// HandleGetLeaderboard handles GET /leaderboard requests.
// Query: subject, type, skip, count, include_duplicates.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	subjectID, err := queryUUID(r, "subject")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	scoreType, err := queryScoreType(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	skip, count, err := h.paging(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	var p page.Page[ranking.Entry]
	if r.URL.Query().Get("include_duplicates") == "true" {
		p, err = h.deps.TopScores(r.Context(), subjectID, scoreType, true, skip, count)
	} else {
		p, err = h.deps.RankedHighScores(r.Context(), subjectID, scoreType, skip, count)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newWindowView(p))
}

// HandleGetWindow handles GET /leaderboard/window requests.
// Query: score, size.
func (h *LeaderboardHandler) HandleGetWindow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	scoreID, err := queryUUID(r, "score")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	size, err := strconv.Atoi(r.URL.Query().Get("size"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("invalid size"))
		return
	}
	p, err := h.deps.ScoreWindow(r.Context(), scoreID, size)
	if err != nil {
		if errors.Is(err, ranking.ErrWindowSize) {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newWindowView(p))
}

// HandleGetMutual handles GET /leaderboard/mutual requests.
// Query: subject, player, type, skip, count.
func (h *LeaderboardHandler) HandleGetMutual(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	subjectID, err := queryUUID(r, "subject")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	playerID, err := queryUUID(r, "player")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	scoreType, err := queryScoreType(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	skip, count, err := h.paging(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	p, err := h.deps.ScoresByMutualPlayers(r.Context(), subjectID, playerID, scoreType, skip, count)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newWindowView(p))
}

// paging parses skip and count, clamping count to the configured max.
func (h *LeaderboardHandler) paging(r *http.Request) (int, int, error) {
	skip := 0
	if v := r.URL.Query().Get("skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, 0, errors.New("invalid skip")
		}
		skip = n
	}
	count := h.maxPageSize
	if v := r.URL.Query().Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return 0, 0, errors.New("invalid count")
		}
		count = n
	}
	if count > h.maxPageSize {
		count = h.maxPageSize
	}
	return skip, count, nil
}

func queryUUID(r *http.Request, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.URL.Query().Get(key))
	if err != nil {
		return uuid.Nil, errors.New("invalid " + key)
	}
	return id, nil
}

func queryScoreType(r *http.Request) (model.ScoreType, error) {
	v := r.URL.Query().Get("type")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 || n > 255 {
		return 0, errors.New("invalid type")
	}
	return model.ScoreType(n), nil
}
