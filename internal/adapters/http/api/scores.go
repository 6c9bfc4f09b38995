package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	service "github.com/playcore/tally/internal/app"
	"github.com/playcore/tally/internal/domain/model"
)

// ScoresHandler handles score submissions.
type ScoresHandler struct {
	deps Dependencies
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps Dependencies) *ScoresHandler {
	return &ScoresHandler{deps: deps}
}

// scoreRequest mirrors the POST body for score submissions.
type scoreRequest struct {
	SubjectID string   `json:"subject_id"`
	ScoreType int      `json:"score_type"`
	Value     int64    `json:"value"`
	PlayerIDs []string `json:"player_ids"`
}

func (r scoreRequest) validate() error {
	if strings.TrimSpace(r.SubjectID) == "" {
		return errors.New("missing subject_id")
	}
	if len(r.PlayerIDs) == 0 {
		return errors.New("missing player_ids")
	}
	if r.ScoreType < 0 || r.ScoreType > 255 {
		return errors.New("score_type out of range")
	}
	return nil
}

func (r scoreRequest) playerUUIDs() ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(r.PlayerIDs))
	for _, p := range r.PlayerIDs {
		id, err := uuid.Parse(p)
		if err != nil {
			return nil, errors.New("invalid player id")
		}
		out = append(out, id)
	}
	return out, nil
}

// scoreResponse is the reply for a successful submission: the stored
// score plus the board window centered on it.
type scoreResponse struct {
	ScoreID string     `json:"score_id"`
	Window  windowView `json:"window"`
}

// HandlePostScore handles POST /scores requests.
func (h *ScoresHandler) HandlePostScore(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, false)
}

// HandlePostChallengeScore handles POST /challenge-scores requests.
func (h *ScoresHandler) HandlePostChallengeScore(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, true)
}

func (h *ScoresHandler) submit(w http.ResponseWriter, r *http.Request, challenge bool) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	subjectID, err := uuid.Parse(req.SubjectID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("invalid subject_id"))
		return
	}
	players, err := req.playerUUIDs()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	var (
		score  model.Score
		window = windowView{}
	)
	if challenge {
		s, p, serr := h.deps.SubmitChallengeScore(r.Context(), subjectID, req.Value, players)
		if serr != nil {
			writeServiceError(w, serr)
			return
		}
		score, window = s, newWindowView(p)
	} else {
		s, p, serr := h.deps.SubmitScore(r.Context(), subjectID, model.ScoreType(req.ScoreType), req.Value, players)
		if serr != nil {
			writeServiceError(w, serr)
			return
		}
		score, window = s, newWindowView(p)
	}
	writeJSON(w, http.StatusCreated, scoreResponse{ScoreID: score.ID.String(), Window: window})
}

// writeServiceError translates service sentinels into HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrSubjectNotFound), errors.Is(err, service.ErrScoreNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrNoPlayers):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
