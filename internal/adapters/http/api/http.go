// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/playcore/tally/internal/domain/model"
	"github.com/playcore/tally/internal/domain/page"
	"github.com/playcore/tally/internal/domain/ranking"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Score submission.
	SubmitScore(ctx context.Context, levelID uuid.UUID, scoreType model.ScoreType, value int64, playerIDs []uuid.UUID) (model.Score, page.Page[ranking.Entry], error)
	SubmitChallengeScore(ctx context.Context, challengeID uuid.UUID, value int64, playerIDs []uuid.UUID) (model.Score, page.Page[ranking.Entry], error)

	// Board reads.
	RankedHighScores(ctx context.Context, subjectID uuid.UUID, scoreType model.ScoreType, skip, count int) (page.Page[ranking.Entry], error)
	TopScores(ctx context.Context, subjectID uuid.UUID, scoreType model.ScoreType, includeDuplicates bool, skip, count int) (page.Page[ranking.Entry], error)
	ScoreWindow(ctx context.Context, scoreID uuid.UUID, size int) (page.Page[ranking.Entry], error)
	ScoresByMutualPlayers(ctx context.Context, subjectID, playerID uuid.UUID, scoreType model.ScoreType, skip, count int) (page.Page[ranking.Entry], error)

	// Statistics reads.
	Statistics(ctx context.Context, subjectID uuid.UUID) (model.StatsRecord, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	metricsHandler     *MetricsHandler
	scoresHandler      *ScoresHandler
	leaderboardHandler *LeaderboardHandler
	statsHandler       *StatsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, maxPageSize int) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		metricsHandler:     NewMetricsHandler(),
		scoresHandler:      NewScoresHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxPageSize),
		statsHandler:       NewStatsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", s.metricsHandler.HandleMetrics)
	mux.HandleFunc("/scores", MetricsMiddleware(s.scoresHandler.HandlePostScore, "scores"))
	mux.HandleFunc("/challenge-scores", MetricsMiddleware(s.scoresHandler.HandlePostChallengeScore, "challenge_scores"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/leaderboard/window", MetricsMiddleware(s.leaderboardHandler.HandleGetWindow, "window"))
	mux.HandleFunc("/leaderboard/mutual", MetricsMiddleware(s.leaderboardHandler.HandleGetMutual, "mutual"))
	mux.HandleFunc("/statistics", MetricsMiddleware(s.statsHandler.HandleGetStatistics, "statistics"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
