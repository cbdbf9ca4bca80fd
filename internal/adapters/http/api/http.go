// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/cors"

	"github.com/okian/ranked/internal/adapters/ledger"
	"github.com/okian/ranked/internal/domain/model"
	"github.com/okian/ranked/internal/domain/pairing"
	"github.com/okian/ranked/internal/domain/rating"
	"github.com/okian/ranked/internal/domain/types"
	"github.com/okian/ranked/pkg/logger"
)

// VoterHeader carries the optional voter identity.
const VoterHeader = "X-Voter-ID"

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	RequestPair(ctx context.Context, requesterID string, revealed bool) (types.Pair, error)
	CastVote(ctx context.Context, tokenID, winnerID, voterID string) (types.VoteResult, error)
	Leaderboard(ctx context.Context, limit, offset int) ([]types.LeaderboardEntry, error)
	Rank(ctx context.Context, id string) (types.LeaderboardEntry, error)
	GetProfile(ctx context.Context, id string) (model.Profile, error)
	CreateProfile(ctx context.Context, p model.Profile) (model.Profile, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps Dependencies

	requireVoter bool
	origins      []string
	log          logger.Logger

	healthHandler *HealthHandler
	statsHandler  *StatsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, stats StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:          deps,
		origins:       []string{"*"},
		log:           logger.Discard(),
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(stats),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("GET /api/profiles/random", MetricsMiddleware(s.handleRandomPair, "random_pair"))
	mux.HandleFunc("POST /api/matches/{token}/vote", MetricsMiddleware(s.handleVote, "vote"))
	mux.HandleFunc("PUT /api/profiles/{id}/vote", MetricsMiddleware(s.handleLegacyVote, "vote_legacy"))
	mux.HandleFunc("GET /api/leaderboard", MetricsMiddleware(s.handleLeaderboard, "leaderboard"))
	mux.HandleFunc("POST /api/profiles", MetricsMiddleware(s.handleCreateProfile, "create_profile"))
	mux.HandleFunc("GET /api/profiles/{id}", MetricsMiddleware(s.handleGetProfile, "get_profile"))
	mux.HandleFunc("GET /api/profiles/{id}/rank", MetricsMiddleware(s.handleRank, "rank"))
}

// CORS wraps h with the configured cross-origin policy.
func (s *Server) CORS(h http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", VoterHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})(h)
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

// fail maps err to its status and code and writes the response.
func (s *Server) fail(ctx context.Context, w http.ResponseWriter, op string, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.log.Error(ctx, "request failed", logger.String("op", op), logger.Error(err))
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		err = Wrap(op, err)
	}
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrVoterRequired):
		return http.StatusUnauthorized, "voter_required"
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, pairing.ErrInsufficientPopulation):
		return http.StatusServiceUnavailable, "insufficient_population"
	case errors.Is(err, ledger.ErrTokenNotFound):
		return http.StatusNotFound, "token_not_found"
	case errors.Is(err, ledger.ErrTokenExpired):
		return http.StatusGone, "token_expired"
	case errors.Is(err, ledger.ErrAlreadyResolved), errors.Is(err, rating.ErrDuplicateVote):
		return http.StatusConflict, "already_resolved"
	case errors.Is(err, ledger.ErrInvalidWinner), errors.Is(err, rating.ErrSelfMatch):
		return http.StatusUnprocessableEntity, "invalid_winner"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrAlreadyExists):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, rating.ErrRetryExhausted), errors.Is(err, model.ErrConflict):
		return http.StatusServiceUnavailable, "busy"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
