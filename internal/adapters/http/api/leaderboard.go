package api

import (
	"fmt"
	"net/http"
	"strconv"
)

// DefaultLeaderboardLimit applies when the limit parameter is absent.
const DefaultLeaderboardLimit = 20

// handleLeaderboard handles GET /api/leaderboard?limit=N&offset=M. Limits
// above the configured maximum are clamped by the aggregator.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), DefaultLeaderboardLimit, 1)
	if err != nil {
		s.fail(r.Context(), w, op, WrapKind(op, ErrBadRequest, fmt.Errorf("limit: %w", err)))
		return
	}
	offset, err := intParam(q.Get("offset"), 0, 0)
	if err != nil {
		s.fail(r.Context(), w, op, WrapKind(op, ErrBadRequest, fmt.Errorf("offset: %w", err)))
		return
	}
	entries, err := s.deps.Leaderboard(r.Context(), limit, offset)
	if err != nil {
		s.fail(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func intParam(raw string, def, minimum int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", raw)
	}
	if n < minimum {
		return 0, fmt.Errorf("must be >= %d", minimum)
	}
	return n, nil
}
