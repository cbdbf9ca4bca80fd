package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

type voteRequest struct {
	WinnerID string `json:"winner_id"`
}

type legacyVoteRequest struct {
	MatchToken string `json:"match_token"`
}

// handleVote handles POST /api/matches/{token}/vote with {"winner_id": ...}.
func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	const op = "api.vote"
	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(r.Context(), w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	s.cast(w, r, op, r.PathValue("token"), req.WinnerID)
}

// handleLegacyVote handles PUT /api/profiles/{id}/vote where {id} is the
// winner and the body names the match token.
func (s *Server) handleLegacyVote(w http.ResponseWriter, r *http.Request) {
	const op = "api.vote_legacy"
	var req legacyVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(r.Context(), w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	s.cast(w, r, op, req.MatchToken, r.PathValue("id"))
}

func (s *Server) cast(w http.ResponseWriter, r *http.Request, op, token, winner string) {
	token, winner = strings.TrimSpace(token), strings.TrimSpace(winner)
	switch {
	case token == "":
		s.fail(r.Context(), w, op, WrapKind(op, ErrBadRequest, errors.New("missing match token")))
		return
	case winner == "":
		s.fail(r.Context(), w, op, WrapKind(op, ErrBadRequest, errors.New("missing winner_id")))
		return
	}
	voter := strings.TrimSpace(r.Header.Get(VoterHeader))
	if voter == "" && s.requireVoter {
		s.fail(r.Context(), w, op, NewKind(op, ErrVoterRequired))
		return
	}

	res, err := s.deps.CastVote(r.Context(), token, winner, voter)
	if err != nil {
		s.fail(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
