package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/ranked/internal/domain/model"
)

// handleRandomPair handles GET /api/profiles/random?requester=&revealed=.
func (s *Server) handleRandomPair(w http.ResponseWriter, r *http.Request) {
	const op = "api.random_pair"
	q := r.URL.Query()
	revealed := false
	if raw := q.Get("revealed"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			s.fail(r.Context(), w, op, WrapKind(op, ErrBadRequest, err))
			return
		}
		revealed = v
	}
	pair, err := s.deps.RequestPair(r.Context(), strings.TrimSpace(q.Get("requester")), revealed)
	if err != nil {
		s.fail(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// handleGetProfile handles GET /api/profiles/{id}.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_profile"
	p, err := s.deps.GetProfile(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleCreateProfile handles POST /api/profiles.
func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_profile"
	var p model.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.fail(r.Context(), w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	created, err := s.deps.CreateProfile(r.Context(), p)
	if err != nil {
		s.fail(r.Context(), w, op, err)
		return
	}
	w.Header().Set("Location", "/api/profiles/"+created.ID)
	writeJSON(w, http.StatusCreated, created)
}

// handleRank handles GET /api/profiles/{id}/rank.
func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.rank"
	entry, err := s.deps.Rank(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
