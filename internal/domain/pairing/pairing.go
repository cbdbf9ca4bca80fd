// Package pairing draws two distinct profiles for a blind comparison and
// issues the match token that binds them.
package pairing

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/okian/ranked/internal/domain/model"
	"github.com/okian/ranked/internal/domain/recency"
	"github.com/okian/ranked/internal/domain/types"
	"github.com/okian/ranked/pkg/logger"
	"github.com/okian/ranked/pkg/metrics"
)

// Default selector parameters.
const (
	DefaultTokenTTL = 5 * time.Minute
	DefaultAttempts = 5
	// identicalDrawLimit bounds redraws when a store race yields the same id twice.
	identicalDrawLimit = 3
)

// Population is the read side of the profile store used for drawing.
type Population interface {
	Count(ctx context.Context) (int, error)
	IDAt(ctx context.Context, i int) (string, error)
	IndexOf(ctx context.Context, id string) (int, error)
	Get(ctx context.Context, id string) (model.Profile, error)
}

// Issuer persists newly issued match tokens.
type Issuer interface {
	Issue(ctx context.Context, tok model.MatchToken) error
}

// Request describes who is asking for a pair.
type Request struct {
	RequesterID string
	Revealed    bool
}

// Selector draws uniformly random pairs from the population.
type Selector struct {
	pop      Population
	issuer   Issuer
	recent   *recency.Cache
	ttl      time.Duration
	attempts int
	intn     func(int) int
	now      func() time.Time
	log      logger.Logger
}

// NewSelector creates a selector over pop that issues tokens through issuer.
func NewSelector(pop Population, issuer Issuer, opts ...Option) *Selector {
	s := &Selector{
		pop:      pop,
		issuer:   issuer,
		ttl:      DefaultTokenTTL,
		attempts: DefaultAttempts,
		intn:     rand.IntN,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Discard()
	}
	return s
}

// Next draws two distinct profiles, excluding the requester, and issues a token.
func (s *Selector) Next(ctx context.Context, req Request) (types.Pair, error) {
	a, b, err := s.draw(ctx, req.RequesterID)
	if err != nil {
		if errors.Is(err, ErrInsufficientPopulation) {
			metrics.RecordInsufficientPopulation()
		}
		return types.Pair{}, err
	}

	pa, err := s.pop.Get(ctx, a)
	if err != nil {
		return types.Pair{}, fmt.Errorf("load %s: %w", a, err)
	}
	pb, err := s.pop.Get(ctx, b)
	if err != nil {
		return types.Pair{}, fmt.Errorf("load %s: %w", b, err)
	}

	issued := s.now().UTC()
	tok := model.MatchToken{
		ID:          uuid.NewString(),
		ProfileA:    a,
		ProfileB:    b,
		RequesterID: req.RequesterID,
		IssuedAt:    issued,
		ExpiresAt:   issued.Add(s.ttl),
	}
	if err := s.issuer.Issue(ctx, tok); err != nil {
		return types.Pair{}, fmt.Errorf("issue token: %w", err)
	}
	s.recent.Record(a, b)
	metrics.RecordPairIssued()

	s.log.Debug(ctx, "pair issued",
		logger.String("token", tok.ID),
		logger.String("profile_a", a),
		logger.String("profile_b", b))

	return types.Pair{
		Token:     tok.ID,
		ExpiresAt: tok.ExpiresAt,
		Profiles:  []types.ProfileSummary{types.Summarize(pa, req.Revealed), types.Summarize(pb, req.Revealed)},
	}, nil
}

// draw picks two distinct ids. Recently shown pairs are redrawn up to the
// attempt budget, after which the last draw is accepted.
func (s *Selector) draw(ctx context.Context, requester string) (string, string, error) {
	n, err := s.pop.Count(ctx)
	if err != nil {
		return "", "", fmt.Errorf("count profiles: %w", err)
	}

	exclude := -1
	if requester != "" {
		idx, err := s.pop.IndexOf(ctx, requester)
		switch {
		case err == nil:
			exclude = idx
		case !errors.Is(err, model.ErrNotFound):
			return "", "", fmt.Errorf("locate requester: %w", err)
		}
	}

	pool := n
	if exclude >= 0 {
		pool--
	}
	if pool < 2 {
		return "", "", fmt.Errorf("%w: %d eligible", ErrInsufficientPopulation, pool)
	}

	var a, b string
	identical := 0
	for attempt := 0; attempt < s.attempts; {
		i := s.intn(pool)
		j := s.intn(pool - 1)
		if j >= i {
			j++
		}
		if a, err = s.pop.IDAt(ctx, skip(i, exclude)); err != nil {
			return "", "", fmt.Errorf("profile at %d: %w", i, err)
		}
		if b, err = s.pop.IDAt(ctx, skip(j, exclude)); err != nil {
			return "", "", fmt.Errorf("profile at %d: %w", j, err)
		}
		if a == b {
			identical++
			if identical >= identicalDrawLimit {
				return "", "", fmt.Errorf("%w: repeated identical draws", ErrInsufficientPopulation)
			}
			continue
		}
		attempt++
		if !s.recent.Seen(a, b) {
			return a, b, nil
		}
		if attempt < s.attempts {
			metrics.RecordPairRecencyRetry()
		}
	}
	return a, b, nil
}

// skip maps a position in the pool onto the store index, stepping over exclude.
func skip(i, exclude int) int {
	if exclude >= 0 && i >= exclude {
		return i + 1
	}
	return i
}
