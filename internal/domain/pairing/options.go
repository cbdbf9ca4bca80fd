package pairing

import (
	"errors"
	"time"

	"github.com/okian/ranked/internal/domain/recency"
	"github.com/okian/ranked/pkg/logger"
)

// ErrInsufficientPopulation is returned when fewer than two eligible profiles exist.
var ErrInsufficientPopulation = errors.New("insufficient population")

// Option configures a Selector.
type Option func(*Selector)

// WithTokenTTL sets how long an issued token stays valid.
func WithTokenTTL(d time.Duration) Option {
	return func(s *Selector) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithRecency sets the cache used to avoid repeating recent pairs.
func WithRecency(c *recency.Cache) Option {
	return func(s *Selector) {
		s.recent = c
	}
}

// WithAttempts bounds redraws of recently shown pairs.
func WithAttempts(n int) Option {
	return func(s *Selector) {
		if n > 0 {
			s.attempts = n
		}
	}
}

// WithIntN overrides the random index source. f must be safe for concurrent use.
func WithIntN(f func(int) int) Option {
	return func(s *Selector) {
		if f != nil {
			s.intn = f
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Selector) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the selector logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Selector) {
		s.log = l
	}
}
