package rating

import (
	"github.com/okian/ranked/internal/domain/dedupe"
	"github.com/okian/ranked/pkg/logger"
)

// Option configures an Updater.
type Option func(*Updater)

// WithRater sets the rater used to compute deltas.
func WithRater(r Rater) Option {
	return func(u *Updater) {
		if r != nil {
			u.rater = r
		}
	}
}

// WithDeduper sets the vote-id replay guard.
func WithDeduper(d dedupe.Deduper) Option {
	return func(u *Updater) {
		u.guard = d
	}
}

// WithMaxAttempts bounds how often a conflicting write is retried.
func WithMaxAttempts(n int) Option {
	return func(u *Updater) {
		if n > 0 {
			u.maxAttempts = n
		}
	}
}

// WithLogger sets the updater logger.
func WithLogger(l logger.Logger) Option {
	return func(u *Updater) {
		u.log = l
	}
}
