package service

import (
	"time"

	"github.com/okian/ranked/internal/adapters/ledger"
	"github.com/okian/ranked/internal/adapters/repository"
	"github.com/okian/ranked/internal/domain/rating"
	"github.com/okian/ranked/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the profile store. Defaults to an in-memory treap.
func WithStore(s repository.Store) Option {
	return func(svc *Service) {
		if s != nil {
			svc.store = s
		}
	}
}

// WithLedger sets the vote ledger. Defaults to an in-memory ledger.
func WithLedger(l ledger.Ledger) Option {
	return func(svc *Service) {
		if l != nil {
			svc.ledger = l
		}
	}
}

// WithRater sets the rating rule.
func WithRater(r rating.Rater) Option {
	return func(svc *Service) {
		if r != nil {
			svc.rater = r
		}
	}
}

// WithTokenTTL sets how long an issued match token accepts a vote.
func WithTokenTTL(d time.Duration) Option {
	return func(svc *Service) {
		if d > 0 {
			svc.tokenTTL = d
		}
	}
}

// WithRecency bounds the anti-repeat pair cache. A zero capacity disables it.
func WithRecency(window time.Duration, capacity int) Option {
	return func(svc *Service) {
		if window > 0 {
			svc.recencyWindow = window
		}
		if capacity >= 0 {
			svc.recencyCapacity = capacity
		}
	}
}

// WithPairAttempts bounds redraws of recently shown pairs.
func WithPairAttempts(n int) Option {
	return func(svc *Service) {
		if n > 0 {
			svc.pairAttempts = n
		}
	}
}

// WithDedupeSize sets the size of the vote replay guard.
func WithDedupeSize(size int) Option {
	return func(svc *Service) {
		if size > 0 {
			svc.dedupeSize = size
		}
	}
}

// WithMaxLeaderboardLimit caps leaderboard page sizes.
func WithMaxLeaderboardLimit(n int) Option {
	return func(svc *Service) {
		if n > 0 {
			svc.maxLimit = n
		}
	}
}

// WithSweepInterval sets how often expired tokens are purged. Zero disables
// the sweeper.
func WithSweepInterval(d time.Duration) Option {
	return func(svc *Service) {
		if d >= 0 {
			svc.sweepInterval = d
		}
	}
}

// WithSeedFile names a YAML file of profiles created on Start.
func WithSeedFile(path string) Option {
	return func(svc *Service) {
		svc.seedFile = path
	}
}

// WithCloser registers a release hook run on Stop after the store and
// ledger are closed.
func WithCloser(fn func() error) Option {
	return func(svc *Service) {
		if fn != nil {
			svc.closers = append(svc.closers, fn)
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(svc *Service) {
		if now != nil {
			svc.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(svc *Service) {
		if l != nil {
			svc.logger = l
		}
	}
}
