// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/okian/ranked/internal/adapters/ledger"
	"github.com/okian/ranked/internal/adapters/repository"
	"github.com/okian/ranked/internal/domain/dedupe"
	"github.com/okian/ranked/internal/domain/leaderboard"
	"github.com/okian/ranked/internal/domain/model"
	"github.com/okian/ranked/internal/domain/pairing"
	"github.com/okian/ranked/internal/domain/rating"
	"github.com/okian/ranked/internal/domain/recency"
	"github.com/okian/ranked/internal/domain/types"
	"github.com/okian/ranked/pkg/logger"
	"github.com/okian/ranked/pkg/metrics"
)

// Defaults used when no option overrides them.
const (
	DefaultTokenTTL        = 5 * time.Minute
	DefaultRecencyWindow   = 10 * time.Minute
	DefaultRecencyCapacity = 4096
	DefaultDedupeSize      = 100_000
	DefaultSweepInterval   = time.Minute
)

// Service wires the pair selector, vote ledger, rating updater and
// leaderboard over one profile store.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.Store
	ledger   ledger.Ledger
	rater    rating.Rater
	recent   *recency.Cache
	selector *pairing.Selector
	updater  *rating.Updater
	board    *leaderboard.Aggregator

	// Set when the ledger and store share one SQL database
	txLedger *ledger.GormLedger
	txStore  *repository.GormStore

	// Configuration
	tokenTTL        time.Duration
	recencyWindow   time.Duration
	recencyCapacity int
	pairAttempts    int
	dedupeSize      int
	maxLimit        int
	sweepInterval   time.Duration
	seedFile        string
	now             func() time.Time
	closers         []func() error

	// State
	started  bool
	stopCh   chan struct{}
	sweeper  sync.WaitGroup
	accepted atomic.Int64
	rejected atomic.Int64

	// Logging
	logger logger.Logger
}

// New constructs a new Service. Components not supplied through options
// are created in memory.
func New(opts ...Option) *Service {
	s := &Service{
		tokenTTL:        DefaultTokenTTL,
		recencyWindow:   DefaultRecencyWindow,
		recencyCapacity: DefaultRecencyCapacity,
		pairAttempts:    pairing.DefaultAttempts,
		dedupeSize:      DefaultDedupeSize,
		maxLimit:        leaderboard.DefaultMax,
		sweepInterval:   DefaultSweepInterval,
		now:             time.Now,
		rater:           rating.Elo{K: rating.DefaultKFactor},
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.store == nil {
		s.store = repository.NewTreapStore(repository.WithClock(s.now))
	}
	if s.ledger == nil {
		s.ledger = ledger.NewMemoryLedger()
	}

	s.recent = recency.New(
		recency.WithCapacity(s.recencyCapacity),
		recency.WithWindow(s.recencyWindow),
		recency.WithClock(s.now),
	)
	s.selector = pairing.NewSelector(s.store, s.ledger,
		pairing.WithTokenTTL(s.tokenTTL),
		pairing.WithRecency(s.recent),
		pairing.WithAttempts(s.pairAttempts),
		pairing.WithClock(s.now),
		pairing.WithLogger(s.logger.Named("pairing")),
	)
	s.updater = rating.NewUpdater(s.store,
		rating.WithRater(s.rater),
		rating.WithDeduper(dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))),
		rating.WithLogger(s.logger.Named("rating")),
	)
	s.board = leaderboard.New(s.store, s.maxLimit)
	if gl, ok := s.ledger.(*ledger.GormLedger); ok {
		if gs, ok := s.store.(*repository.GormStore); ok && gl.Shares(gs.DB()) {
			s.txLedger, s.txStore = gl, gs
		}
	}

	return s
}

// Start loads the seed file and starts the token sweeper.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting ranking service...")

	if s.seedFile != "" {
		n, err := s.seed(ctx, s.seedFile)
		if err != nil {
			return fmt.Errorf("seed %s: %w", s.seedFile, err)
		}
		s.logger.Info(ctx, "seeded profiles", logger.String("file", s.seedFile), logger.Int("created", n))
	}
	if count, err := s.store.Count(ctx); err == nil {
		metrics.UpdateProfilesTotal(count)
	}

	s.stopCh = make(chan struct{})
	if s.sweepInterval > 0 {
		s.sweeper.Add(1)
		go s.sweepLoop(context.WithoutCancel(ctx), s.stopCh)
	}

	s.started = true
	s.logger.Info(ctx, "ranking service started",
		logger.Duration("tokenTTL", s.tokenTTL),
		logger.Duration("sweepInterval", s.sweepInterval),
		logger.Int("maxLeaderboardLimit", s.maxLimit),
	)
	return nil
}

// Stop halts the sweeper. It does not release the backends; see Close.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping ranking service...")
	close(s.stopCh)
	s.sweeper.Wait()
	s.started = false
	s.logger.Info(context.Background(), "ranking service stopped")
}

// Close stops the service and releases the ledger, the store and any
// registered closers.
func (s *Service) Close() error {
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	errs := []error{s.ledger.Close(), s.store.Close()}
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}

func (s *Service) sweepLoop(ctx context.Context, stop <-chan struct{}) {
	defer s.sweeper.Done()

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep purges expired unresolved tokens once and returns how many went.
func (s *Service) Sweep(ctx context.Context) int {
	n, err := s.ledger.Sweep(ctx, s.now())
	if err != nil {
		s.logger.Error(ctx, "token sweep failed", logger.Error(err))
		metrics.RecordErrorByComponent("ledger", "sweep")
		return 0
	}
	if n > 0 {
		metrics.RecordTokensSwept(n)
		s.logger.Debug(ctx, "swept expired tokens", logger.Int("count", n))
	}
	return n
}

// RequestPair draws two profiles for a voter and issues a match token.
func (s *Service) RequestPair(ctx context.Context, requesterID string, revealed bool) (types.Pair, error) {
	return s.selector.Next(ctx, pairing.Request{RequesterID: requesterID, Revealed: revealed})
}

// CastVote resolves the match token and applies the rating transfer. The
// ledger is the single point that decides whether a vote counts, so a
// token can mutate ratings at most once.
func (s *Service) CastVote(ctx context.Context, tokenID, winnerID, voterID string) (types.VoteResult, error) {
	vote, out, err := s.cast(ctx, ledger.CastRequest{
		TokenID:  tokenID,
		WinnerID: winnerID,
		VoterID:  voterID,
		At:       s.now().UTC(),
	})
	var aerr *applyError
	if errors.As(err, &aerr) {
		metrics.RecordVote(metrics.VoteFailed)
		metrics.RecordErrorByComponent("rating", "apply")
		s.logger.Error(ctx, "rating update failed",
			logger.String("vote", aerr.vote),
			logger.String("token", tokenID),
			logger.Bool("tokenResolved", s.txLedger == nil),
			logger.Error(aerr.err))
		return types.VoteResult{}, err
	}
	if err != nil {
		result := voteResult(err)
		metrics.RecordVote(result)
		s.rejected.Add(1)
		s.logger.Debug(ctx, "vote rejected",
			logger.String("token", tokenID),
			logger.String("winner", winnerID),
			logger.String("result", result))
		if result == metrics.VoteFailed {
			s.logger.Error(ctx, "ledger cast failed", logger.String("token", tokenID), logger.Error(err))
		}
		return types.VoteResult{}, err
	}

	metrics.RecordVote(metrics.VoteAccepted)
	s.accepted.Add(1)
	s.logger.Debug(ctx, "vote accepted",
		logger.String("vote", vote.ID),
		logger.String("winner", vote.WinnerID),
		logger.String("loser", vote.LoserID),
		logger.Int64("delta", out.Winner.Delta))

	return types.VoteResult{
		VoteID: vote.ID,
		Token:  vote.TokenID,
		Winner: change(out.Winner),
		Loser:  change(out.Loser),
		CastAt: vote.CastAt,
	}, nil
}

// applyError reports a rating update that failed after the ledger accepted
// the vote.
type applyError struct {
	vote string
	err  error
}

func (e *applyError) Error() string { return fmt.Sprintf("apply vote %s: %v", e.vote, e.err) }
func (e *applyError) Unwrap() error { return e.err }

// cast resolves the token and applies the transfer. On a shared SQL
// database both run in one transaction, so a failed rating write also
// reopens the token. Otherwise the token stays resolved and the updater
// reverts a half-applied transfer.
func (s *Service) cast(ctx context.Context, req ledger.CastRequest) (model.Vote, rating.Outcome, error) {
	if s.txLedger == nil {
		vote, cmd, err := s.ledger.Cast(ctx, req)
		if err != nil {
			return model.Vote{}, rating.Outcome{}, err
		}
		out, err := s.updater.Apply(ctx, cmd)
		if err != nil {
			return model.Vote{}, rating.Outcome{}, &applyError{vote: vote.ID, err: err}
		}
		return vote, out, nil
	}

	var (
		out      rating.Outcome
		applyErr *applyError
	)
	vote, _, err := s.txLedger.CastApply(ctx, req, func(tx *gorm.DB, cmd model.RatingUpdateCommand) error {
		var err error
		out, err = s.updater.ApplyIn(ctx, s.txStore.WithTx(tx), cmd)
		if err != nil {
			applyErr = &applyError{vote: cmd.VoteID, err: err}
			return applyErr
		}
		return nil
	})
	if applyErr != nil {
		return model.Vote{}, rating.Outcome{}, applyErr
	}
	if err != nil {
		return model.Vote{}, rating.Outcome{}, err
	}
	return vote, out, nil
}

func change(c rating.Change) types.RatingChange {
	return types.RatingChange{
		Profile:      types.Summarize(c.Profile, true),
		RatingBefore: c.Before,
		RatingAfter:  c.After,
		Delta:        c.Delta,
	}
}

func voteResult(err error) string {
	switch {
	case errors.Is(err, ledger.ErrTokenNotFound):
		return metrics.VoteNotFound
	case errors.Is(err, ledger.ErrTokenExpired):
		return metrics.VoteExpired
	case errors.Is(err, ledger.ErrAlreadyResolved):
		return metrics.VoteAlreadyResolved
	case errors.Is(err, ledger.ErrInvalidWinner):
		return metrics.VoteInvalidWinner
	default:
		return metrics.VoteFailed
	}
}

// Leaderboard returns a page of ranked entries.
func (s *Service) Leaderboard(ctx context.Context, limit, offset int) ([]types.LeaderboardEntry, error) {
	return s.board.List(ctx, limit, offset)
}

// Rank returns the leaderboard entry for one profile.
func (s *Service) Rank(ctx context.Context, id string) (types.LeaderboardEntry, error) {
	return s.board.Rank(ctx, id)
}

// GetProfile returns the full profile.
func (s *Service) GetProfile(ctx context.Context, id string) (model.Profile, error) {
	return s.store.Get(ctx, id)
}

// CreateProfile adds a profile at the initial rating.
func (s *Service) CreateProfile(ctx context.Context, p model.Profile) (model.Profile, error) {
	created, err := s.store.Create(ctx, p)
	if err != nil {
		return model.Profile{}, err
	}
	if count, err := s.store.Count(ctx); err == nil {
		metrics.UpdateProfilesTotal(count)
	}
	s.logger.Debug(ctx, "profile created", logger.String("id", created.ID))
	return created, nil
}

// Votes returns up to limit recorded votes, newest last.
func (s *Service) Votes(ctx context.Context, limit int) ([]model.Vote, error) {
	return s.ledger.Votes(ctx, limit)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	stats := map[string]any{
		"started":             started,
		"votesAccepted":       s.accepted.Load(),
		"votesRejected":       s.rejected.Load(),
		"recentPairs":         s.recent.Len(),
		"maxLeaderboardLimit": s.board.Max(),
		"tokenTTLSeconds":     s.tokenTTL.Seconds(),
	}
	if count, err := s.store.Count(ctx); err == nil {
		stats["profiles"] = count
		metrics.UpdateProfilesTotal(count)
	}
	return stats
}
