package rating

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/ranked/internal/domain/dedupe"
	"github.com/okian/ranked/internal/domain/model"
	"github.com/okian/ranked/pkg/logger"
	"github.com/okian/ranked/pkg/metrics"
)

const defaultMaxAttempts = 3

// Store is the subset of the profile store the updater writes through.
type Store interface {
	Get(ctx context.Context, id string) (model.Profile, error)
	ApplyRatingDelta(ctx context.Context, id string, delta, matchIncrement int64) (model.Profile, error)
}

// Change is one side of an applied vote.
type Change struct {
	Profile model.Profile
	Before  int64
	After   int64
	Delta   int64
}

// Outcome is the result of applying one vote.
type Outcome struct {
	VoteID string
	Winner Change
	Loser  Change
}

// Updater applies rating transfers for accepted votes.
type Updater struct {
	store       Store
	rater       Rater
	guard       dedupe.Deduper
	maxAttempts int
	log         logger.Logger
}

// NewUpdater creates an updater writing through store.
func NewUpdater(store Store, opts ...Option) *Updater {
	u := &Updater{
		store:       store,
		rater:       Elo{K: DefaultKFactor},
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.guard == nil {
		u.guard = dedupe.NewInMemoryDeduper()
	}
	if u.log == nil {
		u.log = logger.Discard()
	}
	return u
}

// Apply moves rating from loser to winner and bumps both match counts.
// Each vote id is applied at most once.
func (u *Updater) Apply(ctx context.Context, cmd model.RatingUpdateCommand) (Outcome, error) {
	return u.run(ctx, u.store, cmd, true)
}

// ApplyIn applies cmd through store, which is bound to a transaction owned
// by the caller. A failed loser write is not compensated; the caller rolls
// back instead.
func (u *Updater) ApplyIn(ctx context.Context, store Store, cmd model.RatingUpdateCommand) (Outcome, error) {
	return u.run(ctx, store, cmd, false)
}

func (u *Updater) run(ctx context.Context, store Store, cmd model.RatingUpdateCommand, compensate bool) (Outcome, error) {
	if cmd.WinnerID == cmd.LoserID {
		return Outcome{}, ErrSelfMatch
	}
	if cmd.VoteID != "" && u.guard.SeenAndRecord(ctx, cmd.VoteID) {
		return Outcome{}, fmt.Errorf("%w: %s", ErrDuplicateVote, cmd.VoteID)
	}

	var lastErr error
	for attempt := 1; attempt <= u.maxAttempts; attempt++ {
		out, err := u.apply(ctx, store, cmd, compensate)
		if err == nil {
			metrics.RecordRatingTransfer(out.Winner.Delta)
			return out, nil
		}
		lastErr = err
		if !errors.Is(err, model.ErrConflict) || ctx.Err() != nil {
			break
		}
		u.log.Debug(ctx, "retrying rating update",
			logger.String("vote_id", cmd.VoteID),
			logger.Int("attempt", attempt),
			logger.Error(err))
	}

	if cmd.VoteID != "" {
		u.guard.Unrecord(ctx, cmd.VoteID)
	}
	if errors.Is(lastErr, model.ErrConflict) {
		return Outcome{}, fmt.Errorf("%w: %w", ErrRetryExhausted, lastErr)
	}
	return Outcome{}, lastErr
}

func (u *Updater) apply(ctx context.Context, store Store, cmd model.RatingUpdateCommand, compensate bool) (Outcome, error) {
	winner, err := store.Get(ctx, cmd.WinnerID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load winner %s: %w", cmd.WinnerID, err)
	}
	loser, err := store.Get(ctx, cmd.LoserID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load loser %s: %w", cmd.LoserID, err)
	}

	delta := u.rater.Delta(winner.Rating, loser.Rating)

	winAfter, err := store.ApplyRatingDelta(ctx, cmd.WinnerID, delta, 1)
	if err != nil {
		return Outcome{}, fmt.Errorf("apply winner %s: %w", cmd.WinnerID, err)
	}
	loseAfter, err := store.ApplyRatingDelta(ctx, cmd.LoserID, -delta, 1)
	if err != nil {
		if compensate {
			u.compensate(ctx, cmd, delta)
		}
		return Outcome{}, fmt.Errorf("apply loser %s: %w", cmd.LoserID, err)
	}

	return Outcome{
		VoteID: cmd.VoteID,
		Winner: Change{Profile: winAfter, Before: winAfter.Rating - delta, After: winAfter.Rating, Delta: delta},
		Loser:  Change{Profile: loseAfter, Before: loseAfter.Rating + delta, After: loseAfter.Rating, Delta: -delta},
	}, nil
}

// compensate reverts the winner write after a failed loser write.
func (u *Updater) compensate(ctx context.Context, cmd model.RatingUpdateCommand, delta int64) {
	metrics.RecordRatingCompensation()
	var err error
	for attempt := 0; attempt < u.maxAttempts; attempt++ {
		// Reverting must not be abandoned because the request was cancelled.
		if _, err = u.store.ApplyRatingDelta(context.WithoutCancel(ctx), cmd.WinnerID, -delta, -1); err == nil {
			return
		}
		if !errors.Is(err, model.ErrConflict) {
			break
		}
	}
	u.log.Error(ctx, "rating compensation failed",
		logger.String("vote_id", cmd.VoteID),
		logger.String("winner_id", cmd.WinnerID),
		logger.Int64("delta", delta),
		logger.Error(err))
}
