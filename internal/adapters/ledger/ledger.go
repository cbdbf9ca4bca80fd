// Package ledger issues match tokens and records the votes that resolve them.
package ledger

import (
	"context"
	"time"

	"github.com/okian/ranked/internal/domain/model"
)

// Driver names accepted by the service wiring.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverSQL    = "sql"
)

// Default retention of unresolved tokens after expiry.
const DefaultRetention = time.Hour

// CastRequest is a vote submission against a token.
type CastRequest struct {
	TokenID  string
	WinnerID string
	VoterID  string
	At       time.Time
}

// Ledger is the vote ledger. Cast performs every acceptance check and the
// token resolution in one atomic step, so at most one Cast per token succeeds.
type Ledger interface {
	// Issue persists a new unresolved token.
	Issue(ctx context.Context, tok model.MatchToken) error

	// Cast validates the request in order: token exists, not expired at
	// req.At, not resolved, winner bound to the token. On success the token
	// is resolved, the vote is persisted and a rating command is returned.
	Cast(ctx context.Context, req CastRequest) (model.Vote, model.RatingUpdateCommand, error)

	// Token returns the token by id.
	Token(ctx context.Context, id string) (model.MatchToken, error)

	// Votes returns up to limit of the most recent votes, newest last.
	Votes(ctx context.Context, limit int) ([]model.Vote, error)

	// Sweep drops unresolved tokens whose expiry is older than the
	// retention window and returns how many were removed.
	Sweep(ctx context.Context, now time.Time) (int, error)

	Close() error
}

// check evaluates the acceptance rules against a loaded token.
func check(tok *model.MatchToken, req CastRequest) error {
	switch {
	case tok.Expired(req.At):
		return ErrTokenExpired
	case tok.Resolved:
		return ErrAlreadyResolved
	case !tok.Binds(req.WinnerID):
		return ErrInvalidWinner
	}
	return nil
}
