package ledger

import "errors"

// Sentinel kinds for ledger errors.
var (
	ErrTokenNotFound   = errors.New("match token not found")
	ErrTokenExpired    = errors.New("match token expired")
	ErrAlreadyResolved = errors.New("match token already resolved")
	ErrInvalidWinner   = errors.New("winner is not part of the match")
	ErrDuplicateToken  = errors.New("match token already issued")
	ErrUnknownDriver   = errors.New("unknown ledger driver")
)
