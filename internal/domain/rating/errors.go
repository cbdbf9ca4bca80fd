package rating

import "errors"

// Error definitions for the rating package.
var (
	ErrInvalidRater   = errors.New("invalid rater configuration")
	ErrSelfMatch      = errors.New("winner and loser are the same profile")
	ErrDuplicateVote  = errors.New("vote already applied")
	ErrRetryExhausted = errors.New("rating update retries exhausted")
)
