// Package rating computes and applies rating transfers for accepted votes.
package rating

import (
	"fmt"
	"math"
	"strings"
)

// Default rater parameters.
const (
	DefaultKFactor    = 32
	DefaultFixedDelta = 8
	eloScale          = 400.0
)

// Mode names accepted by NewRater.
const (
	ModeElo   = "elo"
	ModeFixed = "fixed"
)

// Rater computes the non-negative points moved from loser to winner.
type Rater interface {
	Delta(winnerRating, loserRating int64) int64
}

// Elo is the logistic rater: delta = round(K * (1 - E_w)) where
// E_w = 1 / (1 + 10^((R_l - R_w)/400)).
type Elo struct {
	K float64
}

// Expected returns the winner's expected score against the loser.
func (e Elo) Expected(winnerRating, loserRating int64) float64 {
	return 1 / (1 + math.Pow(10, float64(loserRating-winnerRating)/eloScale))
}

func (e Elo) Delta(winnerRating, loserRating int64) int64 {
	return int64(math.Round(e.K * (1 - e.Expected(winnerRating, loserRating))))
}

// Fixed moves the same number of points on every vote.
type Fixed struct {
	Points int64
}

func (f Fixed) Delta(_, _ int64) int64 {
	return f.Points
}

// NewRater builds a rater for mode. Empty mode selects Elo.
func NewRater(mode string, kFactor float64, fixedDelta int64) (Rater, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModeElo:
		if kFactor <= 0 {
			return nil, fmt.Errorf("%w: k_factor must be positive", ErrInvalidRater)
		}
		return Elo{K: kFactor}, nil
	case ModeFixed:
		if fixedDelta < 0 {
			return nil, fmt.Errorf("%w: fixed_delta must be non-negative", ErrInvalidRater)
		}
		return Fixed{Points: fixedDelta}, nil
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidRater, mode)
	}
}
