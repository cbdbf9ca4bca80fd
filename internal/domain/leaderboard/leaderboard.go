// Package leaderboard projects the profile store into a ranked view.
package leaderboard

import (
	"context"
	"fmt"

	"github.com/okian/ranked/internal/domain/model"
	"github.com/okian/ranked/internal/domain/types"
)

// Default paging limits.
const (
	DefaultLimit = 20
	DefaultMax   = 100
)

// Source is the ordered read side of the profile store. Ranked returns
// profiles by rating descending then id ascending; Rank returns the 1-based
// position of id in that order.
type Source interface {
	Ranked(ctx context.Context, limit, offset int) ([]model.Profile, error)
	Rank(ctx context.Context, id string) (int, model.Profile, error)
}

// Aggregator serves leaderboard pages straight from the store.
type Aggregator struct {
	src Source
	max int
}

// New creates an aggregator capping page size at maxLimit.
func New(src Source, maxLimit int) *Aggregator {
	if maxLimit <= 0 {
		maxLimit = DefaultMax
	}
	return &Aggregator{src: src, max: maxLimit}
}

// Max returns the page size cap.
func (a *Aggregator) Max() int { return a.max }

// List returns up to limit entries starting at offset. limit is clamped to
// [1, max]; a negative offset is treated as zero.
func (a *Aggregator) List(ctx context.Context, limit, offset int) ([]types.LeaderboardEntry, error) {
	switch {
	case limit <= 0:
		limit = 1
	case limit > a.max:
		limit = a.max
	}
	if offset < 0 {
		offset = 0
	}

	profiles, err := a.src.Ranked(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ranked profiles: %w", err)
	}
	out := make([]types.LeaderboardEntry, 0, len(profiles))
	for i, p := range profiles {
		out = append(out, types.NewLeaderboardEntry(offset+i+1, p))
	}
	return out, nil
}

// Rank returns the entry for a single profile.
func (a *Aggregator) Rank(ctx context.Context, id string) (types.LeaderboardEntry, error) {
	rank, p, err := a.src.Rank(ctx, id)
	if err != nil {
		return types.LeaderboardEntry{}, err
	}
	return types.NewLeaderboardEntry(rank, p), nil
}
