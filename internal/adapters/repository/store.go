// Package repository holds the profile store and its backends.
package repository

import (
	"context"
	"fmt"

	"github.com/okian/ranked/internal/domain/model"
)

// DefaultInitialRating is assigned to newly created profiles.
const DefaultInitialRating int64 = 1200

// Store provides access to profiles and their rating state.
type Store interface {
	// Create inserts a profile with the initial rating and zero matches.
	// An empty id is replaced by a generated one. Returns ErrAlreadyExists
	// on id clash and ErrInvalidInput when validation fails.
	Create(ctx context.Context, p model.Profile) (model.Profile, error)

	// Get returns a copy of the profile. Returns ErrNotFound if unknown.
	Get(ctx context.Context, id string) (model.Profile, error)

	// ApplyRatingDelta atomically adds delta to the rating and
	// matchIncrement to the match count, returning the updated profile.
	// Returns ErrNotFound for unknown ids and ErrConflict when the backend
	// could not serialize the write.
	ApplyRatingDelta(ctx context.Context, id string, delta, matchIncrement int64) (model.Profile, error)

	// Count returns the number of profiles.
	Count(ctx context.Context) (int, error)

	// IDAt returns the id at position i in creation order.
	IDAt(ctx context.Context, i int) (string, error)

	// IndexOf returns the creation-order position of id.
	IndexOf(ctx context.Context, id string) (int, error)

	// Ranked returns up to limit profiles ordered by rating desc, id asc.
	Ranked(ctx context.Context, limit, offset int) ([]model.Profile, error)

	// Rank returns the 1-based position of id in ranked order.
	Rank(ctx context.Context, id string) (int, model.Profile, error)

	Close() error
}

// Open builds the store named by driver. The memory driver ignores dsn.
func Open(driver, dsn string, opts ...Option) (Store, error) {
	switch driver {
	case "", DriverMemory:
		return NewTreapStore(opts...), nil
	case DriverSQLite, DriverPostgres:
		o := applyOptions(opts)
		db, err := OpenDB(driver, dsn, o.maxOpenConns)
		if err != nil {
			return nil, err
		}
		return NewGormStore(db, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
