package service

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/okian/ranked/internal/adapters/ledger"
	"github.com/okian/ranked/internal/adapters/repository"
	"github.com/okian/ranked/internal/config"
	"github.com/okian/ranked/internal/domain/rating"
)

// FromConfig opens the backends named by cfg and returns the options that
// wire them into a Service. Backends opened here are released by
// Service.Close.
func FromConfig(ctx context.Context, cfg *config.Config) ([]Option, error) {
	rater, err := rating.NewRater(cfg.Rating.Mode, cfg.Rating.KFactor, cfg.Rating.FixedDelta)
	if err != nil {
		return nil, err
	}

	store, err := repository.Open(cfg.Store.Driver, cfg.Store.DSN,
		repository.WithInitialRating(cfg.InitialRating),
		repository.WithMaxOpenConns(cfg.Store.MaxOpenConns),
	)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	opts := []Option{
		WithStore(store),
		WithRater(rater),
		WithTokenTTL(cfg.TokenTTL),
		WithRecency(cfg.RecencyWindow, cfg.RecencyCapacity),
		WithPairAttempts(cfg.PairAttempts),
		WithDedupeSize(cfg.DedupeSize),
		WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
		WithSweepInterval(cfg.SweepInterval),
		WithSeedFile(cfg.SeedFile),
	}

	ledgerOpts := []ledger.Option{
		ledger.WithRetention(cfg.TokenRetention),
		ledger.WithKeyPrefix(cfg.Ledger.RedisPrefix),
	}
	switch cfg.Ledger.Driver {
	case "", ledger.DriverMemory:
		opts = append(opts, WithLedger(ledger.NewMemoryLedger(ledgerOpts...)))
	case ledger.DriverRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.Ledger.RedisAddr,
			DB:   cfg.Ledger.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			_ = store.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Ledger.RedisAddr, err)
		}
		opts = append(opts, WithLedger(ledger.NewRedisLedger(rdb, ledgerOpts...)))
	case ledger.DriverSQL:
		l, closer, err := sqlLedger(store, cfg.Store.DSN, ledgerOpts)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		opts = append(opts, WithLedger(l), WithCloser(closer))
	default:
		_ = store.Close()
		return nil, fmt.Errorf("%w: %q", ledger.ErrUnknownDriver, cfg.Ledger.Driver)
	}
	return opts, nil
}

// sqlLedger shares the store's database when it is SQL backed, otherwise
// it opens dsn with the sqlite driver.
func sqlLedger(store repository.Store, dsn string, opts []ledger.Option) (ledger.Ledger, func() error, error) {
	if gs, ok := store.(*repository.GormStore); ok {
		l, err := ledger.NewGormLedger(gs.DB(), opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("open ledger: %w", err)
		}
		return l, func() error { return nil }, nil
	}

	db, err := repository.OpenDB(repository.DriverSQLite, dsn, 1)
	if err != nil {
		return nil, nil, fmt.Errorf("open ledger db: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("open ledger db: %w", err)
	}
	l, err := ledger.NewGormLedger(db, opts...)
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("open ledger: %w", err)
	}
	return l, sqlDB.Close, nil
}
