// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Nested sections map to koanf keys joined by ".".
// - External errors must be wrapped with this package's sentinel errors.
package config

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// metricName matches a valid Prometheus name component.
var metricName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// MaxLeaderboardLimit caps GET /api/leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// InitialRating is assigned to new profiles.
	InitialRating int64 `koanf:"initial_rating"`

	// TokenTTL is how long an issued match token accepts a vote.
	TokenTTL time.Duration `koanf:"token_ttl"`

	// TokenRetention keeps unresolved tokens around after expiry so late
	// votes get TokenExpired rather than TokenNotFound.
	TokenRetention time.Duration `koanf:"token_retention"`

	// SweepInterval is how often expired tokens are purged. Zero disables.
	SweepInterval time.Duration `koanf:"sweep_interval"`

	// RecencyWindow and RecencyCapacity bound the anti-repeat pair cache.
	RecencyWindow   time.Duration `koanf:"recency_window"`
	RecencyCapacity int           `koanf:"recency_capacity"`

	// PairAttempts bounds redraws when a recently shown pair comes up.
	PairAttempts int `koanf:"pair_attempts"`

	// DedupeSize bounds the vote-id replay guard of the rating updater.
	DedupeSize int `koanf:"dedupe_size"`

	// RequireVoter rejects votes without an X-Voter-ID header.
	RequireVoter bool `koanf:"require_voter"`

	// CORSOrigins lists allowed browser origins.
	CORSOrigins []string `koanf:"cors_origins"`

	// SeedFile optionally names a YAML file of profiles loaded at startup.
	SeedFile string `koanf:"seed_file"`

	Rating  RatingConfig  `koanf:"rating"`
	Store   StoreConfig   `koanf:"store"`
	Ledger  LedgerConfig  `koanf:"ledger"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// RatingConfig selects the rating rule.
type RatingConfig struct {
	// Mode is elo or fixed.
	Mode       string  `koanf:"mode"`
	KFactor    float64 `koanf:"k_factor"`
	FixedDelta int64   `koanf:"fixed_delta"`
}

// StoreConfig selects the profile store backend.
type StoreConfig struct {
	// Driver is memory, sqlite or postgres.
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
	// MaxOpenConns caps the SQL pool. SQLite always uses one connection.
	MaxOpenConns int `koanf:"max_open_conns"`
}

// LedgerConfig selects the vote ledger backend.
type LedgerConfig struct {
	// Driver is memory, redis or sql. The sql ledger shares the store's
	// database when the store is SQL backed, otherwise it opens Store.DSN
	// with the sqlite driver.
	Driver      string `koanf:"driver"`
	RedisAddr   string `koanf:"redis_addr"`
	RedisDB     int    `koanf:"redis_db"`
	RedisPrefix string `koanf:"redis_prefix"`
}

// MetricsConfig shapes the exported Prometheus collectors.
type MetricsConfig struct {
	// Enabled false turns every recorder into a no-op; /healthz stays up.
	Enabled   bool   `koanf:"enabled"`
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
	Prefix    string `koanf:"prefix"`
	// ConstLabels are attached to every series, e.g. {deployment: eu-1}.
	ConstLabels map[string]string `koanf:"const_labels"`
	// LatencyBuckets are millisecond bounds for store and HTTP histograms.
	LatencyBuckets []float64 `koanf:"latency_buckets"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		MaxLeaderboardLimit: 100,
		InitialRating:       1200,
		TokenTTL:            5 * time.Minute,
		TokenRetention:      time.Hour,
		SweepInterval:       time.Minute,
		RecencyWindow:       10 * time.Minute,
		RecencyCapacity:     4096,
		PairAttempts:        5,
		DedupeSize:          100_000,
		CORSOrigins:         []string{"http://localhost:3000"},
		Rating: RatingConfig{
			Mode:       "elo",
			KFactor:    32,
			FixedDelta: 8,
		},
		Store: StoreConfig{
			Driver: "memory",
		},
		Ledger: LedgerConfig{
			Driver:      "memory",
			RedisAddr:   "localhost:6379",
			RedisPrefix: "ranked:",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "ranked",
			Subsystem: "engine",
		},
	}
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var problems []string
	if c.Addr == "" {
		problems = append(problems, "addr must not be empty")
	}
	if c.MaxLeaderboardLimit < 1 {
		problems = append(problems, "max_leaderboard_limit must be >= 1")
	}
	if c.TokenTTL <= 0 {
		problems = append(problems, "token_ttl must be positive")
	}
	if c.TokenRetention < 0 {
		problems = append(problems, "token_retention must be >= 0")
	}
	if c.SweepInterval < 0 {
		problems = append(problems, "sweep_interval must be >= 0")
	}
	if c.RecencyCapacity < 0 {
		problems = append(problems, "recency_capacity must be >= 0")
	}
	if c.PairAttempts < 1 {
		problems = append(problems, "pair_attempts must be >= 1")
	}
	switch strings.ToLower(c.Rating.Mode) {
	case "elo":
		if c.Rating.KFactor <= 0 {
			problems = append(problems, "rating.k_factor must be positive")
		}
	case "fixed":
		if c.Rating.FixedDelta < 0 {
			problems = append(problems, "rating.fixed_delta must be >= 0")
		}
	default:
		problems = append(problems, fmt.Sprintf("rating.mode %q is not elo or fixed", c.Rating.Mode))
	}
	switch c.Store.Driver {
	case "memory", "sqlite":
	case "postgres":
		if c.Store.DSN == "" {
			problems = append(problems, "store.dsn is required for postgres")
		}
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q is not memory, sqlite or postgres", c.Store.Driver))
	}
	switch c.Ledger.Driver {
	case "memory", "sql":
	case "redis":
		if c.Ledger.RedisAddr == "" {
			problems = append(problems, "ledger.redis_addr is required for redis")
		}
	default:
		problems = append(problems, fmt.Sprintf("ledger.driver %q is not memory, redis or sql", c.Ledger.Driver))
	}
	problems = append(problems, c.Metrics.validate()...)
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log_format %q is not text or json", c.LogFormat))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func (m MetricsConfig) validate() []string {
	var problems []string
	for key, v := range map[string]string{
		"metrics.namespace": m.Namespace,
		"metrics.subsystem": m.Subsystem,
		"metrics.prefix":    m.Prefix,
	} {
		if v != "" && !metricName.MatchString(v) {
			problems = append(problems, fmt.Sprintf("%s %q is not a valid metric name", key, v))
		}
	}
	for name := range m.ConstLabels {
		if !metricName.MatchString(name) {
			problems = append(problems, fmt.Sprintf("metrics.const_labels key %q is not a valid label name", name))
		}
	}
	for i := 1; i < len(m.LatencyBuckets); i++ {
		if m.LatencyBuckets[i] <= m.LatencyBuckets[i-1] {
			problems = append(problems, "metrics.latency_buckets must be strictly increasing")
			break
		}
	}
	return problems
}
