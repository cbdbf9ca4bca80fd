// Package simulate drives a running ranking service over HTTP and checks
// the invariants that must hold after a burst of concurrent voting.
package simulate

import (
	"runtime"
	"time"

	"github.com/okian/ranked/pkg/logger"
)

// Default configuration values.
const (
	DefaultBaseURL     = "http://localhost:9080"
	DefaultProfiles    = 50
	DefaultVotes       = 2000
	DefaultReplayEvery = 10
	DefaultTimeout     = 10 * time.Second
	DefaultPageSize    = 100
)

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL     string        // Base URL of the service
	Profiles    int           // Profiles created before voting
	Votes       int           // Pair-and-vote rounds across all voters
	Voters      int           // Concurrent voters
	ReplayEvery int           // Every Nth accepted token is submitted again; 0 disables
	Timeout     time.Duration // HTTP request timeout
	PageSize    int           // Leaderboard page size used for verification
	Seed        uint64        // Seed for generated profile attributes
	VoterPrefix string        // Prefix of the X-Voter-ID header; empty sends none
	Logger      logger.Logger // Run progress and final stats; nil discards
}

// DefaultConfig returns the configuration used when no flag overrides it.
func DefaultConfig() Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		Profiles:    DefaultProfiles,
		Votes:       DefaultVotes,
		Voters:      runtime.NumCPU() * 2,
		ReplayEvery: DefaultReplayEvery,
		Timeout:     DefaultTimeout,
		PageSize:    DefaultPageSize,
		Seed:        1,
		VoterPrefix: "sim-voter",
	}
}

// Stats holds run statistics.
type Stats struct {
	ProfilesCreated int
	PairsIssued     int64
	VotesAccepted   int64
	VotesRejected   int64
	Replays         int64
	ReplaysRejected int64
	ReplaysAccepted int64
	Failures        int64

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// Snapshot is the aggregate state of a full leaderboard read.
type Snapshot struct {
	Profiles    int
	RatingSum   int64
	MatchSum    int64
	OrderErrors []string
}
