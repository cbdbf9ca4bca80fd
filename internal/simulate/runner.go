package simulate

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/ranked/pkg/logger"
)

// counters are shared by the voting workers.
type counters struct {
	pairs           atomic.Int64
	accepted        atomic.Int64
	rejected        atomic.Int64
	replays         atomic.Int64
	replaysRejected atomic.Int64
	replaysAccepted atomic.Int64
	failures        atomic.Int64
}

// Run seeds profiles, votes concurrently, then verifies the leaderboard.
// The target service must not receive other traffic during a run.
func Run(ctx context.Context, cfg Config) (*Stats, error) {
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}
	if cfg.Voters < 1 {
		cfg.Voters = 1
	}
	if cfg.PageSize < 1 {
		cfg.PageSize = DefaultPageSize
	}

	stats := &Stats{StartTime: time.Now()}
	client := NewClient(cfg.BaseURL, cfg.Timeout)

	if err := client.Health(ctx); err != nil {
		return stats, fmt.Errorf("health check: %w", err)
	}
	log.Info(ctx, "service is healthy", logger.String("url", cfg.BaseURL))

	prefix := "sim" + strconv.FormatInt(stats.StartTime.UnixNano(), 36)
	for _, p := range generateProfiles(cfg.Profiles, cfg.Seed, prefix) {
		if _, err := client.CreateProfile(ctx, p); err != nil {
			return stats, fmt.Errorf("create profile %s: %w", p.ID, err)
		}
		stats.ProfilesCreated++
	}
	log.Info(ctx, "profiles created", logger.Int("count", stats.ProfilesCreated))

	entries, err := client.FullLeaderboard(ctx, cfg.PageSize)
	if err != nil {
		return stats, fmt.Errorf("baseline: %w", err)
	}
	before := snapshot(entries)

	var (
		c         counters
		remaining atomic.Int64
		wg        sync.WaitGroup
	)
	remaining.Store(int64(cfg.Votes))
	for w := 0; w < cfg.Voters; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			voter := ""
			if cfg.VoterPrefix != "" {
				voter = fmt.Sprintf("%s-%d", cfg.VoterPrefix, id)
			}
			r := rand.New(rand.NewPCG(cfg.Seed, uint64(id)))
			for remaining.Add(-1) >= 0 && ctx.Err() == nil {
				round(ctx, client, voter, r, cfg.ReplayEvery, &c)
			}
		}(w)
	}
	wg.Wait()

	stats.PairsIssued = c.pairs.Load()
	stats.VotesAccepted = c.accepted.Load() + c.replaysAccepted.Load()
	stats.VotesRejected = c.rejected.Load()
	stats.Replays = c.replays.Load()
	stats.ReplaysRejected = c.replaysRejected.Load()
	stats.ReplaysAccepted = c.replaysAccepted.Load()
	stats.Failures = c.failures.Load()
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	entries, err = client.FullLeaderboard(ctx, cfg.PageSize)
	if err != nil {
		return stats, fmt.Errorf("final leaderboard: %w", err)
	}
	after := snapshot(entries)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	logStats(ctx, log, stats, after)

	if err := verify(before, after, stats); err != nil {
		return stats, err
	}
	log.Info(ctx, "verification passed",
		logger.Int64("ratingSum", after.RatingSum),
		logger.Int64("matchSum", after.MatchSum))
	return stats, nil
}

// round requests one pair, votes on it and sometimes replays the token.
func round(ctx context.Context, client *Client, voter string, r *rand.Rand, replayEvery int, c *counters) {
	pair, err := client.RandomPair(ctx)
	if err != nil {
		classifyFailure(err, c)
		return
	}
	c.pairs.Add(1)

	pick := r.IntN(2)
	if _, err := client.Vote(ctx, pair.Token, pair.Profiles[pick].ID, voter); err != nil {
		classifyFailure(err, c)
		return
	}
	n := c.accepted.Add(1)

	if replayEvery <= 0 || n%int64(replayEvery) != 0 {
		return
	}
	c.replays.Add(1)
	_, err = client.Vote(ctx, pair.Token, pair.Profiles[1-pick].ID, voter)
	var se *StatusError
	switch {
	case err == nil:
		c.replaysAccepted.Add(1)
	case errors.As(err, &se) && se.Status == http.StatusConflict:
		c.replaysRejected.Add(1)
	default:
		c.failures.Add(1)
	}
}

// classifyFailure counts 4xx and 503 answers as rejections and anything
// else as a failure.
func classifyFailure(err error, c *counters) {
	var se *StatusError
	if errors.As(err, &se) && (se.Status < http.StatusInternalServerError || se.Status == http.StatusServiceUnavailable) {
		c.rejected.Add(1)
		return
	}
	c.failures.Add(1)
}

func logStats(ctx context.Context, log logger.Logger, stats *Stats, after Snapshot) {
	rate := 0.0
	if secs := stats.Duration.Seconds(); secs > 0 {
		rate = float64(stats.VotesAccepted) / secs
	}
	log.Info(ctx, "simulation finished",
		logger.Int("profiles", after.Profiles),
		logger.Int64("pairs", stats.PairsIssued),
		logger.Int64("accepted", stats.VotesAccepted),
		logger.Int64("rejected", stats.VotesRejected),
		logger.Int64("replays", stats.Replays),
		logger.Int64("replaysRejected", stats.ReplaysRejected),
		logger.Int64("failures", stats.Failures),
		logger.Duration("duration", stats.Duration),
		logger.Float64("votesPerSecond", rate))
}
