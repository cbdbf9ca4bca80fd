package simulate

import (
	"errors"
	"fmt"

	"github.com/okian/ranked/internal/domain/types"
)

// ErrVerification is returned when the final leaderboard breaks an invariant.
var ErrVerification = errors.New("verification failed")

// snapshot aggregates a full leaderboard read and records ordering faults.
func snapshot(entries []types.LeaderboardEntry) Snapshot {
	s := Snapshot{Profiles: len(entries)}
	for i, e := range entries {
		s.RatingSum += e.Rating
		s.MatchSum += e.MatchCount
		if e.Rank != i+1 {
			s.OrderErrors = append(s.OrderErrors, fmt.Sprintf("entry %d (%s) has rank %d", i, e.ID, e.Rank))
		}
		if i == 0 {
			continue
		}
		prev := entries[i-1]
		if prev.Rating < e.Rating || (prev.Rating == e.Rating && prev.ID >= e.ID) {
			s.OrderErrors = append(s.OrderErrors,
				fmt.Sprintf("%s (%d) ranked above %s (%d)", prev.ID, prev.Rating, e.ID, e.Rating))
		}
	}
	return s
}

// verify compares the final state against the baseline taken before voting.
// Rating must be conserved, every accepted vote must add exactly two
// matches, and the board must be totally ordered.
func verify(before, after Snapshot, stats *Stats) error {
	var errs []error
	if after.Profiles != before.Profiles {
		errs = append(errs, fmt.Errorf("profile count changed from %d to %d", before.Profiles, after.Profiles))
	}
	if after.RatingSum != before.RatingSum {
		errs = append(errs, fmt.Errorf("rating sum drifted from %d to %d", before.RatingSum, after.RatingSum))
	}
	if want := before.MatchSum + 2*stats.VotesAccepted; after.MatchSum != want {
		errs = append(errs, fmt.Errorf("match count sum is %d, want %d", after.MatchSum, want))
	}
	if stats.ReplaysAccepted > 0 {
		errs = append(errs, fmt.Errorf("%d replayed tokens were accepted twice", stats.ReplaysAccepted))
	}
	for _, o := range after.OrderErrors {
		errs = append(errs, errors.New(o))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrVerification, errors.Join(errs...))
}
