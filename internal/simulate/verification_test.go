package simulate

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/ranked/internal/domain/types"
)

func entry(rank int, id string, rating, matches int64) types.LeaderboardEntry {
	return types.LeaderboardEntry{Rank: rank, ID: id, Rating: rating, MatchCount: matches}
}

func TestSnapshot(t *testing.T) {
	Convey("Given a well ordered board", t, func() {
		s := snapshot([]types.LeaderboardEntry{
			entry(1, "a", 1216, 1),
			entry(2, "b", 1200, 0),
			entry(3, "c", 1200, 0),
			entry(4, "d", 1184, 1),
		})

		Convey("Then the sums add up and no faults are reported", func() {
			So(s.Profiles, ShouldEqual, 4)
			So(s.RatingSum, ShouldEqual, 4800)
			So(s.MatchSum, ShouldEqual, 2)
			So(s.OrderErrors, ShouldBeEmpty)
		})
	})

	Convey("Given a board with a tie out of id order and a rank gap", t, func() {
		s := snapshot([]types.LeaderboardEntry{
			entry(1, "b", 1200, 0),
			entry(2, "a", 1200, 0),
			entry(4, "c", 1100, 0),
		})

		Convey("Then both faults are reported", func() {
			So(s.OrderErrors, ShouldHaveLength, 2)
		})
	})
}

func TestVerify(t *testing.T) {
	Convey("Given a baseline of three fresh profiles", t, func() {
		before := Snapshot{Profiles: 3, RatingSum: 3600}

		Convey("When two accepted votes conserve rating", func() {
			after := Snapshot{Profiles: 3, RatingSum: 3600, MatchSum: 4}
			So(verify(before, after, &Stats{VotesAccepted: 2}), ShouldBeNil)
		})

		Convey("When rating drifts and match counts fall short", func() {
			after := Snapshot{Profiles: 3, RatingSum: 3601, MatchSum: 2}
			err := verify(before, after, &Stats{VotesAccepted: 2})
			So(errors.Is(err, ErrVerification), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "rating sum drifted")
			So(err.Error(), ShouldContainSubstring, "match count sum is 2, want 4")
		})

		Convey("When a replayed token was accepted", func() {
			after := Snapshot{Profiles: 3, RatingSum: 3600, MatchSum: 4}
			err := verify(before, after, &Stats{VotesAccepted: 2, ReplaysAccepted: 1})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "accepted twice")
		})

		Convey("When the profile population changes mid-run", func() {
			after := Snapshot{Profiles: 4, RatingSum: 4800}
			So(verify(before, after, &Stats{}), ShouldNotBeNil)
		})
	})
}
