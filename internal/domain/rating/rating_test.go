package rating_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/okian/ranked/internal/domain/model"
	rating "github.com/okian/ranked/internal/domain/rating"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeStore is a map-backed store with injectable write failures.
type fakeStore struct {
	mu       sync.Mutex
	profiles map[string]model.Profile
	// failures maps a profile id to errors returned by successive writes
	failures map[string][]error
	writes   int
}

func newFakeStore(ratings map[string]int64) *fakeStore {
	s := &fakeStore{profiles: map[string]model.Profile{}, failures: map[string][]error{}}
	for id, r := range ratings {
		s.profiles[id] = model.Profile{ID: id, Name: id, Rating: r}
	}
	return s
}

func (s *fakeStore) Get(_ context.Context, id string) (model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return model.Profile{}, model.ErrNotFound
	}
	return p, nil
}

func (s *fakeStore) ApplyRatingDelta(_ context.Context, id string, delta, inc int64) (model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if errs := s.failures[id]; len(errs) > 0 {
		s.failures[id] = errs[1:]
		if errs[0] != nil {
			return model.Profile{}, errs[0]
		}
	}
	p, ok := s.profiles[id]
	if !ok {
		return model.Profile{}, model.ErrNotFound
	}
	p.Rating += delta
	p.MatchCount += inc
	s.profiles[id] = p
	s.writes++
	return p, nil
}

func TestElo(t *testing.T) {
	Convey("Given an Elo rater with K=32", t, func() {
		r := rating.Elo{K: 32}

		Convey("When equal ratings meet", func() {
			So(r.Expected(1200, 1200), ShouldAlmostEqual, 0.5)
			So(r.Delta(1200, 1200), ShouldEqual, 16)
		})

		Convey("When the favourite wins", func() {
			So(r.Delta(1400, 1200), ShouldEqual, 8)
		})

		Convey("When the underdog wins", func() {
			So(r.Delta(1200, 1400), ShouldEqual, 24)
		})

		Convey("When the gap is enormous", func() {
			d := r.Delta(4000, 0)
			So(d, ShouldBeGreaterThanOrEqualTo, 0)
			So(d, ShouldBeLessThanOrEqualTo, 1)
		})
	})
}

func TestNewRater(t *testing.T) {
	Convey("Given rater modes", t, func() {
		Convey("When the mode is empty", func() {
			r, err := rating.NewRater("", 32, 8)
			So(err, ShouldBeNil)
			So(r, ShouldHaveSameTypeAs, rating.Elo{})
		})

		Convey("When the mode is fixed", func() {
			r, err := rating.NewRater("FIXED", 32, 8)
			So(err, ShouldBeNil)
			So(r.Delta(1000, 2000), ShouldEqual, 8)
			So(r.Delta(2000, 1000), ShouldEqual, 8)
		})

		Convey("When the configuration is invalid", func() {
			_, err := rating.NewRater("glicko", 32, 8)
			So(errors.Is(err, rating.ErrInvalidRater), ShouldBeTrue)
			_, err = rating.NewRater("elo", 0, 8)
			So(errors.Is(err, rating.ErrInvalidRater), ShouldBeTrue)
			_, err = rating.NewRater("fixed", 32, -1)
			So(errors.Is(err, rating.ErrInvalidRater), ShouldBeTrue)
		})
	})
}

func TestUpdaterApply(t *testing.T) {
	ctx := context.Background()

	Convey("Given two fresh profiles at 1200", t, func() {
		store := newFakeStore(map[string]int64{"a": 1200, "b": 1200})
		u := rating.NewUpdater(store)

		Convey("When a vote for a is applied", func() {
			out, err := u.Apply(ctx, model.RatingUpdateCommand{VoteID: "v1", WinnerID: "a", LoserID: "b"})

			Convey("Then a gains 16 and b loses 16", func() {
				So(err, ShouldBeNil)
				So(out.Winner.Before, ShouldEqual, 1200)
				So(out.Winner.After, ShouldEqual, 1216)
				So(out.Loser.After, ShouldEqual, 1184)
				So(out.Winner.Delta, ShouldEqual, -out.Loser.Delta)
				So(out.Winner.Profile.MatchCount, ShouldEqual, 1)
				So(out.Loser.Profile.MatchCount, ShouldEqual, 1)
			})

			Convey("And the same vote id is applied again", func() {
				_, err := u.Apply(ctx, model.RatingUpdateCommand{VoteID: "v1", WinnerID: "a", LoserID: "b"})

				Convey("Then the replay is rejected without mutation", func() {
					So(errors.Is(err, rating.ErrDuplicateVote), ShouldBeTrue)
					a, _ := store.Get(ctx, "a")
					So(a.Rating, ShouldEqual, 1216)
					So(a.MatchCount, ShouldEqual, 1)
				})
			})
		})

		Convey("When winner and loser are the same", func() {
			_, err := u.Apply(ctx, model.RatingUpdateCommand{VoteID: "v1", WinnerID: "a", LoserID: "a"})
			So(errors.Is(err, rating.ErrSelfMatch), ShouldBeTrue)
		})

		Convey("When the loser does not exist", func() {
			_, err := u.Apply(ctx, model.RatingUpdateCommand{VoteID: "v1", WinnerID: "a", LoserID: "ghost"})

			Convey("Then nothing is written", func() {
				So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
				So(store.writes, ShouldEqual, 0)
			})
		})

		Convey("When the loser write fails permanently", func() {
			store.failures["b"] = []error{errors.New("disk gone")}
			_, err := u.Apply(ctx, model.RatingUpdateCommand{VoteID: "v1", WinnerID: "a", LoserID: "b"})

			Convey("Then the winner write is compensated", func() {
				So(err, ShouldNotBeNil)
				a, _ := store.Get(ctx, "a")
				b, _ := store.Get(ctx, "b")
				So(a.Rating, ShouldEqual, 1200)
				So(a.MatchCount, ShouldEqual, 0)
				So(b.Rating, ShouldEqual, 1200)
			})

			Convey("And the vote id is released for a retry", func() {
				out, err := u.Apply(ctx, model.RatingUpdateCommand{VoteID: "v1", WinnerID: "a", LoserID: "b"})
				So(err, ShouldBeNil)
				So(out.Winner.After, ShouldEqual, 1216)
			})
		})

		Convey("When the loser write fails inside a caller transaction", func() {
			tx := newFakeStore(map[string]int64{"a": 1200, "b": 1200})
			tx.failures["b"] = []error{errors.New("disk gone")}
			_, err := u.ApplyIn(ctx, tx, model.RatingUpdateCommand{VoteID: "v1", WinnerID: "a", LoserID: "b"})

			Convey("Then the winner write is left for the rollback", func() {
				So(err, ShouldNotBeNil)
				a, _ := tx.Get(ctx, "a")
				So(a.Rating, ShouldEqual, 1216)
				So(tx.writes, ShouldEqual, 1)
				So(store.writes, ShouldEqual, 0)
			})
		})

		Convey("When the store reports a transient conflict", func() {
			store.failures["a"] = []error{model.ErrConflict}
			out, err := u.Apply(ctx, model.RatingUpdateCommand{VoteID: "v1", WinnerID: "a", LoserID: "b"})

			Convey("Then the update is retried and succeeds", func() {
				So(err, ShouldBeNil)
				So(out.Winner.After, ShouldEqual, 1216)
				So(out.Loser.After, ShouldEqual, 1184)
			})
		})

		Convey("When conflicts outlast the retry budget", func() {
			store.failures["a"] = []error{model.ErrConflict, model.ErrConflict}
			u := rating.NewUpdater(store, rating.WithMaxAttempts(2))
			_, err := u.Apply(ctx, model.RatingUpdateCommand{VoteID: "v2", WinnerID: "a", LoserID: "b"})
			So(errors.Is(err, rating.ErrRetryExhausted), ShouldBeTrue)
			So(errors.Is(err, model.ErrConflict), ShouldBeTrue)
		})
	})

	Convey("Given a fixed-delta updater", t, func() {
		store := newFakeStore(map[string]int64{"a": 1500, "b": 900})
		u := rating.NewUpdater(store, rating.WithRater(rating.Fixed{Points: 8}))
		out, err := u.Apply(ctx, model.RatingUpdateCommand{VoteID: "v", WinnerID: "b", LoserID: "a"})
		So(err, ShouldBeNil)
		So(out.Winner.After, ShouldEqual, 908)
		So(out.Loser.After, ShouldEqual, 1492)
	})
}

func TestUpdaterConservation(t *testing.T) {
	Convey("Given many concurrent votes across four profiles", t, func() {
		ids := []string{"a", "b", "c", "d"}
		store := newFakeStore(map[string]int64{"a": 1200, "b": 1200, "c": 1200, "d": 1200})
		u := rating.NewUpdater(store)

		var wg sync.WaitGroup
		for i := 0; i < 200; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				w, l := ids[i%4], ids[(i+1+i/4)%4]
				if w == l {
					l = ids[(i+2)%4]
				}
				_, _ = u.Apply(context.Background(), model.RatingUpdateCommand{WinnerID: w, LoserID: l})
			}(i)
		}
		wg.Wait()

		Convey("Then total rating is conserved and match counts add up", func() {
			var total, matches int64
			for _, id := range ids {
				p, _ := store.Get(context.Background(), id)
				total += p.Rating
				matches += p.MatchCount
			}
			So(total, ShouldEqual, 4*1200)
			So(matches, ShouldEqual, 400)
		})
	})
}
