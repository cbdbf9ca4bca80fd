package pairing_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/ranked/internal/domain/model"
	pairing "github.com/okian/ranked/internal/domain/pairing"
	"github.com/okian/ranked/internal/domain/recency"
	. "github.com/smartystreets/goconvey/convey"
)

type population struct {
	ids []string
}

func newPopulation(n int) *population {
	p := &population{}
	for i := 0; i < n; i++ {
		p.ids = append(p.ids, fmt.Sprintf("p%d", i))
	}
	return p
}

func (p *population) Count(context.Context) (int, error) { return len(p.ids), nil }

func (p *population) IDAt(_ context.Context, i int) (string, error) {
	if i < 0 || i >= len(p.ids) {
		return "", model.ErrNotFound
	}
	return p.ids[i], nil
}

func (p *population) IndexOf(_ context.Context, id string) (int, error) {
	for i, v := range p.ids {
		if v == id {
			return i, nil
		}
	}
	return -1, model.ErrNotFound
}

func (p *population) Get(_ context.Context, id string) (model.Profile, error) {
	return model.Profile{ID: id, Name: "Name " + id, PhotoURL: "https://x/" + id, Rating: 1200}, nil
}

type issuer struct {
	mu     sync.Mutex
	tokens []model.MatchToken
	err    error
}

func (i *issuer) Issue(_ context.Context, tok model.MatchToken) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.err != nil {
		return i.err
	}
	i.tokens = append(i.tokens, tok)
	return nil
}

// sequence returns canned draws in order, then repeats the last one.
func sequence(vals ...int) func(int) int {
	var mu sync.Mutex
	pos := 0
	return func(n int) int {
		mu.Lock()
		defer mu.Unlock()
		v := vals[len(vals)-1]
		if pos < len(vals) {
			v = vals[pos]
			pos++
		}
		return v % n
	}
}

func TestSelectorNext(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	Convey("Given a population of one", t, func() {
		sel := pairing.NewSelector(newPopulation(1), &issuer{})
		_, err := sel.Next(ctx, pairing.Request{})
		So(errors.Is(err, pairing.ErrInsufficientPopulation), ShouldBeTrue)
	})

	Convey("Given a population of two where the requester is one of them", t, func() {
		sel := pairing.NewSelector(newPopulation(2), &issuer{})
		_, err := sel.Next(ctx, pairing.Request{RequesterID: "p0"})
		So(errors.Is(err, pairing.ErrInsufficientPopulation), ShouldBeTrue)
	})

	Convey("Given a population of ten", t, func() {
		iss := &issuer{}
		sel := pairing.NewSelector(newPopulation(10), iss,
			pairing.WithClock(func() time.Time { return now }),
			pairing.WithTokenTTL(2*time.Minute))

		Convey("When many pairs are drawn", func() {
			for i := 0; i < 500; i++ {
				pair, err := sel.Next(ctx, pairing.Request{RequesterID: "p3"})
				So(err, ShouldBeNil)
				So(pair.Profiles, ShouldHaveLength, 2)
				So(pair.Profiles[0].ID, ShouldNotEqual, pair.Profiles[1].ID)
				So(pair.Profiles[0].ID, ShouldNotEqual, "p3")
				So(pair.Profiles[1].ID, ShouldNotEqual, "p3")
			}
		})

		Convey("When a single pair is drawn", func() {
			pair, err := sel.Next(ctx, pairing.Request{})

			Convey("Then a token binding both profiles is issued", func() {
				So(err, ShouldBeNil)
				So(iss.tokens, ShouldHaveLength, 1)
				tok := iss.tokens[0]
				So(tok.ID, ShouldEqual, pair.Token)
				So(tok.Binds(pair.Profiles[0].ID), ShouldBeTrue)
				So(tok.Binds(pair.Profiles[1].ID), ShouldBeTrue)
				So(tok.ExpiresAt.Equal(now.Add(2*time.Minute)), ShouldBeTrue)
				So(pair.ExpiresAt.Equal(tok.ExpiresAt), ShouldBeTrue)
			})

			Convey("Then identities are blinded", func() {
				So(pair.Profiles[0].Name, ShouldBeEmpty)
				So(pair.Profiles[0].PhotoURL, ShouldBeEmpty)
			})
		})

		Convey("When the requester asks for revealed summaries", func() {
			pair, err := sel.Next(ctx, pairing.Request{Revealed: true})
			So(err, ShouldBeNil)
			So(pair.Profiles[0].Name, ShouldNotBeEmpty)
		})

		Convey("When the issuer fails", func() {
			iss.err = errors.New("ledger down")
			_, err := sel.Next(ctx, pairing.Request{})
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given a recency cache holding the first draw", t, func() {
		cache := recency.New(recency.WithWindow(time.Hour))
		cache.Record("p0", "p1")
		sel := pairing.NewSelector(newPopulation(5), &issuer{},
			pairing.WithRecency(cache),
			// first draw p0,p1 then p2,p3
			pairing.WithIntN(sequence(0, 0, 2, 2)))

		Convey("Then the recent pair is redrawn", func() {
			pair, err := sel.Next(ctx, pairing.Request{})
			So(err, ShouldBeNil)
			So(pair.Profiles[0].ID, ShouldEqual, "p2")
			So(pair.Profiles[1].ID, ShouldEqual, "p3")
			So(cache.Seen("p2", "p3"), ShouldBeTrue)
		})
	})

	Convey("Given every possible pair was shown recently", t, func() {
		cache := recency.New(recency.WithWindow(time.Hour))
		cache.Record("p0", "p1")
		sel := pairing.NewSelector(newPopulation(2), &issuer{},
			pairing.WithRecency(cache), pairing.WithAttempts(3))

		Convey("Then the selector still returns a pair", func() {
			pair, err := sel.Next(ctx, pairing.Request{})
			So(err, ShouldBeNil)
			So(pair.Profiles[0].ID, ShouldNotEqual, pair.Profiles[1].ID)
		})
	})
}
