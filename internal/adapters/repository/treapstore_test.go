package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/okian/ranked/internal/domain/model"
)

func profile(id string) model.Profile {
	return model.Profile{ID: id, Name: "Profile " + id, Clubs: []string{"chess"}}
}

// storeFactories lets every contract test run against each backend.
func storeFactories(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": func() Store { return NewTreapStore() },
		"sqlite": func() Store { return newSQLiteStore(t) },
	}
}

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", sanitize(t.Name()), rand.Int63())
	db, err := OpenDB(DriverSQLite, dsn, 0)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	s, err := NewGormStore(db)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sanitize(name string) string {
	out := []rune(name)
	for i, r := range out {
		if r == '/' || r == ' ' {
			out[i] = '_'
		}
	}
	return string(out)
}

func TestStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	for name, mk := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := mk()

			if n, _ := store.Count(ctx); n != 0 {
				t.Errorf("expected count 0, got %d", n)
			}

			created, err := store.Create(ctx, profile("alice"))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if created.Rating != DefaultInitialRating || created.MatchCount != 0 {
				t.Errorf("expected fresh rating state, got %d/%d", created.Rating, created.MatchCount)
			}

			got, err := store.Get(ctx, "alice")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Name != "Profile alice" || len(got.Clubs) != 1 || got.Clubs[0] != "chess" {
				t.Errorf("unexpected profile: %+v", got)
			}

			if _, err := store.Create(ctx, profile("alice")); !errors.Is(err, ErrAlreadyExists) {
				t.Errorf("expected ErrAlreadyExists, got %v", err)
			}
			if _, err := store.Get(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
			if _, err := store.Create(ctx, model.Profile{Name: ""}); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}

			anon, err := store.Create(ctx, model.Profile{Name: "No Id"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if anon.ID == "" {
				t.Error("expected a generated id")
			}
		})
	}
}

func TestStore_RatingFieldsIgnoredOnCreate(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(WithInitialRating(1500))
	p := profile("a")
	p.Rating = 9999
	p.MatchCount = 42
	got, err := store.Create(ctx, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Rating != 1500 || got.MatchCount != 0 {
		t.Errorf("expected 1500/0, got %d/%d", got.Rating, got.MatchCount)
	}
}

func TestStore_VerifiedIgnoredOnCreate(t *testing.T) {
	ctx := context.Background()
	for name, mk := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := mk()
			p := profile("a")
			p.Verified = true
			got, err := store.Create(ctx, p)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Verified {
				t.Error("created profile must not be verified")
			}
			stored, err := store.Get(ctx, "a")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if stored.Verified {
				t.Error("stored profile must not be verified")
			}
		})
	}
}

func TestStore_ApplyRatingDelta(t *testing.T) {
	ctx := context.Background()
	for name, mk := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := mk()
			for _, id := range []string{"a", "b"} {
				if _, err := store.Create(ctx, profile(id)); err != nil {
					t.Fatalf("create %s: %v", id, err)
				}
			}

			p, err := store.ApplyRatingDelta(ctx, "a", 16, 1)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Rating != 1216 || p.MatchCount != 1 {
				t.Errorf("expected 1216/1, got %d/%d", p.Rating, p.MatchCount)
			}
			p, err = store.ApplyRatingDelta(ctx, "b", -16, 1)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Rating != 1184 {
				t.Errorf("expected 1184, got %d", p.Rating)
			}

			if _, err := store.ApplyRatingDelta(ctx, "ghost", 1, 1); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}

			rank, _, err := store.Rank(ctx, "b")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rank != 2 {
				t.Errorf("expected rank 2, got %d", rank)
			}
		})
	}
}

func TestStore_OrderingAndTieBreaking(t *testing.T) {
	ctx := context.Background()
	for name, mk := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := mk()
			deltas := map[string]int64{"d": 0, "b": 10, "c": 10, "a": -5, "e": 30}
			for _, id := range []string{"d", "b", "c", "a", "e"} {
				if _, err := store.Create(ctx, profile(id)); err != nil {
					t.Fatalf("create: %v", err)
				}
				if _, err := store.ApplyRatingDelta(ctx, id, deltas[id], 0); err != nil {
					t.Fatalf("delta: %v", err)
				}
			}

			want := []string{"e", "b", "c", "d", "a"}
			got, err := store.Ranked(ctx, 10, 0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(want) {
				t.Fatalf("expected %d entries, got %d", len(want), len(got))
			}
			for i, id := range want {
				if got[i].ID != id {
					t.Errorf("position %d: expected %s, got %s", i, id, got[i].ID)
				}
				rank, _, err := store.Rank(ctx, id)
				if err != nil || rank != i+1 {
					t.Errorf("rank of %s: expected %d, got %d (%v)", id, i+1, rank, err)
				}
			}

			page, err := store.Ranked(ctx, 2, 1)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(page) != 2 || page[0].ID != "b" || page[1].ID != "c" {
				t.Errorf("unexpected page: %v", ids(page))
			}

			empty, err := store.Ranked(ctx, 5, 10)
			if err != nil || len(empty) != 0 {
				t.Errorf("expected empty page, got %v (%v)", ids(empty), err)
			}

			if _, err := store.Ranked(ctx, 0, 0); !errors.Is(err, ErrInvalidLimit) {
				t.Errorf("expected ErrInvalidLimit, got %v", err)
			}
		})
	}
}

func TestStore_CreationOrderIndex(t *testing.T) {
	ctx := context.Background()
	for name, mk := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := mk()
			order := []string{"z", "m", "a"}
			for _, id := range order {
				if _, err := store.Create(ctx, profile(id)); err != nil {
					t.Fatalf("create: %v", err)
				}
			}
			for i, id := range order {
				got, err := store.IDAt(ctx, i)
				if err != nil || got != id {
					t.Errorf("IDAt(%d): expected %s, got %s (%v)", i, id, got, err)
				}
				idx, err := store.IndexOf(ctx, id)
				if err != nil || idx != i {
					t.Errorf("IndexOf(%s): expected %d, got %d (%v)", id, i, idx, err)
				}
			}
			if _, err := store.IDAt(ctx, 3); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound past the end, got %v", err)
			}
			if _, err := store.IndexOf(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStore_ConcurrentDeltasConserveRating(t *testing.T) {
	ctx := context.Background()
	for name, mk := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := mk()
			n := 8
			for i := 0; i < n; i++ {
				if _, err := store.Create(ctx, profile(fmt.Sprintf("p%d", i))); err != nil {
					t.Fatalf("create: %v", err)
				}
			}

			var wg sync.WaitGroup
			workers, perWorker := 8, 50
			for w := 0; w < workers; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					for j := 0; j < perWorker; j++ {
						a := fmt.Sprintf("p%d", (w+j)%n)
						b := fmt.Sprintf("p%d", (w+j+1)%n)
						d := int64(j%7 + 1)
						if _, err := store.ApplyRatingDelta(ctx, a, d, 1); err != nil {
							t.Errorf("apply: %v", err)
						}
						if _, err := store.ApplyRatingDelta(ctx, b, -d, 1); err != nil {
							t.Errorf("apply: %v", err)
						}
					}
				}(w)
			}
			wg.Wait()

			all, err := store.Ranked(ctx, 100, 0)
			if err != nil {
				t.Fatalf("ranked: %v", err)
			}
			var total, matches int64
			for _, p := range all {
				total += p.Rating
				matches += p.MatchCount
			}
			if total != int64(n)*DefaultInitialRating {
				t.Errorf("rating not conserved: %d", total)
			}
			if matches != int64(2*workers*perWorker) {
				t.Errorf("expected %d matches, got %d", 2*workers*perWorker, matches)
			}
			sorted := sort.SliceIsSorted(all, func(i, j int) bool {
				return less(all[i].Rating, all[i].ID, all[j].Rating, all[j].ID)
			})
			if !sorted {
				t.Errorf("ranked output not in total order: %v", ids(all))
			}
		})
	}
}

func TestTreapStore_RankMatchesFullSort(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore()
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 300; i++ {
		id := fmt.Sprintf("t%03d", i)
		if _, err := store.Create(ctx, profile(id)); err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := store.ApplyRatingDelta(ctx, id, int64(r.Intn(40)-20), 0); err != nil {
			t.Fatalf("delta: %v", err)
		}
	}

	all, err := store.Ranked(ctx, 300, 0)
	if err != nil {
		t.Fatalf("ranked: %v", err)
	}
	for i, p := range all {
		rank, _, err := store.Rank(ctx, p.ID)
		if err != nil || rank != i+1 {
			t.Fatalf("rank of %s: expected %d, got %d (%v)", p.ID, i+1, rank, err)
		}
	}
	for _, off := range []int{0, 1, 57, 150, 299} {
		page, _ := store.Ranked(ctx, 10, off)
		if len(page) == 0 || page[0].ID != all[off].ID {
			t.Errorf("offset %d: expected %s first", off, all[off].ID)
		}
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open("mongo", ""); !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("expected ErrUnknownDriver, got %v", err)
	}
	s, err := Open("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s.(*TreapStore); !ok {
		t.Errorf("expected memory store, got %T", s)
	}
}

func ids(ps []model.Profile) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}
