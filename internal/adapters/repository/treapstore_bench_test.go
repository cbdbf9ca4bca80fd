package repository

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
)

func seededTreap(b *testing.B, n int) *TreapStore {
	b.Helper()
	ctx := context.Background()
	s := NewTreapStore()
	r := rand.New(rand.NewSource(1))
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("p%07d", i)
		if _, err := s.Create(ctx, profile(id)); err != nil {
			b.Fatalf("create: %v", err)
		}
		if _, err := s.ApplyRatingDelta(ctx, id, int64(r.Intn(800)-400), 0); err != nil {
			b.Fatalf("delta: %v", err)
		}
	}
	return s
}

func BenchmarkTreapStore_ApplyRatingDelta(b *testing.B) {
	ctx := context.Background()
	s := seededTreap(b, 100_000)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			id := fmt.Sprintf("p%07d", r.Intn(100_000))
			_, _ = s.ApplyRatingDelta(ctx, id, int64(r.Intn(33)-16), 1)
		}
	})
}

func BenchmarkTreapStore_Rank(b *testing.B) {
	ctx := context.Background()
	s := seededTreap(b, 100_000)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			_, _, _ = s.Rank(ctx, fmt.Sprintf("p%07d", r.Intn(100_000)))
		}
	})
}

func BenchmarkTreapStore_RankedPage(b *testing.B) {
	ctx := context.Background()
	s := seededTreap(b, 100_000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Ranked(ctx, 50, (i*50)%100_000)
	}
}
