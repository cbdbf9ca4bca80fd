package repository

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/ranked/internal/domain/model"
	"github.com/okian/ranked/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: rating DESC, then id ASC (deterministic).
// "less" means ranks earlier, so in-order traversal yields the leaderboard
// from best to worst. Subtree sizes give O(log n) rank and offset lookups.

const memoryStoreName = "memory"

type node struct {
	id     string
	rating int64
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aRating, aID) should appear before (bRating, bID).
func less(aRating int64, aID string, bRating int64, bID string) bool {
	if aRating != bRating {
		return aRating > bRating
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, rating int64, prio uint64) *node {
	if n == nil {
		return &node{id: id, rating: rating, prio: prio, size: 1}
	}
	if less(rating, id, n.rating, n.id) {
		n.left = insert(n.left, id, rating, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, rating, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, rating int64) *node {
	if n == nil {
		return nil
	}
	if rating == n.rating && id == n.id {
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, rating)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, rating)
		}
	} else if less(rating, id, n.rating, n.id) {
		n.left = deleteNode(n.left, id, rating)
	} else {
		n.right = deleteNode(n.right, id, rating)
	}
	fix(n)
	return n
}

// countBefore returns how many nodes rank strictly earlier than (rating, id).
func countBefore(n *node, rating int64, id string) int {
	count := 0
	for n != nil {
		if less(n.rating, n.id, rating, id) {
			count += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// collectRange appends up to limit ids in rank order, skipping the first offset.
func collectRange(n *node, offset, limit int, out *[]string) {
	if n == nil || len(*out) >= limit {
		return
	}
	leftSize := nsize(n.left)
	if offset < leftSize {
		collectRange(n.left, offset, limit, out)
	}
	if len(*out) < limit && offset <= leftSize {
		*out = append(*out, n.id)
	}
	if len(*out) < limit {
		next := offset - leftSize - 1
		if next < 0 {
			next = 0
		}
		collectRange(n.right, next, limit, out)
	}
}

type record struct {
	profile model.Profile
	seq     int
}

// TreapStore keeps profiles in memory with a rank index.
type TreapStore struct {
	mu    sync.RWMutex
	root  *node
	byID  map[string]*record
	order []string // ids in creation order
	opts  options
}

// NewTreapStore constructs an empty in-memory store.
func NewTreapStore(opts ...Option) *TreapStore {
	return &TreapStore{
		byID: make(map[string]*record),
		opts: applyOptions(opts),
	}
}

func (s *TreapStore) Create(_ context.Context, p model.Profile) (model.Profile, error) {
	start := time.Now()
	defer metrics.RecordStoreUpdateLatency(memoryStoreName, start)

	p = p.Clone()
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := p.Validate(); err != nil {
		return model.Profile{}, err
	}
	now := s.opts.now().UTC()
	p.Rating = s.opts.initialRating
	p.MatchCount = 0
	p.Verified = false
	p.CreatedAt = now
	p.UpdatedAt = now

	s.mu.Lock()
	if _, ok := s.byID[p.ID]; ok {
		s.mu.Unlock()
		return model.Profile{}, fmt.Errorf("%w: %s", ErrAlreadyExists, p.ID)
	}
	s.byID[p.ID] = &record{profile: p, seq: len(s.order)}
	s.order = append(s.order, p.ID)
	s.root = insert(s.root, p.ID, p.Rating, rand.Uint64())
	total := len(s.order)
	s.mu.Unlock()

	metrics.UpdateProfilesTotal(total)
	return p.Clone(), nil
}

func (s *TreapStore) Get(_ context.Context, id string) (model.Profile, error) {
	start := time.Now()
	defer metrics.RecordStoreQueryLatency(memoryStoreName, start)

	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return model.Profile{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec.profile.Clone(), nil
}

// ApplyRatingDelta re-indexes the profile under its new rating in O(log n).
func (s *TreapStore) ApplyRatingDelta(_ context.Context, id string, delta, matchIncrement int64) (model.Profile, error) {
	start := time.Now()
	defer metrics.RecordStoreUpdateLatency(memoryStoreName, start)

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.Profile{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.root = deleteNode(s.root, id, rec.profile.Rating)
	rec.profile.Rating += delta
	rec.profile.MatchCount += matchIncrement
	rec.profile.UpdatedAt = s.opts.now().UTC()
	s.root = insert(s.root, id, rec.profile.Rating, rand.Uint64())
	return rec.profile.Clone(), nil
}

func (s *TreapStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order), nil
}

func (s *TreapStore) IDAt(_ context.Context, i int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.order) {
		return "", fmt.Errorf("%w: index %d", ErrNotFound, i)
	}
	return s.order[i], nil
}

func (s *TreapStore) IndexOf(_ context.Context, id string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return -1, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec.seq, nil
}

func (s *TreapStore) Ranked(_ context.Context, limit, offset int) ([]model.Profile, error) {
	start := time.Now()
	defer metrics.RecordStoreQueryLatency(memoryStoreName, start)

	if limit < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	if offset < 0 {
		offset = 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if offset >= len(s.order) {
		return []model.Profile{}, nil
	}
	ids := make([]string, 0, limit)
	collectRange(s.root, offset, limit, &ids)
	out := make([]model.Profile, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.byID[id].profile.Clone())
	}
	return out, nil
}

func (s *TreapStore) Rank(_ context.Context, id string) (int, model.Profile, error) {
	start := time.Now()
	defer metrics.RecordStoreQueryLatency(memoryStoreName, start)

	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return 0, model.Profile{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return countBefore(s.root, rec.profile.Rating, id) + 1, rec.profile.Clone(), nil
}

// Close is a no-op for the memory store.
func (s *TreapStore) Close() error { return nil }
