package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/ranked/internal/domain/model"
)

// MemoryLedger keeps tokens and votes in process memory.
type MemoryLedger struct {
	mu     sync.Mutex
	tokens map[string]*model.MatchToken
	votes  []model.Vote
	opts   options
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger(opts ...Option) *MemoryLedger {
	return &MemoryLedger{
		tokens: make(map[string]*model.MatchToken),
		opts:   applyOptions(opts),
	}
}

func (l *MemoryLedger) Issue(_ context.Context, tok model.MatchToken) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.tokens[tok.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateToken, tok.ID)
	}
	tok.Resolved = false
	tok.ResolvedAt = nil
	l.tokens[tok.ID] = &tok
	return nil
}

func (l *MemoryLedger) Cast(_ context.Context, req CastRequest) (model.Vote, model.RatingUpdateCommand, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tok, ok := l.tokens[req.TokenID]
	if !ok {
		return model.Vote{}, model.RatingUpdateCommand{}, fmt.Errorf("%w: %s", ErrTokenNotFound, req.TokenID)
	}
	if err := check(tok, req); err != nil {
		return model.Vote{}, model.RatingUpdateCommand{}, err
	}

	at := req.At.UTC()
	tok.Resolved = true
	tok.ResolvedAt = &at
	vote := model.Vote{
		ID:       l.opts.newID(),
		TokenID:  tok.ID,
		WinnerID: req.WinnerID,
		LoserID:  tok.Opponent(req.WinnerID),
		VoterID:  req.VoterID,
		CastAt:   at,
	}
	l.votes = append(l.votes, vote)
	return vote, model.RatingUpdateCommand{VoteID: vote.ID, WinnerID: vote.WinnerID, LoserID: vote.LoserID}, nil
}

func (l *MemoryLedger) Token(_ context.Context, id string) (model.MatchToken, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tok, ok := l.tokens[id]
	if !ok {
		return model.MatchToken{}, fmt.Errorf("%w: %s", ErrTokenNotFound, id)
	}
	return *tok, nil
}

func (l *MemoryLedger) Votes(_ context.Context, limit int) ([]model.Vote, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	start := 0
	if limit > 0 && len(l.votes) > limit {
		start = len(l.votes) - limit
	}
	return append([]model.Vote(nil), l.votes[start:]...), nil
}

func (l *MemoryLedger) Sweep(_ context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-l.opts.retention)
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for id, tok := range l.tokens {
		if !tok.Resolved && !tok.ExpiresAt.After(cutoff) {
			delete(l.tokens, id)
			removed++
		}
	}
	return removed, nil
}

// Close is a no-op for the memory ledger.
func (l *MemoryLedger) Close() error { return nil }
