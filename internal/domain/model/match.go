package model

import "time"

// MatchToken binds two profiles to one pending vote.
type MatchToken struct {
	ID          string     `json:"token"`
	ProfileA    string     `json:"profile_a"`
	ProfileB    string     `json:"profile_b"`
	RequesterID string     `json:"requester_id,omitempty"`
	IssuedAt    time.Time  `json:"issued_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	Resolved    bool       `json:"resolved"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// Expired reports whether the token is past its validity window at t.
func (t *MatchToken) Expired(at time.Time) bool {
	return !at.Before(t.ExpiresAt)
}

// Binds reports whether id is one of the two profiles on the token.
func (t *MatchToken) Binds(id string) bool {
	return id != "" && (id == t.ProfileA || id == t.ProfileB)
}

// Opponent returns the other bound profile for id.
func (t *MatchToken) Opponent(id string) string {
	if id == t.ProfileA {
		return t.ProfileB
	}
	return t.ProfileA
}

// Vote is an accepted, immutable vote record.
type Vote struct {
	ID       string    `json:"id"`
	TokenID  string    `json:"token"`
	WinnerID string    `json:"winner_id"`
	LoserID  string    `json:"loser_id"`
	VoterID  string    `json:"voter_id,omitempty"`
	CastAt   time.Time `json:"cast_at"`
}

// RatingUpdateCommand is emitted by the ledger for each accepted vote.
type RatingUpdateCommand struct {
	VoteID   string
	WinnerID string
	LoserID  string
}

// PairKey returns the unordered key for two profile ids.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "\x00" + b
}
