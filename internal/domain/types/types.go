// Package types contains the read shapes returned by the engine.
package types

import (
	"time"

	"github.com/okian/ranked/internal/domain/model"
)

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Rank        int                `json:"rank"`
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	PhotoURL    string             `json:"photo_url,omitempty"`
	Rating      int64              `json:"elo_rating"`
	MatchCount  int64              `json:"match_count"`
	Education   model.Education    `json:"education"`
	Clubs       []string           `json:"clubs,omitempty"`
	Experiences []model.Experience `json:"experiences,omitempty"`
}

// NewLeaderboardEntry projects a profile at the given rank.
func NewLeaderboardEntry(rank int, p model.Profile) LeaderboardEntry {
	return LeaderboardEntry{
		Rank:        rank,
		ID:          p.ID,
		Name:        p.Name,
		PhotoURL:    p.PhotoURL,
		Rating:      p.Rating,
		MatchCount:  p.MatchCount,
		Education:   p.Education,
		Clubs:       p.Clubs,
		Experiences: p.Experiences,
	}
}

// ProfileSummary is the voter-facing view of a profile. Identity fields are
// empty unless Revealed is set.
type ProfileSummary struct {
	ID          string             `json:"id"`
	Revealed    bool               `json:"revealed"`
	Name        string             `json:"name,omitempty"`
	PhotoURL    string             `json:"photo_url,omitempty"`
	Links       *model.Links       `json:"links,omitempty"`
	Education   model.Education    `json:"education"`
	Clubs       []string           `json:"clubs,omitempty"`
	Experiences []model.Experience `json:"experiences,omitempty"`
	Rating      int64              `json:"elo_rating"`
	MatchCount  int64              `json:"match_count"`
}

// Summarize builds a summary, withholding identity fields unless revealed.
func Summarize(p model.Profile, revealed bool) ProfileSummary {
	s := ProfileSummary{
		ID:          p.ID,
		Revealed:    revealed,
		Education:   p.Education,
		Clubs:       p.Clubs,
		Experiences: p.Experiences,
		Rating:      p.Rating,
		MatchCount:  p.MatchCount,
	}
	if revealed {
		links := p.Links
		s.Name = p.Name
		s.PhotoURL = p.PhotoURL
		s.Links = &links
	}
	return s
}

// Pair is the response to a pair request.
type Pair struct {
	Token     string           `json:"match_token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Profiles  []ProfileSummary `json:"profiles"`
}

// RatingChange describes one profile's rating movement.
type RatingChange struct {
	Profile      ProfileSummary `json:"profile"`
	RatingBefore int64          `json:"rating_before"`
	RatingAfter  int64          `json:"rating_after"`
	Delta        int64          `json:"delta"`
}

// VoteResult is the response to an accepted vote.
type VoteResult struct {
	VoteID string       `json:"vote_id"`
	Token  string       `json:"match_token"`
	Winner RatingChange `json:"winner"`
	Loser  RatingChange `json:"loser"`
	CastAt time.Time    `json:"cast_at"`
}
