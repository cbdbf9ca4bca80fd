// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Profile limits.
const (
	MaxClubs       = 3
	MaxExperiences = 3
	maxNameLen     = 120
)

// Education is a participant's degree record.
type Education struct {
	Degree         string `json:"degree" yaml:"degree"`
	Major          string `json:"major" yaml:"major"`
	GraduationYear int    `json:"graduation_year" yaml:"graduation_year"`
}

// Experience is one professional experience entry.
type Experience struct {
	Title       string `json:"title" yaml:"title"`
	Company     string `json:"company" yaml:"company"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// Links holds optional external profile links.
type Links struct {
	LinkedIn string `json:"linkedin_url,omitempty" yaml:"linkedin_url"`
	GitHub   string `json:"github_url,omitempty" yaml:"github_url"`
	Website  string `json:"website_url,omitempty" yaml:"website_url"`
}

// Profile is a participant record. Rating and MatchCount are owned by the
// rating updater; everything else is written by the profile collaborator.
type Profile struct {
	ID          string       `json:"id" yaml:"id"`
	Name        string       `json:"name" yaml:"name"`
	PhotoURL    string       `json:"photo_url,omitempty" yaml:"photo_url"`
	Education   Education    `json:"education" yaml:"education"`
	Clubs       []string     `json:"clubs,omitempty" yaml:"clubs"`
	Experiences []Experience `json:"experiences,omitempty" yaml:"experiences"`
	Links       Links        `json:"links" yaml:"links"`
	Verified    bool         `json:"verified" yaml:"-"`
	Rating      int64        `json:"elo_rating" yaml:"-"`
	MatchCount  int64        `json:"match_count" yaml:"-"`
	CreatedAt   time.Time    `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time    `json:"updated_at" yaml:"-"`
}

// Validate checks the attribute constraints of a profile.
func (p *Profile) Validate() error {
	name := strings.TrimSpace(p.Name)
	switch {
	case name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	case len(name) > maxNameLen:
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidInput, maxNameLen)
	case len(p.Clubs) > MaxClubs:
		return fmt.Errorf("%w: at most %d clubs", ErrInvalidInput, MaxClubs)
	case len(p.Experiences) > MaxExperiences:
		return fmt.Errorf("%w: at most %d experiences", ErrInvalidInput, MaxExperiences)
	case p.MatchCount < 0:
		return fmt.Errorf("%w: match_count must be non-negative", ErrInvalidInput)
	}
	if strings.ContainsAny(p.ID, "/ \t\n") {
		return fmt.Errorf("%w: malformed id %q", ErrInvalidInput, p.ID)
	}

	seen := make(map[string]struct{}, len(p.Clubs))
	for _, c := range p.Clubs {
		key := strings.ToLower(strings.TrimSpace(c))
		if key == "" {
			return fmt.Errorf("%w: empty club", ErrInvalidInput)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate club %q", ErrInvalidInput, c)
		}
		seen[key] = struct{}{}
	}

	for i, e := range p.Experiences {
		if strings.TrimSpace(e.Title) == "" || strings.TrimSpace(e.Company) == "" {
			return fmt.Errorf("%w: experience %d needs title and company", ErrInvalidInput, i)
		}
	}

	for _, raw := range []string{p.PhotoURL, p.Links.LinkedIn, p.Links.GitHub, p.Links.Website} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" {
			return fmt.Errorf("%w: malformed url %q", ErrInvalidInput, raw)
		}
	}
	return nil
}

// Clone returns a deep copy so callers cannot alias store internals.
func (p Profile) Clone() Profile {
	if p.Clubs != nil {
		p.Clubs = append([]string(nil), p.Clubs...)
	}
	if p.Experiences != nil {
		p.Experiences = append([]Experience(nil), p.Experiences...)
	}
	return p
}
