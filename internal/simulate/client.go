package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/okian/ranked/internal/domain/model"
	"github.com/okian/ranked/internal/domain/types"
)

// voterHeader matches the header read by the HTTP API.
const voterHeader = "X-Voter-ID"

// ErrStatus is returned when the service answers with an unexpected status.
var ErrStatus = errors.New("unexpected status")

// StatusError carries the status and error code of a failed call.
type StatusError struct {
	Status int
	Code   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %d (%s)", ErrStatus, e.Status, e.Code)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

// Client is a thin JSON client for the ranking API.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{base: baseURL, http: &http.Client{Timeout: timeout}}
}

// Health checks that the service answers /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", "", nil, nil)
}

// CreateProfile creates p and returns the stored profile.
func (c *Client) CreateProfile(ctx context.Context, p model.Profile) (model.Profile, error) {
	var out model.Profile
	err := c.do(ctx, http.MethodPost, "/api/profiles", "", p, &out)
	return out, err
}

// RandomPair requests a blind pair.
func (c *Client) RandomPair(ctx context.Context) (types.Pair, error) {
	var out types.Pair
	err := c.do(ctx, http.MethodGet, "/api/profiles/random", "", nil, &out)
	return out, err
}

// Vote casts winner on token.
func (c *Client) Vote(ctx context.Context, token, winner, voter string) (types.VoteResult, error) {
	var out types.VoteResult
	body := map[string]string{"winner_id": winner}
	err := c.do(ctx, http.MethodPost, "/api/matches/"+url.PathEscape(token)+"/vote", voter, body, &out)
	return out, err
}

// Leaderboard reads one page.
func (c *Client) Leaderboard(ctx context.Context, limit, offset int) ([]types.LeaderboardEntry, error) {
	var out []types.LeaderboardEntry
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	err := c.do(ctx, http.MethodGet, "/api/leaderboard?"+q.Encode(), "", nil, &out)
	return out, err
}

// FullLeaderboard pages through every entry.
func (c *Client) FullLeaderboard(ctx context.Context, pageSize int) ([]types.LeaderboardEntry, error) {
	var all []types.LeaderboardEntry
	for offset := 0; ; offset += pageSize {
		page, err := c.Leaderboard(ctx, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("leaderboard offset %d: %w", offset, err)
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

func (c *Client) do(ctx context.Context, method, path, voter string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if voter != "" {
		req.Header.Set(voterHeader, voter)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusMultipleChoices {
		var e struct {
			Code string `json:"code"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &StatusError{Status: resp.StatusCode, Code: e.Code}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
