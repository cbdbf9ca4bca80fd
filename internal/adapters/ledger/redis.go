package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/ranked/internal/domain/model"
)

// Result codes returned by castScript.
const (
	castOK = iota
	castNotFound
	castExpired
	castResolved
	castInvalidWinner
)

// castScript runs every acceptance check and the resolution in one
// server-side step.
//
// KEYS: token hash, vote hash, vote list
// ARGV: winner, now (unix ms), vote id, voter id
var castScript = redis.NewScript(`
local t = redis.call('HMGET', KEYS[1], 'a', 'b', 'expires_ms', 'resolved')
if not (t[1] and t[2] and t[3]) then return {1, ''} end
if tonumber(ARGV[2]) >= tonumber(t[3]) then return {2, ''} end
if t[4] == '1' then return {3, ''} end
local loser
if ARGV[1] == t[1] then loser = t[2]
elseif ARGV[1] == t[2] then loser = t[1]
else return {4, ''} end
redis.call('HSET', KEYS[1], 'resolved', '1', 'resolved_ms', ARGV[2], 'vote_id', ARGV[3])
redis.call('PERSIST', KEYS[1])
redis.call('HSET', KEYS[2], 'token', KEYS[1], 'winner', ARGV[1], 'loser', loser, 'voter', ARGV[4], 'cast_ms', ARGV[2])
redis.call('RPUSH', KEYS[3], ARGV[3])
return {0, loser}
`)

// issueScript writes a token hash and its TTL only when the key is free.
//
// KEYS: token hash
// ARGV: a, b, requester, issued (unix ms), expires (unix ms), evict at (unix ms)
var issueScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then return 0 end
redis.call('HSET', KEYS[1], 'a', ARGV[1], 'b', ARGV[2], 'requester', ARGV[3],
  'issued_ms', ARGV[4], 'expires_ms', ARGV[5], 'resolved', '0')
redis.call('PEXPIREAT', KEYS[1], ARGV[6])
return 1
`)

// RedisLedger stores tokens and votes in Redis. Unresolved tokens carry a
// key TTL of expiry plus retention, so Redis performs the sweep.
type RedisLedger struct {
	rdb  redis.UniversalClient
	opts options
}

// NewRedisLedger creates a ledger on rdb.
func NewRedisLedger(rdb redis.UniversalClient, opts ...Option) *RedisLedger {
	return &RedisLedger{rdb: rdb, opts: applyOptions(opts)}
}

func (l *RedisLedger) tokenKey(id string) string { return l.opts.prefix + "token:" + id }
func (l *RedisLedger) voteKey(id string) string  { return l.opts.prefix + "vote:" + id }
func (l *RedisLedger) votesKey() string          { return l.opts.prefix + "votes" }

func (l *RedisLedger) Issue(ctx context.Context, tok model.MatchToken) error {
	created, err := issueScript.Run(ctx, l.rdb, []string{l.tokenKey(tok.ID)},
		tok.ProfileA,
		tok.ProfileB,
		tok.RequesterID,
		tok.IssuedAt.UnixMilli(),
		tok.ExpiresAt.UnixMilli(),
		tok.ExpiresAt.Add(l.opts.retention).UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	if created == 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateToken, tok.ID)
	}
	return nil
}

func (l *RedisLedger) Cast(ctx context.Context, req CastRequest) (model.Vote, model.RatingUpdateCommand, error) {
	voteID := l.opts.newID()
	keys := []string{l.tokenKey(req.TokenID), l.voteKey(voteID), l.votesKey()}
	res, err := castScript.Run(ctx, l.rdb, keys, req.WinnerID, req.At.UnixMilli(), voteID, req.VoterID).Slice()
	if err != nil {
		return model.Vote{}, model.RatingUpdateCommand{}, fmt.Errorf("cast vote: %w", err)
	}
	if len(res) != 2 {
		return model.Vote{}, model.RatingUpdateCommand{}, fmt.Errorf("cast vote: unexpected reply %v", res)
	}
	code, _ := res[0].(int64)
	switch code {
	case castOK:
	case castNotFound:
		return model.Vote{}, model.RatingUpdateCommand{}, fmt.Errorf("%w: %s", ErrTokenNotFound, req.TokenID)
	case castExpired:
		return model.Vote{}, model.RatingUpdateCommand{}, ErrTokenExpired
	case castResolved:
		return model.Vote{}, model.RatingUpdateCommand{}, ErrAlreadyResolved
	case castInvalidWinner:
		return model.Vote{}, model.RatingUpdateCommand{}, ErrInvalidWinner
	default:
		return model.Vote{}, model.RatingUpdateCommand{}, fmt.Errorf("cast vote: unknown code %d", code)
	}

	loser, _ := res[1].(string)
	vote := model.Vote{
		ID:       voteID,
		TokenID:  req.TokenID,
		WinnerID: req.WinnerID,
		LoserID:  loser,
		VoterID:  req.VoterID,
		CastAt:   time.UnixMilli(req.At.UnixMilli()).UTC(),
	}
	return vote, model.RatingUpdateCommand{VoteID: voteID, WinnerID: vote.WinnerID, LoserID: loser}, nil
}

func (l *RedisLedger) Token(ctx context.Context, id string) (model.MatchToken, error) {
	h, err := l.rdb.HGetAll(ctx, l.tokenKey(id)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return model.MatchToken{}, fmt.Errorf("load token: %w", err)
	}
	if len(h) == 0 {
		return model.MatchToken{}, fmt.Errorf("%w: %s", ErrTokenNotFound, id)
	}
	tok := model.MatchToken{
		ID:          id,
		ProfileA:    h["a"],
		ProfileB:    h["b"],
		RequesterID: h["requester"],
		IssuedAt:    millis(h["issued_ms"]),
		ExpiresAt:   millis(h["expires_ms"]),
		Resolved:    h["resolved"] == "1",
	}
	if v, ok := h["resolved_ms"]; ok {
		at := millis(v)
		tok.ResolvedAt = &at
	}
	return tok, nil
}

func (l *RedisLedger) Votes(ctx context.Context, limit int) ([]model.Vote, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	ids, err := l.rdb.LRange(ctx, l.votesKey(), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	if len(ids) == 0 {
		return []model.Vote{}, nil
	}
	cmds, err := l.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, id := range ids {
			p.HGetAll(ctx, l.voteKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load votes: %w", err)
	}
	out := make([]model.Vote, 0, len(ids))
	for i, cmd := range cmds {
		h, err := cmd.(*redis.MapStringStringCmd).Result()
		if err != nil || len(h) == 0 {
			continue
		}
		out = append(out, model.Vote{
			ID:       ids[i],
			TokenID:  strings.TrimPrefix(h["token"], l.tokenKey("")),
			WinnerID: h["winner"],
			LoserID:  h["loser"],
			VoterID:  h["voter"],
			CastAt:   millis(h["cast_ms"]),
		})
	}
	return out, nil
}

// Sweep is a no-op: unresolved tokens expire through their key TTL.
func (l *RedisLedger) Sweep(context.Context, time.Time) (int, error) { return 0, nil }

func (l *RedisLedger) Close() error { return l.rdb.Close() }

func millis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
