package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/okian/ranked/internal/domain/model"
)

type tokenRow struct {
	ID          string `gorm:"primaryKey;size:64"`
	ProfileA    string `gorm:"size:64;not null"`
	ProfileB    string `gorm:"size:64;not null"`
	RequesterID string `gorm:"size:64"`
	IssuedAt    time.Time
	ExpiresAt   time.Time `gorm:"index"`
	Resolved    bool      `gorm:"index;not null;default:false"`
	ResolvedAt  *time.Time
}

func (tokenRow) TableName() string { return "match_tokens" }

func (r tokenRow) toModel() model.MatchToken {
	return model.MatchToken{
		ID:          r.ID,
		ProfileA:    r.ProfileA,
		ProfileB:    r.ProfileB,
		RequesterID: r.RequesterID,
		IssuedAt:    r.IssuedAt.UTC(),
		ExpiresAt:   r.ExpiresAt.UTC(),
		Resolved:    r.Resolved,
		ResolvedAt:  r.ResolvedAt,
	}
}

type voteRow struct {
	Seq      uint   `gorm:"primaryKey;autoIncrement"`
	ID       string `gorm:"column:vote_id;uniqueIndex;size:64;not null"`
	TokenID  string `gorm:"uniqueIndex;size:64;not null"`
	WinnerID string `gorm:"size:64;not null"`
	LoserID  string `gorm:"size:64;not null"`
	VoterID  string `gorm:"size:64"`
	CastAt   time.Time
}

func (voteRow) TableName() string { return "votes" }

// GormLedger stores tokens and votes in SQL. The unique token_id on votes
// backs the conditional resolve as a second line of defence.
type GormLedger struct {
	db   *gorm.DB
	opts options
}

// NewGormLedger migrates the ledger tables on db.
func NewGormLedger(db *gorm.DB, opts ...Option) (*GormLedger, error) {
	if err := db.AutoMigrate(&tokenRow{}, &voteRow{}); err != nil {
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return &GormLedger{db: db, opts: applyOptions(opts)}, nil
}

func (l *GormLedger) Issue(ctx context.Context, tok model.MatchToken) error {
	row := tokenRow{
		ID:          tok.ID,
		ProfileA:    tok.ProfileA,
		ProfileB:    tok.ProfileB,
		RequesterID: tok.RequesterID,
		IssuedAt:    tok.IssuedAt.UTC(),
		ExpiresAt:   tok.ExpiresAt.UTC(),
	}
	if err := l.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateToken, tok.ID)
		}
		return fmt.Errorf("issue token: %w", err)
	}
	return nil
}

// ApplyFunc runs inside the cast transaction once the vote row is written.
// A returned error rolls the cast back and leaves the token unresolved.
type ApplyFunc func(tx *gorm.DB, cmd model.RatingUpdateCommand) error

// Shares reports whether the ledger runs on db.
func (l *GormLedger) Shares(db *gorm.DB) bool { return l.db == db }

func (l *GormLedger) Cast(ctx context.Context, req CastRequest) (model.Vote, model.RatingUpdateCommand, error) {
	return l.CastApply(ctx, req, nil)
}

// CastApply resolves the token and runs apply in the same transaction, so
// the resolution and the rating writes commit together or not at all.
func (l *GormLedger) CastApply(ctx context.Context, req CastRequest, apply ApplyFunc) (model.Vote, model.RatingUpdateCommand, error) {
	at := req.At.UTC()
	var vote model.Vote
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row tokenRow
		if err := tx.Where("id = ?", req.TokenID).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrTokenNotFound, req.TokenID)
			}
			return err
		}
		tok := row.toModel()
		if err := check(&tok, req); err != nil {
			return err
		}

		// Expiry and resolution are re-checked by the UPDATE itself.
		res := tx.Model(&tokenRow{}).
			Where("id = ? AND resolved = ? AND expires_at > ?", req.TokenID, false, at).
			Updates(map[string]any{"resolved": true, "resolved_at": at})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.Where("id = ?", req.TokenID).First(&row).Error; err == nil && !row.Resolved {
				return ErrTokenExpired
			}
			return ErrAlreadyResolved
		}

		vote = model.Vote{
			ID:       l.opts.newID(),
			TokenID:  tok.ID,
			WinnerID: req.WinnerID,
			LoserID:  tok.Opponent(req.WinnerID),
			VoterID:  req.VoterID,
			CastAt:   at,
		}
		err := tx.Create(&voteRow{
			ID:       vote.ID,
			TokenID:  vote.TokenID,
			WinnerID: vote.WinnerID,
			LoserID:  vote.LoserID,
			VoterID:  vote.VoterID,
			CastAt:   vote.CastAt,
		}).Error
		if isDuplicate(err) {
			return ErrAlreadyResolved
		}
		if err != nil || apply == nil {
			return err
		}
		return apply(tx, model.RatingUpdateCommand{VoteID: vote.ID, WinnerID: vote.WinnerID, LoserID: vote.LoserID})
	})
	if err != nil {
		if isLedgerErr(err) {
			return model.Vote{}, model.RatingUpdateCommand{}, err
		}
		return model.Vote{}, model.RatingUpdateCommand{}, fmt.Errorf("cast vote: %w", err)
	}
	return vote, model.RatingUpdateCommand{VoteID: vote.ID, WinnerID: vote.WinnerID, LoserID: vote.LoserID}, nil
}

func (l *GormLedger) Token(ctx context.Context, id string) (model.MatchToken, error) {
	var row tokenRow
	if err := l.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.MatchToken{}, fmt.Errorf("%w: %s", ErrTokenNotFound, id)
		}
		return model.MatchToken{}, fmt.Errorf("load token: %w", err)
	}
	return row.toModel(), nil
}

func (l *GormLedger) Votes(ctx context.Context, limit int) ([]model.Vote, error) {
	q := l.db.WithContext(ctx).Order("seq DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []voteRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	out := make([]model.Vote, len(rows))
	for i, r := range rows {
		// newest last
		out[len(rows)-1-i] = model.Vote{
			ID:       r.ID,
			TokenID:  r.TokenID,
			WinnerID: r.WinnerID,
			LoserID:  r.LoserID,
			VoterID:  r.VoterID,
			CastAt:   r.CastAt.UTC(),
		}
	}
	return out, nil
}

func (l *GormLedger) Sweep(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-l.opts.retention).UTC()
	res := l.db.WithContext(ctx).
		Where("resolved = ? AND expires_at <= ?", false, cutoff).
		Delete(&tokenRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("sweep tokens: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// Close leaves the shared handle open; its owner closes it.
func (l *GormLedger) Close() error { return nil }

func isLedgerErr(err error) bool {
	return errors.Is(err, ErrTokenNotFound) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrAlreadyResolved) ||
		errors.Is(err, ErrInvalidWinner)
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
