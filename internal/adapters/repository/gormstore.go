package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/ranked/internal/domain/model"
	"github.com/okian/ranked/pkg/metrics"
)

// Driver names accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// profileRow is the persisted form of a profile. Seq preserves creation
// order for index-based sampling.
type profileRow struct {
	Seq         uint               `gorm:"primaryKey;autoIncrement"`
	ProfileID   string             `gorm:"column:profile_id;uniqueIndex;size:64;not null"`
	Name        string             `gorm:"size:120;not null"`
	PhotoURL    string
	Education   model.Education    `gorm:"serializer:json"`
	Clubs       []string           `gorm:"serializer:json"`
	Experiences []model.Experience `gorm:"serializer:json"`
	Links       model.Links        `gorm:"serializer:json"`
	Verified    bool
	Rating      int64 `gorm:"index:idx_profiles_rank,priority:1;not null"`
	MatchCount  int64 `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (profileRow) TableName() string { return "profiles" }

func (r profileRow) toModel() model.Profile {
	return model.Profile{
		ID:          r.ProfileID,
		Name:        r.Name,
		PhotoURL:    r.PhotoURL,
		Education:   r.Education,
		Clubs:       r.Clubs,
		Experiences: r.Experiences,
		Links:       r.Links,
		Verified:    r.Verified,
		Rating:      r.Rating,
		MatchCount:  r.MatchCount,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func fromModel(p model.Profile) profileRow {
	return profileRow{
		ProfileID:   p.ID,
		Name:        p.Name,
		PhotoURL:    p.PhotoURL,
		Education:   p.Education,
		Clubs:       p.Clubs,
		Experiences: p.Experiences,
		Links:       p.Links,
		Verified:    p.Verified,
		Rating:      p.Rating,
		MatchCount:  p.MatchCount,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// GormStore persists profiles in SQLite or Postgres.
type GormStore struct {
	db     *gorm.DB
	driver string
	opts   options
}

// OpenDialector returns the gorm dialector for driver.
func OpenDialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = "file::memory:?cache=shared"
		}
		return sqlite.Open(dsn), nil
	case DriverPostgres:
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// OpenDB opens a gorm handle for driver. SQLite is limited to one
// connection so writers queue instead of failing with SQLITE_BUSY.
func OpenDB(driver, dsn string, maxOpenConns int) (*gorm.DB, error) {
	dialector, err := OpenDialector(driver, dsn)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		maxOpenConns = 1
	}
	if maxOpenConns > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("pool %s: %w", driver, err)
		}
		sqlDB.SetMaxOpenConns(maxOpenConns)
	}
	return db, nil
}

// NewGormStore wraps an open handle and migrates the profiles table.
func NewGormStore(db *gorm.DB, opts ...Option) (*GormStore, error) {
	if err := db.AutoMigrate(&profileRow{}); err != nil {
		return nil, fmt.Errorf("migrate profiles: %w", err)
	}
	return &GormStore{db: db, driver: db.Name(), opts: applyOptions(opts)}, nil
}

// DB exposes the underlying handle so other adapters can share it.
func (s *GormStore) DB() *gorm.DB { return s.db }

// WithTx returns a store that runs every statement on tx.
func (s *GormStore) WithTx(tx *gorm.DB) *GormStore {
	return &GormStore{db: tx, driver: s.driver, opts: s.opts}
}

func (s *GormStore) Create(ctx context.Context, p model.Profile) (model.Profile, error) {
	start := time.Now()
	defer metrics.RecordStoreUpdateLatency(s.driver, start)

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

	row := fromModel(p)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return model.Profile{}, fmt.Errorf("%w: %s", ErrAlreadyExists, p.ID)
		}
		return model.Profile{}, s.classify("create", err)
	}

	if n, err := s.Count(ctx); err == nil {
		metrics.UpdateProfilesTotal(n)
	}
	return row.toModel(), nil
}

func (s *GormStore) Get(ctx context.Context, id string) (model.Profile, error) {
	start := time.Now()
	defer metrics.RecordStoreQueryLatency(s.driver, start)

	var row profileRow
	if err := s.db.WithContext(ctx).Where("profile_id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Profile{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return model.Profile{}, s.classify("get", err)
	}
	return row.toModel(), nil
}

// ApplyRatingDelta issues a single relative UPDATE so concurrent writers
// serialize in the database rather than in the application.
func (s *GormStore) ApplyRatingDelta(ctx context.Context, id string, delta, matchIncrement int64) (model.Profile, error) {
	start := time.Now()
	defer metrics.RecordStoreUpdateLatency(s.driver, start)

	var row profileRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&profileRow{}).
			Where("profile_id = ?", id).
			Updates(map[string]any{
				"rating":      gorm.Expr("rating + ?", delta),
				"match_count": gorm.Expr("match_count + ?", matchIncrement),
				"updated_at":  s.opts.now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("profile_id = ?", id).First(&row).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.RecordErrorByComponent("repository", "not_found")
			return model.Profile{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return model.Profile{}, s.classify("apply delta", err)
	}
	return row.toModel(), nil
}

func (s *GormStore) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&profileRow{}).Count(&n).Error; err != nil {
		return 0, s.classify("count", err)
	}
	return int(n), nil
}

func (s *GormStore) IDAt(ctx context.Context, i int) (string, error) {
	if i < 0 {
		return "", fmt.Errorf("%w: index %d", ErrNotFound, i)
	}
	var ids []string
	err := s.db.WithContext(ctx).Model(&profileRow{}).
		Order("seq ASC").Offset(i).Limit(1).
		Pluck("profile_id", &ids).Error
	if err != nil {
		return "", s.classify("id at", err)
	}
	if len(ids) == 0 {
		return "", fmt.Errorf("%w: index %d", ErrNotFound, i)
	}
	return ids[0], nil
}

func (s *GormStore) IndexOf(ctx context.Context, id string) (int, error) {
	var row profileRow
	db := s.db.WithContext(ctx)
	if err := db.Select("seq").Where("profile_id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return -1, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return -1, s.classify("index of", err)
	}
	var n int64
	if err := db.Model(&profileRow{}).Where("seq < ?", row.Seq).Count(&n).Error; err != nil {
		return -1, s.classify("index of", err)
	}
	return int(n), nil
}

func (s *GormStore) Ranked(ctx context.Context, limit, offset int) ([]model.Profile, error) {
	start := time.Now()
	defer metrics.RecordStoreQueryLatency(s.driver, start)

	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	if offset < 0 {
		offset = 0
	}
	var rows []profileRow
	err := s.db.WithContext(ctx).
		Order("rating DESC").Order("profile_id ASC").
		Offset(offset).Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, s.classify("ranked", err)
	}
	out := make([]model.Profile, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *GormStore) Rank(ctx context.Context, id string) (int, model.Profile, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return 0, model.Profile{}, err
	}
	var before int64
	err = s.db.WithContext(ctx).Model(&profileRow{}).
		Where("rating > ? OR (rating = ? AND profile_id < ?)", p.Rating, p.Rating, id).
		Count(&before).Error
	if err != nil {
		return 0, model.Profile{}, s.classify("rank", err)
	}
	return int(before) + 1, p, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// classify maps lock contention to ErrConflict and wraps everything else.
func (s *GormStore) classify(op string, err error) error {
	if isBusy(err) {
		metrics.RecordErrorByComponent("repository", "conflict")
		return fmt.Errorf("%s: %w: %w", op, ErrConflict, err)
	}
	metrics.RecordErrorByComponent("repository", "backend")
	return fmt.Errorf("%s: %w", op, err)
}

func isBusy(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "deadlock detected") ||
		strings.Contains(msg, "could not serialize")
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
