package repository

import (
	"context"
	"errors"
	"fmt"

	"claimboard/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound is returned when no row matches
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique index rejects an insert
	ErrDuplicate = errors.New("duplicate record")
)

// PostgresRepository handles all PostgreSQL operations
type PostgresRepository struct {
	db *gorm.DB
}

// NewPostgresRepository creates a new Postgres repository. The *gorm.DB
// should be opened with TranslateError so unique violations map to
// ErrDuplicate.
func NewPostgresRepository(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// CreateAccount inserts a new account
func (r *PostgresRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	err := r.db.WithContext(ctx).Create(account).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

// AccountExists reports whether any account uses the name or the email
func (r *PostgresRepository) AccountExists(ctx context.Context, name, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("name = ? OR email = ?", name, email).
		Count(&count).Error
	return count > 0, err
}

// FindAccountByID loads an account without its password hash
func (r *PostgresRepository) FindAccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).Omit("password").Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

// FindAccountByEmail loads an account including its password hash
func (r *PostgresRepository) FindAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

// SetRefreshToken stores token on the account; nil clears it
func (r *PostgresRepository) SetRefreshToken(ctx context.Context, id uuid.UUID, token *string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Update("refresh_token", token)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RotateRefreshToken swaps current for next in a single conditional update
func (r *PostgresRepository) RotateRefreshToken(ctx context.Context, id uuid.UUID, current, next string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ? AND refresh_token = ?", id, current).
		Update("refresh_token", next)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateEntry inserts a new leaderboard entry
func (r *PostgresRepository) CreateEntry(ctx context.Context, entry *models.LeaderboardEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListEntriesByPoints returns every entry, highest total first
func (r *PostgresRepository) ListEntriesByPoints(ctx context.Context) ([]models.LeaderboardEntry, error) {
	var entries []models.LeaderboardEntry
	err := r.db.WithContext(ctx).Order("total_points DESC").Order("name ASC").Order("id ASC").Find(&entries).Error
	return entries, err
}

// IncrementEntryPoints adds points to an entry and returns the updated row.
// UPDATE ... RETURNING keeps concurrent claims from losing increments.
func (r *PostgresRepository) IncrementEntryPoints(ctx context.Context, id uuid.UUID, points int) (*models.LeaderboardEntry, error) {
	var entry models.LeaderboardEntry
	res := r.db.WithContext(ctx).
		Model(&entry).
		Clauses(clause.Returning{}).
		Where("id = ?", id).
		UpdateColumn("total_points", gorm.Expr("total_points + ?", points))
	if res.Error != nil {
		return nil, fmt.Errorf("increment entry points: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &entry, nil
}

// CreateClaim appends a claim record
func (r *PostgresRepository) CreateClaim(ctx context.Context, claim *models.ClaimRecord) error {
	return r.db.WithContext(ctx).Create(claim).Error
}

// ListClaims returns records where id is the claimant or the target, newest first
func (r *PostgresRepository) ListClaims(ctx context.Context, id uuid.UUID) ([]models.ClaimRecord, error) {
	var claims []models.ClaimRecord
	err := r.db.WithContext(ctx).
		Where("claimed_for = ? OR claimed_by = ?", id, id).
		Order("created_at DESC").
		Find(&claims).Error
	return claims, err
}

// CountEntries returns the number of leaderboard entries
func (r *PostgresRepository) CountEntries(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.LeaderboardEntry{}).Count(&count).Error
	return count, err
}

// BulkInsertEntries efficiently inserts multiple entries
func (r *PostgresRepository) BulkInsertEntries(ctx context.Context, entries []models.LeaderboardEntry, batchSize int) error {
	return r.db.WithContext(ctx).CreateInBatches(entries, batchSize).Error
}

// Ping checks if database is reachable
func (r *PostgresRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate runs database migrations
func (r *PostgresRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&models.Account{}, &models.LeaderboardEntry{}, &models.ClaimRecord{})
}
