//go:build integration

package repository

import (
	"context"
	"log"
	"sync"
	"testing"
	"time"

	"claimboard/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Run with: go test -tags=integration -timeout 180s ./internal/repository/...
func newPostgresRepo(t *testing.T) *PostgresRepository {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("claimboard"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			log.Printf("failed to terminate postgres container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(connStr), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	repo := NewPostgresRepository(db)
	require.NoError(t, repo.AutoMigrate())
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestPostgresRepository(t *testing.T) {
	repo := newPostgresRepo(t)
	ctx := context.Background()

	t.Run("accounts", func(t *testing.T) {
		account := &models.Account{Name: "alice", Email: "a@x.com", Password: "hash"}
		require.NoError(t, repo.CreateAccount(ctx, account))

		err := repo.CreateAccount(ctx, &models.Account{Name: "alice", Email: "b@x.com", Password: "hash"})
		assert.ErrorIs(t, err, ErrDuplicate)

		exists, err := repo.AccountExists(ctx, "x", "a@x.com")
		require.NoError(t, err)
		assert.True(t, exists)

		found, err := repo.FindAccountByID(ctx, account.ID)
		require.NoError(t, err)
		assert.Empty(t, found.Password)

		token := "refresh"
		require.NoError(t, repo.SetRefreshToken(ctx, account.ID, &token))
		byEmail, err := repo.FindAccountByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		require.NotNil(t, byEmail.RefreshToken)
		assert.Equal(t, "refresh", *byEmail.RefreshToken)
		assert.Equal(t, "hash", byEmail.Password)

		assert.ErrorIs(t, repo.SetRefreshToken(ctx, uuid.New(), nil), ErrNotFound)

		require.NoError(t, repo.RotateRefreshToken(ctx, account.ID, "refresh", "rotated"))
		assert.ErrorIs(t, repo.RotateRefreshToken(ctx, account.ID, "refresh", "again"), ErrNotFound)
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		entry := &models.LeaderboardEntry{Name: "target"}
		require.NoError(t, repo.CreateEntry(ctx, entry))

		const workers = 20
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.IncrementEntryPoints(ctx, entry.ID, 3)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		updated, err := repo.IncrementEntryPoints(ctx, entry.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, workers*3+1, updated.TotalPoints)
		assert.Equal(t, "target", updated.Name)

		_, err = repo.IncrementEntryPoints(ctx, uuid.New(), 1)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("claims are append only", func(t *testing.T) {
		by, target := uuid.New(), uuid.New()
		first := &models.ClaimRecord{ClaimedBy: by, ClaimedFor: target, Points: 4}
		require.NoError(t, repo.CreateClaim(ctx, first))
		time.Sleep(5 * time.Millisecond)
		require.NoError(t, repo.CreateClaim(ctx, &models.ClaimRecord{ClaimedBy: by, ClaimedFor: target, Points: 9}))

		claims, err := repo.ListClaims(ctx, target)
		require.NoError(t, err)
		require.Len(t, claims, 2)
		assert.Equal(t, 9, claims[0].Points)

		err = repo.db.Model(first).Update("points", 10).Error
		assert.ErrorIs(t, err, models.ErrClaimImmutable)
		err = repo.db.Delete(first).Error
		assert.ErrorIs(t, err, models.ErrClaimImmutable)

		// the check constraint backs up the hook
		err = repo.db.Exec("INSERT INTO claim_records (id, claimed_by, claimed_for, points, created_at) VALUES (?, ?, ?, 11, now())",
			uuid.New(), by, target).Error
		assert.Error(t, err)
	})

	t.Run("ordering and counts", func(t *testing.T) {
		entries, err := repo.ListEntriesByPoints(ctx)
		require.NoError(t, err)
		for i := 1; i < len(entries); i++ {
			assert.GreaterOrEqual(t, entries[i-1].TotalPoints, entries[i].TotalPoints)
		}

		count, err := repo.CountEntries(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(len(entries)), count)

		require.NoError(t, repo.Ping(ctx))
	})
}
