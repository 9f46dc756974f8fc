package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"claimboard/internal/apperr"
	"claimboard/internal/auth"
	"claimboard/internal/config"
	"claimboard/internal/logger"
	"claimboard/internal/models"
	"claimboard/internal/repository"
	"claimboard/internal/service"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	TotalEntries = 10
	BatchSize    = 100
	EntryPrefix  = "Team "
)

func main() {
	logger.Info("Starting seeder for Claimboard...")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	db, err := initPostgres(cfg)
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL: %v", err)
		os.Exit(1)
	}
	logger.Success("Connected to PostgreSQL")

	repo := repository.NewPostgresRepository(db)
	defer repo.Close()

	if err := repo.AutoMigrate(); err != nil {
		logger.Error("Failed to run migrations: %v", err)
		os.Exit(1)
	}
	logger.Success("Database migrations completed")

	ctx := context.Background()

	existing, err := repo.CountEntries(ctx)
	if err != nil {
		logger.Error("Failed to count entries: %v", err)
		os.Exit(1)
	}
	if existing > 0 {
		logger.Warning("Leaderboard already has %d entries, skipping entry seed", existing)
	} else if err := seedEntries(ctx, repo, TotalEntries); err != nil {
		logger.Error("Failed to seed entries: %v", err)
		os.Exit(1)
	}

	// Optional demo account
	email := os.Getenv("SEED_ACCOUNT_EMAIL")
	password := os.Getenv("SEED_ACCOUNT_PASSWORD")
	if email != "" && password != "" {
		authService := service.NewAuthService(repo, auth.NewTokenService(cfg.Auth))
		account, err := authService.Register(ctx, models.RegisterRequest{
			Name:     getEnv("SEED_ACCOUNT_NAME", "demo"),
			Email:    email,
			Password: password,
		})
		switch {
		case err == nil:
			logger.Success("Created demo account %s (%s)", account.Name, account.ID)
		case apperr.KindOf(err) == apperr.KindConflict:
			logger.Warning("Demo account %s already exists", email)
		default:
			logger.Error("Failed to create demo account: %v", err)
			os.Exit(1)
		}
	}

	logger.Success("Seeder finished!")
}

// seedEntries inserts count zero-point entries in batches
func seedEntries(ctx context.Context, repo *repository.PostgresRepository, count int) error {
	startTime := time.Now()

	entries := make([]models.LeaderboardEntry, count)
	for i := range entries {
		entries[i] = models.LeaderboardEntry{Name: fmt.Sprintf("%s%d", EntryPrefix, i+1)}
	}

	if err := repo.BulkInsertEntries(ctx, entries, BatchSize); err != nil {
		return fmt.Errorf("bulk insert failed: %w", err)
	}

	logger.Success("Inserted %d entries in %v", len(entries), time.Since(startTime))
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// initPostgres initializes PostgreSQL connection
func initPostgres(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, err
	}

	return db, nil
}
