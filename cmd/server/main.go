package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"claimboard/internal/api"
	"claimboard/internal/api/handlers"
	"claimboard/internal/auth"
	"claimboard/internal/config"
	"claimboard/internal/logger"
	"claimboard/internal/repository"
	"claimboard/internal/service"
	"claimboard/internal/websocket"
	"claimboard/internal/worker"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// store is what both repository backends offer
type store interface {
	service.AccountStore
	service.EntryStore
	service.ClaimStore
	Ping(ctx context.Context) error
	Close() error
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	db, err := openStore(cfg)
	if err != nil {
		logger.Error("Failed to open %s store: %v", cfg.Database.Driver, err)
		os.Exit(1)
	}

	// Initialize Redis
	redisClient, err := initRedis(cfg)
	if err != nil {
		logger.Error("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	logger.Success("Connected to Redis")
	redisRepo := repository.NewRedisRepository(redisClient)

	// Change notifications run off the request path
	workerPool := worker.NewWorkerPool(cfg.Worker.Count, cfg.Worker.QueueSize, redisRepo)
	workerPool.Start()

	hub := websocket.NewHub(redisRepo)
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go hub.Run(hubCtx)

	tokens := auth.NewTokenService(cfg.Auth)
	authService := service.NewAuthService(db, tokens)
	leaderboardService := service.NewLeaderboardService(db, db, workerPool)
	healthService := service.NewHealthService(map[string]service.Pinger{
		"database": db,
		"redis":    redisRepo,
	})

	app := api.NewApp(api.Dependencies{
		Auth:          handlers.NewAuthHandler(authService, handlers.CookieOptions{Secure: cfg.Server.CookieSecure}),
		Leaderboard:   handlers.NewLeaderboardHandler(leaderboardService, healthService),
		Authenticator: authService,
		Hub:           hub,
		CORSOrigin:    cfg.Server.CORSOrigin,
		AccessLog:     true,
	})
	logger.Info("Allowed CORS origin: %s", cfg.Server.CORSOrigin)

	// Graceful shutdown with worker pool flushing
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		logger.Warning("Shutting down server...")

		// First, stop accepting new HTTP requests
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := app.ShutdownWithContext(ctx); err != nil {
			logger.Error("Server forced to shutdown: %v", err)
		}

		// Second, flush pending change notifications
		if err := workerPool.Shutdown(30 * time.Second); err != nil {
			logger.Error("Worker pool shutdown error: %v", err)
		}

		// Third, stop the hub and close connections
		hubCancel()
		if err := db.Close(); err != nil {
			logger.Error("Error closing %s store: %v", cfg.Database.Driver, err)
		}
		if err := redisRepo.Close(); err != nil {
			logger.Error("Error closing Redis: %v", err)
		}

		logger.Success("Server shutdown complete")
	}()

	// Start server
	port := cfg.Server.Port
	logger.Info("Server starting on port %d...", port)
	if err := app.Listen(fmt.Sprintf(":%d", port)); err != nil {
		logger.Error("Failed to start server: %v", err)
		os.Exit(1)
	}
}

func openStore(cfg *config.Config) (store, error) {
	if cfg.Database.Driver == "memory" {
		logger.Warning("Using in-memory store; data is lost on restart")
		return repository.NewMemoryRepository(), nil
	}

	db, err := initPostgres(cfg)
	if err != nil {
		return nil, err
	}
	logger.Success("Connected to PostgreSQL")

	repo := repository.NewPostgresRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Success("Database migrations completed")
	return repo, nil
}

// initPostgres initializes PostgreSQL connection with connection pooling
func initPostgres(cfg *config.Config) (*gorm.DB, error) {
	dsn := cfg.GetDSN()

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
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

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetConnMaxIdleTime(2 * time.Minute)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, err
	}

	return db, nil
}

// initRedis initializes Redis connection with connection pooling
func initRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Username:     cfg.Redis.Username,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}
