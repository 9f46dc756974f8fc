package service

import (
	"context"

	"claimboard/internal/models"
	"claimboard/internal/worker"

	"github.com/google/uuid"
)

// AccountStore persists authenticating accounts
type AccountStore interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	AccountExists(ctx context.Context, name, email string) (bool, error)
	FindAccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	FindAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	SetRefreshToken(ctx context.Context, id uuid.UUID, token *string) error
	// RotateRefreshToken replaces current with next, or returns
	// repository.ErrNotFound when current is no longer on file
	RotateRefreshToken(ctx context.Context, id uuid.UUID, current, next string) error
}

// EntryStore persists leaderboard entries
type EntryStore interface {
	CreateEntry(ctx context.Context, entry *models.LeaderboardEntry) error
	ListEntriesByPoints(ctx context.Context) ([]models.LeaderboardEntry, error)
	IncrementEntryPoints(ctx context.Context, id uuid.UUID, points int) (*models.LeaderboardEntry, error)
}

// ClaimStore persists claim history
type ClaimStore interface {
	CreateClaim(ctx context.Context, claim *models.ClaimRecord) error
	ListClaims(ctx context.Context, id uuid.UUID) ([]models.ClaimRecord, error)
}

// ChangeNotifier receives a task after every leaderboard write.
// *worker.WorkerPool implements it.
type ChangeNotifier interface {
	Submit(task worker.ChangeTask) error
}

// Pinger is anything the health check can probe
type Pinger interface {
	Ping(ctx context.Context) error
}
