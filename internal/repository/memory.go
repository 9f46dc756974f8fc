package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"claimboard/internal/models"

	"github.com/google/uuid"
)

// MemoryRepository keeps accounts, entries and claims in process. It has the
// same semantics as PostgresRepository and backs DB_DRIVER=memory and tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]models.Account
	entries  map[uuid.UUID]models.LeaderboardEntry
	claims   []models.ClaimRecord
	now      func() time.Time
}

// NewMemoryRepository creates an empty in-memory store
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts: make(map[uuid.UUID]models.Account),
		entries:  make(map[uuid.UUID]models.LeaderboardEntry),
		now:      time.Now,
	}
}

func (r *MemoryRepository) CreateAccount(_ context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.accounts {
		if existing.Name == account.Name || existing.Email == account.Email {
			return ErrDuplicate
		}
	}

	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	now := r.now()
	account.CreatedAt = now
	account.UpdatedAt = now
	r.accounts[account.ID] = cloneAccount(*account)
	return nil
}

func (r *MemoryRepository) AccountExists(_ context.Context, name, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, existing := range r.accounts {
		if existing.Name == name || existing.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) FindAccountByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneAccount(account)
	out.Password = ""
	return &out, nil
}

func (r *MemoryRepository) FindAccountByEmail(_ context.Context, email string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, account := range r.accounts {
		if account.Email == email {
			out := cloneAccount(account)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) SetRefreshToken(_ context.Context, id uuid.UUID, token *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return ErrNotFound
	}
	if token == nil {
		account.RefreshToken = nil
	} else {
		t := *token
		account.RefreshToken = &t
	}
	account.UpdatedAt = r.now()
	r.accounts[id] = account
	return nil
}

func (r *MemoryRepository) RotateRefreshToken(_ context.Context, id uuid.UUID, current, next string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok || account.RefreshToken == nil || *account.RefreshToken != current {
		return ErrNotFound
	}
	account.RefreshToken = &next
	account.UpdatedAt = r.now()
	r.accounts[id] = account
	return nil
}

func (r *MemoryRepository) CreateEntry(_ context.Context, entry *models.LeaderboardEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = r.now()
	r.entries[entry.ID] = *entry
	return nil
}

func (r *MemoryRepository) ListEntriesByPoints(_ context.Context) ([]models.LeaderboardEntry, error) {
	r.mu.RLock()
	entries := make([]models.LeaderboardEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		entries = append(entries, entry)
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalPoints != entries[j].TotalPoints {
			return entries[i].TotalPoints > entries[j].TotalPoints
		}
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].ID.String() < entries[j].ID.String()
	})
	return entries, nil
}

func (r *MemoryRepository) IncrementEntryPoints(_ context.Context, id uuid.UUID, points int) (*models.LeaderboardEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	entry.TotalPoints += points
	r.entries[id] = entry
	return &entry, nil
}

func (r *MemoryRepository) CreateClaim(_ context.Context, claim *models.ClaimRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if claim.ID == uuid.Nil {
		claim.ID = uuid.New()
	}
	claim.CreatedAt = r.now()
	r.claims = append(r.claims, *claim)
	return nil
}

func (r *MemoryRepository) ListClaims(_ context.Context, id uuid.UUID) ([]models.ClaimRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	claims := make([]models.ClaimRecord, 0)
	// newest first; appends are chronological
	for i := len(r.claims) - 1; i >= 0; i-- {
		c := r.claims[i]
		if c.ClaimedFor == id || c.ClaimedBy == id {
			claims = append(claims, c)
		}
	}
	return claims, nil
}

func (r *MemoryRepository) CountEntries(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.entries)), nil
}

// Ping always succeeds
func (r *MemoryRepository) Ping(context.Context) error { return nil }

// Close is a no-op
func (r *MemoryRepository) Close() error { return nil }

func cloneAccount(a models.Account) models.Account {
	if a.RefreshToken != nil {
		t := *a.RefreshToken
		a.RefreshToken = &t
	}
	return a
}
