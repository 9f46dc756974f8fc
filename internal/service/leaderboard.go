package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"

	"claimboard/internal/apperr"
	"claimboard/internal/logger"
	"claimboard/internal/models"
	"claimboard/internal/repository"
	"claimboard/internal/worker"

	"github.com/google/uuid"
)

// LeaderboardService handles business logic for the leaderboard
type LeaderboardService struct {
	entries  EntryStore
	claims   ClaimStore
	notifier ChangeNotifier
	draw     func() int
}

// NewLeaderboardService creates a new leaderboard service. notifier may be nil.
func NewLeaderboardService(entries EntryStore, claims ClaimStore, notifier ChangeNotifier) *LeaderboardService {
	return &LeaderboardService{
		entries:  entries,
		claims:   claims,
		notifier: notifier,
		draw:     drawPoints,
	}
}

// drawPoints is uniform over [MinClaimPoints, MaxClaimPoints]
func drawPoints() int {
	return models.MinClaimPoints + rand.IntN(models.MaxClaimPoints-models.MinClaimPoints+1)
}

// AddEntry creates a leaderboard entry with zero points
func (s *LeaderboardService) AddEntry(ctx context.Context, name string) (*models.LeaderboardEntry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("Name is required")
	}

	entry := &models.LeaderboardEntry{Name: name}
	if err := s.entries.CreateEntry(ctx, entry); err != nil {
		return nil, apperr.Internal("failed to create leaderboard user", err)
	}

	s.notify(entry.ID, "create")
	return entry, nil
}

// ListEntries returns every entry, highest total first
func (s *LeaderboardService) ListEntries(ctx context.Context) ([]models.LeaderboardEntry, error) {
	entries, err := s.entries.ListEntriesByPoints(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to load leaderboard", err)
	}
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}
	return entries, nil
}

// ClaimPoints awards a random number of points to target on behalf of
// claimant. The increment and the history insert are separate writes: if
// the insert fails the increment stays and the gap is logged.
func (s *LeaderboardService) ClaimPoints(ctx context.Context, claimant, target uuid.UUID) (*models.ClaimResult, error) {
	points := s.draw()

	entry, err := s.entries.IncrementEntryPoints(ctx, target, points)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("No user found")
		}
		return nil, apperr.Internal("failed to claim points", err)
	}

	record := &models.ClaimRecord{
		ClaimedBy:  claimant,
		ClaimedFor: target,
		Points:     points,
	}
	if err := s.claims.CreateClaim(ctx, record); err != nil {
		logger.Error("Claim history missing: entry %s incremented by %d for %s but record failed: %v",
			target, points, claimant, err)
		return nil, apperr.Internal("failed to record claim history", err)
	}

	s.notify(entry.ID, "claim")

	return &models.ClaimResult{
		PointsAwarded: points,
		UpdatedUser:   entry,
	}, nil
}

// History returns claims made by or for id, newest first
func (s *LeaderboardService) History(ctx context.Context, id uuid.UUID) ([]models.ClaimRecord, error) {
	claims, err := s.claims.ListClaims(ctx, id)
	if err != nil {
		return nil, apperr.Internal("failed to load history", err)
	}
	if claims == nil {
		claims = []models.ClaimRecord{}
	}
	return claims, nil
}

func (s *LeaderboardService) notify(entryID uuid.UUID, reason string) {
	if s.notifier == nil {
		return
	}
	// A dropped notification only delays live clients until the next change.
	_ = s.notifier.Submit(worker.ChangeTask{EntryID: entryID.String(), Reason: reason})
}
