package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LeaderboardEntry is a ranked target that receives points. It is a
// separate identity space from Account.
type LeaderboardEntry struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	TotalPoints int       `gorm:"not null;default:0;index" json:"totalPoints"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TableName specifies the table name for GORM
func (LeaderboardEntry) TableName() string {
	return "leaderboard_entries"
}

func (e *LeaderboardEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// AddEntryRequest represents the request payload for POST /addUser
type AddEntryRequest struct {
	Name string `json:"name" validate:"required,max=50"`
}

// ClaimResult is the outcome of a successful claim
type ClaimResult struct {
	PointsAwarded int               `json:"pointsAwarded"`
	UpdatedUser   *LeaderboardEntry `json:"updatedUser"`
}
