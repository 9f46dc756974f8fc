package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MinClaimPoints = 1
	MaxClaimPoints = 10
)

// ErrClaimImmutable is returned by the GORM hooks guarding ClaimRecord
var ErrClaimImmutable = errors.New("claim records are immutable")

// ClaimRecord is the history row written once per successful claim
type ClaimRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ClaimedBy  uuid.UUID `gorm:"type:uuid;not null;index" json:"claimedBy"`
	ClaimedFor uuid.UUID `gorm:"type:uuid;not null;index" json:"claimedFor"`
	Points     int       `gorm:"not null;check:chk_claim_records_points,points BETWEEN 1 AND 10" json:"points"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
}

// TableName specifies the table name for GORM
func (ClaimRecord) TableName() string {
	return "claim_records"
}

func (c *ClaimRecord) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Points < MinClaimPoints || c.Points > MaxClaimPoints {
		return errors.New("claim points out of range")
	}
	return nil
}

func (*ClaimRecord) BeforeUpdate(*gorm.DB) error {
	return ErrClaimImmutable
}

func (*ClaimRecord) BeforeDelete(*gorm.DB) error {
	return ErrClaimImmutable
}
