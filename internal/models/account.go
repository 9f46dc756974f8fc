package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account is an authenticating user. Password and RefreshToken never leave
// the server.
type Account struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string    `gorm:"uniqueIndex;not null" json:"name"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	Password     string    `gorm:"not null" json:"-"`
	Avatar       string    `json:"avatar"`
	RefreshToken *string   `json:"-"`
	TotalPoints  int       `gorm:"not null;default:0" json:"totalPoints"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TableName specifies the table name for GORM
func (Account) TableName() string {
	return "accounts"
}

// BeforeCreate assigns an id when the caller has not
func (a *Account) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// RegisterRequest represents the request payload for POST /register
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
}

// LoginRequest represents the request payload for POST /login
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest is the optional body of POST /refresh_token
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// LoginResponse is the data payload of a successful login
type LoginResponse struct {
	LoggedInUser *Account `json:"loggedInUser"`
	AccessToken  string   `json:"accessToken"`
}

// TokenResponse is the data payload of a successful refresh
type TokenResponse struct {
	AccessToken string `json:"accessToken"`
}
