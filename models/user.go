package models

import (
	"time"
)

// User represents a Pi Network market participant, keyed by the stable
// uid issued by the Pi platform.
type User struct {
	PiUID                  string    `gorm:"type:varchar(64);primaryKey" json:"piUid"`
	Username               string    `gorm:"type:varchar(64);not null" json:"piUsername"`
	Country                string    `gorm:"type:varchar(2);not null" json:"country"`
	WelcomeCreditPaymentID string    `gorm:"type:varchar(128)" json:"-"`
	CreatedAt              time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// RegisterUserRequest is the payload for registering or updating a user profile.
type RegisterUserRequest struct {
	PiUID    string `json:"piUid" binding:"required"`
	Username string `json:"piUsername" binding:"required"`
	Country  string `json:"country" binding:"required,len=2"`
}
