package models

import "time"

// BlacklistedToken records a revoked session token. ExpiresAt mirrors the
// token's own exp claim, so a row may be deleted once it is in the past.
type BlacklistedToken struct {
	ID        uint      `gorm:"primaryKey"`
	Token     string    `gorm:"size:1024;uniqueIndex;not null"`
	UserID    *uint     `gorm:"index"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time
}

// PasswordChangeRequest holds a pending password change until the user
// confirms or cancels it from the emailed link.
type PasswordChangeRequest struct {
	ID              uint      `gorm:"primaryKey"`
	UserID          uint      `gorm:"index;not null"`
	Token           string    `gorm:"size:128;uniqueIndex;not null"`
	NewPasswordHash string    `gorm:"size:255;not null"`
	SessionToken    string    `gorm:"size:1024"` // session that asked for the change
	ExpiresAt       time.Time `gorm:"index;not null"`
	CreatedAt       time.Time

	User User `gorm:"constraint:OnDelete:CASCADE"`
}
