package models

import "time"

// Roles and statuses accepted on User.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// User represents a dashboard account.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"size:64;uniqueIndex;not null"`
	Email        string `gorm:"size:255;uniqueIndex;not null"` // stored lowercase
	PasswordHash string `gorm:"size:255;not null"`
	Code         string `gorm:"size:8;index"` // 4-digit login code
	Role         string `gorm:"size:16;not null;default:user"`
	Status       string `gorm:"size:16;not null;default:active"`

	EnableEmailReminders bool `gorm:"not null"`
	ReminderDays         int  `gorm:"not null;default:2"` // 1..7
	DailySummary         bool `gorm:"not null"`

	LastPasswordUpdate *time.Time
	LastLoginAt        *time.Time
	LastLoginIP        string `gorm:"size:64"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsActive reports whether the account may authenticate.
func (u *User) IsActive() bool {
	return u.Status == "" || u.Status == StatusActive
}

// IsAdmin reports whether the account carries the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
