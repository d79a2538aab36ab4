package util

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
)

var (
	usernameRe = regexp.MustCompile(`^[A-Za-z0-9_ .-]{3,32}$`)
	codeRe     = regexp.MustCompile(`^[0-9]{4}$`)
	clockRe    = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
)

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks the address parses and carries no display name.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("invalid email %q", email)
	}
	return nil
}

// ValidateUsername allows 3-32 letters, digits, spaces, dots, dashes or underscores.
func ValidateUsername(username string) error {
	if !usernameRe.MatchString(username) {
		return fmt.Errorf("username must be 3-32 letters, digits, spaces, dots, dashes or underscores")
	}
	return nil
}

// ValidatePassword requires 6 to 72 bytes (bcrypt ignores anything longer).
func ValidatePassword(password string) error {
	if len(password) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}
	if len(password) > 72 {
		return fmt.Errorf("password must be at most 72 bytes")
	}
	return nil
}

// ValidateCode checks a 4-digit login code.
func ValidateCode(code string) error {
	if !codeRe.MatchString(code) {
		return fmt.Errorf("code must be 4 digits")
	}
	return nil
}

// DateLayout is the YYYY-MM-DD layout used by query filters and
// vaccination dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date as midnight UTC.
func ParseDate(dateStr string) (time.Time, error) {
	if dateStr == "" {
		return time.Time{}, fmt.Errorf("date is empty")
	}
	t, err := time.Parse(DateLayout, dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format: %w", err)
	}
	return t, nil
}

// ValidateClock checks a 24-hour HH:MM time of day.
func ValidateClock(clock string) error {
	if !clockRe.MatchString(clock) {
		return fmt.Errorf("time must be HH:MM")
	}
	return nil
}
