package util

import (
	"strings"
	"testing"
	"time"
)

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Farmer@Example.COM "); got != "farmer@example.com" {
		t.Errorf("NormalizeEmail() = %q", got)
	}
}

func TestValidateEmail(t *testing.T) {
	valid := []string{"farmer@example.com", "a.b+c@coop.io"}
	for _, email := range valid {
		if err := ValidateEmail(email); err != nil {
			t.Errorf("ValidateEmail(%q) error = %v, want nil", email, err)
		}
	}

	invalid := []string{"", "farmer", "Farmer <farmer@example.com>", "@example.com"}
	for _, email := range invalid {
		if err := ValidateEmail(email); err == nil {
			t.Errorf("ValidateEmail(%q) error = nil, want error", email)
		}
	}
}

func TestValidateUsername(t *testing.T) {
	for _, name := range []string{"bob", "Jean Dupont", "farm_01"} {
		if err := ValidateUsername(name); err != nil {
			t.Errorf("ValidateUsername(%q) error = %v, want nil", name, err)
		}
	}
	for _, name := range []string{"", "ab", strings.Repeat("x", 33), "bad!name"} {
		if err := ValidateUsername(name); err == nil {
			t.Errorf("ValidateUsername(%q) error = nil, want error", name)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("12345"); err == nil {
		t.Error("short password accepted")
	}
	if err := ValidatePassword("123456"); err != nil {
		t.Errorf("6-char password rejected: %v", err)
	}
	if err := ValidatePassword(strings.Repeat("a", 73)); err == nil {
		t.Error("73-byte password accepted")
	}
}

func TestValidateCode(t *testing.T) {
	for _, code := range []string{"1234", "9999"} {
		if err := ValidateCode(code); err != nil {
			t.Errorf("ValidateCode(%q) error = %v", code, err)
		}
	}
	for _, code := range []string{"", "123", "12345", "12a4"} {
		if err := ValidateCode(code); err == nil {
			t.Errorf("ValidateCode(%q) error = nil, want error", code)
		}
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2025-06-15")
	if err != nil {
		t.Fatalf("ParseDate() error = %v", err)
	}
	if want := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC); !got.Equal(want) || got.Location() != time.UTC {
		t.Errorf("ParseDate() = %v, want %v", got, want)
	}
	for _, date := range []string{"", "2024/01/01", "2024-13-01", "yesterday"} {
		if _, err := ParseDate(date); err == nil {
			t.Errorf("ParseDate(%q) error = nil, want error", date)
		}
	}
}

func TestValidateClock(t *testing.T) {
	for _, clock := range []string{"00:00", "07:30", "23:59"} {
		if err := ValidateClock(clock); err != nil {
			t.Errorf("ValidateClock(%q) error = %v", clock, err)
		}
	}
	for _, clock := range []string{"", "7:30", "24:00", "12:60", "noon"} {
		if err := ValidateClock(clock); err == nil {
			t.Errorf("ValidateClock(%q) error = nil, want error", clock)
		}
	}
}
