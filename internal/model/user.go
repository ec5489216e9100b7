// Package model defines domain entities for the application.
package model

import (
	"errors"
	"strings"
	"time"
	"unicode"
)

// Credential limits.
const (
	// MaxUsernameLength is the maximum username length in bytes.
	MaxUsernameLength = 64
	// MaxPasswordLength is the bcrypt input limit in bytes.
	MaxPasswordLength = 72
)

// Credential validation errors.
var (
	ErrUsernameEmpty   = errors.New("username is required")
	ErrUsernameTooLong = errors.New("username exceeds maximum length")
	ErrUsernameInvalid = errors.New("username contains invalid characters")
	ErrPasswordEmpty   = errors.New("password is required")
	ErrPasswordTooLong = errors.New("password exceeds maximum length")
)

// User represents a registered account.
// Usernames are case-sensitive and stored trimmed.
type User struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Never serialize
	CreatedAt    time.Time `json:"created_at"`
}

// NormalizeUsername trims surrounding whitespace. Case is preserved.
func NormalizeUsername(username string) string {
	return strings.TrimSpace(username)
}

// ValidateUsername checks an already normalized username.
func ValidateUsername(username string) error {
	if username == "" {
		return ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	for _, r := range username {
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return ErrUsernameInvalid
		}
	}
	return nil
}

// ValidatePassword checks a plaintext password. Passwords are never trimmed.
func ValidatePassword(password string) error {
	if password == "" {
		return ErrPasswordEmpty
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}
