// Package validation checks user input for accounts, recipes and comments.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MinPasswordLength is the shortest accepted password.
	MinPasswordLength = 6
	// MaxPasswordLength bounds bcrypt input.
	MaxPasswordLength = 72
	// MaxTitleLength bounds recipe titles.
	MaxTitleLength = 300
	// MaxRecipeTextLength bounds ingredients, instructions and description.
	MaxRecipeTextLength = 20000
	// MaxCommentLength bounds comment text.
	MaxCommentLength = 5000
	maxEmailLength   = 254
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?(?:\.[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?)+$`)

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks the address shape.
func ValidateEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}
	if len(email) > maxEmailLength {
		return fmt.Errorf("email must be at most %d characters", maxEmailLength)
	}
	if !emailRegex.MatchString(email) {
		return errors.New("invalid email address")
	}
	return nil
}

// ValidatePassword checks the password length.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("password must be at most %d bytes", MaxPasswordLength)
	}
	return nil
}

// RequiredText trims value and rejects it when empty or longer than max runes.
func RequiredText(field, value string, max int) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%s is required", field)
	}
	if utf8.RuneCountInString(value) > max {
		return "", fmt.Errorf("%s must be at most %d characters", field, max)
	}
	return value, nil
}

// OptionalText trims value; blank becomes nil.
func OptionalText(field string, value *string, max int) (*string, error) {
	if value == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(trimmed) > max {
		return nil, fmt.Errorf("%s must be at most %d characters", field, max)
	}
	return &trimmed, nil
}
