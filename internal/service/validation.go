package service

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Validation limits.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 100
	MaxNameLength     = 100
	MaxEmailLength    = 254
)

// passwordSymbols is the fixed punctuation set a password must draw at
// least one character from.
const passwordSymbols = `!@#$%^&*(),.?":{}|<>`

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidationError is a field-scoped input error. Unlike authentication
// errors, validation messages are specific: they describe exactly which
// field failed and why.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NormalizeEmail lowercases and trims an email address so lookups and the
// unique index agree on a canonical form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateRegistration checks every field of a registration request and
// returns the first failure as a *ValidationError.
func ValidateRegistration(input RegisterInput) error {
	if err := validateEmail(input.Email); err != nil {
		return err
	}
	if err := validateName("first_name", input.FirstName); err != nil {
		return err
	}
	if err := validateName("last_name", input.LastName); err != nil {
		return err
	}
	return ValidatePassword(input.Password)
}

func validateEmail(email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return &ValidationError{Field: "email", Message: "must not be empty"}
	}
	if len(email) > MaxEmailLength {
		return &ValidationError{Field: "email", Message: "is too long"}
	}
	if !emailRegex.MatchString(email) {
		return &ValidationError{Field: "email", Message: "is not a valid email address"}
	}
	return nil
}

func validateName(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: "must not be empty"}
	}
	if utf8.RuneCountInString(value) > MaxNameLength {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be at most %d characters", MaxNameLength)}
	}
	return nil
}

// ValidatePassword enforces the password policy: 8-100 characters with at
// least one uppercase letter, one lowercase letter, one digit, and one
// symbol from the fixed punctuation set. Lengths count characters, not
// bytes, so multibyte passwords are measured the way users see them.
func ValidatePassword(pw string) error {
	if utf8.RuneCountInString(pw) < MinPasswordLength {
		return &ValidationError{Field: "password", Message: fmt.Sprintf("must be at least %d characters", MinPasswordLength)}
	}
	if utf8.RuneCountInString(pw) > MaxPasswordLength {
		return &ValidationError{Field: "password", Message: fmt.Sprintf("must be at most %d characters", MaxPasswordLength)}
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range pw {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune(passwordSymbols, r):
			hasSymbol = true
		}
	}

	switch {
	case !hasUpper:
		return &ValidationError{Field: "password", Message: "must contain at least one uppercase letter"}
	case !hasLower:
		return &ValidationError{Field: "password", Message: "must contain at least one lowercase letter"}
	case !hasDigit:
		return &ValidationError{Field: "password", Message: "must contain at least one digit"}
	case !hasSymbol:
		return &ValidationError{Field: "password", Message: "must contain at least one special character"}
	}
	return nil
}
