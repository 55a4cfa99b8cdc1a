// Package services contains stateless domain services for the user bounded context.
// Domain services enforce business rules that operate purely on domain types
// and have zero external dependencies beyond stdlib and the domain layer.
package services

import (
	"fmt"
	"net/mail"
	"unicode"

	"github.com/google/uuid"

	"github.com/ghuser/dkn/services/auth/domain/models"
)

const (
	minPasswordLength = 8
	// bcrypt ignores everything past 72 bytes.
	maxPasswordBytes = 72
	maxEmailLength   = 120
)

// ValidatePassword enforces the password policy:
//   - at least 8 characters and at most 72 bytes
//   - at least one letter and one digit
func ValidatePassword(password string) error {
	if len([]rune(password)) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("password must not exceed %d bytes", maxPasswordBytes)
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return fmt.Errorf("password must contain a letter and a digit")
	}
	return nil
}

// ValidateEmail accepts a bare address of at most 120 characters.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if len(email) > maxEmailLength {
		return fmt.Errorf("email must not exceed %d characters", maxEmailLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("email %q is not a bare address", email)
	}
	return nil
}

// ValidateUserForCreation performs cross-field validation on a User built
// via models.NewUser before it is persisted.
func ValidateUserForCreation(user *models.User) error {
	if user == nil {
		return fmt.Errorf("user cannot be nil")
	}
	if user.ID == uuid.Nil {
		return fmt.Errorf("id must be set")
	}
	if _, err := models.NewUsername(user.Username.String()); err != nil {
		return fmt.Errorf("invalid username: %w", err)
	}
	if err := ValidateEmail(user.Email); err != nil {
		return fmt.Errorf("invalid email: %w", err)
	}
	if _, err := models.ParseRole(user.Role.String()); err != nil || user.Role == "" {
		return fmt.Errorf("invalid role %q", user.Role)
	}
	if user.PasswordHash == "" {
		return fmt.Errorf("password hash must be set")
	}
	return nil
}
