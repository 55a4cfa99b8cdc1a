package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the account aggregate behind logins and the user directory.
type User struct {
	ID           uuid.UUID
	Username     Username
	Email        string
	PasswordHash string
	Role         Role
	IsActive     bool
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// NewUser constructs an active User with a generated ID and the current
// timestamp. passwordHash must already be hashed.
func NewUser(username Username, email, passwordHash string, role Role) *User {
	return &User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
}
