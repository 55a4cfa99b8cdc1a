package auth

import (
	"context"
	"errors"
	"slices"

	"github.com/google/uuid"
)

// Roles known to the access gates. RoleAdmin passes every gate.
const (
	RoleConsultant = "consultant"
	RoleChampion   = "champion"
	RoleGovernance = "governance"
	RoleAdmin      = "admin"
)

// contextKey is an unexported type to prevent key collisions in context.
type contextKey string

const userKey contextKey = "current_user"

var (
	// ErrNotAuthenticated is returned when the request carries no logged-in user.
	ErrNotAuthenticated = errors.New("authentication required")
	// ErrForbidden is returned when the user lacks the role a page requires.
	ErrForbidden = errors.New("access denied")
	// ErrUnknownUser is returned by user loaders when the stored id no longer
	// resolves to an active account.
	ErrUnknownUser = errors.New("unknown user")
)

// User is the identity exposed to handlers and templates.
type User struct {
	ID       uuid.UUID
	Username string
	Email    string
	Role     string
}

// Anonymous is the identity of a request without a valid login.
var Anonymous = User{}

// IsAuthenticated reports whether u is a logged-in user.
func (u User) IsAuthenticated() bool {
	return u.ID != uuid.Nil
}

// HasRole reports whether u holds any of roles. Admins hold every role.
func (u User) HasRole(roles ...string) bool {
	if !u.IsAuthenticated() {
		return false
	}
	if u.Role == RoleAdmin {
		return true
	}
	return slices.Contains(roles, u.Role)
}

// WithUser returns a new context with u attached.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromCtx returns the current user, or Anonymous when none is set.
func UserFromCtx(ctx context.Context) User {
	u, ok := ctx.Value(userKey).(User)
	if !ok {
		return Anonymous
	}
	return u
}

// UserIDFromCtx returns the logged-in user's id or ErrNotAuthenticated.
func UserIDFromCtx(ctx context.Context) (uuid.UUID, error) {
	u := UserFromCtx(ctx)
	if !u.IsAuthenticated() {
		return uuid.Nil, ErrNotAuthenticated
	}
	return u.ID, nil
}
