package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ghuser/dkn/services/auth/domain/models"
)

// QueryOpts contains pagination parameters for list queries.
type QueryOpts struct {
	Limit  int // Maximum number of records to return
	Offset int // Number of records to skip
}

// UserRepository is the persistence interface for the User aggregate.
// The domain layer owns this interface; infrastructure implements it.
type UserRepository interface {
	// Save inserts a new user. Returns ErrUserAlreadyExists when the
	// username or email is taken.
	Save(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// Search matches query case-insensitively against username and email.
	// Returns the page and the total count (ignoring pagination). An empty
	// query matches every user.
	Search(ctx context.Context, query string, opts QueryOpts) ([]*models.User, int, error)

	Count(ctx context.Context) (int, error)
	// CountByRole returns the number of active users per role.
	CountByRole(ctx context.Context) (map[models.Role]int, error)

	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}
