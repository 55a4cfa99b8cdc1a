// Package sqlstore implements the user repository on the shared SQL pool.
// Queries are written with ? placeholders and rebound for the pool's
// dialect, so the same code serves SQLite and PostgreSQL.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ghuser/dkn/pkg/database"
	authdomain "github.com/ghuser/dkn/services/auth/domain"
	"github.com/ghuser/dkn/services/auth/domain/models"
	"github.com/ghuser/dkn/services/auth/domain/repositories"
)

const userColumns = "id, username, email, password_hash, role, is_active, created_at, last_login_at"

// userRow mirrors the users table.
type userRow struct {
	ID           uuid.UUID    `db:"id"`
	Username     string       `db:"username"`
	Email        string       `db:"email"`
	PasswordHash string       `db:"password_hash"`
	Role         string       `db:"role"`
	IsActive     bool         `db:"is_active"`
	CreatedAt    time.Time    `db:"created_at"`
	LastLoginAt  sql.NullTime `db:"last_login_at"`
}

// UserRepository implements repositories.UserRepository with sqlx.
type UserRepository struct {
	db *database.Database
}

func NewUserRepository(db *database.Database) *UserRepository {
	return &UserRepository{db: db}
}

// Save inserts a new user. Returns ErrUserAlreadyExists on unique constraint violations.
func (r *UserRepository) Save(ctx context.Context, user *models.User) error {
	query := r.db.Rebind(`INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	var lastLogin sql.NullTime
	if user.LastLoginAt != nil {
		lastLogin = sql.NullTime{Time: *user.LastLoginAt, Valid: true}
	}
	_, err := r.db.DB().ExecContext(ctx, query,
		user.ID.String(),
		user.Username.String(),
		user.Email,
		user.PasswordHash,
		user.Role.String(),
		user.IsActive,
		user.CreatedAt,
		lastLogin,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return authdomain.ErrUserAlreadyExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID returns ErrUserNotFound if no user has id.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getOne(ctx, "id = ?", id.String())
}

// GetByUsername matches the username exactly. Returns ErrUserNotFound if absent.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, "username = ?", username)
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg any) (*models.User, error) {
	var row userRow
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE ` + where)
	if err := r.db.DB().GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authdomain.ErrUserNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return rowToUser(row), nil
}

// Search returns a page of users ordered by username plus the total match count.
func (r *UserRepository) Search(ctx context.Context, query string, opts repositories.QueryOpts) ([]*models.User, int, error) {
	where, args := "", []any{}
	if q := strings.TrimSpace(query); q != "" {
		pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
		where = ` WHERE LOWER(username) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\'`
		args = append(args, pattern, pattern)
	}

	var total int
	if err := r.db.DB().GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM users`+where), args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	var rows []userRow
	pageArgs := append(append([]any{}, args...), opts.Limit, opts.Offset)
	selectQuery := r.db.Rebind(`SELECT ` + userColumns + ` FROM users` + where + ` ORDER BY username LIMIT ? OFFSET ?`)
	if err := r.db.DB().SelectContext(ctx, &rows, selectQuery, pageArgs...); err != nil {
		return nil, 0, fmt.Errorf("search users: %w", err)
	}

	users := make([]*models.User, len(rows))
	for i, row := range rows {
		users[i] = rowToUser(row)
	}
	return users, total, nil
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.DB().GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// CountByRole counts active users per role. Roles without users are absent.
func (r *UserRepository) CountByRole(ctx context.Context) (map[models.Role]int, error) {
	var rows []struct {
		Role  string `db:"role"`
		Count int    `db:"n"`
	}
	query := r.db.Rebind(`SELECT role, COUNT(*) AS n FROM users WHERE is_active = ? GROUP BY role`)
	if err := r.db.DB().SelectContext(ctx, &rows, query, true); err != nil {
		return nil, fmt.Errorf("count users by role: %w", err)
	}
	out := make(map[models.Role]int, len(rows))
	for _, row := range rows {
		out[models.Role(row.Role)] = row.Count
	}
	return out, nil
}

// UpdateLastLogin returns ErrUserNotFound when no row matches id.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := r.db.DB().ExecContext(ctx, r.db.Rebind(`UPDATE users SET last_login_at = ? WHERE id = ?`), at.UTC(), id.String())
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	if n == 0 {
		return authdomain.ErrUserNotFound
	}
	return nil
}

// rowToUser maps a userRow to a domain models.User.
func rowToUser(row userRow) *models.User {
	u := &models.User{
		ID:           row.ID,
		Username:     models.Username(row.Username),
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		Role:         models.Role(row.Role),
		IsActive:     row.IsActive,
		CreatedAt:    row.CreatedAt.UTC(),
	}
	if row.LastLoginAt.Valid {
		t := row.LastLoginAt.Time.UTC()
		u.LastLoginAt = &t
	}
	return u
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
			(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE"))
	}
	return false
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
