package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ghuser/dkn/pkg/database"
	"github.com/ghuser/dkn/pkg/logger"
	"github.com/ghuser/dkn/pkg/migrator"
	authdomain "github.com/ghuser/dkn/services/auth/domain"
	"github.com/ghuser/dkn/services/auth/domain/models"
	"github.com/ghuser/dkn/services/auth/domain/repositories"
)

func newRepo(t *testing.T) *UserRepository {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, "sqlite:///:memory:", logger.Discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := migrator.CreateAll(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewUserRepository(db)
}

func mustSave(t *testing.T, r *UserRepository, username string, role models.Role) *models.User {
	t.Helper()
	u := models.NewUser(models.Username(username), username+"@example.com", "hash", role)
	if err := r.Save(context.Background(), u); err != nil {
		t.Fatalf("save %s: %v", username, err)
	}
	return u
}

func TestSaveAndGet(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	u := mustSave(t, r, "ada", models.RoleChampion)

	byID, err := r.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if byID.ID != u.ID || byID.Username != "ada" || byID.Role != models.RoleChampion || !byID.IsActive {
		t.Errorf("unexpected user: %+v", byID)
	}
	if !byID.CreatedAt.Equal(u.CreatedAt) {
		t.Errorf("CreatedAt: got %v, want %v", byID.CreatedAt, u.CreatedAt)
	}
	if byID.LastLoginAt != nil {
		t.Errorf("LastLoginAt should be unset, got %v", byID.LastLoginAt)
	}

	byName, err := r.GetByUsername(ctx, "ada")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if byName.ID != u.ID {
		t.Errorf("GetByUsername returned %v", byName.ID)
	}
}

func TestGet_NotFound(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	if _, err := r.GetByID(ctx, uuid.New()); !errors.Is(err, authdomain.ErrUserNotFound) {
		t.Errorf("GetByID: expected ErrUserNotFound, got %v", err)
	}
	if _, err := r.GetByUsername(ctx, "nobody"); !errors.Is(err, authdomain.ErrUserNotFound) {
		t.Errorf("GetByUsername: expected ErrUserNotFound, got %v", err)
	}
}

func TestSave_DuplicateUsernameOrEmail(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	mustSave(t, r, "ada", models.RoleConsultant)

	sameName := models.NewUser("ada", "other@example.com", "hash", models.RoleConsultant)
	if err := r.Save(ctx, sameName); !errors.Is(err, authdomain.ErrUserAlreadyExists) {
		t.Errorf("duplicate username: expected ErrUserAlreadyExists, got %v", err)
	}

	sameEmail := models.NewUser("grace", "ada@example.com", "hash", models.RoleConsultant)
	if err := r.Save(ctx, sameEmail); !errors.Is(err, authdomain.ErrUserAlreadyExists) {
		t.Errorf("duplicate email: expected ErrUserAlreadyExists, got %v", err)
	}
}

func TestSearch(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	for i := range 5 {
		mustSave(t, r, fmt.Sprintf("analyst%d", i), models.RoleConsultant)
	}
	mustSave(t, r, "grace", models.RoleAdmin)
	mustSave(t, r, "under_score", models.RoleConsultant)

	t.Run("pages ordered by username", func(t *testing.T) {
		users, total, err := r.Search(ctx, "ANALYST", repositories.QueryOpts{Limit: 2, Offset: 2})
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if total != 5 {
			t.Errorf("total: got %d, want 5", total)
		}
		if len(users) != 2 || users[0].Username != "analyst2" || users[1].Username != "analyst3" {
			t.Errorf("unexpected page: %v", users)
		}
	})

	t.Run("matches email", func(t *testing.T) {
		users, total, err := r.Search(ctx, "grace@", repositories.QueryOpts{Limit: 10})
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if total != 1 || len(users) != 1 || users[0].Username != "grace" {
			t.Errorf("unexpected result: %d %v", total, users)
		}
	})

	t.Run("wildcards are literal", func(t *testing.T) {
		_, total, err := r.Search(ctx, "_", repositories.QueryOpts{Limit: 10})
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if total != 1 {
			t.Errorf("expected only under_score to match, got %d", total)
		}
	})

	t.Run("empty query lists everyone", func(t *testing.T) {
		_, total, err := r.Search(ctx, "", repositories.QueryOpts{Limit: 1})
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if total != 7 {
			t.Errorf("total: got %d, want 7", total)
		}
	})
}

func TestCountAndCountByRole(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	n, err := r.Count(ctx)
	if err != nil || n != 0 {
		t.Fatalf("Count on empty table: %d, %v", n, err)
	}

	mustSave(t, r, "ada", models.RoleChampion)
	mustSave(t, r, "grace", models.RoleChampion)
	mustSave(t, r, "linus", models.RoleAdmin)

	n, err = r.Count(ctx)
	if err != nil || n != 3 {
		t.Fatalf("Count: %d, %v", n, err)
	}

	byRole, err := r.CountByRole(ctx)
	if err != nil {
		t.Fatalf("CountByRole: %v", err)
	}
	if byRole[models.RoleChampion] != 2 || byRole[models.RoleAdmin] != 1 || byRole[models.RoleGovernance] != 0 {
		t.Errorf("unexpected counts: %v", byRole)
	}
}

func TestUpdateLastLogin(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	u := mustSave(t, r, "ada", models.RoleConsultant)

	at := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	if err := r.UpdateLastLogin(ctx, u.ID, at); err != nil {
		t.Fatalf("UpdateLastLogin: %v", err)
	}
	got, err := r.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.LastLoginAt == nil || !got.LastLoginAt.Equal(at) {
		t.Errorf("LastLoginAt: got %v, want %v", got.LastLoginAt, at)
	}

	if err := r.UpdateLastLogin(ctx, uuid.New(), at); !errors.Is(err, authdomain.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Errorf("escapeLike: got %q", got)
	}
}
