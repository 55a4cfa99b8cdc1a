package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestWithUser_UserFromCtx(t *testing.T) {
	u := User{ID: uuid.New(), Username: "ada", Role: RoleChampion}
	ctx := WithUser(context.Background(), u)

	if got := UserFromCtx(ctx); got != u {
		t.Fatalf("expected %+v, got %+v", u, got)
	}
	id, err := UserIDFromCtx(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != u.ID {
		t.Fatalf("expected %v, got %v", u.ID, id)
	}
}

func TestUserFromCtx_EmptyContextIsAnonymous(t *testing.T) {
	got := UserFromCtx(context.Background())
	if got != Anonymous {
		t.Fatalf("expected Anonymous, got %+v", got)
	}
	if got.IsAuthenticated() {
		t.Fatal("anonymous user must not be authenticated")
	}
	if _, err := UserIDFromCtx(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestUserFromCtx_Isolation(t *testing.T) {
	u1 := User{ID: uuid.New(), Username: "ada"}
	u2 := User{ID: uuid.New(), Username: "grace"}

	ctx1 := WithUser(context.Background(), u1)
	ctx2 := WithUser(context.Background(), u2)

	if UserFromCtx(ctx1) == UserFromCtx(ctx2) {
		t.Fatal("expected different users in isolated contexts")
	}
}

func TestHasRole(t *testing.T) {
	tests := []struct {
		name  string
		user  User
		roles []string
		want  bool
	}{
		{"anonymous", Anonymous, []string{RoleConsultant}, false},
		{"matching role", User{ID: uuid.New(), Role: RoleChampion}, []string{RoleChampion}, true},
		{"one of several", User{ID: uuid.New(), Role: RoleGovernance}, []string{RoleChampion, RoleGovernance}, true},
		{"wrong role", User{ID: uuid.New(), Role: RoleConsultant}, []string{RoleGovernance}, false},
		{"admin passes every gate", User{ID: uuid.New(), Role: RoleAdmin}, []string{RoleGovernance}, true},
		{"no roles required", User{ID: uuid.New(), Role: RoleConsultant}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.HasRole(tt.roles...); got != tt.want {
				t.Errorf("HasRole(%v) = %v, want %v", tt.roles, got, tt.want)
			}
		})
	}
}
