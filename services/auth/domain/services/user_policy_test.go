package services

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/ghuser/dkn/services/auth/domain/models"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"letters and digits", "correct1horse", false},
		{"exactly eight", "abcdefg1", false},
		{"unicode letters", "pässwört9", false},
		{"too short", "abc1", true},
		{"no digit", "password", true},
		{"no letter", "12345678", true},
		{"over 72 bytes", strings.Repeat("a1", 37), true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidatePassword(%q) error = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"ada@example.com", false},
		{"", true},
		{"not-an-email", true},
		{"Ada <ada@example.com>", true},
		{strings.Repeat("a", 110) + "@example.com", true},
	}
	for _, tt := range tests {
		if err := ValidateEmail(tt.input); (err != nil) != tt.wantErr {
			t.Errorf("ValidateEmail(%q) error = %v, wantErr = %v", tt.input, err, tt.wantErr)
		}
	}
}

func TestValidateUserForCreation(t *testing.T) {
	valid := func() *models.User {
		return models.NewUser("ada", "ada@example.com", "$2a$hash", models.RoleConsultant)
	}

	t.Run("nil user returns error", func(t *testing.T) {
		if err := ValidateUserForCreation(nil); err == nil {
			t.Fatal("expected error for nil user")
		}
	})

	t.Run("valid user returns nil", func(t *testing.T) {
		if err := ValidateUserForCreation(valid()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	mutations := map[string]func(u *models.User){
		"zero id":      func(u *models.User) { u.ID = uuid.Nil },
		"bad username": func(u *models.User) { u.Username = "a b" },
		"bad email":    func(u *models.User) { u.Email = "nope" },
		"unknown role": func(u *models.User) { u.Role = "root" },
		"empty role":   func(u *models.User) { u.Role = "" },
		"missing hash": func(u *models.User) { u.PasswordHash = "" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			u := valid()
			mutate(u)
			if err := ValidateUserForCreation(u); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
