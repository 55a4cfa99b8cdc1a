package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ghuser/dkn/pkg/config"
	"github.com/ghuser/dkn/pkg/database"
	"github.com/ghuser/dkn/pkg/logger"
)

func TestRootCmd_Structure(t *testing.T) {
	cmd := newRootCmd()
	if cmd.PersistentFlags().Lookup("env") == nil {
		t.Error("missing --env flag")
	}
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"serve", "init-db"} {
		if !names[want] {
			t.Errorf("missing command %q", want)
		}
	}
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// useFileDatabase points the development bundle at a fresh sqlite file.
func useFileDatabase(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	path := filepath.Join(root, "instance", "dkn.db")
	t.Setenv("APP_ROOT", root)
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("DATABASE_URL", "sqlite:///"+path)
	return path
}

func TestInitDB_PrintsStatusAndIsIdempotent(t *testing.T) {
	path := useFileDatabase(t)

	for run := 1; run <= 2; run++ {
		out, err := runCmd(t, "--env", config.EnvDevelopment, "init-db")
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		if !strings.Contains(out, "Creating database tables...\nDatabase initialized successfully!\n") {
			t.Fatalf("run %d: unexpected output %q", run, out)
		}
	}

	db, err := database.Open(context.Background(), "sqlite:///"+path, logger.Discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close() //nolint:errcheck
	var n int
	if err := db.DB().Get(&n, "SELECT COUNT(*) FROM users"); err != nil {
		t.Fatalf("users table missing: %v", err)
	}
}

func TestInitDB_SeedsAdminOnce(t *testing.T) {
	useFileDatabase(t)
	args := []string{"--env", config.EnvDevelopment, "init-db",
		"--admin-user", "root", "--admin-email", "root@example.com", "--admin-password", "adm1n-pass"}

	out, err := runCmd(t, args...)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if !strings.Contains(out, `Admin user "root" created.`) {
		t.Errorf("unexpected output %q", out)
	}

	out, err = runCmd(t, args...)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !strings.Contains(out, "Users already exist; admin not created.") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestInitDB_PartialAdminFlags(t *testing.T) {
	useFileDatabase(t)
	if _, err := runCmd(t, "--env", config.EnvDevelopment, "init-db", "--admin-user", "root"); err == nil {
		t.Fatal("expected error for incomplete admin flags")
	}
}

func TestInitDB_UnknownEnvironment(t *testing.T) {
	useFileDatabase(t)
	if _, err := runCmd(t, "--env", "staging", "init-db"); err == nil {
		t.Fatal("expected error for unknown environment")
	}
}
