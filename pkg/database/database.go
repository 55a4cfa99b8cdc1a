// Package database owns the SQL connection pool behind the persistence handle.
//
// Connection strings use URL form:
//
//	sqlite:///relative/path.db     file relative to the working directory
//	sqlite:////absolute/path.db    absolute file
//	sqlite:///:memory:             private in-memory store (one per Open)
//	postgres://user:pw@host/db     PostgreSQL through pgx
package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/ghuser/dkn/pkg/logger"
)

// Dialect names the SQL flavour behind a Database.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

// ErrUnsupportedURL is returned for connection strings with an unknown scheme.
var ErrUnsupportedURL = errors.New("unsupported database url")

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Source is a parsed connection string.
type Source struct {
	Driver  string
	DSN     string
	Dialect Dialect
	// Path is the sqlite file path; empty for memory and postgres.
	Path   string
	Memory bool
}

// ParseURL maps a connection URL to a driver and DSN.
func ParseURL(raw string) (Source, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, "sqlite:///"):
		path := strings.TrimPrefix(raw, "sqlite:///")
		if path == "" {
			return Source{}, fmt.Errorf("%w: empty sqlite path in %q", ErrUnsupportedURL, raw)
		}
		if path == ":memory:" {
			return Source{Driver: "sqlite", DSN: ":memory:", Dialect: DialectSQLite, Memory: true}, nil
		}
		return Source{
			Driver:  "sqlite",
			DSN:     "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
			Dialect: DialectSQLite,
			Path:    path,
		}, nil
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return Source{Driver: "pgx", DSN: raw, Dialect: DialectPostgres}, nil
	default:
		return Source{}, fmt.Errorf("%w: %q", ErrUnsupportedURL, redact(raw))
	}
}

// Database wraps the sqlx pool with its dialect.
type Database struct {
	db      *sqlx.DB
	dialect Dialect
	log     logger.Logger
}

// Open parses rawURL, opens the pool and verifies connectivity with Ping.
// The parent directory of a sqlite file is created when missing.
func Open(ctx context.Context, rawURL string, log logger.Logger) (*Database, error) {
	src, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	if src.Path != "" {
		if dir := filepath.Dir(src.Path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	db, err := sqlx.Open(src.Driver, src.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	switch {
	case src.Memory:
		// Every connection to :memory: is a separate database; pin the pool
		// to one connection that never expires.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("configure sqlite: %w", err)
		}
	case src.Dialect == DialectSQLite:
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(4)
	default:
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Debug("database opened", "dialect", string(src.Dialect), "memory", src.Memory, "path", src.Path)

	return &Database{db: db, dialect: src.Dialect, log: log}, nil
}

// DB returns the sqlx pool.
func (d *Database) DB() *sqlx.DB {
	return d.db
}

// Dialect reports the SQL flavour of the pool.
func (d *Database) Dialect() Dialect {
	return d.dialect
}

// Rebind rewrites ? placeholders for the pool's dialect.
func (d *Database) Rebind(query string) string {
	return d.db.Rebind(query)
}

// WithTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise.
func (d *Database) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			d.log.WarnContext(ctx, "rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Ping checks the database connection health.
func (d *Database) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	return nil
}

// Close releases the pool.
func (d *Database) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("database close: %w", err)
	}
	return nil
}

// redact hides credentials in a connection string before it reaches an error message.
func redact(raw string) string {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return raw
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		return scheme + "://***@" + rest[at+1:]
	}
	return raw
}
