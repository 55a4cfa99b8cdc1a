// Package config resolves the settings bundle for one deployment environment.
//
// A bundle is produced by Load from an environment name and the process
// environment. Values from environment variables take precedence over the
// hard-coded defaults; per-environment overrides are applied last.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/joho/godotenv"
)

// Environment name constants accepted by Load.
const (
	EnvDevelopment = "development"
	EnvTesting     = "testing"
	EnvProduction  = "production"
	EnvDefault     = "default"
)

const (
	// DefaultSecretKey is the development signing key. It must be replaced in production.
	DefaultSecretKey = "dev-secret-key-change-in-production"
	// DefaultDatabaseURL points at the local file-backed store.
	DefaultDatabaseURL = "sqlite:///instance/dkn_system.db"
	// MemoryDatabaseURL is the non-persistent store forced by the testing bundle.
	MemoryDatabaseURL = "sqlite:///:memory:"

	// MaxContentLength caps uploads at 50 MiB.
	MaxContentLength = 50 * 1024 * 1024
)

// ErrUnknownEnvironment is returned by Load for names outside the registry.
var ErrUnknownEnvironment = errors.New("unknown environment")

// Config is one resolved settings bundle. It is read-only after Load returns.
type Config struct {
	Name    string
	Debug   bool
	Testing bool

	SecretKey   string
	DatabaseURL string

	SessionLifetime        time.Duration
	RememberCookieDuration time.Duration
	SessionEncryptionKey   string
	RedisURL               string

	AppRoot           string
	UploadFolder      string
	MaxContentLength  int64
	AllowedExtensions map[string]struct{}

	ItemsPerPage int

	SimilarityThreshold float64
	MaxTagsPerAsset     int
	MaxExpertsPerAsset  int

	CSRFEnabled bool

	ListenAddr         string
	LogLevel           string
	CORSAllowedOrigins string

	ServiceName    string
	ServiceVersion string
	OtelEndpoint   string
	SentryDSN      string
}

// source holds every value that may come from the process environment.
type source struct {
	SecretKey   string `conf:"default:dev-secret-key-change-in-production,env:SECRET_KEY,noprint"`
	DatabaseURL string `conf:"default:sqlite:///instance/dkn_system.db,env:DATABASE_URL,noprint"`

	AppRoot    string `conf:"default:.,env:APP_ROOT"`
	ListenAddr string `conf:"default::5000,env:LISTEN_ADDR"`
	LogLevel   string `conf:"env:LOG_LEVEL"`

	// Sessions are cookie-backed unless REDIS_URL is set.
	RedisURL             string `conf:"env:REDIS_URL"`
	SessionEncryptionKey string `conf:"env:SESSION_ENCRYPTION_KEY,noprint"`

	// CORS: comma-separated list of allowed origins
	CORSAllowedOrigins string `conf:"default:*,env:CORS_ALLOWED_ORIGINS"`

	ServiceName    string `conf:"default:dkn,env:SERVICE_NAME"`
	ServiceVersion string `conf:"default:dev,env:SERVICE_VERSION"`
	OtelEndpoint   string `conf:"env:OTEL_ENDPOINT"`
	SentryDSN      string `conf:"env:SENTRY_DSN,noprint"`
}

// EnvironmentFromEnv returns the environment name selected by the process
// environment: DKN_ENV, then FLASK_ENV, then development.
func EnvironmentFromEnv() string {
	for _, key := range []string{"DKN_ENV", "FLASK_ENV"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return EnvDevelopment
}

// Names lists the environment names Load accepts, sorted.
func Names() []string {
	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load resolves the bundle for name. An optional .env file in the working
// directory is loaded first; variables already set are not overwritten.
func Load(name string) (*Config, error) {
	override, ok := overrides[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownEnvironment, name, strings.Join(Names(), ", "))
	}

	_ = godotenv.Load()

	var src source
	if _, err := conf.Parse("", &src); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg, err := base(name, &src)
	if err != nil {
		return nil, err
	}
	override(cfg)
	return cfg, nil
}

// base builds the settings shared by every bundle.
func base(name string, src *source) (*Config, error) {
	root, err := filepath.Abs(src.AppRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve app root %q: %w", src.AppRoot, err)
	}

	cfg := &Config{
		Name:        name,
		SecretKey:   orDefault(src.SecretKey, DefaultSecretKey),
		DatabaseURL: orDefault(src.DatabaseURL, DefaultDatabaseURL),

		SessionLifetime:        7 * 24 * time.Hour,
		RememberCookieDuration: 7 * 24 * time.Hour,
		SessionEncryptionKey:   src.SessionEncryptionKey,
		RedisURL:               src.RedisURL,

		AppRoot:          root,
		UploadFolder:     filepath.Join(root, "uploads"),
		MaxContentLength: MaxContentLength,
		AllowedExtensions: map[string]struct{}{
			"pdf": {}, "docx": {}, "xlsx": {}, "txt": {}, "doc": {}, "xls": {}, "pptx": {},
		},

		ItemsPerPage: 10,

		SimilarityThreshold: 0.3,
		MaxTagsPerAsset:     5,
		MaxExpertsPerAsset:  3,

		CSRFEnabled: true,

		ListenAddr:         src.ListenAddr,
		LogLevel:           src.LogLevel,
		CORSAllowedOrigins: src.CORSAllowedOrigins,

		ServiceName:    src.ServiceName,
		ServiceVersion: src.ServiceVersion,
		OtelEndpoint:   src.OtelEndpoint,
		SentryDSN:      src.SentryDSN,
	}
	return cfg, nil
}

// overrides holds the explicit per-environment field changes applied on top of base.
var overrides = map[string]func(*Config){
	EnvDevelopment: development,
	EnvTesting: func(c *Config) {
		c.Debug = false
		c.Testing = true
		c.DatabaseURL = MemoryDatabaseURL
		c.CSRFEnabled = false
	},
	EnvProduction: func(c *Config) {
		c.Debug = false
		c.Testing = false
	},
	EnvDefault: development,
}

func development(c *Config) {
	c.Debug = true
	c.Testing = false
	if c.LogLevel == "" {
		c.LogLevel = "debug"
	}
}

// IsProduction reports whether the bundle is the production one.
func (c *Config) IsProduction() bool {
	return c.Name == EnvProduction
}

// AllowedFile reports whether filename carries one of the allowed upload extensions.
func (c *Config) AllowedFile(filename string) bool {
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	if ext == "" {
		return false
	}
	_, ok := c.AllowedExtensions[strings.ToLower(ext)]
	return ok
}

// Extensions returns the allowed upload extensions, sorted.
func (c *Config) Extensions() []string {
	out := make([]string, 0, len(c.AllowedExtensions))
	for ext := range c.AllowedExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// ValidateForProduction reports unsafe settings when the bundle is production.
// No-ops for non-production environments.
func ValidateForProduction(cfg *Config) error {
	if !cfg.IsProduction() {
		return nil
	}

	var errs []string

	if cfg.SecretKey == DefaultSecretKey {
		errs = append(errs, "SECRET_KEY is still the development default; generate one with: openssl rand -base64 32")
	} else if len(cfg.SecretKey) < 32 {
		errs = append(errs, fmt.Sprintf("SECRET_KEY should be at least 32 bytes (got %d)", len(cfg.SecretKey)))
	}

	if n := len(cfg.SessionEncryptionKey); n != 0 && n != 16 && n != 24 && n != 32 {
		errs = append(errs, fmt.Sprintf("SESSION_ENCRYPTION_KEY must be 16, 24 or 32 bytes (got %d)", n))
	}

	if cfg.LogLevel == "debug" {
		errs = append(errs, "LOG_LEVEL must not be 'debug' in production (may leak sensitive data)")
	}

	if len(errs) == 0 {
		return nil
	}

	return fmt.Errorf("production config validation failed: %s", strings.Join(errs, "; "))
}

// orDefault falls back only when v is empty; whitespace is a value.
func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
