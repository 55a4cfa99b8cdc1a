// Package app builds a fully wired web application from a settings bundle.
//
// New resolves configuration, initialises the extensions (persistence and
// authentication/session handles), makes sure the upload directory exists,
// builds the router and registers route groups in their declared order.
// Every call returns an independent Application: no handle is shared
// between two instances in one process.
//
// Logging: a.Logger is backed by a trace-aware handler. Use the context
// methods inside handlers so trace_id, span_id and request_id are injected:
//
//	a.Logger.InfoContext(ctx, "user logged in", "user_id", id)
//	a.Logger.ErrorContext(ctx, "failed to save", "error", err)
//
// Use a.Logger.Info/Error (no context) only for startup and shutdown messages.
package app

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"

	"github.com/ghuser/dkn/pkg/auth"
	"github.com/ghuser/dkn/pkg/cache"
	"github.com/ghuser/dkn/pkg/config"
	"github.com/ghuser/dkn/pkg/database"
	"github.com/ghuser/dkn/pkg/events"
	"github.com/ghuser/dkn/pkg/httpx"
	"github.com/ghuser/dkn/pkg/logger"
	"github.com/ghuser/dkn/pkg/render"
	"github.com/ghuser/dkn/pkg/telemetry"
)

// requestsPerMinute is the per-IP budget applied to every route.
const requestsPerMinute = 600

// ErrDuplicateRouteGroup is returned by New when two route groups share a name.
var ErrDuplicateRouteGroup = errors.New("duplicate route group")

// RouteGroup is one named set of routes. Register mounts the group's
// handlers on the root router and may record endpoint names.
type RouteGroup struct {
	Name     string
	Register func(r chi.Router, a *Application)
}

// Options select the bundle and the route groups for New.
type Options struct {
	// Environment names the settings bundle. Empty means
	// config.EnvironmentFromEnv().
	Environment string
	// RouteGroups are registered in slice order.
	RouteGroups []RouteGroup
	// Logger overrides the JSON stdout logger built from the bundle.
	Logger logger.Logger
}

// Application holds the configuration and shared infrastructure handed to
// every route group.
type Application struct {
	Config *config.Config
	Logger logger.Logger

	// Extensions; see InitExtensions.
	Db        *database.Database
	Redis     *cache.RedisClient // nil without REDIS_URL
	UserCache *cache.UserCache   // nil without REDIS_URL
	EventBus  *events.EventBus
	Login     *auth.LoginManager

	Renderer  *render.Renderer
	Telemetry *telemetry.Telemetry
	Router    *chi.Mux

	mu              sync.RWMutex
	endpoints       map[string]string
	extensionsReady bool
}

// New builds and wires an Application. Configuration is resolved before the
// extensions are initialised, and extensions before any route group is
// registered. On error every handle opened so far is released.
func New(ctx context.Context, opts Options) (_ *Application, err error) {
	env := opts.Environment
	if env == "" {
		env = config.EnvironmentFromEnv()
	}
	cfg, err := config.Load(env)
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = logger.New(cfg)
	}
	if verr := config.ValidateForProduction(cfg); verr != nil {
		log.Warn("unsafe production configuration", "error", verr)
	}

	a := &Application{
		Config:    cfg,
		Logger:    log,
		endpoints: make(map[string]string),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.Telemetry, err = telemetry.Setup(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("setup telemetry: %w", err)
	}

	if err := a.InitExtensions(ctx); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.UploadFolder, 0o755); err != nil {
		return nil, fmt.Errorf("create upload folder: %w", err)
	}

	a.Renderer, err = render.New(a.URLFor)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	if err := a.buildRouter(opts.RouteGroups); err != nil {
		return nil, err
	}

	log.Info("application ready", "env", cfg.Name, "route_groups", len(opts.RouteGroups))
	return a, nil
}

func (a *Application) buildRouter(groups []RouteGroup) error {
	cfg := a.Config

	outer := []func(http.Handler) http.Handler{
		logger.Middleware(a.Logger),
		logger.Recovery(a.Logger, a.panicked),
	}
	if cfg.SentryDSN != "" {
		outer = append(outer, telemetry.SentryMiddleware())
	}
	outer = append(outer, a.Telemetry.Middleware())

	rpm := requestsPerMinute
	if cfg.Testing {
		rpm = 0
	}

	r := httpx.NewRouter(httpx.ServerConfig{
		IsDevelopment:      !cfg.IsProduction(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		MaxBodyBytes:       cfg.MaxContentLength,
		RequestsPerMinute:  rpm,
	}, outer...)

	if cfg.CSRFEnabled {
		r.Use(a.csrfProtect())
	}
	r.Use(a.Login.LoadUser)

	checks := httpx.HealthChecks{Environment: cfg.Name, Database: a.Db, EventBus: a.EventBus}
	if a.Redis != nil {
		checks.Redis = a.Redis
	}
	r.Get("/health", httpx.HealthHandler(checks))
	r.Handle("/metrics", a.Telemetry.MetricsHandler())

	seen := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		if g.Name == "" || g.Register == nil {
			return fmt.Errorf("route group %q: name and register func are required", g.Name)
		}
		if _, dup := seen[g.Name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateRouteGroup, g.Name)
		}
		seen[g.Name] = struct{}{}
		g.Register(r, a)
		a.Logger.Debug("route group registered", "group", g.Name)
	}

	r.NotFound(a.NotFound)
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpx.Text(w, http.StatusMethodNotAllowed, "")
	})

	a.Router = r
	return nil
}

// csrfProtect guards unsafe methods with a token derived from SecretKey.
// Outside production plain-HTTP requests skip the TLS-only origin checks.
func (a *Application) csrfProtect() func(http.Handler) http.Handler {
	key := sha256.Sum256([]byte(a.Config.SecretKey))
	protect := csrf.Protect(key[:],
		csrf.Secure(a.Config.IsProduction()),
		csrf.Path("/"),
		csrf.ErrorHandler(http.HandlerFunc(a.Forbidden)),
	)
	plaintextOK := !a.Config.IsProduction()
	return func(next http.Handler) http.Handler {
		h := protect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if plaintextOK && r.TLS == nil {
				r = csrf.PlaintextHTTPRequest(r)
			}
			h.ServeHTTP(w, r)
		})
	}
}

// ServeHTTP dispatches to the router.
func (a *Application) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.Router.ServeHTTP(w, r)
}

// Close releases every handle. Safe to call more than once.
func (a *Application) Close() error {
	var errs []error
	if a.EventBus != nil {
		errs = append(errs, a.EventBus.Close())
	}
	errs = append(errs, a.Redis.Close())
	errs = append(errs, a.Db.Close())
	if a.Telemetry != nil {
		errs = append(errs, a.Telemetry.Shutdown(context.Background()))
		a.Telemetry = nil
	}
	a.Redis, a.Db = nil, nil
	return errors.Join(errs...)
}
