package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ghuser/dkn/pkg/auth"
	"github.com/ghuser/dkn/pkg/cache"
	"github.com/ghuser/dkn/pkg/database"
	"github.com/ghuser/dkn/pkg/events"
)

// InitExtensions attaches the persistence handle and the
// authentication/session handle to a. A second call on the same
// Application is a no-op. It is not safe for concurrent use.
//
// The session user loader is left unset; the auth route group installs it.
// Until then every request is anonymous.
func (a *Application) InitExtensions(ctx context.Context) error {
	if a.extensionsReady {
		return nil
	}
	cfg := a.Config

	db, err := database.Open(ctx, cfg.DatabaseURL, a.Logger)
	if err != nil {
		return fmt.Errorf("init persistence: %w", err)
	}
	a.Db = db

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		a.Redis, err = cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("init redis: %w", err)
		}
		a.UserCache = cache.NewUserCache(a.Redis)
		rdb = a.Redis.Client()
	}

	a.EventBus, err = events.New(db, cfg.ServiceName, a.Logger)
	if err != nil {
		return fmt.Errorf("init event bus: %w", err)
	}

	login := auth.NewLoginManager(auth.NewStore(cfg, rdb), a.Logger)
	login.RememberDuration = cfg.RememberCookieDuration
	login.SetURLResolver(a.URLFor)
	a.Login = login

	backend := "cookie"
	if rdb != nil {
		backend = "redis"
	}
	a.Logger.Info("extensions initialised",
		"dialect", string(db.Dialect()),
		"sessions", backend,
		"login_view", login.LoginView,
	)

	a.extensionsReady = true
	return nil
}
