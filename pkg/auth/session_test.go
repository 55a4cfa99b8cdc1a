package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/redis/go-redis/v9"

	"github.com/ghuser/dkn/pkg/config"
	"github.com/ghuser/dkn/pkg/logger"
)

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

func TestNewStore_SelectsBackend(t *testing.T) {
	cfg := &config.Config{Name: config.EnvDevelopment, SecretKey: "k", SessionLifetime: time.Hour}

	if _, ok := NewStore(cfg, nil).(*sessions.CookieStore); !ok {
		t.Error("expected cookie store without redis")
	}

	rdb, _ := newRedis(t)
	if _, ok := NewStore(cfg, rdb).(*RedisStore); !ok {
		t.Error("expected redis store with a redis client")
	}
}

func TestNewStore_SecureInProduction(t *testing.T) {
	cfg := &config.Config{Name: config.EnvProduction, SecretKey: "k", SessionLifetime: time.Hour}
	store, ok := NewStore(cfg, nil).(*sessions.CookieStore)
	if !ok {
		t.Fatal("expected cookie store")
	}
	if !store.Options.Secure {
		t.Error("expected Secure cookies in production")
	}
	if store.Options.MaxAge != 3600 {
		t.Errorf("MaxAge: got %d, want 3600", store.Options.MaxAge)
	}
}

func TestRedisStore_RoundTrip(t *testing.T) {
	rdb, mr := newRedis(t)
	store := NewRedisStore(rdb, time.Hour, false, []byte("test-auth-key-must-be-32-bytes!!"))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	session, err := store.Get(r, sessionName)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !session.IsNew {
		t.Fatal("expected new session")
	}
	session.Values[sessionUserIDKey] = "abc"
	session.Options.MaxAge = 0
	if err := session.Save(r, w); err != nil {
		t.Fatalf("Save: %v", err)
	}

	key := sessionKeyPrefix + session.ID
	if !mr.Exists(key) {
		t.Fatalf("expected %s in redis", key)
	}
	if ttl := mr.TTL(key); ttl != time.Hour {
		t.Errorf("browser-session TTL: got %v, want store lifetime", ttl)
	}

	loaded, err := store.Get(withCookies(http.MethodGet, "/", w), sessionName)
	if err != nil {
		t.Fatalf("Get loaded: %v", err)
	}
	if loaded.IsNew {
		t.Fatal("expected existing session")
	}
	if loaded.Values[sessionUserIDKey] != "abc" {
		t.Errorf("unexpected values %v", loaded.Values)
	}
}

func TestRedisStore_DeleteOnNegativeMaxAge(t *testing.T) {
	rdb, mr := newRedis(t)
	store := NewRedisStore(rdb, time.Hour, false, []byte("test-auth-key-must-be-32-bytes!!"))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	session, _ := store.Get(r, sessionName)
	session.Values["k"] = "v"
	if err := session.Save(r, w); err != nil {
		t.Fatalf("Save: %v", err)
	}
	key := sessionKeyPrefix + session.ID

	session.Options.MaxAge = -1
	if err := session.Save(r, httptest.NewRecorder()); err != nil {
		t.Fatalf("Save delete: %v", err)
	}
	if mr.Exists(key) {
		t.Fatalf("expected %s to be deleted", key)
	}
}

func TestRedisStore_MissingKeyYieldsFreshSession(t *testing.T) {
	rdb, mr := newRedis(t)
	store := NewRedisStore(rdb, time.Hour, false, []byte("test-auth-key-must-be-32-bytes!!"))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	session, _ := store.Get(r, sessionName)
	session.Values["k"] = "v"
	if err := session.Save(r, w); err != nil {
		t.Fatalf("Save: %v", err)
	}
	mr.FlushAll()

	loaded, err := store.Get(withCookies(http.MethodGet, "/", w), sessionName)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !loaded.IsNew || len(loaded.Values) != 0 {
		t.Fatalf("expected fresh session, got %+v", loaded.Values)
	}
}

func TestLoginUser_RotatesRedisSessionID(t *testing.T) {
	rdb, mr := newRedis(t)
	store := NewRedisStore(rdb, time.Hour, false, []byte("test-auth-key-must-be-32-bytes!!"))
	ada := User{ID: uuid.New(), Username: "ada", Role: "consultant"}
	m := NewLoginManager(store, logger.Discard())
	m.SetUserLoader(func(_ context.Context, id uuid.UUID) (User, error) {
		if id == ada.ID {
			return ada, nil
		}
		return Anonymous, ErrUnknownUser
	})

	// An anonymous visit that writes to the session gets a server-side ID.
	anon := httptest.NewRecorder()
	if err := m.AddFlash(anon, httptest.NewRequest(http.MethodGet, "/secret", http.NoBody), "info", "Please log in."); err != nil {
		t.Fatalf("AddFlash: %v", err)
	}
	before := mr.Keys()
	if len(before) != 1 {
		t.Fatalf("expected one session key, got %v", before)
	}

	loggedIn := httptest.NewRecorder()
	if err := m.LoginUser(loggedIn, withCookies(http.MethodPost, "/auth/login", anon), ada, false); err != nil {
		t.Fatalf("LoginUser: %v", err)
	}

	if mr.Exists(before[0]) {
		t.Errorf("pre-login key %s still present after login", before[0])
	}
	if after := mr.Keys(); len(after) != 1 || after[0] == before[0] {
		t.Errorf("expected one fresh session key, got %v (before %v)", after, before)
	}
	if got := captureUser(m, withCookies(http.MethodGet, "/", anon)); got.IsAuthenticated() {
		t.Errorf("pre-login cookie resolves to %q", got.Username)
	}
	if got := captureUser(m, withCookies(http.MethodGet, "/", loggedIn)); got.ID != ada.ID {
		t.Errorf("login cookie resolves to %+v, want ada", got)
	}

	flashes := m.Flashes(httptest.NewRecorder(), withCookies(http.MethodGet, "/", loggedIn))
	if len(flashes) != 1 || flashes[0].Message != "Please log in." {
		t.Errorf("flashes not carried into the new session: %+v", flashes)
	}
}
