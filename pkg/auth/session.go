// Package auth holds the authentication and session handle: session stores,
// the login manager, and the current-user context helpers.
//
// The signing key is the configured SECRET_KEY. SESSION_ENCRYPTION_KEY, when
// set, must be 16, 24, or 32 bytes and turns on AES encryption of the cookie:
//
//	openssl rand -base64 24
package auth

import (
	"bytes"
	"context"
	"encoding/base32"
	"encoding/gob"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/redis/go-redis/v9"

	"github.com/ghuser/dkn/pkg/config"
)

const sessionKeyPrefix = "session:"

// NewStore builds the session store for cfg. A non-nil rdb selects the
// Redis-backed store; otherwise session data lives in a signed cookie.
// Session max-age follows cfg.SessionLifetime and cookies are Secure in
// production only.
func NewStore(cfg *config.Config, rdb *redis.Client) sessions.Store {
	keys := keyPairs(cfg)
	secure := cfg.IsProduction()
	if rdb != nil {
		return NewRedisStore(rdb, cfg.SessionLifetime, secure, keys...)
	}
	return NewCookieStore(cfg.SessionLifetime, secure, keys...)
}

func keyPairs(cfg *config.Config) [][]byte {
	var enc []byte
	if cfg.SessionEncryptionKey != "" {
		enc = []byte(cfg.SessionEncryptionKey)
	}
	return [][]byte{[]byte(cfg.SecretKey), enc}
}

func baseOptions(lifetime time.Duration, secure bool) *sessions.Options {
	return &sessions.Options{
		Path:     "/",
		MaxAge:   int(lifetime / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// NewCookieStore returns a gorilla CookieStore whose cookie and codec
// max-age both equal lifetime.
func NewCookieStore(lifetime time.Duration, secure bool, keyPairs ...[]byte) *sessions.CookieStore {
	store := sessions.NewCookieStore(keyPairs...)
	store.Options = baseOptions(lifetime, secure)
	store.MaxAge(store.Options.MaxAge)
	return store
}

// RedisStore is a sessions.Store backed by Redis.
// Session data is stored server-side; only the signed session ID travels in
// the client cookie.
//
// Redis keys: "session:<id>". The TTL is the session MaxAge, or the store
// lifetime for browser-session cookies (MaxAge 0).
// Values are gob-encoded; register custom types via gob.Register before use.
type RedisStore struct {
	client   *redis.Client
	codecs   []securecookie.Codec
	options  *sessions.Options
	lifetime time.Duration
}

func NewRedisStore(client *redis.Client, lifetime time.Duration, secure bool, keyPairs ...[]byte) *RedisStore {
	codecs := securecookie.CodecsFromPairs(keyPairs...)
	for _, c := range codecs {
		if sc, ok := c.(*securecookie.SecureCookie); ok {
			sc.MaxAge(int(lifetime / time.Second))
		}
	}
	return &RedisStore{
		client:   client,
		codecs:   codecs,
		options:  baseOptions(lifetime, secure),
		lifetime: lifetime,
	}
}

// Get returns the request-scoped session for name.
func (s *RedisStore) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

// New loads the session named by the cookie. A missing, tampered or expired
// cookie, or a missing Redis key, yields a fresh session without error.
func (s *RedisStore) New(r *http.Request, name string) (*sessions.Session, error) {
	session := sessions.NewSession(s, name)
	opts := *s.options
	session.Options = &opts
	session.IsNew = true

	c, err := r.Cookie(name)
	if err != nil {
		return session, nil
	}

	var id string
	if err := securecookie.DecodeMulti(name, c.Value, &id, s.codecs...); err != nil {
		return session, nil
	}

	session.ID = id
	if err := s.load(r.Context(), session); err != nil {
		return session, nil
	}
	session.IsNew = false
	return session, nil
}

// Save persists the session and writes the signed cookie.
// A negative MaxAge deletes both.
func (s *RedisStore) Save(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	if session.Options.MaxAge < 0 {
		if session.ID != "" {
			_ = s.client.Del(r.Context(), sessionKeyPrefix+session.ID).Err()
		}
		http.SetCookie(w, sessions.NewCookie(session.Name(), "", session.Options))
		return nil
	}

	if session.ID == "" {
		session.ID = strings.TrimRight(
			base32.StdEncoding.EncodeToString(securecookie.GenerateRandomKey(32)),
			"=",
		)
	}

	if err := s.save(r.Context(), session); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}

	encoded, err := securecookie.EncodeMulti(session.Name(), session.ID, s.codecs...)
	if err != nil {
		return fmt.Errorf("encode session cookie: %w", err)
	}
	http.SetCookie(w, sessions.NewCookie(session.Name(), encoded, session.Options))
	return nil
}

// Regenerate drops the Redis data stored under the session's current ID and
// clears the ID, so the next Save issues a fresh one. Values are kept.
func (s *RedisStore) Regenerate(ctx context.Context, session *sessions.Session) error {
	if session.ID == "" {
		return nil
	}
	if err := s.client.Del(ctx, sessionKeyPrefix+session.ID).Err(); err != nil {
		return fmt.Errorf("delete session from redis: %w", err)
	}
	session.ID = ""
	return nil
}

func (s *RedisStore) save(ctx context.Context, session *sessions.Session) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(session.Values); err != nil {
		return fmt.Errorf("encode session values: %w", err)
	}
	ttl := time.Duration(session.Options.MaxAge) * time.Second
	if ttl <= 0 {
		ttl = s.lifetime
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+session.ID, buf.Bytes(), ttl).Err(); err != nil {
		return fmt.Errorf("set session in redis: %w", err)
	}
	return nil
}

func (s *RedisStore) load(ctx context.Context, session *sessions.Session) error {
	data, err := s.client.Get(ctx, sessionKeyPrefix+session.ID).Bytes()
	if err != nil {
		return fmt.Errorf("get session from redis: %w", err)
	}
	return gob.NewDecoder(bytes.NewBuffer(data)).Decode(&session.Values)
}
