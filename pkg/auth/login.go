package auth

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"github.com/ghuser/dkn/pkg/logger"
)

const (
	sessionName      = "dkn_session"
	sessionUserIDKey = "user_id"
	sessionRemember  = "remember"
)

// Defaults applied by NewLoginManager.
const (
	DefaultLoginView            = "auth.login"
	DefaultLoginMessage         = "Please log in to access this page."
	DefaultLoginMessageCategory = "info"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Category string
	Message  string
}

func init() {
	gob.Register(Flash{})
}

// UserLoader resolves a session's stored user id. It returns ErrUnknownUser
// when the id no longer maps to an active account.
type UserLoader func(ctx context.Context, id uuid.UUID) (User, error)

// LoginManager is the authentication/session handle. It loads the current
// user from the session on every request, gates pages behind login, and
// records logins and logouts.
type LoginManager struct {
	// LoginView is the endpoint name anonymous visitors are redirected to.
	LoginView            string
	LoginMessage         string
	LoginMessageCategory string
	// RememberDuration is the cookie lifetime of a "remember me" login.
	RememberDuration time.Duration

	store  sessions.Store
	loader UserLoader
	urlFor func(name string) string
	log    logger.Logger
}

// NewLoginManager returns a manager with the default login view and message.
// Until SetUserLoader is called every session resolves to Anonymous.
func NewLoginManager(store sessions.Store, log logger.Logger) *LoginManager {
	return &LoginManager{
		LoginView:            DefaultLoginView,
		LoginMessage:         DefaultLoginMessage,
		LoginMessageCategory: DefaultLoginMessageCategory,
		store:                store,
		log:                  log,
	}
}

func (m *LoginManager) SetUserLoader(fn UserLoader) {
	m.loader = fn
}

// SetURLResolver installs the endpoint-name lookup used to build the login
// redirect.
func (m *LoginManager) SetURLResolver(fn func(name string) string) {
	m.urlFor = fn
}

func (m *LoginManager) Store() sessions.Store {
	return m.store
}

// LoadUser is a chi middleware that resolves the session user and stores it
// in the request context. Missing, stale, or unreadable sessions yield
// Anonymous; the request always proceeds.
func (m *LoginManager) LoadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := m.resolve(r)
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func (m *LoginManager) resolve(r *http.Request) User {
	if m.loader == nil {
		return Anonymous
	}
	session, err := m.session(r)
	if err != nil {
		return Anonymous
	}
	raw, ok := session.Values[sessionUserIDKey].(string)
	if !ok || raw == "" {
		return Anonymous
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		m.log.WarnContext(r.Context(), "invalid user_id in session", "user_id", raw, "error", err)
		return Anonymous
	}
	user, err := m.loader(r.Context(), id)
	if err != nil {
		if !errors.Is(err, ErrUnknownUser) {
			m.log.ErrorContext(r.Context(), "failed to load session user", "user_id", raw, "error", err)
		}
		return Anonymous
	}
	return user
}

// RequireLogin redirects anonymous visitors to the login view with the
// login message flashed and the original path in ?next=. Without a
// resolvable login view it answers 401.
func (m *LoginManager) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromCtx(r.Context()).IsAuthenticated() {
			next.ServeHTTP(w, r)
			return
		}

		loginURL := ""
		if m.urlFor != nil && m.LoginView != "" {
			loginURL = m.urlFor(m.LoginView)
		}
		if loginURL == "" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		if m.LoginMessage != "" {
			if err := m.AddFlash(w, r, m.LoginMessageCategory, m.LoginMessage); err != nil {
				m.log.WarnContext(r.Context(), "failed to flash login message", "error", err)
			}
		}
		target := loginURL + "?next=" + url.QueryEscape(r.URL.RequestURI())
		http.Redirect(w, r, target, http.StatusFound)
	})
}

// RequireRole calls forbidden unless the current user holds one of roles.
// Anonymous requests are sent through RequireLogin first.
func (m *LoginManager) RequireRole(forbidden http.HandlerFunc, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		gate := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !UserFromCtx(r.Context()).HasRole(roles...) {
				forbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
		return m.RequireLogin(gate)
	}
}

// LoginUser stores u in the session. A Redis-backed session gets a new ID.
// A remembered login keeps its cookie for RememberDuration; otherwise the
// cookie lasts for the browser session.
func (m *LoginManager) LoginUser(w http.ResponseWriter, r *http.Request, u User, remember bool) error {
	if !u.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	session, err := m.session(r)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	// A server-side session gets a new ID at login so a cookie issued
	// before authentication never becomes a logged-in one.
	if rs, ok := m.store.(*RedisStore); ok {
		if err := rs.Regenerate(r.Context(), session); err != nil {
			return fmt.Errorf("regenerate session: %w", err)
		}
	}
	session.Values[sessionUserIDKey] = u.ID.String()
	session.Values[sessionRemember] = remember
	m.applyCookieLifetime(session)
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// LogoutUser removes the user from the session. Pending flashes survive so
// a logout notice can still be shown.
func (m *LoginManager) LogoutUser(w http.ResponseWriter, r *http.Request) error {
	session, err := m.session(r)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	delete(session.Values, sessionUserIDKey)
	delete(session.Values, sessionRemember)
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// session returns the request session with the cookie lifetime of the
// current login applied, so later saves keep a browser-session login from
// turning persistent.
func (m *LoginManager) session(r *http.Request) (*sessions.Session, error) {
	session, err := m.store.Get(r, sessionName)
	if err != nil {
		if session == nil {
			return nil, err
		}
		// Unreadable cookies come back as a fresh session alongside the error.
		m.log.WarnContext(r.Context(), "invalid session cookie", "error", err)
	}
	m.applyCookieLifetime(session)
	return session, nil
}

func (m *LoginManager) applyCookieLifetime(session *sessions.Session) {
	remember, ok := session.Values[sessionRemember].(bool)
	if !ok {
		return
	}
	if remember && m.RememberDuration > 0 {
		session.Options.MaxAge = int(m.RememberDuration / time.Second)
	} else {
		session.Options.MaxAge = 0
	}
}

// AddFlash queues a message for the next rendered page.
func (m *LoginManager) AddFlash(w http.ResponseWriter, r *http.Request, category, message string) error {
	session, err := m.session(r)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	session.AddFlash(Flash{Category: category, Message: message})
	return session.Save(r, w)
}

// Flashes pops queued messages. It writes a cookie, so call it before the
// response body.
func (m *LoginManager) Flashes(w http.ResponseWriter, r *http.Request) []Flash {
	session, err := m.session(r)
	if err != nil {
		return nil
	}
	raw := session.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := session.Save(r, w); err != nil {
		m.log.WarnContext(r.Context(), "failed to clear flashes", "error", err)
	}
	out := make([]Flash, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(Flash); ok {
			out = append(out, f)
		}
	}
	return out
}

// SafeNext returns next when it is a local absolute path and fallback
// otherwise, so ?next= cannot redirect off-site.
func SafeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	return next
}
