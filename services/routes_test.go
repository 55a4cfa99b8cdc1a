package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ghuser/dkn/pkg/app"
	"github.com/ghuser/dkn/pkg/config"
	"github.com/ghuser/dkn/pkg/logger"
	"github.com/ghuser/dkn/pkg/migrator"
	authsvcs "github.com/ghuser/dkn/services/auth/application/services"
)

const testPassword = "s3cret-pass"

func newApp(t *testing.T) *app.Application {
	t.Helper()
	t.Setenv("APP_ROOT", t.TempDir())
	ctx := context.Background()
	a, err := app.New(ctx, app.Options{
		Environment: config.EnvTesting,
		RouteGroups: RouteGroups(),
		Logger:      logger.Discard(),
	})
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	if err := migrator.CreateAll(ctx, a.Db); err != nil {
		t.Fatalf("CreateAll: %v", err)
	}
	return a
}

func createUser(t *testing.T, a *app.Application, username, role string) {
	t.Helper()
	if _, err := authsvcs.New(a).Users.CreateUser(context.Background(), username, username+"@example.com", testPassword, role); err != nil {
		t.Fatalf("CreateUser(%s): %v", username, err)
	}
}

// client keeps the session cookie between requests.
type client struct {
	t       *testing.T
	h       http.Handler
	session *http.Cookie
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()
	if c.session != nil {
		req.AddCookie(c.session)
	}
	rr := httptest.NewRecorder()
	c.h.ServeHTTP(rr, req)
	for _, ck := range rr.Result().Cookies() {
		if ck.Name == "dkn_session" {
			c.session = ck
		}
	}
	return rr
}

func (c *client) get(path string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, path, http.NoBody))
}

func (c *client) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *client) login(username string, extra url.Values) *httptest.ResponseRecorder {
	form := url.Values{"username": {username}, "password": {testPassword}}
	for k, v := range extra {
		form[k] = v
	}
	return c.post("/auth/login", form)
}

func TestRouteGroups_Order(t *testing.T) {
	want := []string{"main", "auth", "consultant", "champion", "governance", "admin", "search"}
	groups := RouteGroups()
	if len(groups) != len(want) {
		t.Fatalf("expected %d groups, got %d", len(want), len(groups))
	}
	for i, g := range groups {
		if g.Name != want[i] {
			t.Errorf("group %d: got %q, want %q", i, g.Name, want[i])
		}
	}
}

func TestEndpointsRegistered(t *testing.T) {
	a := newApp(t)
	for name, path := range map[string]string{
		"main.index":       "/",
		"auth.login":       "/auth/login",
		"auth.logout":      "/auth/logout",
		"consultant.index": "/consultant",
		"champion.index":   "/champion",
		"governance.index": "/governance",
		"admin.index":      "/admin",
		"search.index":     "/search",
	} {
		if got := a.URLFor(name); got != path {
			t.Errorf("URLFor(%q) = %q, want %q", name, got, path)
		}
	}
}

func TestHomePage_Anonymous(t *testing.T) {
	c := &client{t: t, h: newApp(t)}
	rr := c.get("/")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `href="/auth/login"`) {
		t.Error("expected login link on the home page")
	}
}

func TestLoginRequired_RedirectsWithMessage(t *testing.T) {
	c := &client{t: t, h: newApp(t)}

	rr := c.get("/search?q=ada")
	if rr.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/auth/login?next=%2Fsearch%3Fq%3Dada" {
		t.Fatalf("unexpected redirect %q", loc)
	}

	page := c.get(rr.Header().Get("Location"))
	body := page.Body.String()
	if !strings.Contains(body, "Please log in to access this page.") || !strings.Contains(body, `class="flash info"`) {
		t.Errorf("expected login message flashed under info:\n%s", body)
	}
	if !strings.Contains(body, `value="/search?q=ada"`) {
		t.Errorf("expected next carried into the form:\n%s", body)
	}
}

func TestLogin_Success(t *testing.T) {
	a := newApp(t)
	createUser(t, a, "ada", "")
	c := &client{t: t, h: a}

	rr := c.login("ada", url.Values{"next": {"/search?q=ada"}})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", rr.Code, rr.Body.String())
	}
	if loc := rr.Header().Get("Location"); loc != "/search?q=ada" {
		t.Errorf("unexpected redirect %q", loc)
	}

	search := c.get("/search?q=ada")
	if search.Code != http.StatusOK {
		t.Fatalf("search after login: %d", search.Code)
	}
	body := search.Body.String()
	if !strings.Contains(body, "Welcome back, ada.") {
		t.Error("expected welcome flash")
	}
	if !strings.Contains(body, "ada@example.com") {
		t.Error("expected ada in results")
	}

	again := c.get("/auth/login")
	if again.Code != http.StatusSeeOther || again.Header().Get("Location") != "/" {
		t.Errorf("logged-in visit to login should redirect home, got %d %q", again.Code, again.Header().Get("Location"))
	}
}

func TestLogin_OffsiteNextIsIgnored(t *testing.T) {
	a := newApp(t)
	createUser(t, a, "ada", "")
	c := &client{t: t, h: a}

	rr := c.login("ada", url.Values{"next": {"//evil.example.com/"}})
	if loc := rr.Header().Get("Location"); loc != "/" {
		t.Errorf("expected redirect home, got %q", loc)
	}
}

func TestLogin_RememberMeSetsPersistentCookie(t *testing.T) {
	a := newApp(t)
	createUser(t, a, "ada", "")

	plain := &client{t: t, h: a}
	plain.login("ada", nil)
	if plain.session == nil || plain.session.MaxAge != 0 {
		t.Errorf("plain login should set a browser-session cookie, got %+v", plain.session)
	}

	remembered := &client{t: t, h: a}
	remembered.login("ada", url.Values{"remember": {"on"}})
	want := int(a.Config.RememberCookieDuration / time.Second)
	if remembered.session == nil || remembered.session.MaxAge != want {
		t.Errorf("remembered login MaxAge: got %+v, want %d", remembered.session, want)
	}
}

func TestLogin_Failures(t *testing.T) {
	a := newApp(t)
	createUser(t, a, "ada", "")
	c := &client{t: t, h: a}

	wrong := c.post("/auth/login", url.Values{"username": {"ada"}, "password": {"nope-nope1"}})
	if wrong.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: expected 401, got %d", wrong.Code)
	}
	if !strings.Contains(wrong.Body.String(), "Invalid username or password.") {
		t.Error("expected invalid credentials flash")
	}

	missing := c.post("/auth/login", url.Values{"username": {"ada"}})
	if missing.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing password: expected 422, got %d", missing.Code)
	}
	if !strings.Contains(missing.Body.String(), `value="ada"`) {
		t.Error("expected username kept in the re-rendered form")
	}

	if c.get("/consultant").Code != http.StatusFound {
		t.Error("failed logins must leave the visitor anonymous")
	}
}

func TestLogout(t *testing.T) {
	a := newApp(t)
	createUser(t, a, "ada", "")
	c := &client{t: t, h: a}
	c.login("ada", nil)

	rr := c.post("/auth/logout", nil)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/auth/login" {
		t.Fatalf("unexpected logout response %d %q", rr.Code, rr.Header().Get("Location"))
	}
	page := c.get("/auth/login")
	if !strings.Contains(page.Body.String(), "You have been logged out.") {
		t.Error("expected logout flash")
	}
	if c.get("/consultant").Code != http.StatusFound {
		t.Error("expected anonymous after logout")
	}
}

func TestSections_RoleGates(t *testing.T) {
	a := newApp(t)
	createUser(t, a, "carl", "consultant")
	createUser(t, a, "chloe", "champion")
	createUser(t, a, "gary", "governance")
	createUser(t, a, "ada", "admin")

	// One login per user keeps the test under the login rate limit.
	tests := map[string]map[string]int{
		"carl": {
			"/consultant": http.StatusOK,
			"/champion":   http.StatusForbidden,
			"/admin":      http.StatusForbidden,
		},
		"chloe": {
			"/champion":   http.StatusOK,
			"/governance": http.StatusForbidden,
		},
		"gary": {
			"/governance": http.StatusOK,
			"/admin":      http.StatusForbidden,
		},
		"ada": {
			"/champion":   http.StatusOK,
			"/governance": http.StatusOK,
			"/admin":      http.StatusOK,
		},
	}
	for user, paths := range tests {
		t.Run(user, func(t *testing.T) {
			c := &client{t: t, h: a}
			if rr := c.login(user, nil); rr.Code != http.StatusSeeOther {
				t.Fatalf("login failed: %d", rr.Code)
			}
			for path, want := range paths {
				rr := c.get(path)
				if rr.Code != want {
					t.Errorf("%s: expected %d, got %d", path, want, rr.Code)
					continue
				}
				if want == http.StatusForbidden && !strings.Contains(rr.Body.String(), "Access Denied") {
					t.Errorf("%s: expected access-denied page", path)
				}
			}
		})
	}
}

func TestSections_Content(t *testing.T) {
	a := newApp(t)
	createUser(t, a, "ada", "admin")
	createUser(t, a, "chloe", "champion")
	c := &client{t: t, h: a}
	c.login("ada", nil)

	consultant := c.get("/consultant").Body.String()
	if !strings.Contains(consultant, "Uploads up to 50 MB") || !strings.Contains(consultant, "docx") {
		t.Errorf("consultant page missing limits:\n%s", consultant)
	}
	governance := c.get("/governance").Body.String()
	if !strings.Contains(governance, "champion: 1 active") || !strings.Contains(governance, "admin: 1 active") {
		t.Errorf("governance page missing counts:\n%s", governance)
	}
	admin := c.get("/admin").Body.String()
	if !strings.Contains(admin, "2 accounts in total.") || !strings.Contains(admin, "chloe") {
		t.Errorf("admin page missing accounts:\n%s", admin)
	}
}

func TestSearch_Pagination(t *testing.T) {
	a := newApp(t)
	for _, name := range []string{"anna", "anton", "anya", "april", "arlo", "asha", "astrid", "atlas", "aubrey", "august", "aurora", "avery"} {
		createUser(t, a, name, "")
	}
	c := &client{t: t, h: a}
	c.login("anna", nil)

	first := c.get("/search?q=a").Body.String()
	if !strings.Contains(first, "12 results") || !strings.Contains(first, "page=2") || strings.Contains(first, "Previous") {
		t.Errorf("unexpected first page:\n%s", first)
	}
	second := c.get("/search?q=a&page=2").Body.String()
	if !strings.Contains(second, "avery") || !strings.Contains(second, "Previous") || strings.Contains(second, "Next") {
		t.Errorf("unexpected second page:\n%s", second)
	}
	bogus := c.get("/search?q=a&page=zero")
	if bogus.Code != http.StatusOK || !strings.Contains(bogus.Body.String(), "anna") {
		t.Errorf("malformed page should fall back to the first page")
	}
	huge := c.get("/search?q=a&page=922337203685477582")
	if body := huge.Body.String(); huge.Code != http.StatusOK || !strings.Contains(body, "avery") || strings.Contains(body, "Next") {
		t.Errorf("oversized page should show the last page, got %d:\n%s", huge.Code, body)
	}
}

func TestStartSubscribers_RecordsLastLogin(t *testing.T) {
	a := newApp(t)
	createUser(t, a, "ada", "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := StartSubscribers(ctx, a); err != nil {
		t.Fatalf("StartSubscribers: %v", err)
	}

	c := &client{t: t, h: a}
	if rr := c.login("ada", nil); rr.Code != http.StatusSeeOther {
		t.Fatalf("login failed: %d", rr.Code)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		var n int
		if err := a.Db.DB().GetContext(ctx, &n, "SELECT COUNT(*) FROM users WHERE last_login_at IS NOT NULL"); err != nil {
			t.Fatalf("query: %v", err)
		}
		if n == 1 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("last_login_at was not recorded")
}
