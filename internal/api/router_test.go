package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/mongoadmin/console/internal/api/handler"
	"github.com/mongoadmin/console/internal/api/middleware"
	"github.com/mongoadmin/console/internal/core/domain"
	"github.com/mongoadmin/console/internal/core/ports"
	"github.com/mongoadmin/console/internal/core/service"
	"github.com/mongoadmin/console/internal/infrastructure/db/memory"
	sessionstore "github.com/mongoadmin/console/internal/infrastructure/db/redis"
)

const testCookie = "console_session"

// ---- Fixtures ----

func newTestRouter(t *testing.T) (*echo.Echo, *service.Console) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sessions := sessionstore.NewSessionStore(client, time.Hour)
	console := service.NewConsole(service.Config{
		Store:    memory.NewUserStore(),
		Sessions: sessions,
		Hasher:   service.NewBcryptHasher(bcrypt.MinCost),
	})

	e := NewRouter(Deps{
		Console:    console,
		Sessions:   sessions,
		Codec:      middleware.NewSessionCodec("0123456789abcdef0123456789abcdef", time.Hour),
		CookieName: testCookie,
		Health:     map[string]handler.Pinger{"redis": sessions},
		Log:        zerolog.Nop(),
		Registry:   prometheus.NewRegistry(),
	})
	return e, console
}

// browser keeps the session cookie between requests the way a browser would.
type browser struct {
	t      *testing.T
	e      *echo.Echo
	cookie *http.Cookie
	csrf   string
}

func (b *browser) do(method, path, body string) *httptest.ResponseRecorder {
	b.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if b.cookie != nil {
		req.AddCookie(b.cookie)
	}
	if b.csrf != "" {
		req.Header.Set(middleware.CSRFHeader, b.csrf)
	}
	rec := httptest.NewRecorder()
	b.e.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.Name == testCookie {
			b.cookie = ck
		}
	}
	return rec
}

func (b *browser) fetchCSRF() {
	b.t.Helper()
	rec := b.do(http.MethodGet, "/auth/csrf", "")
	if rec.Code != http.StatusOK {
		b.t.Fatalf("csrf: expected 200, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		b.t.Fatalf("invalid json: %v", err)
	}
	b.csrf = resp["csrf_token"]
}

// login signs the browser in and keeps the CSRF token the login returned.
func (b *browser) login(username, password string) {
	b.t.Helper()
	b.fetchCSRF()
	rec := b.do(http.MethodPost, "/auth/login", `{"username":"`+username+`","password":"`+password+`"}`)
	if rec.Code != http.StatusOK {
		b.t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		b.t.Fatalf("invalid json: %v", err)
	}
	b.csrf, _ = resp["csrf_token"].(string)
}

func seedViewer(t *testing.T, console *service.Console, username string) string {
	t.Helper()
	id, err := console.Users().Register(context.Background(), ports.RegisterInput{
		Username: username, Email: username + "@example.com", Password: "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("seed %s: %v", username, err)
	}
	return id
}

func TestRouter_RegisterLoginFlow(t *testing.T) {
	e, _ := newTestRouter(t)
	b := &browser{t: t, e: e}

	b.fetchCSRF()
	if b.cookie == nil || b.csrf == "" {
		t.Fatalf("expected session cookie and CSRF token")
	}

	rec := b.do(http.MethodPost, "/auth/register", `{"username":"alice","email":"alice@example.com","password":"s3cret-pass"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	anonymousCookie := b.cookie.Value
	rec = b.do(http.MethodPost, "/auth/login", `{"username":"alice","password":"s3cret-pass"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if b.cookie.Value == anonymousCookie {
		t.Fatalf("expected a new session cookie after login")
	}
	var login map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	b.csrf, _ = login["csrf_token"].(string)

	rec = b.do(http.MethodGet, "/auth/me", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"username":"alice"`) {
		t.Fatalf("me: unexpected body %s", rec.Body.String())
	}

	// A viewer cannot reach the admin routes.
	if rec = b.do(http.MethodGet, "/users", ""); rec.Code != http.StatusForbidden {
		t.Fatalf("users: expected 403, got %d", rec.Code)
	}

	rec = b.do(http.MethodPost, "/auth/logout", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", rec.Code)
	}
	if b.cookie.MaxAge >= 0 {
		t.Fatalf("expected logout to expire the cookie")
	}

	b.cookie = nil
	if rec = b.do(http.MethodGet, "/auth/me", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("me after logout: expected 401, got %d", rec.Code)
	}
}

func TestRouter_RejectsMissingCSRFToken(t *testing.T) {
	e, _ := newTestRouter(t)
	b := &browser{t: t, e: e}

	rec := b.do(http.MethodPost, "/auth/register", `{"username":"alice","email":"alice@example.com","password":"s3cret-pass"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "CSRF") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestRouter_RateLimitsLogin(t *testing.T) {
	e, _ := newTestRouter(t)
	b := &browser{t: t, e: e}

	for i := 1; i <= 10; i++ {
		// No CSRF token, so each allowed attempt stops at the CSRF guard.
		if rec := b.do(http.MethodPost, "/auth/login", `{}`); rec.Code != http.StatusForbidden {
			t.Fatalf("attempt %d: expected 403, got %d", i, rec.Code)
		}
	}
	if rec := b.do(http.MethodPost, "/auth/login", `{}`); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

func TestRouter_RateLimitsSessionRoutes(t *testing.T) {
	e, console := newTestRouter(t)
	seedViewer(t, console, "alice")
	b := &browser{t: t, e: e}
	b.login("alice", "s3cret-pass")

	// Routes without a fixed limit use rate_limit_requests per rate_limit_window.
	for i := 1; i <= 100; i++ {
		if rec := b.do(http.MethodGet, "/auth/me", ""); rec.Code != http.StatusOK {
			t.Fatalf("me %d: expected 200, got %d", i, rec.Code)
		}
	}
	if rec := b.do(http.MethodGet, "/auth/me", ""); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("me 101: expected 429, got %d", rec.Code)
	}

	// Guessing the current password is capped at five tries.
	body := `{"old_password":"wrong-pass","new_password":"n3w-secret-pass"}`
	for i := 1; i <= 5; i++ {
		if rec := b.do(http.MethodPut, "/auth/password", body); rec.Code != http.StatusUnauthorized {
			t.Fatalf("change password %d: expected 401, got %d", i, rec.Code)
		}
	}
	if rec := b.do(http.MethodPut, "/auth/password", body); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("change password 6: expected 429, got %d", rec.Code)
	}

	// Other actions keep their own window.
	if rec := b.do(http.MethodGet, "/users", ""); rec.Code != http.StatusForbidden {
		t.Fatalf("users: expected 403, got %d", rec.Code)
	}
}

func TestRouter_CSRFCheckedBeforePermission(t *testing.T) {
	e, console := newTestRouter(t)
	bobID := seedViewer(t, console, "bob")
	seedViewer(t, console, "alice")
	b := &browser{t: t, e: e}
	b.login("alice", "s3cret-pass")

	token := b.csrf
	b.csrf = ""
	rec := b.do(http.MethodPost, "/users/"+bobID+"/deactivate", "")
	if rec.Code != http.StatusForbidden || !strings.Contains(rec.Body.String(), "CSRF") {
		t.Fatalf("expected the CSRF rejection, got %d %s", rec.Code, rec.Body.String())
	}
	rec = b.do(http.MethodPut, "/settings", `{"theme":"dark"}`)
	if rec.Code != http.StatusForbidden || !strings.Contains(rec.Body.String(), "CSRF") {
		t.Fatalf("expected the CSRF rejection, got %d %s", rec.Code, rec.Body.String())
	}

	b.csrf = token
	rec = b.do(http.MethodPost, "/users/"+bobID+"/deactivate", "")
	if rec.Code != http.StatusForbidden || strings.Contains(rec.Body.String(), "CSRF") {
		t.Fatalf("expected the permission rejection, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_AdminRoutes(t *testing.T) {
	e, console := newTestRouter(t)
	if _, err := console.Users().EnsureAdmin(context.Background(), "root", "root@example.com", "adm1n-pass"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	if _, err := console.Users().Register(context.Background(), ports.RegisterInput{
		Username: "alice", Email: "alice@example.com", Password: "s3cret-pass",
	}); err != nil {
		t.Fatalf("seed alice: %v", err)
	}

	b := &browser{t: t, e: e}
	b.fetchCSRF()
	rec := b.do(http.MethodPost, "/auth/login", `{"username":"root","password":"adm1n-pass"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var login map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	b.csrf, _ = login["csrf_token"].(string)

	rec = b.do(http.MethodGet, "/users", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("users: expected 200, got %d", rec.Code)
	}
	var users struct {
		Users []domain.AccountSummary `json:"users"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &users); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	var aliceID string
	for _, u := range users.Users {
		if u.Username == "alice" {
			aliceID = u.ID
		}
	}
	if aliceID == "" {
		t.Fatalf("alice not listed: %+v", users.Users)
	}

	if rec = b.do(http.MethodPut, "/users/"+aliceID+"/role", `{"role":"editor"}`); rec.Code != http.StatusOK {
		t.Fatalf("set role: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = b.do(http.MethodPut, "/settings", `{"theme":"dark"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("settings: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// The saved document is picked up on the next request.
	rec = b.do(http.MethodGet, "/settings", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"theme":"dark"`) {
		t.Fatalf("settings: unexpected %d %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	e, _ := newTestRouter(t)
	b := &browser{t: t, e: e}

	for _, path := range []string{"/health", "/health/ready", "/metrics"} {
		if rec := b.do(http.MethodGet, path, ""); rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
	if b.cookie != nil {
		t.Fatalf("probes must not start sessions")
	}
}
