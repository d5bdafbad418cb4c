package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mongoadmin/console/internal/core/domain"
)

// newGuardContext returns a context that already carries sess, as the
// Sessions middleware would leave it.
func newGuardContext(req *http.Request, sess *domain.Session) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if sess != nil {
		SetSession(c, sess)
	}
	return c, rec
}

func okHandler(called *bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		*called = true
		return c.NoContent(http.StatusOK)
	}
}

func TestCSRF_AcceptsHeaderToken(t *testing.T) {
	env := newTestEnv(t)
	sess := anonymousSession()
	token, err := env.console.Session(sess).IssueCSRFToken()
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.Header.Set(CSRFHeader, token)
	c, _ := newGuardContext(req, sess)

	called := false
	if err := CSRF(env.console)(okHandler(&called))(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next not called")
	}
}

func TestCSRF_AcceptsFormField(t *testing.T) {
	env := newTestEnv(t)
	sess := anonymousSession()
	token, err := env.console.Session(sess).IssueCSRFToken()
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	form := url.Values{CSRFFormField: {token}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	c, _ := newGuardContext(req, sess)

	called := false
	if err := CSRF(env.console)(okHandler(&called))(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next not called")
	}
}

func TestCSRF_RejectsMissingAndWrongToken(t *testing.T) {
	env := newTestEnv(t)
	sess := anonymousSession()
	if _, err := env.console.Session(sess).IssueCSRFToken(); err != nil {
		t.Fatalf("issue token: %v", err)
	}

	for _, candidate := range []string{"", "forged"} {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		if candidate != "" {
			req.Header.Set(CSRFHeader, candidate)
		}
		c, _ := newGuardContext(req, sess)

		err := CSRF(env.console)(func(echo.Context) error {
			t.Fatalf("should not reach next")
			return nil
		})(c)
		if !errors.Is(err, domain.ErrCSRFTokenInvalid) {
			t.Fatalf("candidate %q: expected ErrCSRFTokenInvalid, got %v", candidate, err)
		}
	}
}

func TestCSRF_DisabledInSettingsPassesEverything(t *testing.T) {
	env := newTestEnv(t)
	sess := anonymousSession()
	sess.Settings = map[string]any{domain.SettingCSRFProtection: false}

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	c, _ := newGuardContext(req, sess)

	called := false
	if err := CSRF(env.console)(okHandler(&called))(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next not called")
	}
}

func TestRateLimit_RejectsAfterLimit(t *testing.T) {
	env := newTestEnv(t)
	sess := anonymousSession()
	mw := RateLimit(env.console, "login")

	for i := 1; i <= 10; i++ {
		c, _ := newGuardContext(httptest.NewRequest(http.MethodPost, "/auth/login", nil), sess)
		called := false
		if err := mw(okHandler(&called))(c); err != nil {
			t.Fatalf("attempt %d: unexpected error: %v", i, err)
		}
		if !called {
			t.Fatalf("attempt %d: next not called", i)
		}
	}

	c, _ := newGuardContext(httptest.NewRequest(http.MethodPost, "/auth/login", nil), sess)
	err := mw(func(echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})(c)
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestRequireAuth(t *testing.T) {
	env := newTestEnv(t)

	c, _ := newGuardContext(httptest.NewRequest(http.MethodGet, "/auth/me", nil), anonymousSession())
	err := RequireAuth(env.console)(func(echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})(c)
	if !errors.Is(err, domain.ErrAuthenticationRequired) {
		t.Fatalf("expected ErrAuthenticationRequired, got %v", err)
	}

	c, _ = newGuardContext(httptest.NewRequest(http.MethodGet, "/auth/me", nil), sessionAs(domain.RoleViewer))
	called := false
	if err := RequireAuth(env.console)(okHandler(&called))(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next not called")
	}
}

func TestRequirePermission(t *testing.T) {
	env := newTestEnv(t)
	mw := RequirePermission(env.console, domain.ActionManageUsers)

	tests := []struct {
		name    string
		sess    *domain.Session
		wantErr error
	}{
		{"anonymous", anonymousSession(), domain.ErrAuthenticationRequired},
		{"viewer", sessionAs(domain.RoleViewer), domain.ErrPermissionDenied},
		{"editor", sessionAs(domain.RoleEditor), domain.ErrPermissionDenied},
		{"admin", sessionAs(domain.RoleAdmin), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newGuardContext(httptest.NewRequest(http.MethodGet, "/users", nil), tt.sess)
			called := false
			err := mw(okHandler(&called))(c)
			if tt.wantErr == nil {
				if err != nil || !called {
					t.Fatalf("expected pass, got err=%v called=%v", err, called)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if called {
				t.Fatalf("next must not run")
			}
		})
	}
}

func TestLoadSettings_FillsDefaults(t *testing.T) {
	env := newTestEnv(t)
	sess := anonymousSession()
	c, _ := newGuardContext(httptest.NewRequest(http.MethodGet, "/", nil), sess)

	called := false
	if err := LoadSettings(env.console, zerolog.Nop())(okHandler(&called))(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next not called")
	}
	if sess.Settings[domain.SettingTheme] != "light" {
		t.Fatalf("expected default settings in session, got %v", sess.Settings)
	}
}

func TestLoadSettings_ExpiresIdleSession(t *testing.T) {
	env := newTestEnv(t)
	chain := LoadSettings(env.console, zerolog.Nop())(RequireAuth(env.console)(okHandler(new(bool))))

	recent := sessionAs(domain.RoleViewer)
	recent.LastSeenAt = time.Now().Add(-time.Hour)
	c, _ := newGuardContext(httptest.NewRequest(http.MethodGet, "/", nil), recent)
	if err := chain(c); err != nil {
		t.Fatalf("a session idle for an hour must pass, got %v", err)
	}
	if time.Since(recent.LastSeenAt) > time.Minute {
		t.Fatalf("expected last_seen_at to be refreshed, got %v", recent.LastSeenAt)
	}

	idle := sessionAs(domain.RoleViewer)
	idle.LastSeenAt = time.Now().Add(-121 * time.Minute)
	c, _ = newGuardContext(httptest.NewRequest(http.MethodGet, "/", nil), idle)
	if err := chain(c); !errors.Is(err, domain.ErrAuthenticationRequired) {
		t.Fatalf("expected ErrAuthenticationRequired, got %v", err)
	}
	if idle.Authenticated() {
		t.Fatal("expected the idle session to be logged out")
	}
}

func TestGuards_WithoutSessionMiddleware(t *testing.T) {
	env := newTestEnv(t)
	c, _ := newGuardContext(httptest.NewRequest(http.MethodGet, "/", nil), nil)

	err := RequireAuth(env.console)(func(echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})(c)

	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 HTTPError, got %v", err)
	}
}
