package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mongoadmin/console/internal/api/metrics"
	"github.com/mongoadmin/console/internal/core/domain"
	"github.com/mongoadmin/console/internal/core/service"
)

const (
	CSRFHeader    = "X-CSRF-Token"
	CSRFFormField = "_csrf_token"
)

func scope(c echo.Context, console *service.Console) (*service.Scope, error) {
	sess := SessionFrom(c)
	if sess == nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "session middleware not installed")
	}
	return console.Session(sess), nil
}

// LoadSettings refreshes the session's settings copy before guards read it,
// then logs out a session idle for longer than session_timeout.
// A store failure leaves the session on its current copy or the defaults.
func LoadSettings(console *service.Console, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s, err := scope(c, console)
			if err != nil {
				return err
			}
			if err := s.LoadSettings(c.Request().Context()); err != nil {
				log.Warn().Err(err).Msg("settings unavailable, using session copy")
			}
			if s.ExpireIdle(c.Request().Context()) {
				metrics.RequestsRejectedTotal.WithLabelValues("idle_timeout").Inc()
			}
			return next(c)
		}
	}
}

// RateLimit counts the request against action's window.
func RateLimit(console *service.Console, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s, err := scope(c, console)
			if err != nil {
				return err
			}
			if !s.AllowRequest(c.Request().Context(), action) {
				metrics.RequestsRejectedTotal.WithLabelValues("rate_limit").Inc()
				return domain.ErrRateLimited
			}
			return next(c)
		}
	}
}

// CSRF rejects the request unless it carries the session's token in the
// X-CSRF-Token header or the _csrf_token form field.
func CSRF(console *service.Console) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s, err := scope(c, console)
			if err != nil {
				return err
			}
			token := c.Request().Header.Get(CSRFHeader)
			if token == "" {
				token = c.FormValue(CSRFFormField)
			}
			if !s.VerifyCSRFToken(c.Request().Context(), token) {
				metrics.RequestsRejectedTotal.WithLabelValues("csrf").Inc()
				return domain.ErrCSRFTokenInvalid
			}
			return next(c)
		}
	}
}

// RequireAuth lets only authenticated sessions through.
func RequireAuth(console *service.Console) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s, err := scope(c, console)
			if err != nil {
				return err
			}
			if !s.IsAuthenticated() {
				metrics.RequestsRejectedTotal.WithLabelValues("auth").Inc()
				return domain.ErrAuthenticationRequired
			}
			return next(c)
		}
	}
}

// RequirePermission enforces the authorization table for action.
func RequirePermission(console *service.Console, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s, err := scope(c, console)
			if err != nil {
				return err
			}
			if err := s.Authorize(c.Request().Context(), action); err != nil {
				metrics.RequestsRejectedTotal.WithLabelValues("permission").Inc()
				return err
			}
			return next(c)
		}
	}
}
