package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mongoadmin/console/internal/core/domain"
	"github.com/mongoadmin/console/internal/core/service"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	// Known domain errors → deterministic HTTP codes.
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, service.Message(err)
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, service.Message(err)
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrAuthenticationRequired):
		return http.StatusUnauthorized, service.Message(err)
	case errors.Is(err, domain.ErrAccountLocked):
		return http.StatusLocked, service.Message(err)
	case errors.Is(err, domain.ErrAccountInactive), errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden, service.Message(err)
	case errors.Is(err, domain.ErrCSRFTokenInvalid):
		return http.StatusForbidden, "invalid or expired CSRF token"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "too many requests, slow down"
	case errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound, service.Message(err)
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "resource not found"
	case errors.Is(err, domain.ErrStoreUnavailable):
		log.Error().
			Err(err).
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Msg("store unavailable")
		return http.StatusServiceUnavailable, service.MsgUnavailable
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}
