package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mongoadmin/console/internal/api/middleware"
	"github.com/mongoadmin/console/internal/core/service"
)

// scopeOf binds console to the session the Sessions middleware attached.
// A missing session means the route was mounted without that middleware.
func scopeOf(c echo.Context, console *service.Console) (*service.Scope, error) {
	sess := middleware.SessionFrom(c)
	if sess == nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "session unavailable")
	}
	return console.Session(sess), nil
}

// bindAndValidate decodes the body into req and runs the registered validator.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	return c.Validate(req)
}
