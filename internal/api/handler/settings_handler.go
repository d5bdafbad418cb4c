package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mongoadmin/console/internal/api/middleware"
	"github.com/mongoadmin/console/internal/core/domain"
	"github.com/mongoadmin/console/internal/core/service"
)

type SettingsHandler struct {
	console *service.Console
}

func NewSettingsHandler(console *service.Console) *SettingsHandler {
	return &SettingsHandler{console: console}
}

// Get handles GET /settings.
//
// @Summary      Effective settings
// @Tags         settings
// @Produce      json
// @Success      200  {object}  settingsResponse
// @Failure      403  {object}  errorResponse
// @Router       /settings [get]
func (h *SettingsHandler) Get(c echo.Context) error {
	scope, err := scopeOf(c, h.console)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, settingsOf(c, scope))
}

// Update handles PUT /settings. The body is a partial key/value map.
//
// @Summary      Update settings
// @Tags         settings
// @Accept       json
// @Produce      json
// @Param        X-CSRF-Token  header    string          true  "CSRF token"
// @Param        body          body      map[string]any  true  "Changed settings"
// @Success      200           {object}  settingsResponse
// @Failure      400           {object}  errorResponse
// @Failure      403           {object}  errorResponse
// @Failure      503           {object}  errorResponse
// @Router       /settings [put]
func (h *SettingsHandler) Update(c echo.Context) error {
	changes := map[string]any{}
	if err := c.Bind(&changes); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if len(changes) == 0 {
		return domain.NewValidationError("", "no settings to update")
	}
	scope, err := scopeOf(c, h.console)
	if err != nil {
		return err
	}
	if err := scope.SaveSettings(c.Request().Context(), changes); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, settingsOf(c, scope))
}

func settingsOf(c echo.Context, scope *service.Scope) settingsResponse {
	resp := settingsResponse{Settings: scope.Settings()}
	if sess := middleware.SessionFrom(c); sess != nil && !sess.SettingsUpdatedAt.IsZero() {
		at := sess.SettingsUpdatedAt
		resp.UpdatedAt = &at
	}
	return resp
}
