package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mongoadmin/console/internal/core/service"
)

// UserHandler serves account administration. Routes are mounted behind the
// manage_users permission; the console checks it again.
type UserHandler struct {
	console *service.Console
}

func NewUserHandler(console *service.Console) *UserHandler {
	return &UserHandler{console: console}
}

// List handles GET /users.
//
// @Summary      List accounts
// @Tags         users
// @Produce      json
// @Success      200  {object}  usersResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /users [get]
func (h *UserHandler) List(c echo.Context) error {
	scope, err := scopeOf(c, h.console)
	if err != nil {
		return err
	}
	users, err := scope.ListUsers(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, usersResponse{Users: users})
}

// SetRole handles PUT /users/:id/role.
//
// @Summary      Change an account's role
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        X-CSRF-Token  header    string          true  "CSRF token"
// @Param        id            path      string          true  "Account id"
// @Param        body          body      setRoleRequest  true  "New role"
// @Success      200           {object}  messageResponse
// @Failure      400           {object}  errorResponse
// @Failure      403           {object}  errorResponse
// @Failure      404           {object}  errorResponse
// @Router       /users/{id}/role [put]
func (h *UserHandler) SetRole(c echo.Context) error {
	var req setRoleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	scope, err := scopeOf(c, h.console)
	if err != nil {
		return err
	}
	if err := scope.SetRole(c.Request().Context(), c.Param("id"), req.Role); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Role updated"})
}

// Deactivate handles POST /users/:id/deactivate.
//
// @Summary      Deactivate an account
// @Tags         users
// @Produce      json
// @Param        X-CSRF-Token  header    string  true  "CSRF token"
// @Param        id            path      string  true  "Account id"
// @Success      200           {object}  messageResponse
// @Failure      400           {object}  errorResponse
// @Failure      403           {object}  errorResponse
// @Failure      404           {object}  errorResponse
// @Router       /users/{id}/deactivate [post]
func (h *UserHandler) Deactivate(c echo.Context) error {
	scope, err := scopeOf(c, h.console)
	if err != nil {
		return err
	}
	if err := scope.Deactivate(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Account deactivated"})
}
