package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mongoadmin/console/internal/api/metrics"
	"github.com/mongoadmin/console/internal/core/domain"
	"github.com/mongoadmin/console/internal/core/service"
)

// AuthHandler serves the session lifecycle endpoints.
type AuthHandler struct {
	console *service.Console
}

func NewAuthHandler(console *service.Console) *AuthHandler {
	return &AuthHandler{console: console}
}

// CSRFToken returns the session's CSRF token, issuing one if needed.
//
// @Summary      Get the CSRF token
// @Tags         auth
// @Produce      json
// @Success      200  {object}  csrfResponse
// @Router       /auth/csrf [get]
func (h *AuthHandler) CSRFToken(c echo.Context) error {
	scope, err := scopeOf(c, h.console)
	if err != nil {
		return err
	}
	token, err := scope.IssueCSRFToken()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, csrfResponse{CSRFToken: token})
}

// Register creates a new account. Anonymous callers always get the viewer role.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        X-CSRF-Token  header    string           true  "CSRF token"
// @Param        body          body      registerRequest  true  "User registration details"
// @Success      201           {object}  registerResponse
// @Failure      400           {object}  errorResponse
// @Failure      403           {object}  errorResponse
// @Failure      409           {object}  errorResponse
// @Failure      429           {object}  errorResponse
// @Failure      503           {object}  errorResponse
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bindAndValidate(c, &req); err != nil {
		metrics.RegistrationsTotal.WithLabelValues("validation").Inc()
		return err
	}
	scope, err := scopeOf(c, h.console)
	if err != nil {
		return err
	}

	res := scope.Register(c.Request().Context(), req.Username, req.Email, req.Password, req.FullName, req.Role)
	if !res.Success {
		metrics.RegistrationsTotal.WithLabelValues(failureLabel(res.Err)).Inc()
		return res.Err
	}

	metrics.RegistrationsTotal.WithLabelValues("success").Inc()
	return c.JSON(http.StatusCreated, registerResponse{Message: res.Message, UserID: res.UserID})
}

// Login authenticates the session and returns a fresh CSRF token for it.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        X-CSRF-Token  header    string        true  "CSRF token"
// @Param        body          body      loginRequest  true  "Login credentials"
// @Success      200           {object}  loginResponse
// @Failure      400           {object}  errorResponse
// @Failure      401           {object}  errorResponse
// @Failure      403           {object}  errorResponse
// @Failure      423           {object}  errorResponse
// @Failure      429           {object}  errorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	scope, err := scopeOf(c, h.console)
	if err != nil {
		return err
	}

	res := scope.Login(c.Request().Context(), req.Username, req.Password)
	if !res.Success {
		metrics.LoginAttemptsTotal.WithLabelValues(failureLabel(res.Err)).Inc()
		return res.Err
	}
	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()

	token, err := scope.IssueCSRFToken()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, loginResponse{Message: res.Message, User: res.User, CSRFToken: token})
}

// Logout ends the session.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Param        X-CSRF-Token  header    string  true  "CSRF token"
// @Success      200           {object}  messageResponse
// @Failure      403           {object}  errorResponse
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	scope, err := scopeOf(c, h.console)
	if err != nil {
		return err
	}
	if err := scope.Logout(c.Request().Context()); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Logged out"})
}

// Me returns the login-time identity and the actions its role grants.
//
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Success      200  {object}  meResponse
// @Failure      401  {object}  errorResponse
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	scope, err := scopeOf(c, h.console)
	if err != nil {
		return err
	}
	user := scope.CurrentUser()
	if user == nil {
		return domain.ErrAuthenticationRequired
	}
	return c.JSON(http.StatusOK, meResponse{User: user, Permissions: h.console.Policy().Actions(user.Role)})
}

// ChangePassword replaces the current user's password.
//
// @Summary      Change password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        X-CSRF-Token  header    string                 true  "CSRF token"
// @Param        body          body      changePasswordRequest  true  "Old and new password"
// @Success      200           {object}  messageResponse
// @Failure      400           {object}  errorResponse
// @Failure      401           {object}  errorResponse
// @Router       /auth/password [put]
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req changePasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	scope, err := scopeOf(c, h.console)
	if err != nil {
		return err
	}
	if err := scope.ChangePassword(c.Request().Context(), req.OldPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Password changed"})
}

// failureLabel maps a core error to a low-cardinality metric label.
func failureLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrAccountLocked):
		return "locked"
	case errors.Is(err, domain.ErrAccountInactive):
		return "inactive"
	default:
		return "error"
	}
}
