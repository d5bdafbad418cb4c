package handler

import (
	"time"

	"github.com/mongoadmin/console/internal/core/domain"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Request / Response types ---

type registerRequest struct {
	Username string `json:"username"  validate:"required"`
	Email    string `json:"email"     validate:"required"`
	Password string `json:"password"  validate:"required"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type registerResponse struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Message   string               `json:"message"`
	User      *domain.UserSnapshot `json:"user"`
	CSRFToken string               `json:"csrf_token"`
}

type csrfResponse struct {
	CSRFToken string `json:"csrf_token"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type meResponse struct {
	User        *domain.UserSnapshot `json:"user"`
	Permissions []string             `json:"permissions"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin editor viewer"`
}

type usersResponse struct {
	Users []domain.AccountSummary `json:"users"`
}

type settingsResponse struct {
	Settings  map[string]any `json:"settings"`
	UpdatedAt *time.Time     `json:"updated_at,omitempty"`
}
