package ports

import "github.com/mongoadmin/console/internal/core/domain"

// RegisterInput is the DTO passed from the transport layer on sign-up.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName string
	Role     string
}

// RegisterResult is the structured outcome of a registration.
type RegisterResult struct {
	Success bool
	Message string
	UserID  string
	// Err holds the underlying error for callers that map it to a status code.
	Err error
}

// LoginResult is the structured outcome of a login attempt.
type LoginResult struct {
	Success bool
	Message string
	User    *domain.UserSnapshot
	Err     error
}
