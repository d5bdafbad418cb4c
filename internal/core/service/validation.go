package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mongoadmin/console/internal/core/domain"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// maxPasswordBytes is bcrypt's input limit.
const maxPasswordBytes = 72

type registration struct {
	Username string `validate:"required,min=3,max=32,username"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
	FullName string `validate:"max=100"`
}

type passwordChange struct {
	Password string `validate:"required,min=8"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// validateStruct runs v over s and converts the first failure into a
// domain.ValidationError carrying a message fit for the end user.
func validateStruct(v *validator.Validate, s any) error {
	if err := v.Struct(s); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			fe := ve[0]
			return domain.NewValidationError(strings.ToLower(fe.Field()), fieldError(fe))
		}
		return domain.NewValidationError("", err.Error())
	}
	return nil
}

func validatePasswordLength(password string) error {
	if len(password) > maxPasswordBytes {
		return domain.NewValidationError("password", fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}
	return nil
}

func fieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "username":
		return field + " may contain only letters, digits and underscores"
	case "min":
		if field == "username" {
			return "username must be between 3 and 32 characters"
		}
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		if field == "username" {
			return "username must be between 3 and 32 characters"
		}
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}
