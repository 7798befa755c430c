package auth

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/jrsteele09/offers-dashboard/internal/errors"
)

// LoginForm is the credentials submitted on the login page or by the CLI
type LoginForm struct {
	Username string `form:"username" validate:"required,max=150"`
	Password string `form:"password" validate:"required,max=128"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func engine() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// ValidateLogin checks the credentials before any network call. Failures wrap
// apperrors.ErrInvalidInput.
func ValidateLogin(username, password string) error {
	err := engine().Struct(LoginForm{Username: username, Password: password})
	if err == nil {
		return nil
	}
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		return fmt.Errorf("%w: %s failed %q", apperrors.ErrInvalidInput, verrs[0].Field(), verrs[0].Tag())
	}
	return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
}
