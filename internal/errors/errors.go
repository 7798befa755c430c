package errors

import (
	"errors"
	"fmt"
)

// Common error types for the offers dashboard
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrInvalidInput       = errors.New("invalid input")
	// ErrProfileFailed marks a login whose credentials were accepted but whose profile could not be loaded
	ErrProfileFailed = errors.New("profile fetch failed")

	// Token errors
	ErrNoToken = errors.New("no access token")

	// Transport errors, one per class of backend response
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
	ErrNotFound     = errors.New("not found")
	ErrServer       = errors.New("server error")

	// Activation errors
	ErrOfferNotFound      = errors.New("offer not found")
	ErrOfferInactive      = errors.New("offer is not active")
	ErrActivationRejected = errors.New("activation rejected")
	ErrActivationInFlight = errors.New("activation already in progress")
	ErrPollFailed         = errors.New("activation status poll failed")

	// General errors
	ErrInternal = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join is errors.Join, re-exported so callers only import this package
func Join(errs ...error) error {
	return errors.Join(errs...)
}
