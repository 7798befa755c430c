package auth

import (
	"github.com/jrsteele09/offers-dashboard/api"
	apperrors "github.com/jrsteele09/offers-dashboard/internal/errors"
)

const (
	MsgInvalidCredentials = "Invalid username or password"
	MsgMissingCredentials = "Username and password are required"
	MsgLoginFailed        = "An error occurred during login"
	MsgSessionExpired     = "Your session has expired. Please log in again."
)

// LoginErrorMessage turns a Login error into the message shown on the login form.
// Rejected credentials are recognised from the unauthorized response class of the
// token exchange; a failed profile fetch after it is never blamed on the credentials.
func LoginErrorMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case apperrors.Is(err, apperrors.ErrProfileFailed):
		return MsgLoginFailed
	case apperrors.Is(err, apperrors.ErrInvalidInput):
		return MsgMissingCredentials
	case apperrors.Is(err, apperrors.ErrUnauthorized), apperrors.Is(err, apperrors.ErrInvalidCredentials):
		return MsgInvalidCredentials
	}
	if msg := api.ServerMessage(err); msg != "" {
		return msg
	}
	return MsgLoginFailed
}
