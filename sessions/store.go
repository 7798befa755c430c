// Package sessions holds the two opaque bearer tokens of a dashboard session in durable
// key/value slots. It knows nothing about token lifetimes.
package sessions

import (
	"fmt"

	apperrors "github.com/jrsteele09/offers-dashboard/internal/errors"
	"golang.org/x/oauth2"
)

const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"

	// DefaultNamespace is used by single-user consumers such as the CLI
	DefaultNamespace = "default"
)

// Store is a durable key/value slot for session tokens
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Clear(key string) error
}

// Provider opens one Store per namespace. The dashboard uses one namespace per browser session.
type Provider interface {
	Open(namespace string) (Store, error)
	Remove(namespace string) error
}

// SaveTokens persists both tokens of a freshly issued pair
func SaveTokens(s Store, access, refresh string) error {
	if err := s.Set(AccessTokenKey, access); err != nil {
		return fmt.Errorf("[sessions SaveTokens] access token: %w", err)
	}
	if err := s.Set(RefreshTokenKey, refresh); err != nil {
		return fmt.Errorf("[sessions SaveTokens] refresh token: %w", err)
	}
	return nil
}

// ClearTokens removes both tokens. Both keys are always attempted.
func ClearTokens(s Store) error {
	return apperrors.Join(s.Clear(AccessTokenKey), s.Clear(RefreshTokenKey))
}

type storeTokenSource struct {
	store Store
}

// TokenSource exposes the stored pair as an oauth2 bearer token
func TokenSource(s Store) oauth2.TokenSource {
	return storeTokenSource{store: s}
}

func (ts storeTokenSource) Token() (*oauth2.Token, error) {
	access, ok := ts.store.Get(AccessTokenKey)
	if !ok || access == "" {
		return nil, apperrors.ErrNoToken
	}
	refresh, _ := ts.store.Get(RefreshTokenKey)
	return &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
	}, nil
}
