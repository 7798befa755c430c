package api

import (
	"context"
	"fmt"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type logoutRequest struct {
	Refresh string `json:"refresh"`
}

// Login exchanges credentials for a token pair. The request carries no bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	var pair TokenPair
	if err := c.post(WithoutCredentials(ctx), PathLogin, loginRequest{Username: username, Password: password}, &pair); err != nil {
		return nil, fmt.Errorf("[api Login] %w", err)
	}
	if pair.Access == "" {
		return nil, fmt.Errorf("[api Login] response carried no access token")
	}
	return &pair, nil
}

// Profile fetches the user the current access token belongs to
func (c *Client) Profile(ctx context.Context) (*User, error) {
	var u User
	if err := c.get(ctx, PathProfile, &u); err != nil {
		return nil, fmt.Errorf("[api Profile] %w", err)
	}
	return &u, nil
}

// Logout revokes the refresh token server-side
func (c *Client) Logout(ctx context.Context, refresh string) error {
	if err := c.post(ctx, PathLogout, logoutRequest{Refresh: refresh}, nil); err != nil {
		return fmt.Errorf("[api Logout] %w", err)
	}
	return nil
}
