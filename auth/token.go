package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenExpiry reads the exp claim of an access token without verifying its
// signature. The result is for display only and never decides authentication.
func AccessTokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("[auth AccessTokenExpiry] %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("[auth AccessTokenExpiry] %w", err)
	}
	if exp == nil {
		return time.Time{}, fmt.Errorf("[auth AccessTokenExpiry] token has no exp claim")
	}
	return exp.Time, nil
}
