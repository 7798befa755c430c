package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

type publicKey struct{}

// WithoutCredentials marks a request as public: the transport sends it without a bearer token
func WithoutCredentials(ctx context.Context) context.Context {
	return context.WithValue(ctx, publicKey{}, true)
}

func isPublic(ctx context.Context) bool {
	public, _ := ctx.Value(publicKey{}).(bool)
	return public
}

// Transport attaches the current access token to outbound requests.
// It never retries and never refreshes: a 401 is reported through OnUnauthorized and the
// response is handed back to the caller unchanged.
type Transport struct {
	Source         oauth2.TokenSource
	Base           http.RoundTripper
	OnUnauthorized func()
}

var _ http.RoundTripper = (*Transport)(nil)

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	credentialed := false

	if t.Source != nil && !isPublic(req.Context()) {
		if tok, err := t.Source.Token(); err == nil && tok.AccessToken != "" {
			// RoundTrippers must not modify the caller's request
			req = req.Clone(req.Context())
			tok.SetAuthHeader(req)
			credentialed = true
		}
	}

	resp, err := t.base().RoundTrip(req)
	if err != nil {
		log.Debug().Err(err).Str("method", req.Method).Str("path", req.URL.Path).Msg("API request failed")
		return nil, err
	}

	log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("API request")

	if resp.StatusCode == http.StatusUnauthorized && credentialed && t.OnUnauthorized != nil {
		t.OnUnauthorized()
	}
	return resp, nil
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}
