// Package loginsession keeps one dashboard session per browser: its token store, its
// auth manager, its API client and its offer board.
package loginsession

import (
	"time"

	"github.com/jrsteele09/offers-dashboard/api"
	"github.com/jrsteele09/offers-dashboard/auth"
	"github.com/jrsteele09/offers-dashboard/offers"
	"github.com/jrsteele09/offers-dashboard/sessions"
)

type Session struct {
	ID        string
	Store     sessions.Store
	Manager   *auth.Manager
	Client    *api.Client
	Board     *offers.Board
	CreatedAt time.Time
}

type Repo interface {
	// GetOrCreate returns the session for sessionID, assembling it and starting its
	// resurrection on first use
	GetOrCreate(sessionID string) (*Session, error)
	Get(sessionID string) (*Session, bool)
	// Delete stops the session's pollers and removes its stored tokens
	Delete(sessionID string) error
	// Evict drops sessions idle for longer than maxIdle, keeping their stored tokens
	Evict(maxIdle time.Duration) int
	Close()
}
