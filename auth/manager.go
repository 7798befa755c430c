// Package auth owns the authentication state of one dashboard session: resurrection from
// stored tokens, login, logout, and the decision the route guard takes on that state.
package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/jrsteele09/offers-dashboard/api"
	apperrors "github.com/jrsteele09/offers-dashboard/internal/errors"
	"github.com/jrsteele09/offers-dashboard/sessions"
	"github.com/rs/zerolog/log"
)

// SessionState is the state of the session state machine
type SessionState int

const (
	StateUnauthenticated SessionState = iota
	StateResurrecting
	StateAuthenticated
)

func (s SessionState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateResurrecting:
		return "resurrecting"
	case StateAuthenticated:
		return "authenticated"
	}
	return fmt.Sprintf("SessionState(%d)", int(s))
}

// AuthAPI is the part of the backend the manager talks to. *api.Client implements it.
type AuthAPI interface {
	Login(ctx context.Context, username, password string) (*api.TokenPair, error)
	Profile(ctx context.Context) (*api.User, error)
	Logout(ctx context.Context, refresh string) error
}

// Manager is the auth session of one user. It is safe for concurrent use.
type Manager struct {
	store sessions.Store
	api   AuthAPI

	resurrectOnce sync.Once
	resurrectErr  error
	readyOnce     sync.Once
	ready         chan struct{}

	mu          sync.RWMutex
	state       SessionState
	user        *api.User
	generation  uint64
	invalidated bool
	listeners   []func()
}

// NewManager creates a manager in the resurrecting state. Call Resurrect to settle it.
func NewManager(store sessions.Store, authAPI AuthAPI) *Manager {
	return &Manager{
		store: store,
		api:   authAPI,
		state: StateResurrecting,
		ready: make(chan struct{}),
	}
}

// NewClientSession assembles a session: an API client reading tokens from store, and the
// manager that receives the client's session-invalidated signal.
func NewClientSession(baseURL string, store sessions.Store, opts ...api.Option) (*Manager, *api.Client) {
	m := NewManager(store, nil)
	opts = append(opts, api.WithUnauthorizedHandler(m.SessionInvalidated))
	client := api.New(baseURL, sessions.TokenSource(store), opts...)
	m.api = client
	return m, client
}

// Resurrect re-establishes the session from the stored access token. It runs once;
// later and concurrent calls wait for the first to finish and return its result.
//
// A rejected token is not a user-facing error: the tokens are cleared, the session
// settles unauthenticated, and the error is only returned for diagnostics.
func (m *Manager) Resurrect(ctx context.Context) error {
	m.resurrectOnce.Do(func() {
		m.resurrectErr = m.resurrect(ctx)
		m.markReady()
	})
	return m.resurrectErr
}

func (m *Manager) resurrect(ctx context.Context) error {
	m.mu.RLock()
	gen := m.generation
	m.mu.RUnlock()

	if access, ok := m.store.Get(sessions.AccessTokenKey); !ok || access == "" {
		m.settle(gen, StateUnauthenticated, nil)
		return nil
	}

	user, err := m.api.Profile(ctx)
	if err != nil {
		log.Info().Err(err).Msg("Stored session rejected, clearing tokens")
		if m.settle(gen, StateUnauthenticated, nil) {
			if clearErr := sessions.ClearTokens(m.store); clearErr != nil {
				log.Err(clearErr).Msg("Failed to clear rejected session tokens")
			}
		}
		return fmt.Errorf("[auth Resurrect] %w", err)
	}

	if m.settle(gen, StateAuthenticated, user) {
		log.Debug().Str("username", user.Username).Msg("Session resurrected")
	}
	return nil
}

// settle applies a resurrection outcome unless a login or logout happened meanwhile
func (m *Manager) settle(gen uint64, state SessionState, user *api.User) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen {
		return false
	}
	m.state = state
	m.user = user
	return true
}

func (m *Manager) markReady() {
	m.readyOnce.Do(func() { close(m.ready) })
}

// Ready is closed once the manager has left the resurrecting state
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// Login exchanges credentials for tokens, persists them and loads the profile.
// On any failure both tokens and the user are cleared and the error is returned.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	if err := ValidateLogin(username, password); err != nil {
		return err
	}

	pair, err := m.api.Login(ctx, username, password)
	if err != nil {
		return m.failLogin(fmt.Errorf("[auth Login] %w", err))
	}
	if err := sessions.SaveTokens(m.store, pair.Access, pair.Refresh); err != nil {
		return m.failLogin(fmt.Errorf("[auth Login] %w", err))
	}

	user, err := m.api.Profile(ctx)
	if err != nil {
		return m.failLogin(fmt.Errorf("[auth Login] %w: %w", apperrors.ErrProfileFailed, err))
	}

	m.mu.Lock()
	m.generation++
	m.state = StateAuthenticated
	m.user = user
	m.invalidated = false
	m.mu.Unlock()
	m.markReady()

	log.Info().Str("username", user.Username).Msg("User logged in")
	return nil
}

func (m *Manager) failLogin(err error) error {
	m.reset()
	log.Info().Err(err).Msg("Login failed")
	return err
}

// Logout revokes the refresh token on a best-effort basis and always clears the
// local session.
func (m *Manager) Logout(ctx context.Context) {
	if refresh, ok := m.store.Get(sessions.RefreshTokenKey); ok && refresh != "" {
		if err := m.api.Logout(ctx, refresh); err != nil {
			log.Warn().Err(err).Msg("Refresh token revocation failed")
		}
	}
	m.reset()
	log.Info().Msg("User logged out")
}

func (m *Manager) reset() {
	if err := sessions.ClearTokens(m.store); err != nil {
		log.Err(err).Msg("Failed to clear session tokens")
	}
	m.mu.Lock()
	m.generation++
	m.state = StateUnauthenticated
	m.user = nil
	m.invalidated = false
	m.mu.Unlock()
	m.markReady()
}

func (m *Manager) State() SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsLoading reports whether resurrection is still in flight
func (m *Manager) IsLoading() bool {
	return m.State() == StateResurrecting
}

// IsAuthenticated is true exactly when a user profile is held
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user != nil
}

// User returns a copy of the current user, or nil
func (m *Manager) User() *api.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// SessionInvalidated is the single signal raised when the backend rejects the session's
// access token. The session is flagged but stays authenticated until logout or the next
// resurrection.
func (m *Manager) SessionInvalidated() {
	m.mu.Lock()
	if m.user == nil || m.invalidated {
		m.mu.Unlock()
		return
	}
	m.invalidated = true
	listeners := append([]func(){}, m.listeners...)
	m.mu.Unlock()

	log.Warn().Msg("Session access token rejected by backend")
	for _, fn := range listeners {
		fn()
	}
}

// Invalidated reports whether the backend rejected the current access token
func (m *Manager) Invalidated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.invalidated
}

// OnInvalidated registers fn to run each time the session becomes invalidated
func (m *Manager) OnInvalidated(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// RequireUser returns the current user or ErrNotAuthenticated
func (m *Manager) RequireUser() (*api.User, error) {
	if u := m.User(); u != nil {
		return u, nil
	}
	return nil, apperrors.ErrNotAuthenticated
}
