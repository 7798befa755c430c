package auth_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/offers-dashboard/api"
	"github.com/jrsteele09/offers-dashboard/api/apifake"
	"github.com/jrsteele09/offers-dashboard/auth"
	apperrors "github.com/jrsteele09/offers-dashboard/internal/errors"
	"github.com/jrsteele09/offers-dashboard/sessions"
	"github.com/stretchr/testify/require"
)

var alice = api.User{ID: 1, Username: "alice", Email: "alice@example.com", FirstName: "Alice", LastName: "Smith"}

type stubAuthAPI struct {
	loginErr   error
	profileErr error
	logoutErr  error

	pair         api.TokenPair
	profileCalls atomic.Int32
	revoked      []string
}

func (s *stubAuthAPI) Login(_ context.Context, _, _ string) (*api.TokenPair, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	pair := s.pair
	return &pair, nil
}

func (s *stubAuthAPI) Profile(context.Context) (*api.User, error) {
	s.profileCalls.Add(1)
	if s.profileErr != nil {
		return nil, s.profileErr
	}
	u := alice
	return &u, nil
}

func (s *stubAuthAPI) Logout(_ context.Context, refresh string) error {
	s.revoked = append(s.revoked, refresh)
	return s.logoutErr
}

func newStub() *stubAuthAPI {
	return &stubAuthAPI{pair: api.TokenPair{Access: "access-1", Refresh: "refresh-1"}}
}

func requireNoTokens(t *testing.T, store sessions.Store) {
	t.Helper()
	_, ok := store.Get(sessions.AccessTokenKey)
	require.False(t, ok, "access token must be cleared")
	_, ok = store.Get(sessions.RefreshTokenKey)
	require.False(t, ok, "refresh token must be cleared")
}

func TestResurrect(t *testing.T) {
	ctx := context.Background()

	t.Run("valid stored token", func(t *testing.T) {
		store := sessions.NewMemoryStore()
		require.NoError(t, sessions.SaveTokens(store, "access-1", "refresh-1"))
		m := auth.NewManager(store, newStub())
		require.True(t, m.IsLoading())
		require.Equal(t, auth.DecisionPlaceholder, auth.Decide(m.State()))

		require.NoError(t, m.Resurrect(ctx))
		require.False(t, m.IsLoading())
		require.True(t, m.IsAuthenticated())
		require.Equal(t, alice, *m.User())
		require.Equal(t, auth.DecisionAllow, auth.Decide(m.State()))
	})

	t.Run("rejected stored token", func(t *testing.T) {
		store := sessions.NewMemoryStore()
		require.NoError(t, sessions.SaveTokens(store, "stale", "refresh-1"))
		stub := newStub()
		stub.profileErr = &api.APIError{StatusCode: http.StatusUnauthorized}
		m := auth.NewManager(store, stub)

		err := m.Resurrect(ctx)
		require.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
		require.False(t, m.IsAuthenticated())
		require.Nil(t, m.User())
		require.Equal(t, auth.StateUnauthenticated, m.State())
		require.Equal(t, auth.DecisionRedirectLogin, auth.Decide(m.State()))
		requireNoTokens(t, store)
	})

	t.Run("no stored token skips profile fetch", func(t *testing.T) {
		stub := newStub()
		m := auth.NewManager(sessions.NewMemoryStore(), stub)
		require.NoError(t, m.Resurrect(ctx))
		require.Equal(t, auth.StateUnauthenticated, m.State())
		require.Equal(t, int32(0), stub.profileCalls.Load())
	})

	t.Run("runs once", func(t *testing.T) {
		store := sessions.NewMemoryStore()
		require.NoError(t, sessions.SaveTokens(store, "access-1", "refresh-1"))
		stub := newStub()
		m := auth.NewManager(store, stub)

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = m.Resurrect(ctx)
			}()
		}
		wg.Wait()
		require.NoError(t, m.Resurrect(ctx))
		require.Equal(t, int32(1), stub.profileCalls.Load())

		select {
		case <-m.Ready():
		default:
			t.Fatal("ready channel should be closed")
		}
	})
}

func TestLoginAtomicity(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		store := sessions.NewMemoryStore()
		m := auth.NewManager(store, newStub())
		require.NoError(t, m.Login(ctx, "alice", "s3cret"))
		require.True(t, m.IsAuthenticated())
		require.False(t, m.IsLoading())

		access, ok := store.Get(sessions.AccessTokenKey)
		require.True(t, ok)
		require.Equal(t, "access-1", access)
	})

	t.Run("profile fetch fails after token exchange", func(t *testing.T) {
		store := sessions.NewMemoryStore()
		stub := newStub()
		stub.profileErr = &api.APIError{StatusCode: http.StatusInternalServerError}
		m := auth.NewManager(store, stub)

		err := m.Login(ctx, "alice", "s3cret")
		require.Error(t, err)
		require.False(t, m.IsAuthenticated())
		require.Equal(t, auth.StateUnauthenticated, m.State())
		requireNoTokens(t, store)
	})

	t.Run("unauthorized profile is not reported as bad credentials", func(t *testing.T) {
		store := sessions.NewMemoryStore()
		stub := newStub()
		stub.profileErr = &api.APIError{StatusCode: http.StatusUnauthorized, Message: "Token not yet valid"}
		m := auth.NewManager(store, stub)

		err := m.Login(ctx, "alice", "s3cret")
		require.True(t, apperrors.Is(err, apperrors.ErrProfileFailed))
		require.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
		require.Equal(t, auth.MsgLoginFailed, auth.LoginErrorMessage(err))
		require.False(t, m.IsAuthenticated())
		requireNoTokens(t, store)
	})

	t.Run("rejected credentials clear an existing session", func(t *testing.T) {
		store := sessions.NewMemoryStore()
		stub := newStub()
		m := auth.NewManager(store, stub)
		require.NoError(t, m.Login(ctx, "alice", "s3cret"))

		stub.loginErr = &api.APIError{StatusCode: http.StatusUnauthorized, Message: "Invalid credentials"}
		err := m.Login(ctx, "alice", "wrong")
		require.Error(t, err)
		require.Equal(t, auth.MsgInvalidCredentials, auth.LoginErrorMessage(err))
		require.False(t, m.IsAuthenticated())
		requireNoTokens(t, store)
	})

	t.Run("missing credentials never reach the backend", func(t *testing.T) {
		stub := newStub()
		stub.loginErr = errors.New("must not be called")
		m := auth.NewManager(sessions.NewMemoryStore(), stub)

		err := m.Login(ctx, "", "s3cret")
		require.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
		require.Equal(t, auth.MsgMissingCredentials, auth.LoginErrorMessage(err))
	})

	t.Run("login during resurrection wins", func(t *testing.T) {
		store := sessions.NewMemoryStore()
		m := auth.NewManager(store, newStub())
		require.NoError(t, m.Login(ctx, "alice", "s3cret"))
		require.NoError(t, m.Resurrect(ctx))
		require.True(t, m.IsAuthenticated())
	})
}

func TestLogoutIdempotence(t *testing.T) {
	ctx := context.Background()

	run := func(t *testing.T, revokeErr error) (*auth.Manager, sessions.Store, *stubAuthAPI) {
		store := sessions.NewMemoryStore()
		stub := newStub()
		stub.logoutErr = revokeErr
		m := auth.NewManager(store, stub)
		require.NoError(t, m.Login(ctx, "alice", "s3cret"))
		m.Logout(ctx)
		return m, store, stub
	}

	okManager, okStore, okStub := run(t, nil)
	failManager, failStore, failStub := run(t, errors.New("network down"))

	for _, m := range []*auth.Manager{okManager, failManager} {
		require.False(t, m.IsAuthenticated())
		require.Nil(t, m.User())
		require.Equal(t, auth.StateUnauthenticated, m.State())
	}
	requireNoTokens(t, okStore)
	requireNoTokens(t, failStore)
	require.Equal(t, []string{"refresh-1"}, okStub.revoked)
	require.Equal(t, []string{"refresh-1"}, failStub.revoked)

	// a second logout has nothing to revoke
	failManager.Logout(ctx)
	require.Len(t, failStub.revoked, 1)
}

func TestUnauthorizedKeepsSession(t *testing.T) {
	backend := apifake.NewBackend(t)
	backend.AddUser("alice", "s3cret", api.User{ID: 1, FirstName: "Alice"}, 50)
	backend.AddOffer(api.Offer{ID: 7, Name: "Internet", Price: "9.99", IsActive: true})
	ctx := context.Background()

	store := sessions.NewMemoryStore()
	m, client := auth.NewClientSession(backend.URL(), store)
	require.NoError(t, m.Resurrect(ctx))
	require.NoError(t, m.Login(ctx, "alice", "s3cret"))

	signals := 0
	m.OnInvalidated(func() { signals++ })

	access, _ := store.Get(sessions.AccessTokenKey)
	backend.ExpireToken(access)

	_, err := client.ListOffers(ctx)
	require.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
	require.True(t, m.IsAuthenticated())
	require.True(t, m.Invalidated())
	require.Equal(t, 1, signals)

	_, err = client.ListOffers(ctx)
	require.Error(t, err)
	require.Equal(t, 1, signals)

	stored, ok := store.Get(sessions.AccessTokenKey)
	require.True(t, ok)
	require.Equal(t, access, stored)

	m.Logout(ctx)
	require.False(t, m.IsAuthenticated())
	require.False(t, m.Invalidated())
}

func TestNewClientSessionResurrects(t *testing.T) {
	backend := apifake.NewBackend(t)
	backend.AddUser("alice", "s3cret", api.User{ID: 1, FirstName: "Alice"}, 50)
	ctx := context.Background()

	store := sessions.NewMemoryStore()
	pair := backend.IssueTokens("alice")
	require.NoError(t, sessions.SaveTokens(store, pair.Access, pair.Refresh))

	m, _ := auth.NewClientSession(backend.URL(), store)
	require.NoError(t, m.Resurrect(ctx))
	require.Equal(t, "alice", m.User().Username)

	// a reload after the token expired settles unauthenticated without raising the signal
	backend.ExpireToken(pair.Access)
	reloaded, _ := auth.NewClientSession(backend.URL(), store)
	require.Error(t, reloaded.Resurrect(ctx))
	require.False(t, reloaded.IsAuthenticated())
	require.False(t, reloaded.Invalidated())
	requireNoTokens(t, store)
}

func TestAccessTokenExpiry(t *testing.T) {
	backend := apifake.NewBackend(t)
	backend.AddUser("alice", "s3cret", api.User{ID: 1}, 0)
	pair := backend.IssueTokens("alice")

	exp, err := auth.AccessTokenExpiry(pair.Access)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	_, err = auth.AccessTokenExpiry("not-a-jwt")
	require.Error(t, err)
}
