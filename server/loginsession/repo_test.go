package loginsession_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/offers-dashboard/api"
	"github.com/jrsteele09/offers-dashboard/api/apifake"
	"github.com/jrsteele09/offers-dashboard/auth"
	"github.com/jrsteele09/offers-dashboard/server/loginsession"
	"github.com/jrsteele09/offers-dashboard/sessions"
	"github.com/stretchr/testify/require"
)

func setupRepo(t *testing.T) (*apifake.Backend, *sessions.MemoryProvider, *loginsession.InMemoryLoginSessionRepo) {
	t.Helper()
	backend := apifake.NewBackend(t)
	backend.AddUser("alice", "s3cret", api.User{ID: 1, FirstName: "Alice"}, 100)
	backend.AddOffer(api.Offer{ID: 7, Name: "Internet 100", Price: "9.99", DurationDays: 30, IsActive: true})

	provider := sessions.NewMemoryProvider()
	repo := loginsession.NewInMemoryLoginSessionRepo(provider, loginsession.Options{
		BaseURL:      backend.URL(),
		Timeout:      time.Second,
		PollInterval: 20 * time.Millisecond,
	})
	t.Cleanup(repo.Close)
	return backend, provider, repo
}

func waitReady(t *testing.T, m *auth.Manager) {
	t.Helper()
	select {
	case <-m.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not settle")
	}
}

func TestGetOrCreate(t *testing.T) {
	_, _, repo := setupRepo(t)

	t.Run("rejects ids that are not uuids", func(t *testing.T) {
		_, err := repo.GetOrCreate("../../etc/passwd")
		require.Error(t, err)
		require.Equal(t, 0, repo.Len())
	})

	t.Run("concurrent first requests share one session", func(t *testing.T) {
		id := uuid.NewString()
		var wg sync.WaitGroup
		got := make([]*loginsession.Session, 8)
		errs := make([]error, len(got))
		for i := range got {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				got[i], errs[i] = repo.GetOrCreate(id)
			}(i)
		}
		wg.Wait()
		for i, s := range got {
			require.NoError(t, errs[i])
			require.Same(t, got[0], s)
		}
		waitReady(t, got[0].Manager)
		require.Equal(t, auth.StateUnauthenticated, got[0].Manager.State())
	})
}

func TestResurrectFromStoredTokens(t *testing.T) {
	backend, provider, repo := setupRepo(t)

	id := uuid.NewString()
	store, err := provider.Open(id)
	require.NoError(t, err)
	pair := backend.IssueTokens("alice")
	require.NoError(t, sessions.SaveTokens(store, pair.Access, pair.Refresh))

	s, err := repo.GetOrCreate(id)
	require.NoError(t, err)
	waitReady(t, s.Manager)
	require.True(t, s.Manager.IsAuthenticated())
	require.Equal(t, "alice", s.Manager.User().Username)
}

func TestEvict(t *testing.T) {
	backend, provider, repo := setupRepo(t)
	backend.QueueActivation("tx-1", api.StatusPending)

	idle := uuid.NewString()
	busy := uuid.NewString()
	for _, id := range []string{idle, busy} {
		s, err := repo.GetOrCreate(id)
		require.NoError(t, err)
		waitReady(t, s.Manager)
		require.NoError(t, s.Manager.Login(context.Background(), "alice", "s3cret"))
	}

	s, ok := repo.Get(busy)
	require.True(t, ok)
	require.NoError(t, s.Board.Load(context.Background()))
	_, err := s.Board.Activate(context.Background(), 7)
	require.NoError(t, err)

	// a negative limit makes every session idle
	require.Equal(t, 1, repo.Evict(-time.Minute))
	_, ok = repo.Get(idle)
	require.False(t, ok)
	_, ok = repo.Get(busy)
	require.True(t, ok)

	t.Run("evicted session keeps its tokens", func(t *testing.T) {
		store, err := provider.Open(idle)
		require.NoError(t, err)
		_, ok := store.Get(sessions.AccessTokenKey)
		require.True(t, ok)

		s, err := repo.GetOrCreate(idle)
		require.NoError(t, err)
		waitReady(t, s.Manager)
		require.True(t, s.Manager.IsAuthenticated())
	})
}

func TestDelete(t *testing.T) {
	_, provider, repo := setupRepo(t)

	id := uuid.NewString()
	s, err := repo.GetOrCreate(id)
	require.NoError(t, err)
	waitReady(t, s.Manager)
	require.NoError(t, s.Manager.Login(context.Background(), "alice", "s3cret"))

	require.NoError(t, repo.Delete(id))
	_, ok := repo.Get(id)
	require.False(t, ok)

	store, err := provider.Open(id)
	require.NoError(t, err)
	_, ok = store.Get(sessions.AccessTokenKey)
	require.False(t, ok)
}
