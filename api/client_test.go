package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/jrsteele09/offers-dashboard/api"
	"github.com/jrsteele09/offers-dashboard/api/apifake"
	apperrors "github.com/jrsteele09/offers-dashboard/internal/errors"
	"github.com/jrsteele09/offers-dashboard/sessions"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	backend      *apifake.Backend
	store        sessions.Store
	client       *api.Client
	unauthorized *atomic.Int32
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	backend := apifake.NewBackend(t)
	backend.AddUser("alice", "s3cret", api.User{ID: 1, Email: "alice@example.com", FirstName: "Alice"}, 100)
	backend.AddOffer(api.Offer{ID: 7, Name: "Internet 100", Description: "Fibre", Price: "9.99", DurationDays: 30, IsActive: true})
	backend.AddOffer(api.Offer{ID: 8, Name: "TV Sports", Price: "19.50", DurationDays: 30, IsActive: false})

	store := sessions.NewMemoryStore()
	counter := &atomic.Int32{}
	client := api.New(backend.URL(), sessions.TokenSource(store), api.WithUnauthorizedHandler(func() {
		counter.Add(1)
	}))
	return &testFixture{backend: backend, store: store, client: client, unauthorized: counter}
}

func (f *testFixture) signIn(t *testing.T) api.TokenPair {
	t.Helper()
	pair := f.backend.IssueTokens("alice")
	require.NoError(t, sessions.SaveTokens(f.store, pair.Access, pair.Refresh))
	return pair
}

func TestLogin(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	t.Run("valid credentials", func(t *testing.T) {
		pair, err := f.client.Login(ctx, "alice", "s3cret")
		require.NoError(t, err)
		require.NotEmpty(t, pair.Access)
		require.NotEmpty(t, pair.Refresh)
	})

	t.Run("invalid credentials carry server message", func(t *testing.T) {
		_, err := f.client.Login(ctx, "alice", "wrong")
		require.Error(t, err)
		require.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
		require.Equal(t, "Invalid credentials", api.ServerMessage(err))
	})

	t.Run("401 on login does not raise the session signal", func(t *testing.T) {
		f.signIn(t)
		_, err := f.client.Login(ctx, "alice", "wrong")
		require.Error(t, err)
		require.Equal(t, int32(0), f.unauthorized.Load())
	})
}

func TestTransport(t *testing.T) {
	t.Run("attaches stored bearer token", func(t *testing.T) {
		var got atomic.Value
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got.Store(r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"id": 1, "username": "alice"}`))
		}))
		defer srv.Close()

		store := sessions.NewMemoryStore()
		require.NoError(t, sessions.SaveTokens(store, "abc", "def"))
		client := api.New(srv.URL, sessions.TokenSource(store))

		_, err := client.Profile(context.Background())
		require.NoError(t, err)
		require.Equal(t, "Bearer abc", got.Load())
	})

	t.Run("sends no header without a token", func(t *testing.T) {
		var got atomic.Value
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got.Store(r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		fired := false
		client := api.New(srv.URL, sessions.TokenSource(sessions.NewMemoryStore()), api.WithUnauthorizedHandler(func() {
			fired = true
		}))
		_, err := client.Profile(context.Background())
		require.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
		require.Equal(t, "", got.Load())
		require.False(t, fired)
	})

	t.Run("reads the token at request time", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.client.ListOffers(context.Background())
		require.Error(t, err)

		f.signIn(t)
		offers, err := f.client.ListOffers(context.Background())
		require.NoError(t, err)
		require.Len(t, offers, 2)
	})
}

func TestUnauthorizedSignal(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	pair := f.signIn(t)

	_, err := f.client.Profile(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(0), f.unauthorized.Load())

	f.backend.ExpireToken(pair.Access)
	_, err = f.client.ListOffers(ctx)
	require.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
	require.Equal(t, int32(1), f.unauthorized.Load())

	// the transport reports, it does not clear
	access, ok := f.store.Get(sessions.AccessTokenKey)
	require.True(t, ok)
	require.Equal(t, pair.Access, access)
}

func TestAPIErrorClassification(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.signIn(t)

	t.Run("not found", func(t *testing.T) {
		_, err := f.client.GetOffer(ctx, 99)
		require.True(t, apperrors.Is(err, apperrors.ErrNotFound))
		require.Equal(t, "Offer not found", api.ServerMessage(err))
	})

	t.Run("bad request", func(t *testing.T) {
		f.backend.Fail(apifake.EndpointActivate, http.StatusBadRequest, "Insufficient balance")
		defer f.backend.Recover(apifake.EndpointActivate)
		_, err := f.client.ActivateOffer(ctx, 7)
		require.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
		require.Equal(t, "Insufficient balance", api.ServerMessage(err))
	})

	t.Run("server error", func(t *testing.T) {
		f.backend.Fail(apifake.EndpointOffers, http.StatusInternalServerError, "boom")
		defer f.backend.Recover(apifake.EndpointOffers)
		_, err := f.client.ListOffers(ctx)
		require.True(t, apperrors.Is(err, apperrors.ErrServer))

		var apiErr *api.APIError
		require.True(t, apperrors.As(err, &apiErr))
		require.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	})

	t.Run("detail field", func(t *testing.T) {
		_, err := f.client.ActivateOffer(ctx, 8)
		require.True(t, apperrors.Is(err, apperrors.ErrNotFound))
		require.Equal(t, "No Offer matches the given query.", api.ServerMessage(err))
	})
}

func TestActivationFlow(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.signIn(t)
	f.backend.QueueActivation("tx-1", api.StatusPending, api.StatusSuccess)

	resp, err := f.client.ActivateOffer(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, "tx-1", resp.TransactionID)
	require.Equal(t, api.StatusPending, resp.Status)

	status, err := f.client.ActivationStatus(ctx, "tx-1")
	require.NoError(t, err)
	require.Equal(t, api.StatusPending, status.Status)
	require.Equal(t, api.OfferID(7), status.OfferID)

	status, err = f.client.ActivationStatus(ctx, "tx-1")
	require.NoError(t, err)
	require.Equal(t, api.StatusSuccess, status.Status)
	require.NotNil(t, status.CompletedAt)

	subs, err := f.client.Subscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, api.OfferID(7), subs[0].OfferID)

	txs, err := f.client.Transactions(ctx, api.StatusSuccess)
	require.NoError(t, err)
	require.Len(t, txs, 1)

	txs, err = f.client.Transactions(ctx, api.StatusFailed)
	require.NoError(t, err)
	require.Empty(t, txs)

	account, err := f.client.Balance(ctx)
	require.NoError(t, err)
	require.InDelta(t, 90.01, account.Balance.Float64(), 0.001)
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	f := setupTestFixture(t)
	pair := f.signIn(t)

	require.NoError(t, f.client.Logout(context.Background(), pair.Refresh))
	require.True(t, f.backend.IsRevoked(pair.Refresh))
}

func TestOfferIDDecoding(t *testing.T) {
	var fromNumber, fromString api.OfferID
	require.NoError(t, json.Unmarshal([]byte(`7`), &fromNumber))
	require.NoError(t, json.Unmarshal([]byte(`"7"`), &fromString))
	require.Equal(t, fromNumber, fromString)

	var bad api.OfferID
	require.Error(t, json.Unmarshal([]byte(`"seven"`), &bad))

	var status api.ActivationStatus
	require.NoError(t, json.Unmarshal([]byte(`{"transaction_id": "tx-1", "offer": 7, "status": "PENDING"}`), &status))
	require.Equal(t, api.OfferID(7), status.OfferID)

	require.NoError(t, json.Unmarshal([]byte(`{"transaction_id": "tx-2", "offer_id": "9", "offer": 7, "status": "SUCCESS"}`), &status))
	require.Equal(t, api.OfferID(9), status.OfferID)
	require.Equal(t, "tx-2", status.TransactionID)
}

func TestAmount(t *testing.T) {
	var a api.Amount
	require.NoError(t, json.Unmarshal([]byte(`"1234.5"`), &a))
	require.Equal(t, "$1,234.50", a.Format())

	require.NoError(t, json.Unmarshal([]byte(`9.99`), &a))
	require.Equal(t, "$9.99", a.Format())

	require.Equal(t, "N/A", api.Amount("").Format())
	require.Equal(t, "-$0.50", api.Amount("-0.5").Format())
	require.Error(t, json.Unmarshal([]byte(`"abc"`), &a))
}

func TestStatusTransitions(t *testing.T) {
	require.True(t, api.StatusPending.CanTransitionTo(api.StatusPending))
	require.True(t, api.StatusPending.CanTransitionTo(api.StatusSuccess))
	require.True(t, api.StatusPending.CanTransitionTo(api.StatusFailed))
	require.False(t, api.StatusSuccess.CanTransitionTo(api.StatusPending))
	require.False(t, api.StatusFailed.CanTransitionTo(api.StatusSuccess))
	require.False(t, api.StatusPending.CanTransitionTo("CANCELLED"))
}
