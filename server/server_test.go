package server_test

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	gsessions "github.com/gorilla/sessions"
	"github.com/jrsteele09/offers-dashboard/api"
	"github.com/jrsteele09/offers-dashboard/api/apifake"
	"github.com/jrsteele09/offers-dashboard/internal/config"
	"github.com/jrsteele09/offers-dashboard/server"
	"github.com/jrsteele09/offers-dashboard/server/loginsession"
	"github.com/jrsteele09/offers-dashboard/sessions"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

const (
	cookieSecret = "0123456789abcdef0123456789abcdef"
	cookieName   = "offers_dashboard"
)

type testFixture struct {
	backend  *apifake.Backend
	provider *sessions.MemoryProvider
	repo     *loginsession.InMemoryLoginSessionRepo
	ts       *httptest.Server
	browser  *http.Client
}

func setupTestFixture(t *testing.T, resurrectWait time.Duration, opts ...func(*loginsession.Options)) *testFixture {
	t.Helper()
	backend := apifake.NewBackend(t)
	backend.AddUser("alice", "s3cret", api.User{ID: 1, Email: "alice@example.com", FirstName: "Alice"}, 100)
	backend.AddOffer(api.Offer{ID: 7, Name: "Internet 100", Description: "Fibre", Price: "9.99", DurationDays: 30, IsActive: true})
	backend.AddOffer(api.Offer{ID: 8, Name: "TV Sports", Price: "19.50", DurationDays: 30, IsActive: false})

	v := viper.New()
	v.Set("API_BASE_URL", backend.URL())
	v.Set("RESURRECT_WAIT", resurrectWait.String())
	v.Set("COOKIE_SECRET", cookieSecret)
	v.Set("COOKIE_NAME", cookieName)
	v.Set("ENV", "DEV")
	cfg := config.NewFromViper(v)

	repoOpts := loginsession.Options{
		BaseURL:      backend.URL(),
		PollInterval: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&repoOpts)
	}
	provider := sessions.NewMemoryProvider()
	repo := loginsession.NewInMemoryLoginSessionRepo(provider, repoOpts)
	t.Cleanup(repo.Close)

	srv, err := server.New(cfg, repo)
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testFixture{
		backend:  backend,
		provider: provider,
		repo:     repo,
		ts:       ts,
		browser:  &http.Client{Jar: jar},
	}
}

func (f *testFixture) do(t *testing.T, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := f.browser.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (f *testFixture) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, f.ts.URL+path, nil)
	require.NoError(t, err)
	return f.do(t, req)
}

func (f *testFixture) post(t *testing.T, path string, form url.Values, htmx bool) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, f.ts.URL+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	return f.do(t, req)
}

func (f *testFixture) login(t *testing.T) {
	t.Helper()
	resp, body := f.post(t, server.RouteLogin, url.Values{"username": {"alice"}, "password": {"s3cret"}}, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, server.RouteDashboard, resp.Request.URL.Path)
	require.Contains(t, body, "Alice")
}

// sessionCookie forges the signed cookie a browser would carry for sessionID
func sessionCookie(t *testing.T, sessionID string) *http.Cookie {
	t.Helper()
	store := gsessions.NewCookieStore([]byte(cookieSecret))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	cs, err := store.New(req, cookieName)
	require.NoError(t, err)
	cs.Values["session_id"] = sessionID

	rec := httptest.NewRecorder()
	require.NoError(t, cs.Save(req, rec))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func TestHealth(t *testing.T) {
	f := setupTestFixture(t, time.Second)
	resp, body := f.get(t, server.RouteHealth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"status": "ok", "app": "Offers Dashboard"}`, body)
}

func TestGuard(t *testing.T) {
	t.Run("anonymous visitor is sent to login", func(t *testing.T) {
		f := setupTestFixture(t, time.Second)
		for _, path := range []string{"/", server.RouteDashboard, server.RouteOffers, server.RouteSubscriptions} {
			resp, body := f.get(t, path)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			require.Equal(t, server.RouteLogin, resp.Request.URL.Path, path)
			require.Contains(t, body, "Sign in")
		}
	})

	t.Run("stored tokens resurrect the session behind a placeholder", func(t *testing.T) {
		f := setupTestFixture(t, 50*time.Millisecond)
		f.backend.Delay(apifake.EndpointProfile, 400*time.Millisecond)

		id := uuid.NewString()
		store, err := f.provider.Open(id)
		require.NoError(t, err)
		pair := f.backend.IssueTokens("alice")
		require.NoError(t, sessions.SaveTokens(store, pair.Access, pair.Refresh))
		cookie := sessionCookie(t, id)

		getDashboard := func() (*http.Response, string) {
			req, err := http.NewRequest(http.MethodGet, f.ts.URL+server.RouteDashboard, nil)
			require.NoError(t, err)
			req.AddCookie(cookie)
			return f.do(t, req)
		}

		resp, body := getDashboard()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Contains(t, body, "Loading your session")

		require.Eventually(t, func() bool {
			_, body := getDashboard()
			return strings.Contains(body, "Active subscriptions")
		}, 3*time.Second, 50*time.Millisecond)
	})

	t.Run("logged in user is bounced off the login page", func(t *testing.T) {
		f := setupTestFixture(t, time.Second)
		f.login(t)
		resp, _ := f.get(t, server.RouteLogin)
		require.Equal(t, server.RouteDashboard, resp.Request.URL.Path)
	})
}

func TestLoginFlow(t *testing.T) {
	f := setupTestFixture(t, time.Second)

	t.Run("wrong password", func(t *testing.T) {
		resp, body := f.post(t, server.RouteLogin, url.Values{"username": {"alice"}, "password": {"nope"}}, false)
		require.Equal(t, server.RouteLogin, resp.Request.URL.Path)
		require.Contains(t, body, "Invalid username or password")
		require.Contains(t, body, `value="alice"`)
	})

	t.Run("error text in the query string is not rendered", func(t *testing.T) {
		_, body := f.get(t, server.RouteLogin+"?error="+url.QueryEscape("Call 555-0100 to verify your account"))
		require.NotContains(t, body, "Call 555-0100")
		require.NotContains(t, body, "banner-error")
	})

	t.Run("login error is shown once", func(t *testing.T) {
		_, body := f.post(t, server.RouteLogin, url.Values{"username": {"alice"}, "password": {"nope"}}, false)
		require.Contains(t, body, "Invalid username or password")

		_, body = f.get(t, server.RouteLogin)
		require.NotContains(t, body, "Invalid username or password")
	})

	t.Run("missing password", func(t *testing.T) {
		before := f.backend.Calls(apifake.EndpointLogin)
		resp, body := f.post(t, server.RouteLogin, url.Values{"username": {"alice"}}, false)
		require.Equal(t, server.RouteLogin, resp.Request.URL.Path)
		require.Contains(t, body, "Username and password are required")
		require.Equal(t, before, f.backend.Calls(apifake.EndpointLogin))
	})

	t.Run("valid credentials land on the dashboard", func(t *testing.T) {
		f.login(t)
		_, body := f.get(t, server.RouteDashboard)
		require.Contains(t, body, "$100.00")
	})

	t.Run("logout revokes and forgets the session", func(t *testing.T) {
		resp, _ := f.post(t, server.RouteLogout, nil, false)
		require.Equal(t, server.RouteLogin, resp.Request.URL.Path)
		require.Equal(t, 1, f.backend.Calls(apifake.EndpointLogout))

		resp, _ = f.get(t, server.RouteDashboard)
		require.Equal(t, server.RouteLogin, resp.Request.URL.Path)
	})
}

func TestOfferActivation(t *testing.T) {
	f := setupTestFixture(t, time.Second)
	f.backend.QueueActivation("tx-1", api.StatusPending, api.StatusSuccess)
	f.login(t)

	_, body := f.get(t, server.RouteOffers)
	require.Contains(t, body, "Internet 100")
	require.Contains(t, body, "$9.99")

	resp, body := f.post(t, "/offers/7/activate", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "Activation started successfully!")
	require.Contains(t, body, `hx-trigger="every 3s"`)

	var cards string
	require.Eventually(t, func() bool {
		_, cards = f.get(t, server.RouteOfferCards)
		return strings.Contains(cards, `data-state="activated"`)
	}, 3*time.Second, 50*time.Millisecond)
	require.NotContains(t, cards, `hx-trigger="every 3s"`)

	t.Run("inactive offer is rejected locally", func(t *testing.T) {
		before := f.backend.Calls(apifake.EndpointActivate)
		_, body := f.post(t, "/offers/8/activate", nil, true)
		require.Contains(t, body, "Offer is not active")
		require.Equal(t, before, f.backend.Calls(apifake.EndpointActivate))
	})

	t.Run("plain form post redirects back with the error", func(t *testing.T) {
		resp, body := f.post(t, "/offers/99/activate", nil, false)
		require.Equal(t, server.RouteOffers, resp.Request.URL.Path)
		require.Contains(t, body, "Offer not found")
	})

	t.Run("query string errors are ignored on pages", func(t *testing.T) {
		_, body := f.get(t, server.RouteOffers+"?error="+url.QueryEscape("Your card was declined"))
		require.NotContains(t, body, "Your card was declined")
	})

	t.Run("bad id", func(t *testing.T) {
		resp, _ := f.post(t, "/offers/abc/activate", nil, true)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestOfferActivationTimeout(t *testing.T) {
	f := setupTestFixture(t, time.Second, func(o *loginsession.Options) {
		o.Timeout = 200 * time.Millisecond
	})
	f.login(t)
	f.backend.Delay(apifake.EndpointActivate, time.Second)

	_, body := f.get(t, server.RouteOffers)
	require.Contains(t, body, "Internet 100")

	t.Run("htmx post shows the request failure", func(t *testing.T) {
		resp, body := f.post(t, "/offers/7/activate", nil, true)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Contains(t, body, "Failed to activate offer")
		require.NotContains(t, body, "Offer is not active")
		require.NotContains(t, body, `hx-trigger="every 3s"`)
	})

	t.Run("plain form post redirects without a local error", func(t *testing.T) {
		resp, body := f.post(t, "/offers/7/activate", nil, false)
		require.Equal(t, server.RouteOffers, resp.Request.URL.Path)
		require.Empty(t, resp.Request.URL.RawQuery)
		require.Contains(t, body, "Failed to activate offer")
		require.NotContains(t, body, "Offer is not active")
	})
}

func TestSubscriptionsPage(t *testing.T) {
	f := setupTestFixture(t, time.Second)
	f.login(t)

	_, _ = f.get(t, server.RouteOffers)
	_, _ = f.post(t, "/offers/7/activate", nil, true)

	require.Eventually(t, func() bool {
		_, body := f.get(t, server.RouteSubscriptions)
		return strings.Contains(body, "tx-1") && strings.Contains(body, "SUCCESS")
	}, 3*time.Second, 50*time.Millisecond)

	resp, body := f.get(t, "/subscriptions/tx-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "Internet 100")

	resp, body = f.get(t, "/subscriptions/tx-404")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Contains(t, body, "Transaction not found")
}

func TestExpiredSessionBanner(t *testing.T) {
	f := setupTestFixture(t, time.Second)
	f.login(t)

	sess, ok := firstSession(f.repo)
	require.True(t, ok)
	access, _ := sess.Store.Get(sessions.AccessTokenKey)
	f.backend.ExpireToken(access)

	_, body := f.get(t, server.RouteDashboard)
	require.Contains(t, body, "Your session has expired. Please log in again.")
	require.Contains(t, body, "Failed to load dashboard data")
}

func firstSession(repo *loginsession.InMemoryLoginSessionRepo) (*loginsession.Session, bool) {
	for _, id := range repo.IDs() {
		return repo.Get(id)
	}
	return nil, false
}

func TestStaticCSS(t *testing.T) {
	f := setupTestFixture(t, time.Second)
	resp, body := f.get(t, "/css/dashboard.css")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/css")
	require.Contains(t, body, ".card")

	resp, _ = f.get(t, "/css/missing.css")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
