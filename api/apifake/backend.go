// Package apifake is an in-process fake of the offers backend for tests.
package apifake

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/offers-dashboard/api"
	"github.com/jrsteele09/offers-dashboard/internal/utils"
)

const (
	BasePath = "/api/v1"

	signingSecret = "apifake-signing-secret"
)

// Endpoint names used by Calls, Fail and Delay
const (
	EndpointLogin         = "login"
	EndpointProfile       = "profile"
	EndpointLogout        = "logout"
	EndpointOffers        = "offers"
	EndpointOffer         = "offer"
	EndpointExpiring      = "expiring"
	EndpointRenew         = "renew"
	EndpointActivate      = "activate"
	EndpointStatus        = "status"
	EndpointSubscriptions = "subscriptions"
	EndpointTransactions  = "transactions"
	EndpointTransaction   = "transaction"
	EndpointBalance       = "balance"
)

type userRecord struct {
	password string
	user     api.User
	balance  float64
}

type txRecord struct {
	tx     api.Transaction
	userID int64
	script []api.Status
}

type failure struct {
	status  int
	message string
}

// Backend is a fake REST backend served by an httptest.Server
type Backend struct {
	server *httptest.Server

	mu           sync.Mutex
	users        map[string]*userRecord
	accessTok    map[string]int64
	refreshTok   map[string]int64
	revoked      map[string]bool
	offers       []api.Offer
	txs          map[string]*txRecord
	txOrder      []string
	nextTxIDs    []string
	nextScripts  [][]api.Status
	tokenCounter int
	calls        map[string]int
	failures     map[string]failure
	delays       map[string]time.Duration

	// UseOfferField makes status records carry the numeric "offer" field instead of "offer_id"
	UseOfferField bool
}

// NewBackend starts a fake backend that is closed when the test ends
func NewBackend(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		users:      make(map[string]*userRecord),
		accessTok:  make(map[string]int64),
		refreshTok: make(map[string]int64),
		revoked:    make(map[string]bool),
		txs:        make(map[string]*txRecord),
		calls:      make(map[string]int),
		failures:   make(map[string]failure),
		delays:     make(map[string]time.Duration),
	}
	b.server = httptest.NewServer(b.routes())
	t.Cleanup(b.server.Close)
	return b
}

// URL is the API base URL, e.g. http://127.0.0.1:4242/api/v1
func (b *Backend) URL() string {
	return b.server.URL + BasePath
}

func (b *Backend) AddUser(username, password string, user api.User, balance float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	user.Username = username
	if user.DateJoined.IsZero() {
		user.DateJoined = time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	}
	b.users[username] = &userRecord{password: password, user: user, balance: balance}
}

func (b *Backend) AddOffer(offer api.Offer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if offer.CreatedAt.IsZero() {
		offer.CreatedAt = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	}
	b.offers = append(b.offers, offer)
}

// IssueTokens mints a valid token pair for username, as a successful login would
func (b *Backend) IssueTokens(username string) api.TokenPair {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issueLocked(b.users[username].user.ID)
}

// ExpireToken makes the backend reject the given access token from now on
func (b *Backend) ExpireToken(access string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.accessTok, access)
}

// IsRevoked reports whether a refresh token was revoked through the logout endpoint
func (b *Backend) IsRevoked(refresh string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.revoked[refresh]
}

// QueueActivation sets the transaction id and the sequence of statuses the next
// accepted activation (or renewal) reports on successive status polls. The last
// status repeats once the sequence is exhausted.
func (b *Backend) QueueActivation(transactionID string, statuses ...api.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextTxIDs = append(b.nextTxIDs, transactionID)
	b.nextScripts = append(b.nextScripts, statuses)
}

// Fail makes every call to endpoint answer with status and {"error": message}
func (b *Backend) Fail(endpoint string, status int, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[endpoint] = failure{status: status, message: message}
}

func (b *Backend) Recover(endpoint string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failures, endpoint)
}

// Delay holds every call to endpoint for d before answering
func (b *Backend) Delay(endpoint string, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delays[endpoint] = d
}

// Calls returns how many requests reached endpoint
func (b *Backend) Calls(endpoint string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[endpoint]
}

func (b *Backend) routes() http.Handler {
	mux := http.NewServeMux()
	b.handle(mux, EndpointLogin, "POST /auth/login/", false, b.login)
	b.handle(mux, EndpointProfile, "GET /auth/profile/", true, b.profile)
	b.handle(mux, EndpointLogout, "POST /auth/logout/", true, b.logout)
	b.handle(mux, EndpointOffers, "GET /offers/{$}", true, b.listOffers)
	b.handle(mux, EndpointExpiring, "GET /offers/expiring/", true, b.expiring)
	b.handle(mux, EndpointRenew, "POST /offers/renew/", true, b.renew)
	b.handle(mux, EndpointOffer, "GET /offers/{id}/", true, b.offer)
	b.handle(mux, EndpointActivate, "POST /activation/activate/", true, b.activate)
	b.handle(mux, EndpointStatus, "GET /activation/status/{tx}/", true, b.status)
	b.handle(mux, EndpointSubscriptions, "GET /account/subscriptions/", true, b.subscriptions)
	b.handle(mux, EndpointTransactions, "GET /account/transactions/{$}", true, b.transactions)
	b.handle(mux, EndpointTransaction, "GET /account/transactions/{tx}/", true, b.transaction)
	b.handle(mux, EndpointBalance, "GET /account/balance/", true, b.balance)
	return mux
}

type authedHandler func(w http.ResponseWriter, r *http.Request, userID int64)

func (b *Backend) handle(mux *http.ServeMux, name, pattern string, authenticated bool, fn authedHandler) {
	method, path, _ := strings.Cut(pattern, " ")
	mux.HandleFunc(method+" "+BasePath+path, func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.calls[name]++
		fail, failing := b.failures[name]
		delay := b.delays[name]
		b.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		if failing {
			writeJSON(w, fail.status, map[string]string{"error": fail.message})
			return
		}

		var userID int64
		if authenticated {
			id, ok := b.authenticate(r)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Given token not valid for any token type"})
				return
			}
			userID = id
		}
		fn(w, r, userID)
	})
}

func (b *Backend) authenticate(r *http.Request) (int64, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return 0, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.accessTok[token]
	return id, ok
}

// issueLocked must be called with b.mu held
func (b *Backend) issueLocked(userID int64) api.TokenPair {
	b.tokenCounter++
	now := time.Now()
	sign := func(kind string, ttl time.Duration) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"token_type": kind,
			"user_id":    userID,
			"jti":        fmt.Sprintf("%s-%d", kind, b.tokenCounter),
			"iat":        now.Unix(),
			"exp":        now.Add(ttl).Unix(),
		})
		signed, err := tok.SignedString([]byte(signingSecret))
		if err != nil {
			panic(err)
		}
		return signed
	}
	pair := api.TokenPair{Access: sign("access", time.Hour), Refresh: sign("refresh", 24*time.Hour)}
	b.accessTok[pair.Access] = userID
	b.refreshTok[pair.Refresh] = userID
	return pair
}

func (b *Backend) userByID(id int64) *userRecord {
	for _, u := range b.users {
		if u.user.ID == id {
			return u
		}
	}
	return nil
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request, _ int64) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Username and password are required"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[req.Username]
	if !ok || u.password != req.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, b.issueLocked(u.user.ID))
}

func (b *Backend) profile(w http.ResponseWriter, _ *http.Request, userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u := b.userByID(userID)
	profile := u.user
	profile.Account = &api.AccountSummary{Balance: api.Amount(strconv.FormatFloat(u.balance, 'f', 2, 64))}
	writeJSON(w, http.StatusOK, profile)
}

func (b *Backend) logout(w http.ResponseWriter, r *http.Request, _ int64) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.refreshTok[req.Refresh]; !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid token"})
		return
	}
	delete(b.refreshTok, req.Refresh)
	b.revoked[req.Refresh] = true
	writeJSON(w, http.StatusOK, map[string]string{"message": "Successfully logged out"})
}

func (b *Backend) listOffers(w http.ResponseWriter, _ *http.Request, _ int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	offers := append([]api.Offer{}, b.offers...)
	writeJSON(w, http.StatusOK, offers)
}

func (b *Backend) offer(w http.ResponseWriter, r *http.Request, _ int64) {
	id, err := api.ParseOfferID(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Offer not found"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if o := b.findOffer(id); o != nil {
		writeJSON(w, http.StatusOK, o)
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Offer not found"})
}

func (b *Backend) findOffer(id api.OfferID) *api.Offer {
	for i := range b.offers {
		if b.offers[i].ID == id {
			return &b.offers[i]
		}
	}
	return nil
}

func (b *Backend) activate(w http.ResponseWriter, r *http.Request, userID int64) {
	b.startTransaction(w, r, userID, true)
}

func (b *Backend) renew(w http.ResponseWriter, r *http.Request, userID int64) {
	b.startTransaction(w, r, userID, false)
}

func (b *Backend) startTransaction(w http.ResponseWriter, r *http.Request, userID int64, requireActive bool) {
	var req struct {
		OfferID *api.OfferID `json:"offer_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.OfferID == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "offer_id is required"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	offer := b.findOffer(*req.OfferID)
	if offer == nil || (requireActive && !offer.IsActive) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "No Offer matches the given query."})
		return
	}
	u := b.userByID(userID)
	price := offer.Price.Float64()
	if u.balance < price {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Insufficient balance"})
		return
	}
	u.balance -= price

	txID := fmt.Sprintf("tx-%d", len(b.txs)+1)
	script := []api.Status{api.StatusSuccess}
	if len(b.nextTxIDs) > 0 {
		txID, script = b.nextTxIDs[0], b.nextScripts[0]
		b.nextTxIDs, b.nextScripts = b.nextTxIDs[1:], b.nextScripts[1:]
	}
	now := time.Now().UTC()
	b.txs[txID] = &txRecord{
		userID: userID,
		script: script,
		tx: api.Transaction{
			ID:            int64(len(b.txs) + 1),
			TransactionID: txID,
			OfferID:       offer.ID,
			OfferDetails:  offer,
			Amount:        offer.Price,
			Status:        api.StatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
	}
	b.txOrder = append(b.txOrder, txID)

	message := "Activation process started"
	if !requireActive {
		message = "Offer renewal in progress"
	}
	writeJSON(w, http.StatusAccepted, api.ActivationResponse{
		TransactionID: txID,
		Message:       message,
		Status:        api.StatusPending,
	})
}

// advance pops the next scripted status; must be called with b.mu held
func (rec *txRecord) advance() {
	if len(rec.script) == 0 {
		return
	}
	rec.tx.Status = rec.script[0]
	rec.tx.UpdatedAt = time.Now().UTC()
	if rec.tx.Status.IsTerminal() && rec.tx.CompletedAt == nil {
		rec.tx.CompletedAt = utils.Ptr(rec.tx.UpdatedAt)
	}
	if len(rec.script) > 1 {
		rec.script = rec.script[1:]
	}
}

func (b *Backend) status(w http.ResponseWriter, r *http.Request, userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.txs[r.PathValue("tx")]
	if !ok || rec.userID != userID {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	rec.advance()

	body := map[string]any{
		"transaction_id": rec.tx.TransactionID,
		"amount":         string(rec.tx.Amount),
		"status":         rec.tx.Status,
		"created_at":     rec.tx.CreatedAt,
		"updated_at":     rec.tx.UpdatedAt,
		"completed_at":   rec.tx.CompletedAt,
		"user_id":        strconv.FormatInt(userID, 10),
	}
	if b.UseOfferField {
		body["offer"] = int64(rec.tx.OfferID)
	} else {
		body["offer_id"] = rec.tx.OfferID.String()
	}
	writeJSON(w, http.StatusOK, body)
}

func (b *Backend) subscriptions(w http.ResponseWriter, _ *http.Request, userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := make([]api.UserOffer, 0)
	for _, txID := range b.txOrder {
		rec := b.txs[txID]
		if rec.userID != userID || rec.tx.Status != api.StatusSuccess {
			continue
		}
		subs = append(subs, api.UserOffer{
			ID:             rec.tx.ID,
			OfferID:        rec.tx.OfferID,
			Offer:          rec.tx.OfferDetails,
			ActivationDate: rec.tx.CreatedAt,
			ExpirationDate: rec.tx.CreatedAt.AddDate(0, 0, rec.tx.OfferDetails.DurationDays),
			IsActive:       true,
			TransactionID:  txID,
		})
	}
	writeJSON(w, http.StatusOK, subs)
}

func (b *Backend) expiring(w http.ResponseWriter, _ *http.Request, userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	soon := time.Now().AddDate(0, 0, 3)
	subs := make([]api.UserOffer, 0)
	for _, txID := range b.txOrder {
		rec := b.txs[txID]
		if rec.userID != userID || rec.tx.Status != api.StatusSuccess {
			continue
		}
		expires := rec.tx.CreatedAt.AddDate(0, 0, rec.tx.OfferDetails.DurationDays)
		if expires.After(soon) {
			continue
		}
		subs = append(subs, api.UserOffer{
			ID:             rec.tx.ID,
			OfferID:        rec.tx.OfferID,
			Offer:          rec.tx.OfferDetails,
			ActivationDate: rec.tx.CreatedAt,
			ExpirationDate: expires,
			IsActive:       true,
			TransactionID:  txID,
		})
	}
	writeJSON(w, http.StatusOK, subs)
}

func (b *Backend) transactions(w http.ResponseWriter, r *http.Request, userID int64) {
	filter := api.Status(r.URL.Query().Get("status"))
	b.mu.Lock()
	defer b.mu.Unlock()
	txs := make([]api.Transaction, 0)
	for _, txID := range b.txOrder {
		rec := b.txs[txID]
		if rec.userID != userID || (filter != "" && rec.tx.Status != filter) {
			continue
		}
		txs = append(txs, rec.tx)
	}
	writeJSON(w, http.StatusOK, txs)
}

func (b *Backend) transaction(w http.ResponseWriter, r *http.Request, userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.txs[r.PathValue("tx")]
	if !ok || rec.userID != userID {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	writeJSON(w, http.StatusOK, rec.tx)
}

func (b *Backend) balance(w http.ResponseWriter, _ *http.Request, userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u := b.userByID(userID)
	writeJSON(w, http.StatusOK, api.Account{
		ID:      userID,
		Balance: api.Amount(strconv.FormatFloat(u.balance, 'f', 2, 64)),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
