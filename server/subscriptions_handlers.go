package server

import (
	"net/http"

	"github.com/jrsteele09/offers-dashboard/api"
	apperrors "github.com/jrsteele09/offers-dashboard/internal/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type subscriptionsContent struct {
	Subscriptions []api.UserOffer
	Expiring      map[string]bool
	Transactions  []api.Transaction
	LoadError     string
}

// SubscriptionsHandler lists the user's offers, marks the ones about to expire, and
// shows the transaction history
func (s *Server) SubscriptionsHandler(pages *pageSet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		content := subscriptionsContent{Expiring: make(map[string]bool)}

		var expiring []api.UserOffer
		g, ctx := errgroup.WithContext(r.Context())
		g.Go(func() error {
			subs, err := sess.Client.Subscriptions(ctx)
			content.Subscriptions = subs
			return err
		})
		g.Go(func() error {
			var err error
			expiring, err = sess.Client.ExpiringOffers(ctx)
			return err
		})
		g.Go(func() error {
			txs, err := sess.Client.Transactions(ctx, api.Status(r.URL.Query().Get("status")))
			content.Transactions = txs
			return err
		})
		if err := g.Wait(); err != nil {
			log.Err(err).Str("session_id", sess.ID).Msg("Failed to load subscriptions")
			content.LoadError = "Failed to load subscriptions"
		}
		for _, e := range expiring {
			content.Expiring[e.TransactionID] = true
		}

		pages.render(w, http.StatusOK, "subscriptions.html", s.pageData(w, r, sess, "subscriptions", "My Subscriptions", content))
	}
}

// TransactionHandler shows one transaction of the user
func (s *Server) TransactionHandler(pages *pageSet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		tx, err := sess.Client.Transaction(r.Context(), r.PathValue("transaction_id"))

		status := http.StatusOK
		data := s.pageData(w, r, sess, "subscriptions", "Transaction", tx)
		switch {
		case apperrors.Is(err, apperrors.ErrNotFound):
			status = http.StatusNotFound
			data.Error = "Transaction not found"
		case err != nil:
			log.Err(err).Msg("Failed to load transaction")
			status = http.StatusBadGateway
			data.Error = "Failed to load transaction"
		}
		pages.render(w, status, "transaction.html", data)
	}
}
