package server

import (
	"net/http"

	"github.com/jrsteele09/offers-dashboard/api"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type dashboardContent struct {
	Balance       *api.Account
	Subscriptions []api.UserOffer
	Expiring      []api.UserOffer
	LoadError     string
}

// DashboardHandler renders the overview: balance, active subscriptions and the
// subscriptions about to expire, fetched concurrently
func (s *Server) DashboardHandler(pages *pageSet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		content := dashboardContent{}

		g, ctx := errgroup.WithContext(r.Context())
		g.Go(func() error {
			account, err := sess.Client.Balance(ctx)
			content.Balance = account
			return err
		})
		g.Go(func() error {
			subs, err := sess.Client.Subscriptions(ctx)
			content.Subscriptions = subs
			return err
		})
		g.Go(func() error {
			expiring, err := sess.Client.ExpiringOffers(ctx)
			content.Expiring = expiring
			return err
		})
		if err := g.Wait(); err != nil {
			log.Err(err).Str("session_id", sess.ID).Msg("Failed to load dashboard data")
			content.LoadError = "Failed to load dashboard data"
		}

		pages.render(w, http.StatusOK, "dashboard.html", s.pageData(w, r, sess, "dashboard", "Dashboard", content))
	}
}
