package server

import (
	"net/http"

	"github.com/jrsteele09/offers-dashboard/activation"
	"github.com/jrsteele09/offers-dashboard/api"
	apperrors "github.com/jrsteele09/offers-dashboard/internal/errors"
	"github.com/jrsteele09/offers-dashboard/offers"
	"github.com/jrsteele09/offers-dashboard/server/loginsession"
)

type offersContent struct {
	Cards   []offers.Card
	Pending bool
	Balance api.Amount
	// Notifications are rendered inside the cards fragment so HTMX swaps show them
	Notifications []activation.Notification
}

func (s *Server) offersContent(sess *loginsession.Session, notes []activation.Notification) offersContent {
	c := offersContent{
		Cards:         sess.Board.Cards(),
		Pending:       sess.Board.Pending(),
		Notifications: notes,
	}
	if u := sess.Manager.User(); u != nil && u.Account != nil {
		c.Balance = u.Account.Balance
	}
	return c
}

// OffersHandler loads the catalog and renders the offer cards
func (s *Server) OffersHandler(pages *pageSet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		// a load failure queues its own notification and keeps the previous list
		_ = sess.Board.Load(r.Context())

		data := s.pageData(w, r, sess, "offers", "Available Offers", nil)
		data.Content = s.offersContent(sess, nil)
		pages.render(w, http.StatusOK, "offers.html", data)
	}
}

// OfferCardsHandler renders the cards fragment polled by HTMX while activations are pending
func (s *Server) OfferCardsHandler(pages *pageSet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		pages.renderFragment(w, "offers.html", "cards", s.offersContent(sess, sess.Board.Notifications()))
	}
}

func (s *Server) ActivateOfferHandler(pages *pageSet) http.HandlerFunc {
	return s.offerActionHandler(pages, RouteOffers, func(sess *loginsession.Session, r *http.Request, id api.OfferID) error {
		_, err := sess.Board.Activate(r.Context(), id)
		return err
	})
}

func (s *Server) RenewOfferHandler(pages *pageSet) http.HandlerFunc {
	return s.offerActionHandler(pages, RouteSubscriptions, func(sess *loginsession.Session, r *http.Request, id api.OfferID) error {
		_, err := sess.Board.Renew(r.Context(), id)
		return err
	})
}

// offerActionHandler runs an activation-like action on the offer named in the path.
// HTMX requests get the refreshed cards fragment, plain form posts a redirect to back.
func (s *Server) offerActionHandler(pages *pageSet, back string, action func(*loginsession.Session, *http.Request, api.OfferID) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := api.ParseOfferID(r.PathValue("id"))
		if err != nil {
			http.Error(w, "Invalid offer id", http.StatusBadRequest)
			return
		}

		sess := sessionFrom(r)
		err = action(sess, r, id)

		// failed requests already queued a notification on the board, only local
		// rejections need a message here
		rejected := offerActionMessage(err)

		if !isHTMXRequest(r) {
			if rejected != "" {
				s.redirectWithError(w, r, back, rejected)
				return
			}
			redirectSuccess(w, r, back)
			return
		}

		notes := sess.Board.Notifications()
		if rejected != "" {
			notes = append(notes, activation.Notification{Level: activation.LevelError, Message: rejected, OfferID: id})
		}
		pages.renderFragment(w, "offers.html", "cards", s.offersContent(sess, notes))
	}
}

// offerActionMessage describes an action the board refused before calling the backend.
// It is empty for no error and for failed backend requests.
func offerActionMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case apperrors.Is(err, apperrors.ErrOfferNotFound):
		return MsgOfferNotFound
	case apperrors.Is(err, apperrors.ErrActivationInFlight):
		return MsgActivationInFlight
	case apperrors.Is(err, apperrors.ErrOfferInactive):
		return MsgOfferInactive
	case apperrors.Is(err, apperrors.ErrInternal):
		return offers.MsgActivateFailed
	}
	return ""
}
