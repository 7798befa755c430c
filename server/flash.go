package server

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// Messages for offer actions the board refuses before calling the backend
const (
	MsgOfferNotFound      = "Offer not found"
	MsgOfferInactive      = "Offer is not active"
	MsgActivationInFlight = "Activation already in progress"
)

const flashErrorKey = "error"

// flashError carries msg to the next page render in the signed session cookie,
// so only messages the server issued are ever shown
func (s *Server) flashError(w http.ResponseWriter, r *http.Request, msg string) {
	cs, _ := s.cookies.Get(r, s.config.GetCookieName())
	cs.AddFlash(msg, flashErrorKey)
	if err := cs.Save(r, w); err != nil {
		log.Err(err).Msg("Failed to save flash message")
	}
}

// takeFlashError pops the pending error message, if any. It must run before
// anything is written to w.
func (s *Server) takeFlashError(w http.ResponseWriter, r *http.Request) string {
	cs, _ := s.cookies.Get(r, s.config.GetCookieName())
	flashes := cs.Flashes(flashErrorKey)
	if len(flashes) == 0 {
		return ""
	}
	if err := cs.Save(r, w); err != nil {
		log.Err(err).Msg("Failed to clear flash message")
	}
	msg, _ := flashes[len(flashes)-1].(string)
	return msg
}
