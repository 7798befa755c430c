package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/jrsteele09/offers-dashboard/server/loginsession"
	"github.com/rs/zerolog/log"
)

const sessionIDKey = "session_id"

// loginSession returns the dashboard session of the browser, issuing a new session
// cookie when the browser has none (or an unreadable one)
func (s *Server) loginSession(w http.ResponseWriter, r *http.Request) (*loginsession.Session, error) {
	// Get returns a fresh session alongside the decode error for tampered cookies
	cs, err := s.cookies.Get(r, s.config.GetCookieName())
	if err != nil {
		log.Debug().Err(err).Msg("Discarding unreadable session cookie")
	}

	id, _ := cs.Values[sessionIDKey].(string)
	if _, parseErr := uuid.Parse(id); parseErr != nil {
		id = uuid.NewString()
		cs.Values[sessionIDKey] = id
		if err := cs.Save(r, w); err != nil {
			return nil, err
		}
	}
	return s.loginSessions.GetOrCreate(id)
}

// expireSessionCookie removes the browser's session cookie
func (s *Server) expireSessionCookie(w http.ResponseWriter, r *http.Request) {
	cs, _ := s.cookies.Get(r, s.config.GetCookieName())
	cs.Options.MaxAge = -1
	if err := cs.Save(r, w); err != nil {
		log.Err(err).Msg("Failed to expire session cookie")
	}
}

// redirectSuccess helper for htmx-aware success redirects
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent) // 204 - no content, just redirect instruction
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// redirectWithError helper for htmx-aware error redirects
func (s *Server) redirectWithError(w http.ResponseWriter, r *http.Request, path, errorMsg string) {
	s.flashError(w, r, errorMsg)
	redirectSuccess(w, r, path)
}

// isHTMXRequest checks if the request was initiated by HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
