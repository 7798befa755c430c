package server

import (
	"net/http"
	"net/url"

	"github.com/jrsteele09/offers-dashboard/auth"
	"github.com/rs/zerolog/log"
)

// LoginPageData contains data for rendering the login page
type LoginPageData struct {
	AppName  string
	Error    string
	Username string // Preserve username on error
}

// LoginPageHandler displays the login page (GET /login)
func (s *Server) LoginPageHandler(pages *pageSet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		s.waitForResurrection(r.Context(), sess.Manager)
		if sess.Manager.IsAuthenticated() {
			redirectSuccess(w, r, RouteDashboard)
			return
		}

		pages.renderLogin(w, LoginPageData{
			AppName:  s.config.GetAppName(),
			Error:    s.takeFlashError(w, r),
			Username: r.URL.Query().Get("username"),
		})
	}
}

// LoginSubmissionHandler processes the login form submission
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		username := r.FormValue("username")
		password := r.FormValue("password")

		sess := sessionFrom(r)
		if err := sess.Manager.Login(r.Context(), username, password); err != nil {
			s.renderLoginError(w, r, auth.LoginErrorMessage(err), username)
			return
		}

		log.Info().Str("session_id", sess.ID).Msg("Dashboard login")
		redirectSuccess(w, r, RouteDashboard)
	}
}

// LogoutHandler revokes the session's tokens, forgets the session and expires its cookie
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		sess.Manager.Logout(r.Context())

		if err := s.loginSessions.Delete(sess.ID); err != nil {
			log.Err(err).Msg("Failed to delete login session")
		}
		s.expireSessionCookie(w, r)

		redirectSuccess(w, r, RouteLogin)
	}
}

// renderLoginError redirects to login page with an error message
func (s *Server) renderLoginError(w http.ResponseWriter, r *http.Request, errorMsg, username string) {
	redirectURL := RouteLogin
	if username != "" {
		redirectURL += "?username=" + url.QueryEscape(username)
	}
	s.redirectWithError(w, r, redirectURL, errorMsg)
}
