package server

import (
	"context"
	"net/http"
	"time"

	"github.com/jrsteele09/offers-dashboard/auth"
	"github.com/jrsteele09/offers-dashboard/server/loginsession"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeySession stores the *loginsession.Session of the request
const ContextKeySession ContextKey = "login_session"

func sessionFrom(r *http.Request) *loginsession.Session {
	sess, _ := r.Context().Value(ContextKeySession).(*loginsession.Session)
	return sess
}

// WithSession attaches the browser's dashboard session to the request context
func (s *Server) WithSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.loginSession(w, r)
		if err != nil {
			log.Err(err).Msg("Failed to load login session")
			http.Error(w, "Failed to load session", http.StatusInternalServerError)
			return
		}
		ctx := context.WithValue(r.Context(), ContextKeySession, sess)
		next(w, r.WithContext(ctx))
	}
}

// RequireSessionAuth is the route guard for dashboard pages: a placeholder while the
// session is still resurrecting, the page when authenticated, the login page otherwise
func (s *Server) RequireSessionAuth(pages *pageSet) []func(http.HandlerFunc) http.HandlerFunc {
	guard := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			sess := sessionFrom(r)
			s.waitForResurrection(r.Context(), sess.Manager)

			switch auth.Decide(sess.Manager.State()) {
			case auth.DecisionPlaceholder:
				pages.renderPlaceholder(w, r, s.config.GetAppName())
			case auth.DecisionAllow:
				next(w, r)
			default:
				redirectSuccess(w, r, RouteLogin)
			}
		}
	}
	return []func(http.HandlerFunc) http.HandlerFunc{s.WithSession, guard}
}

// waitForResurrection blocks until the manager settles, the wait limit passes, or the
// request ends
func (s *Server) waitForResurrection(ctx context.Context, m *auth.Manager) {
	if s.resurrectWait <= 0 {
		return
	}
	timer := time.NewTimer(s.resurrectWait)
	defer timer.Stop()
	select {
	case <-m.Ready():
	case <-timer.C:
	case <-ctx.Done():
	}
}
