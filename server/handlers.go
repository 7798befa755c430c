package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jrsteele09/offers-dashboard/activation"
	"github.com/jrsteele09/offers-dashboard/api"
	"github.com/jrsteele09/offers-dashboard/auth"
	"github.com/jrsteele09/offers-dashboard/server/loginsession"
	"github.com/jrsteele09/offers-dashboard/sessions"
)

// PageData is handed to layout.html; Content carries the page's own data
type PageData struct {
	AppName       string
	PageTitle     string
	ActivePage    string
	User          *api.User
	Invalidated   bool
	ExpiredNotice string
	TokenExpiry   time.Time
	Error         string
	Notifications []activation.Notification
	Now           time.Time
	Content       any
}

// pageData consumes the pending flash message, so call it before writing to w
func (s *Server) pageData(w http.ResponseWriter, r *http.Request, sess *loginsession.Session, activePage, title string, content any) PageData {
	data := PageData{
		AppName:       s.config.GetAppName(),
		PageTitle:     title,
		ActivePage:    activePage,
		User:          sess.Manager.User(),
		Invalidated:   sess.Manager.Invalidated(),
		Error:         s.takeFlashError(w, r),
		Notifications: sess.Board.Notifications(),
		Now:           s.now(),
		Content:       content,
	}
	if data.Invalidated {
		data.ExpiredNotice = auth.MsgSessionExpired
	}
	if access, ok := sess.Store.Get(sessions.AccessTokenKey); ok {
		if exp, err := auth.AccessTokenExpiry(access); err == nil {
			data.TokenExpiry = exp
		}
	}
	return data
}

// IndexHandler sends visitors to the dashboard; the guard there decides the rest
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, RouteDashboard, http.StatusSeeOther)
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
			"app":    s.config.GetAppName(),
		})
	}
}
