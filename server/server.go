package server

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"strings"
	"time"

	gsessions "github.com/gorilla/sessions"
	"github.com/jrsteele09/offers-dashboard/internal/config"
	"github.com/jrsteele09/offers-dashboard/server/loginsession"
	"github.com/rs/zerolog/log"
)

const (
	cookieMaxAge     = 7 * 24 * 60 * 60
	sessionIdleLimit = 30 * time.Minute
)

type Server struct {
	env           string // Environment (e.g., "DEV", "PROD")
	mux           *http.ServeMux
	routes        []string
	config        config.Config
	cookies       *gsessions.CookieStore
	loginSessions loginsession.Repo
	resurrectWait time.Duration
	now           func() time.Time
}

func New(config config.Config, loginSessionRepo loginsession.Repo) (*Server, error) {
	secret := []byte(config.GetCookieSecret())
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("[Server New] failed to generate cookie secret: %w", err)
		}
		log.Warn().Msg("COOKIE_SECRET not set, browser sessions will not survive a restart")
	}

	cookies := gsessions.NewCookieStore(secret)
	cookies.Options = &gsessions.Options{
		Path:     "/",
		MaxAge:   cookieMaxAge,
		HttpOnly: true,
		Secure:   config.GetEnv() != "DEV",
		SameSite: http.SameSiteLaxMode,
	}

	s := &Server{
		env:           config.GetEnv(),
		mux:           http.NewServeMux(),
		config:        config,
		cookies:       cookies,
		loginSessions: loginSessionRepo,
		resurrectWait: config.GetResurrectWait(),
		now:           time.Now,
	}

	if err := s.initRoutes(); err != nil {
		return nil, fmt.Errorf("[Server New] %w", err)
	}
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// EvictIdleSessions drops in-memory sessions nobody has used for a while until done is
// closed. Their tokens stay in the session store.
func (s *Server) EvictIdleSessions(done <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if n := s.loginSessions.Evict(sessionIdleLimit); n > 0 {
				log.Debug().Int("count", n).Msg("Evicted idle sessions")
			}
		}
	}
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Info().Msgf("[%s %-7s%s] %s", methodColor(method), method, ResetColor, path)
}

func logRequest(method, path string, status int, took time.Duration) {
	log.Info().Msgf("[%s %-7s%s] %s %s%d%s %s", methodColor(method), method, ResetColor, path,
		statusColor(status), status, ResetColor, took.Round(time.Microsecond))
}

func logError(method, path, error string) {
	log.Error().Msgf("[%s %-7s%s] %s %s", methodColor(method), method, ResetColor, path, Red+error+ResetColor)
}
