package server

import (
	"net/http"
	"strings"
)

func (s *Server) initRoutes() error {
	pages, err := parsePages()
	if err != nil {
		return err
	}

	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	s.RegisterRouteHandler("GET /{$}", ChainMiddleware(s.IndexHandler(), s.HTMLMiddleWare()...))

	// LOGIN
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginPageHandler(pages), s.HTMLMiddleWare(s.WithSession)...))
	s.RegisterRouteHandler("POST "+RouteLogin, ChainMiddleware(s.LoginSubmissionHandler(), s.HTMLMiddleWare(s.WithSession)...))
	s.RegisterRouteHandler("GET "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare(s.WithSession)...))
	s.RegisterRouteHandler("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare(s.WithSession)...))

	// Dashboard routes (require an authenticated session)
	s.RegisterRouteHandler("GET "+RouteDashboard, ChainMiddleware(s.DashboardHandler(pages), s.HTMLMiddleWare(s.RequireSessionAuth(pages)...)...))
	s.RegisterRouteHandler("GET "+RouteOffers, ChainMiddleware(s.OffersHandler(pages), s.HTMLMiddleWare(s.RequireSessionAuth(pages)...)...))
	s.RegisterRouteHandler("GET "+RouteOfferCards, ChainMiddleware(s.OfferCardsHandler(pages), s.HTMLMiddleWare(s.RequireSessionAuth(pages)...)...))
	s.RegisterRouteHandler("POST "+RouteOfferActivate, ChainMiddleware(s.ActivateOfferHandler(pages), s.HTMLMiddleWare(s.RequireSessionAuth(pages)...)...))
	s.RegisterRouteHandler("POST "+RouteOfferRenew, ChainMiddleware(s.RenewOfferHandler(pages), s.HTMLMiddleWare(s.RequireSessionAuth(pages)...)...))
	s.RegisterRouteHandler("GET "+RouteSubscriptions, ChainMiddleware(s.SubscriptionsHandler(pages), s.HTMLMiddleWare(s.RequireSessionAuth(pages)...)...))
	s.RegisterRouteHandler("GET "+RouteTransaction, ChainMiddleware(s.TransactionHandler(pages), s.HTMLMiddleWare(s.RequireSessionAuth(pages)...)...))

	s.RegisterRouteHandler("GET "+RouteStaticCSS, ChainMiddleware(s.serveFileHandler(), s.HTMLMiddleWare(s.CacheMiddleware)...))
	return nil
}

func (s *Server) serveFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := strings.TrimPrefix(r.URL.Path, "/")
		if filePath == "" {
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
		err := StreamFile(w, filePath)
		if err != nil {
			logError("GET", filePath, err.Error())
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
	}
}
