package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteIndex  = "/"
	RouteHealth = "/healthz"

	// Auth Routes - Login & Logout
	RouteLogin  = "/login"
	RouteLogout = "/logout"

	// Dashboard Routes
	RouteDashboard     = "/dashboard"
	RouteOffers        = "/offers"
	RouteOfferCards    = "/offers/cards"
	RouteOfferActivate = "/offers/{id}/activate"
	RouteOfferRenew    = "/offers/{id}/renew"
	RouteSubscriptions = "/subscriptions"
	RouteTransaction   = "/subscriptions/{transaction_id}"

	// Static Asset Routes (patterns)
	RouteStaticCSS = "/css/{file}"
)
