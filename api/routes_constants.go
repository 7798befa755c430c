package api

// Backend endpoint paths, relative to the API base URL (e.g. http://localhost:8000/api/v1)
const (
	// Auth
	PathLogin   = "/auth/login/"
	PathProfile = "/auth/profile/"
	PathLogout  = "/auth/logout/"

	// Offers
	PathOffers         = "/offers/"
	PathOffer          = "/offers/%s/"
	PathOffersExpiring = "/offers/expiring/"
	PathOffersRenew    = "/offers/renew/"

	// Activation
	PathActivate         = "/activation/activate/"
	PathActivationStatus = "/activation/status/%s/"

	// Account
	PathSubscriptions = "/account/subscriptions/"
	PathTransactions  = "/account/transactions/"
	PathTransaction   = "/account/transactions/%s/"
	PathBalance       = "/account/balance/"
)
