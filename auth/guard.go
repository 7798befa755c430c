package auth

// Decision is what a protected view does with the current session
type Decision int

const (
	// DecisionPlaceholder renders a loading placeholder and does not navigate
	DecisionPlaceholder Decision = iota
	DecisionAllow
	DecisionRedirectLogin
)

func (d Decision) String() string {
	switch d {
	case DecisionPlaceholder:
		return "placeholder"
	case DecisionAllow:
		return "allow"
	case DecisionRedirectLogin:
		return "redirect-login"
	}
	return "unknown"
}

// Decide is the route guard. It has no state of its own.
func Decide(state SessionState) Decision {
	switch state {
	case StateResurrecting:
		return DecisionPlaceholder
	case StateAuthenticated:
		return DecisionAllow
	default:
		return DecisionRedirectLogin
	}
}
