package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// OfferID is the canonical identity of an offer.
// The backend sends it as a JSON number on offers and as a string on activation status
// records ("offer_id": "7"). Both decode to the same OfferID, so comparisons never
// depend on the wire representation.
type OfferID int64

// ParseOfferID parses the decimal form used in URLs and form values.
// Example: ParseOfferID("7") == OfferID(7)
func ParseOfferID(s string) (OfferID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid offer id %q: %w", s, err)
	}
	return OfferID(n), nil
}

func (id OfferID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

func (id *OfferID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseOfferID(s)
		if err != nil {
			return err
		}
		*id = parsed
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid offer id %s: %w", data, err)
	}
	*id = OfferID(n)
	return nil
}

// Amount is a decimal currency amount, kept as its decimal text.
// Example: "9.99"
// The backend serializes DecimalFields as strings and floats as numbers; both decode.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return fmt.Errorf("invalid amount %q", s)
		}
		*a = Amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid amount %s: %w", data, err)
	}
	*a = Amount(n.String())
	return nil
}

// Float64 returns the amount as a float, zero when empty or malformed
func (a Amount) Float64() float64 {
	f, err := strconv.ParseFloat(string(a), 64)
	if err != nil {
		return 0
	}
	return f
}

// Format renders the amount as US dollars, e.g. "$1,234.50"
func (a Amount) Format() string {
	if a == "" {
		return "N/A"
	}
	cents := int64(math.Round(a.Float64() * 100))
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(r)
	}
	return fmt.Sprintf("%s$%s.%02d", sign, grouped.String(), cents%100)
}

// Status is the state of an activation transaction.
// Transitions are one-directional: PENDING → SUCCESS or PENDING → FAILED.
type Status string

const (
	// StatusPending means the backend worker has not finished the activation
	StatusPending Status = "PENDING"
	// StatusSuccess means the offer is active for the user
	StatusSuccess Status = "SUCCESS"
	// StatusFailed means the activation was abandoned by the backend
	StatusFailed Status = "FAILED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// CanTransitionTo reports whether a record in state s may be replaced by next.
// Terminal states accept nothing, not even themselves.
func (s Status) CanTransitionTo(next Status) bool {
	if !next.IsValid() {
		return false
	}
	return s == StatusPending
}

// TokenPair is returned by the login endpoint.
// Example: {"access": "eyJhbGciOi...", "refresh": "eyJhbGciOi..."}
type TokenPair struct {
	// Access is the short-lived bearer credential sent on every authenticated call
	Access string `json:"access"`
	// Refresh is only ever sent back to the logout endpoint for revocation
	Refresh string `json:"refresh"`
}

// AccountSummary is the account block embedded in the profile response
type AccountSummary struct {
	Balance Amount `json:"balance"`
}

// User is the profile of the authenticated user. It is produced only by the profile
// endpoint and never modified locally.
type User struct {
	ID         int64           `json:"id"`
	Username   string          `json:"username"`
	Email      string          `json:"email"`
	FirstName  string          `json:"first_name"`
	LastName   string          `json:"last_name"`
	DateJoined time.Time       `json:"date_joined"`
	Account    *AccountSummary `json:"account,omitempty"`
}

// DisplayName prefers the full name and falls back to the username
func (u User) DisplayName() string {
	if full := strings.TrimSpace(u.FirstName + " " + u.LastName); full != "" {
		return full
	}
	return u.Username
}

// Offer is a purchasable offer (Internet, TV, ...). Read-only for the dashboard.
type Offer struct {
	ID           OfferID   `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Price        Amount    `json:"price"`
	DurationDays int       `json:"duration_days"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// ActivationResponse is returned (202 Accepted) when an activation request is queued.
// Example: {"transaction_id": "5b0c...", "message": "Activation process started", "status": "PENDING"}
type ActivationResponse struct {
	TransactionID string `json:"transaction_id"`
	Message       string `json:"message"`
	Status        Status `json:"status,omitempty"`
}

// ActivationStatus is the status record of one activation transaction.
type ActivationStatus struct {
	TransactionID string     `json:"transaction_id"`
	OfferID       OfferID    `json:"offer_id"`
	Amount        Amount     `json:"amount"`
	Status        Status     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// UnmarshalJSON reads the offer from "offer_id" and falls back to the numeric "offer"
// field used by the transaction serializer.
func (s *ActivationStatus) UnmarshalJSON(data []byte) error {
	type plain ActivationStatus
	var aux struct {
		plain
		OfferID *OfferID `json:"offer_id"`
		Offer   *OfferID `json:"offer"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*s = ActivationStatus(aux.plain)
	switch {
	case aux.OfferID != nil:
		s.OfferID = *aux.OfferID
	case aux.Offer != nil:
		s.OfferID = *aux.Offer
	}
	return nil
}

// UserOffer is an offer the user holds (a subscription)
type UserOffer struct {
	ID             int64     `json:"id"`
	OfferID        OfferID   `json:"offer"`
	Offer          *Offer    `json:"offer_details,omitempty"`
	ActivationDate time.Time `json:"activation_date"`
	ExpirationDate time.Time `json:"expiration_date"`
	IsActive       bool      `json:"is_active"`
	TransactionID  string    `json:"transaction_id"`
}

// TimeRemaining renders the time left before expiration, rounded up to whole days.
// Example: "3 days", "Expired"
func (u UserOffer) TimeRemaining(now time.Time) string {
	left := u.ExpirationDate.Sub(now)
	if left <= 0 {
		return "Expired"
	}
	days := int(math.Ceil(left.Hours() / 24))
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

// Transaction is the account-level view of an activation
type Transaction struct {
	ID            int64      `json:"id"`
	TransactionID string     `json:"transaction_id"`
	OfferID       OfferID    `json:"offer"`
	OfferDetails  *Offer     `json:"offer_details,omitempty"`
	Amount        Amount     `json:"amount"`
	Status        Status     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// Account holds the user's balance
type Account struct {
	ID        int64     `json:"id"`
	Balance   Amount    `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
