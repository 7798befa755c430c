package offers

import (
	"github.com/jrsteele09/offers-dashboard/activation"
	"github.com/jrsteele09/offers-dashboard/api"
)

// CardState is what the footer of an offer card shows
type CardState int

const (
	// CardButton shows the activate button, see Card.ButtonEnabled
	CardButton CardState = iota
	CardActivating
	CardProcessing
	CardActivated
	CardFailed
	// CardUnknown means polling stopped before the outcome was known
	CardUnknown
)

func (s CardState) String() string {
	switch s {
	case CardButton:
		return "button"
	case CardActivating:
		return "activating"
	case CardProcessing:
		return "processing"
	case CardActivated:
		return "activated"
	case CardFailed:
		return "failed"
	case CardUnknown:
		return "unknown"
	}
	return "invalid"
}

// Label is the status text of the card, empty for the button states
func (s CardState) Label() string {
	switch s {
	case CardProcessing:
		return "Processing"
	case CardActivated:
		return "Activated"
	case CardFailed:
		return "Failed"
	case CardUnknown:
		return "Status unknown"
	}
	return ""
}

type Card struct {
	Offer api.Offer
	State CardState
	// Entry is the latest activation of the offer, when there is one
	Entry *activation.Entry
}

func (c Card) ButtonEnabled() bool {
	return c.State == CardButton && c.Offer.IsActive
}

func (c Card) Price() string {
	return c.Offer.Price.Format()
}

// Created renders the creation date, e.g. "Mar 1, 2024"
func (c Card) Created() string {
	if c.Offer.CreatedAt.IsZero() {
		return ""
	}
	return c.Offer.CreatedAt.Format("Jan 2, 2006")
}

// Cards builds one card per loaded offer, in catalog order
func (b *Board) Cards() []Card {
	b.mu.Lock()
	defer b.mu.Unlock()

	cards := make([]Card, 0, len(b.offers))
	for _, offer := range b.offers {
		card := Card{Offer: offer, State: CardButton}
		if e, ok := b.statuses.ForOffer(offer.ID); ok {
			entry := e
			card.Entry = &entry
			card.State = stateOf(e)
		}
		if b.activating[offer.ID] {
			card.State = CardActivating
		}
		cards = append(cards, card)
	}
	return cards
}

func stateOf(e activation.Entry) CardState {
	switch {
	case e.Status == api.StatusSuccess:
		return CardActivated
	case e.Status == api.StatusFailed:
		return CardFailed
	case e.Unknown():
		return CardUnknown
	default:
		return CardProcessing
	}
}

// Pending reports whether any card still waits on the backend
func (b *Board) Pending() bool {
	for _, c := range b.Cards() {
		if c.State == CardActivating || c.State == CardProcessing {
			return true
		}
	}
	return false
}
