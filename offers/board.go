// Package offers is the offer activation view model: the offer list of one session,
// the activations it started, and the card state rendered for each offer.
package offers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/offers-dashboard/activation"
	"github.com/jrsteele09/offers-dashboard/api"
	apperrors "github.com/jrsteele09/offers-dashboard/internal/errors"
	"github.com/rs/zerolog/log"
)

const (
	MsgLoadFailed       = "Failed to load offers"
	MsgActivationQueued = "Activation started successfully!"
	MsgActivateFailed   = "Failed to activate offer"
	MsgRenewalQueued    = "Renewal started successfully!"
	MsgRenewFailed      = "Failed to renew offer"
)

// Catalog is the part of the backend a board uses. *api.Client implements it.
type Catalog interface {
	ListOffers(ctx context.Context) ([]api.Offer, error)
	ActivateOffer(ctx context.Context, id api.OfferID) (*api.ActivationResponse, error)
	RenewOffer(ctx context.Context, id api.OfferID) (*api.ActivationResponse, error)
	activation.StatusFetcher
}

type Option func(*Board)

// WithPollInterval sets the activation status polling interval
func WithPollInterval(d time.Duration) Option {
	return func(b *Board) {
		b.interval = d
	}
}

// WithNotifier forwards every notification to n in addition to the board's inbox
func WithNotifier(n activation.Notifier) Option {
	return func(b *Board) {
		b.forward = n
	}
}

// Board is safe for concurrent use. Pollers it starts outlive the request that started
// them and run until a terminal status, a poll error, or Close.
type Board struct {
	catalog  Catalog
	statuses *activation.StatusMap
	inbox    *activation.Inbox
	poller   *activation.Poller
	interval time.Duration
	forward  activation.Notifier

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	offers     []api.Offer
	activating map[api.OfferID]bool
	handles    map[string]*activation.Handle
	closed     bool
}

func NewBoard(catalog Catalog, opts ...Option) *Board {
	b := &Board{
		catalog:    catalog,
		statuses:   activation.NewStatusMap(),
		inbox:      activation.NewInbox(),
		interval:   activation.DefaultInterval,
		activating: make(map[api.OfferID]bool),
		handles:    make(map[string]*activation.Handle),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())
	b.poller = activation.NewPoller(catalog, b.statuses, activation.NotifierFunc(b.notify), b.interval)
	return b
}

func (b *Board) notify(n activation.Notification) {
	b.inbox.Notify(n)
	if b.forward != nil {
		b.forward.Notify(n)
	}
}

// Load replaces the board's offers with the catalog's current list
func (b *Board) Load(ctx context.Context) error {
	offers, err := b.catalog.ListOffers(ctx)
	if err != nil {
		log.Err(err).Msg("Error loading offers")
		b.notify(activation.Notification{Level: activation.LevelError, Message: MsgLoadFailed})
		return fmt.Errorf("[offers Load] %w", err)
	}
	b.mu.Lock()
	b.offers = offers
	b.mu.Unlock()
	return nil
}

// Offers returns the loaded offers in catalog order
func (b *Board) Offers() []api.Offer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]api.Offer(nil), b.offers...)
}

func (b *Board) Statuses() *activation.StatusMap {
	return b.statuses
}

// Notifications drains the notifications queued since the last call
func (b *Board) Notifications() []activation.Notification {
	return b.inbox.Drain()
}

// Activate requests activation of a loaded, active offer and starts polling its status
func (b *Board) Activate(ctx context.Context, id api.OfferID) (*api.ActivationResponse, error) {
	b.mu.Lock()
	offer, err := b.checkActivatable(id)
	if err != nil {
		b.mu.Unlock()
		return nil, fmt.Errorf("[offers Activate] %w", err)
	}
	b.activating[id] = true
	b.mu.Unlock()

	resp, err := b.catalog.ActivateOffer(ctx, id)
	if err != nil {
		b.requestFailed(id, err, MsgActivateFailed)
		return nil, fmt.Errorf("[offers Activate] %w: %w", apperrors.ErrActivationRejected, err)
	}
	b.track(id, offer.Price, resp, MsgActivationQueued)
	return resp, nil
}

// Renew requests renewal of an offer the user holds. It is tracked like an activation.
func (b *Board) Renew(ctx context.Context, id api.OfferID) (*api.ActivationResponse, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, fmt.Errorf("[offers Renew] %w: board closed", apperrors.ErrInternal)
	}
	if b.inFlightLocked(id) {
		b.mu.Unlock()
		return nil, fmt.Errorf("[offers Renew] %w", apperrors.ErrActivationInFlight)
	}
	var price api.Amount
	if offer := b.findLocked(id); offer != nil {
		price = offer.Price
	}
	b.activating[id] = true
	b.mu.Unlock()

	resp, err := b.catalog.RenewOffer(ctx, id)
	if err != nil {
		b.requestFailed(id, err, MsgRenewFailed)
		return nil, fmt.Errorf("[offers Renew] %w: %w", apperrors.ErrActivationRejected, err)
	}
	b.track(id, price, resp, MsgRenewalQueued)
	return resp, nil
}

// checkActivatable must be called with b.mu held
func (b *Board) checkActivatable(id api.OfferID) (*api.Offer, error) {
	if b.closed {
		return nil, fmt.Errorf("%w: board closed", apperrors.ErrInternal)
	}
	offer := b.findLocked(id)
	if offer == nil {
		return nil, apperrors.ErrOfferNotFound
	}
	if !offer.IsActive {
		return nil, fmt.Errorf("%w: %w: offer %s", apperrors.ErrActivationRejected, apperrors.ErrOfferInactive, id)
	}
	if b.inFlightLocked(id) {
		return nil, apperrors.ErrActivationInFlight
	}
	return offer, nil
}

func (b *Board) findLocked(id api.OfferID) *api.Offer {
	for i := range b.offers {
		if b.offers[i].ID == id {
			o := b.offers[i]
			return &o
		}
	}
	return nil
}

// inFlightLocked reports a request in progress or a transaction still being polled
func (b *Board) inFlightLocked(id api.OfferID) bool {
	if b.activating[id] {
		return true
	}
	e, ok := b.statuses.ForOffer(id)
	return ok && e.Status == api.StatusPending && !e.Unknown()
}

func (b *Board) requestFailed(id api.OfferID, err error, fallback string) {
	b.mu.Lock()
	delete(b.activating, id)
	b.mu.Unlock()

	msg := api.ServerMessage(err)
	if msg == "" {
		msg = fallback
	}
	log.Err(err).Str("offer_id", id.String()).Msg("Error activating offer")
	b.notify(activation.Notification{Level: activation.LevelError, Message: msg, OfferID: id})
}

func (b *Board) track(id api.OfferID, price api.Amount, resp *api.ActivationResponse, msg string) {
	b.statuses.Seed(resp.TransactionID, id, price)
	b.notify(activation.Notification{
		Level:         activation.LevelSuccess,
		Message:       msg,
		TransactionID: resp.TransactionID,
		OfferID:       id,
	})

	b.mu.Lock()
	defer b.mu.Unlock()
	// the seeded entry takes over from the marker as the in-flight record
	delete(b.activating, id)
	if b.closed {
		return
	}
	h := b.poller.Start(b.ctx, resp.TransactionID)
	b.handles[resp.TransactionID] = h
	go func() {
		<-h.Done()
		b.mu.Lock()
		delete(b.handles, h.TransactionID)
		b.mu.Unlock()
	}()

	log.Info().
		Str("offer_id", id.String()).
		Str("transaction_id", resp.TransactionID).
		Msg("Activation queued")
}

// Polling reports how many pollers are still running
func (b *Board) Polling() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handles)
}

// Close stops every poller the board started and waits for them to exit
func (b *Board) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	handles := make([]*activation.Handle, 0, len(b.handles))
	for _, h := range b.handles {
		handles = append(handles, h)
	}
	b.mu.Unlock()

	b.cancel()
	for _, h := range handles {
		<-h.Done()
	}
	b.mu.Lock()
	clear(b.handles)
	b.mu.Unlock()
}
