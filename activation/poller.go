package activation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/offers-dashboard/api"
	apperrors "github.com/jrsteele09/offers-dashboard/internal/errors"
	"github.com/rs/zerolog/log"
)

const DefaultInterval = 3 * time.Second

// StatusFetcher fetches one status record. *api.Client implements it.
type StatusFetcher interface {
	ActivationStatus(ctx context.Context, transactionID string) (*api.ActivationStatus, error)
}

// Poller polls activation status on a fixed interval until the status is terminal
type Poller struct {
	fetcher  StatusFetcher
	statuses *StatusMap
	notifier Notifier
	interval time.Duration
}

func NewPoller(fetcher StatusFetcher, statuses *StatusMap, notifier Notifier, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if notifier == nil {
		notifier = NotifierFunc(func(Notification) {})
	}
	return &Poller{
		fetcher:  fetcher,
		statuses: statuses,
		notifier: notifier,
		interval: interval,
	}
}

// Start polls transactionID in a new goroutine. The first fetch happens one interval
// after Start, then once per tick. Ticks that arrive while a fetch is in flight are
// dropped, so fetches never overlap.
func (p *Poller) Start(ctx context.Context, transactionID string) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		TransactionID: transactionID,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
	go p.run(ctx, h)
	return h
}

func (p *Poller) run(ctx context.Context, h *Handle) {
	defer close(h.done)
	defer h.cancel()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		done, err := p.poll(ctx, h.TransactionID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			h.setErr(err)
			p.statuses.SetPollErr(h.TransactionID, err)
			entry, _ := p.statuses.Get(h.TransactionID)
			log.Warn().Err(err).Str("transaction_id", h.TransactionID).Msg("Activation status polling stopped")
			p.notifier.Notify(Notification{
				Level:         LevelError,
				Message:       MsgStatusUnknown,
				TransactionID: h.TransactionID,
				OfferID:       entry.OfferID,
			})
			return
		}
		if done {
			return
		}
	}
}

// poll performs one fetch and reports whether the transaction is settled
func (p *Poller) poll(ctx context.Context, transactionID string) (bool, error) {
	rec, err := p.fetcher.ActivationStatus(ctx, transactionID)
	if err != nil {
		return false, fmt.Errorf("%w: %w", apperrors.ErrPollFailed, err)
	}
	if rec.TransactionID == "" {
		rec.TransactionID = transactionID
	}

	res := p.statuses.Merge(*rec)
	log.Debug().
		Str("transaction_id", transactionID).
		Str("status", string(res.Entry.Status)).
		Bool("changed", res.Changed).
		Msg("Activation status polled")

	if res.BecameTerminal {
		n := Notification{
			Level:         LevelSuccess,
			Message:       MsgActivated,
			TransactionID: transactionID,
			OfferID:       res.Entry.OfferID,
		}
		if res.Entry.Status == api.StatusFailed {
			n.Level = LevelError
			n.Message = MsgActivationFailed
		}
		p.notifier.Notify(n)
		return true, nil
	}
	return res.Entry.Status.IsTerminal(), nil
}

// Handle controls one polling loop
type Handle struct {
	TransactionID string

	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Stop cancels the loop and any fetch in flight. It does not wait; use Done for that.
func (h *Handle) Stop() {
	h.cancel()
}

// Done is closed when the loop has exited
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err is the error that stopped polling, nil after a terminal status or Stop
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *Handle) setErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
}
