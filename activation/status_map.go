// Package activation tracks activation transactions from the accepted request to a
// terminal status.
package activation

import (
	"sync"
	"time"

	"github.com/jrsteele09/offers-dashboard/api"
)

// Entry is the last known state of one activation transaction
type Entry struct {
	TransactionID string
	OfferID       api.OfferID
	Status        api.Status
	Amount        api.Amount
	UpdatedAt     time.Time
	// PollErr is set when polling stopped before a terminal status was seen
	PollErr error

	seq uint64
}

// Unknown reports whether polling gave up before the outcome was known
func (e Entry) Unknown() bool {
	return e.PollErr != nil && !e.Status.IsTerminal()
}

// MergeResult describes what a Merge did to the map
type MergeResult struct {
	Changed bool
	// BecameTerminal is true only for the merge that moved the entry out of PENDING
	BecameTerminal bool
	Entry          Entry
}

// StatusMap maps transaction ids to entries. Status changes follow the one-way
// PENDING → SUCCESS | FAILED machine: terminal entries are never modified.
type StatusMap struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	seq     uint64
	now     func() time.Time
}

func NewStatusMap() *StatusMap {
	return &StatusMap{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
}

// Seed records the PENDING entry of a freshly accepted activation. An existing entry
// for the same transaction is left alone.
func (m *StatusMap) Seed(transactionID string, offerID api.OfferID, amount api.Amount) Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[transactionID]; ok {
		return *e
	}
	m.seq++
	e := &Entry{
		TransactionID: transactionID,
		OfferID:       offerID,
		Status:        api.StatusPending,
		Amount:        amount,
		UpdatedAt:     m.now(),
		seq:           m.seq,
	}
	m.entries[transactionID] = e
	return *e
}

// Merge applies a status record fetched from the backend
func (m *StatusMap) Merge(rec api.ActivationStatus) MergeResult {
	if rec.TransactionID == "" || !rec.Status.IsValid() {
		return MergeResult{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[rec.TransactionID]
	if !ok {
		m.seq++
		e = &Entry{TransactionID: rec.TransactionID, Status: api.StatusPending, seq: m.seq}
		m.entries[rec.TransactionID] = e
	} else if !e.Status.CanTransitionTo(rec.Status) {
		return MergeResult{Entry: *e}
	}

	changed := !ok || e.Status != rec.Status
	if rec.OfferID != 0 && rec.OfferID != e.OfferID {
		e.OfferID = rec.OfferID
		changed = true
	}
	if rec.Amount != "" && rec.Amount != e.Amount {
		e.Amount = rec.Amount
		changed = true
	}
	e.Status = rec.Status
	e.UpdatedAt = rec.UpdatedAt
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = m.now()
	}

	return MergeResult{
		Changed:        changed,
		BecameTerminal: rec.Status.IsTerminal(),
		Entry:          *e,
	}
}

// SetPollErr records why polling stopped. Terminal entries are not touched.
func (m *StatusMap) SetPollErr(transactionID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[transactionID]; ok && !e.Status.IsTerminal() {
		e.PollErr = err
	}
}

func (m *StatusMap) Get(transactionID string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[transactionID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// ForOffer returns the most recently created entry for the offer
func (m *StatusMap) ForOffer(id api.OfferID) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *Entry
	for _, e := range m.entries {
		if e.OfferID == id && (latest == nil || e.seq > latest.seq) {
			latest = e
		}
	}
	if latest == nil {
		return Entry{}, false
	}
	return *latest, true
}

func (m *StatusMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
