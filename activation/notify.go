package activation

import (
	"sync"
	"time"

	"github.com/jrsteele09/offers-dashboard/api"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

const (
	MsgActivated        = "Offer activated successfully!"
	MsgActivationFailed = "Offer activation failed"
	MsgStatusUnknown    = "Could not confirm activation status"

	defaultInboxLimit = 50
)

// Notification is a transient message for the user, shown once
type Notification struct {
	Level         Level
	Message       string
	TransactionID string
	OfferID       api.OfferID
	At            time.Time
}

type Notifier interface {
	Notify(Notification)
}

type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) {
	f(n)
}

// Inbox queues notifications until a view drains them. The oldest are dropped past the limit.
type Inbox struct {
	mu    sync.Mutex
	items []Notification
	limit int
}

func NewInbox() *Inbox {
	return &Inbox{limit: defaultInboxLimit}
}

func (i *Inbox) Notify(n Notification) {
	if n.At.IsZero() {
		n.At = time.Now()
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.items = append(i.items, n)
	if over := len(i.items) - i.limit; over > 0 {
		i.items = append([]Notification(nil), i.items[over:]...)
	}
}

// Drain returns the queued notifications in arrival order and empties the inbox
func (i *Inbox) Drain() []Notification {
	i.mu.Lock()
	defer i.mu.Unlock()
	items := i.items
	i.items = nil
	return items
}

func (i *Inbox) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.items)
}
