package loginsession

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/offers-dashboard/api"
	"github.com/jrsteele09/offers-dashboard/auth"
	"github.com/jrsteele09/offers-dashboard/offers"
	"github.com/jrsteele09/offers-dashboard/sessions"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Options configure the sessions the repo assembles
type Options struct {
	BaseURL      string
	Timeout      time.Duration
	PollInterval time.Duration
}

type entry struct {
	session  *Session
	lastSeen time.Time
}

// InMemoryLoginSessionRepo holds live sessions in memory; their tokens live in the
// sessions.Provider so an evicted session resurrects on the next request.
type InMemoryLoginSessionRepo struct {
	provider sessions.Provider
	opts     Options
	group    singleflight.Group
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*entry
}

func NewInMemoryLoginSessionRepo(provider sessions.Provider, opts Options) *InMemoryLoginSessionRepo {
	return &InMemoryLoginSessionRepo{
		provider: provider,
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

var _ Repo = (*InMemoryLoginSessionRepo)(nil)

func (r *InMemoryLoginSessionRepo) Get(sessionID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.session, true
}

func (r *InMemoryLoginSessionRepo) GetOrCreate(sessionID string) (*Session, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, fmt.Errorf("[loginsession GetOrCreate] invalid session id: %w", err)
	}
	if s, ok := r.Get(sessionID); ok {
		return s, nil
	}

	// concurrent first requests of one browser share a single assembly
	v, err, _ := r.group.Do(sessionID, func() (interface{}, error) {
		if s, ok := r.Get(sessionID); ok {
			return s, nil
		}
		s, err := r.assemble(sessionID)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.sessions[sessionID] = &entry{session: s, lastSeen: r.now()}
		r.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (r *InMemoryLoginSessionRepo) assemble(sessionID string) (*Session, error) {
	store, err := r.provider.Open(sessionID)
	if err != nil {
		return nil, fmt.Errorf("[loginsession assemble] open store: %w", err)
	}

	var clientOpts []api.Option
	if r.opts.Timeout > 0 {
		clientOpts = append(clientOpts, api.WithTimeout(r.opts.Timeout))
	}
	manager, client := auth.NewClientSession(r.opts.BaseURL, store, clientOpts...)

	var boardOpts []offers.Option
	if r.opts.PollInterval > 0 {
		boardOpts = append(boardOpts, offers.WithPollInterval(r.opts.PollInterval))
	}

	s := &Session{
		ID:        sessionID,
		Store:     store,
		Manager:   manager,
		Client:    client,
		Board:     offers.NewBoard(client, boardOpts...),
		CreatedAt: r.now(),
	}

	go func() {
		if err := manager.Resurrect(context.Background()); err != nil {
			log.Debug().Err(err).Str("session_id", sessionID).Msg("Session not resurrected")
		}
	}()
	return s, nil
}

func (r *InMemoryLoginSessionRepo) Delete(sessionID string) error {
	r.mu.Lock()
	e, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	if ok {
		e.session.Board.Close()
	}
	if err := r.provider.Remove(sessionID); err != nil {
		return fmt.Errorf("[loginsession Delete] %w", err)
	}
	return nil
}

func (r *InMemoryLoginSessionRepo) Evict(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	var idle []*Session
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) && e.session.Board.Polling() == 0 {
			idle = append(idle, e.session)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range idle {
		s.Board.Close()
	}
	return len(idle)
}

func (r *InMemoryLoginSessionRepo) Close() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range all {
		e.session.Board.Close()
	}
}

func (r *InMemoryLoginSessionRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// IDs lists the ids of the sessions currently held in memory
func (r *InMemoryLoginSessionRepo) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}
