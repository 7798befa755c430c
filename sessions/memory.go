package sessions

import (
	"fmt"
	"sync"
)

// MemoryStore is an in-memory Store; it lives as long as the process
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemoryStore) Set(key, value string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Clear(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// MemoryProvider hands out one MemoryStore per namespace
type MemoryProvider struct {
	mu     sync.Mutex
	stores map[string]*MemoryStore
}

var _ Provider = (*MemoryProvider)(nil)

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{stores: make(map[string]*MemoryStore)}
}

func (p *MemoryProvider) Open(namespace string) (Store, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.stores[namespace]
	if !ok {
		s = NewMemoryStore()
		p.stores[namespace] = s
	}
	return s, nil
}

func (p *MemoryProvider) Remove(namespace string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.stores, namespace)
	return nil
}
