package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/tonbridge/core"
	"github.com/layer-3/tonbridge/ports"
)

// MemoryStore is an in-memory implementation of the Registry interface
type MemoryStore struct {
	pending map[string]core.PendingAuth
	mu      sync.RWMutex
	now     func() time.Time
}

// MemoryOption configures a MemoryStore
type MemoryOption func(*MemoryStore)

// WithClock sets the time source used for expiry checks
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates a new in-memory registry
func NewMemoryStore(opts ...MemoryOption) ports.Registry {
	return newMemoryStore(opts...)
}

func newMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		pending: make(map[string]core.PendingAuth),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put stores a pending handshake, replacing any previous one for the chat
func (s *MemoryStore) Put(ctx context.Context, pending core.PendingAuth) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep()
	s.pending[pending.ChatID] = pending

	return nil
}

// Get returns the live pending handshake for a chat
func (s *MemoryStore) Get(ctx context.Context, chatID string) (core.PendingAuth, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pending, exists := s.pending[chatID]
	if !exists || pending.Expired(s.now()) {
		return core.PendingAuth{}, false, nil
	}

	return pending, true, nil
}

// Consume removes the entry if it still carries the given state
func (s *MemoryStore) Consume(ctx context.Context, chatID, state string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, exists := s.pending[chatID]
	if !exists || pending.Expired(s.now()) || pending.State != state {
		return false, nil
	}

	delete(s.pending, chatID)
	return true, nil
}

// sweep drops expired entries; callers hold the write lock
func (s *MemoryStore) sweep() {
	now := s.now()
	for chatID, pending := range s.pending {
		if pending.Expired(now) {
			delete(s.pending, chatID)
		}
	}
}
