package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of the Store and NonceLedger interfaces.
// Entries are swept lazily on write.
type MemoryStore struct {
	invalidatedTokens map[string]time.Time
	consumedBindings  map[string]time.Time
	mu                sync.RWMutex
	now               func() time.Time
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		invalidatedTokens: make(map[string]time.Time),
		consumedBindings:  make(map[string]time.Time),
		now:               time.Now,
	}
}

// InvalidateToken marks a token as invalidated
func (s *MemoryStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sweep(s.invalidatedTokens, now)
	s.invalidatedTokens[tokenID] = now.Add(expiry)

	return nil
}

// IsTokenInvalidated checks if a token is invalidated
func (s *MemoryStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiryTime, exists := s.invalidatedTokens[tokenID]
	if !exists {
		return false, nil
	}

	// Check if the token invalidation has expired
	if s.now().After(expiryTime) {
		return false, nil
	}

	return true, nil
}

// Consume records the binding as used and reports whether it was unused before
func (s *MemoryStore) Consume(ctx context.Context, bindingID string, expiry time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sweep(s.consumedBindings, now)
	if _, used := s.consumedBindings[bindingID]; used {
		return false, nil
	}
	s.consumedBindings[bindingID] = now.Add(expiry)

	return true, nil
}

func sweep(entries map[string]time.Time, now time.Time) {
	for k, exp := range entries {
		if now.After(exp) {
			delete(entries, k)
		}
	}
}
