package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/walletgate/core"
	"github.com/layer-3/walletgate/internal/eth"
)

// MemoryStore is an in-memory implementation of the IdentityStore interface
type MemoryStore struct {
	byAddress map[string]*core.Identity
	byID      map[string]*core.Identity
	mu        sync.Mutex
}

// NewMemoryStore creates a new in-memory identity store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byAddress: make(map[string]*core.Identity),
		byID:      make(map[string]*core.Identity),
	}
}

// FindOrCreate returns the identity for address, creating it on first use
func (s *MemoryStore) FindOrCreate(ctx context.Context, address string) (*core.Identity, error) {
	key, err := eth.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byAddress[key]; ok {
		found := *existing
		return &found, nil
	}

	created := &core.Identity{
		ID:            uuid.New().String(),
		WalletAddress: checksum(key),
		CreatedAt:     time.Now().UTC(),
	}
	s.byAddress[key] = created
	s.byID[created.ID] = created

	result := *created
	result.IsNewUser = true
	return &result, nil
}

// Get returns the identity with the given id
func (s *MemoryStore) Get(ctx context.Context, id string) (*core.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	found := *existing
	return &found, nil
}
