package ports

import (
	"context"
	"time"

	"github.com/layer-3/walletgate/core"
)

// Store interface for session revocation
type Store interface {
	InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error
	IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error)
}

// NonceLedger records bindings that have already been used in a verification attempt
type NonceLedger interface {
	// Consume marks the binding as used and reports whether this was the first use.
	// Implementations must be atomic across concurrent callers.
	Consume(ctx context.Context, bindingID string, expiry time.Duration) (bool, error)
}

// IdentityStore resolves wallet addresses to application identities
type IdentityStore interface {
	// FindOrCreate returns the identity for address, creating it on first use.
	// Concurrent calls for the same address must resolve to the same identity.
	FindOrCreate(ctx context.Context, address string) (*core.Identity, error)
	Get(ctx context.Context, id string) (*core.Identity, error)
}
