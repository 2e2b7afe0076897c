package ports

import (
	"context"

	"github.com/layer-3/walletgate/core"
)

// MessageVerifier checks a wallet-signed SIWE payload against an expected nonce
type MessageVerifier interface {
	Verify(ctx context.Context, payload core.AuthPayload, nonce string) (*core.SiweMessage, error)
}
