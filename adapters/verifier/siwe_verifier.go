package verifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/layer-3/walletgate/core"
	"github.com/layer-3/walletgate/internal/eth"
	"github.com/layer-3/walletgate/ports"
)

// SignatureChecker validates signatures of smart-contract wallets
type SignatureChecker interface {
	IsValidSignature(ctx context.Context, wallet common.Address, hash common.Hash, sig []byte) (bool, error)
}

// Option configures a SiweVerifier
type Option func(*SiweVerifier)

// WithAllowedDomains restricts accepted messages to the given domains
func WithAllowedDomains(domains ...string) Option {
	return func(v *SiweVerifier) {
		for _, d := range domains {
			if d = strings.TrimSpace(d); d != "" {
				v.domains[strings.ToLower(d)] = struct{}{}
			}
		}
	}
}

// WithContractWallets enables ERC-1271 verification for signatures an EOA did not produce
func WithContractWallets(checker SignatureChecker) Option {
	return func(v *SiweVerifier) {
		v.contracts = checker
	}
}

// WithClock overrides the time source used for the validity window
func WithClock(now func() time.Time) Option {
	return func(v *SiweVerifier) {
		v.now = now
	}
}

// SiweVerifier implements the MessageVerifier interface for EIP-4361 messages
type SiweVerifier struct {
	domains   map[string]struct{}
	contracts SignatureChecker
	now       func() time.Time
}

// NewSiweVerifier creates a new SIWE verifier
func NewSiweVerifier(opts ...Option) ports.MessageVerifier {
	v := &SiweVerifier{
		domains: make(map[string]struct{}),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks that payload carries a message for nonce, valid now, signed by the payload address
func (v *SiweVerifier) Verify(ctx context.Context, payload core.AuthPayload, nonce string) (*core.SiweMessage, error) {
	msg, err := core.ParseSiweMessage(payload.Message)
	if err != nil {
		return nil, err
	}

	if msg.Nonce != nonce {
		return nil, fmt.Errorf("message nonce does not match: %w", core.ErrSignatureInvalid)
	}

	claimed, err := eth.ParseAddress(payload.Address)
	if err != nil {
		return nil, fmt.Errorf("payload address: %w", core.ErrSignatureInvalid)
	}
	signer, err := eth.ParseAddress(msg.Address)
	if err != nil {
		return nil, fmt.Errorf("message address: %w", core.ErrSignatureInvalid)
	}
	if claimed != signer {
		return nil, fmt.Errorf("address mismatch: %w", core.ErrSignatureInvalid)
	}

	if len(v.domains) > 0 {
		if _, ok := v.domains[strings.ToLower(msg.Domain)]; !ok {
			return nil, fmt.Errorf("domain %q not allowed: %w", msg.Domain, core.ErrSignatureInvalid)
		}
	}

	if err := msg.CheckWindow(v.now()); err != nil {
		return nil, err
	}

	sig, err := hexutil.Decode(payload.Signature)
	if err != nil {
		return nil, fmt.Errorf("failed to decode signature: %w", core.ErrSignatureInvalid)
	}

	if len(sig) == eth.SignatureLength {
		recovered, err := eth.RecoverPersonalSigner([]byte(payload.Message), sig)
		if err == nil && recovered == signer {
			return msg, nil
		}
	}

	if v.contracts == nil {
		return nil, core.ErrSignatureInvalid
	}

	ok, err := v.contracts.IsValidSignature(ctx, signer, eth.MessageHash([]byte(payload.Message)), sig)
	if err != nil {
		return nil, fmt.Errorf("contract wallet check: %v: %w", err, core.ErrCollaboratorFailure)
	}
	if !ok {
		return nil, core.ErrSignatureInvalid
	}

	return msg, nil
}
