package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/walletgate/core"
	"github.com/layer-3/walletgate/internal/eth"
	"github.com/layer-3/walletgate/internal/metrics"
	"github.com/layer-3/walletgate/ports"
	"github.com/rs/zerolog/log"
)

const (
	DefaultNonceTTL   = 10 * time.Minute
	DefaultSessionTTL = 7 * 24 * time.Hour

	nonceBytes = 16
)

// LoginResult is returned by a successful login
type LoginResult struct {
	Session  *core.Session
	Token    string
	Identity *core.Identity
}

// Option configures an AuthService
type Option func(*AuthService)

// WithTTLs overrides the nonce binding and session lifetimes
func WithTTLs(nonceTTL, sessionTTL time.Duration) Option {
	return func(s *AuthService) {
		s.nonceTTL = nonceTTL
		s.sessionTTL = sessionTTL
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) {
		s.now = now
	}
}

// WithNonceSource overrides nonce generation
func WithNonceSource(source func() (string, error)) Option {
	return func(s *AuthService) {
		s.newNonce = source
	}
}

// WithMetrics records handshake outcomes
func WithMetrics(m *metrics.Auth) Option {
	return func(s *AuthService) {
		s.metrics = m
	}
}

// AuthService handles authentication business logic
type AuthService struct {
	tokenizer  ports.Tokenizer
	verifier   ports.MessageVerifier
	ledger     ports.NonceLedger
	store      ports.Store
	identities ports.IdentityStore
	eventPub   ports.EventPublisher
	metrics    *metrics.Auth

	nonceTTL   time.Duration
	sessionTTL time.Duration
	now        func() time.Time
	newNonce   func() (string, error)
}

// NewAuthService creates a new authentication service
func NewAuthService(
	tokenizer ports.Tokenizer,
	verifier ports.MessageVerifier,
	ledger ports.NonceLedger,
	store ports.Store,
	identities ports.IdentityStore,
	eventPub ports.EventPublisher,
	opts ...Option,
) *AuthService {
	s := &AuthService{
		tokenizer:  tokenizer,
		verifier:   verifier,
		ledger:     ledger,
		store:      store,
		identities: identities,
		eventPub:   eventPub,
		nonceTTL:   DefaultNonceTTL,
		sessionTTL: DefaultSessionTTL,
		now:        time.Now,
		newNonce:   generateNonce,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueNonce generates a nonce and the binding token that ties it to the caller
func (s *AuthService) IssueNonce(ctx context.Context) (string, string, error) {
	nonce, err := s.newNonce()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := s.now()
	binding := &core.Binding{
		ID:        uuid.New().String(),
		Nonce:     nonce,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.nonceTTL),
	}

	token, err := s.tokenizer.BindingToToken(binding)
	if err != nil {
		return "", "", fmt.Errorf("failed to create binding token: %w", err)
	}

	s.metrics.NonceIssued()
	return nonce, token, nil
}

// Verify checks a signed payload against the nonce bound to the caller.
// The binding is consumed before any other check, so every attempt uses it up.
func (s *AuthService) Verify(ctx context.Context, payload core.AuthPayload, nonce, bindingToken string) (*core.VerifiedIdentity, error) {
	verified, err := s.verify(ctx, payload, nonce, bindingToken)
	s.metrics.Attempt(outcome(err))
	return verified, err
}

func (s *AuthService) verify(ctx context.Context, payload core.AuthPayload, nonce, bindingToken string) (*core.VerifiedIdentity, error) {
	binding, err := s.tokenizer.TokenToBinding(bindingToken)
	if err != nil {
		return nil, fmt.Errorf("binding token rejected: %v: %w", err, core.ErrNonceMismatch)
	}

	first, err := s.ledger.Consume(ctx, binding.ID, binding.ExpiresAt.Sub(s.now()))
	if err != nil {
		log.Error().Err(err).Str("binding_id", binding.ID).Msg("Failed to consume nonce")
		return nil, fmt.Errorf("nonce ledger: %w", core.ErrCollaboratorFailure)
	}
	if !first {
		return nil, core.ErrNonceConsumed
	}

	if subtle.ConstantTimeCompare([]byte(nonce), []byte(binding.Nonce)) != 1 {
		return nil, core.ErrNonceMismatch
	}

	msg, err := s.verifier.Verify(ctx, payload, nonce)
	if err != nil {
		if errors.Is(err, core.ErrCollaboratorFailure) {
			log.Error().Err(err).Str("address", payload.Address).Msg("Signature verification dependency failed")
		}
		return nil, fmt.Errorf("signature verification failed: %w", err)
	}

	if payload.Status == core.PayloadStatusError {
		return nil, core.ErrClientDeclined
	}

	addr, err := eth.ParseAddress(msg.Address)
	if err != nil {
		return nil, fmt.Errorf("signature verification failed: %w", core.ErrSignatureInvalid)
	}

	return &core.VerifiedIdentity{Address: addr.Hex(), Message: msg}, nil
}

// Mint resolves the identity for a verified address and issues a session credential
func (s *AuthService) Mint(ctx context.Context, verified *core.VerifiedIdentity) (*LoginResult, error) {
	identity, err := s.identities.FindOrCreate(ctx, verified.Address)
	if err != nil {
		log.Error().Err(err).Str("address", verified.Address).Msg("Failed to resolve identity")
		return nil, fmt.Errorf("identity store: %w", core.ErrCollaboratorFailure)
	}

	now := s.now()
	session := &core.Session{
		ID:            uuid.New().String(),
		UserID:        identity.ID,
		WalletAddress: verified.Address,
		IssuedAt:      now,
		ExpiresAt:     now.Add(s.sessionTTL),
	}

	token, err := s.tokenizer.SessionToToken(session)
	if err != nil {
		return nil, fmt.Errorf("failed to create session token: %w", err)
	}

	// The session is already valid; a lost event only affects other instances
	if err := s.eventPub.PublishLogin(ctx, ports.LoginEvent{
		UserID:     identity.ID,
		Address:    verified.Address,
		SessionID:  session.ID,
		IsNewUser:  identity.IsNewUser,
		LoggedInAt: now,
	}); err != nil {
		log.Warn().Err(err).Str("session_id", session.ID).Msg("Failed to publish login event")
	}

	s.metrics.SessionMinted()
	log.Info().
		Str("user_id", identity.ID).
		Str("address", verified.Address).
		Bool("new_user", identity.IsNewUser).
		Msg("Session issued")

	return &LoginResult{Session: session, Token: token, Identity: identity}, nil
}

// Login verifies the signed payload and mints a session for the signer
func (s *AuthService) Login(ctx context.Context, payload core.AuthPayload, nonce, bindingToken string) (*LoginResult, error) {
	verified, err := s.Verify(ctx, payload, nonce, bindingToken)
	if err != nil {
		return nil, err
	}
	return s.Mint(ctx, verified)
}

// ValidateSession verifies a session credential and checks it has not been revoked
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*core.Session, error) {
	session, err := s.tokenizer.TokenToSession(token)
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}

	if !s.now().Before(session.ExpiresAt) {
		return nil, core.ErrTokenExpired
	}

	revoked, err := s.store.IsTokenInvalidated(ctx, session.ID)
	if err != nil {
		log.Error().Err(err).Str("session_id", session.ID).Msg("Failed to check session revocation")
		return nil, fmt.Errorf("revocation list: %w", core.ErrCollaboratorFailure)
	}
	if revoked {
		return nil, core.ErrTokenRevoked
	}

	return session, nil
}

// Identity returns the identity a session belongs to
func (s *AuthService) Identity(ctx context.Context, session *core.Session) (*core.Identity, error) {
	identity, err := s.identities.Get(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("identity store: %v: %w", err, core.ErrCollaboratorFailure)
	}
	return identity, nil
}

// Logout revokes a session credential for the rest of its lifetime
func (s *AuthService) Logout(ctx context.Context, token string) error {
	session, err := s.tokenizer.TokenToSession(token)
	if err != nil {
		// Nothing left to revoke
		if errors.Is(err, core.ErrTokenExpired) {
			return nil
		}
		return fmt.Errorf("invalid session token: %w", err)
	}

	remaining := session.ExpiresAt.Sub(s.now())
	if remaining <= 0 {
		return nil
	}

	if err := s.store.InvalidateToken(ctx, session.ID, remaining); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	if err := s.eventPub.PublishLogout(ctx, session.WalletAddress, session.ID); err != nil {
		log.Warn().Err(err).Str("session_id", session.ID).Msg("Failed to publish logout event")
	}

	s.metrics.LoggedOut()
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, core.ErrNonceConsumed):
		return metrics.OutcomeNonceConsumed
	case errors.Is(err, core.ErrNonceMismatch):
		return metrics.OutcomeNonceMismatch
	case errors.Is(err, core.ErrClientDeclined):
		return metrics.OutcomeClientDeclined
	case errors.Is(err, core.ErrSignatureInvalid):
		return metrics.OutcomeSignatureInvalid
	default:
		return metrics.OutcomeCollaboratorFailure
	}
}

// generateNonce returns random bytes hex encoded, so the nonce is alphanumeric
func generateNonce() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
