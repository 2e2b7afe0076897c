package core

import (
	"errors"
	"fmt"
)

var (
	ErrNonceMismatch           = errors.New("nonce mismatch")
	ErrNonceConsumed           = errors.New("nonce already consumed")
	ErrSignatureInvalid        = errors.New("invalid signature")
	ErrMessageExpired          = fmt.Errorf("message expired: %w", ErrSignatureInvalid)
	ErrMessageNotYetValid      = fmt.Errorf("message not yet valid: %w", ErrSignatureInvalid)
	ErrClientDeclined          = errors.New("wallet reported an error status")
	ErrSigningKeyMisconfigured = errors.New("signing key is not configured")
	ErrCollaboratorFailure     = errors.New("collaborator unavailable")
	ErrInvalidToken            = errors.New("invalid token")
	ErrTokenExpired            = errors.New("token has expired")
	ErrTokenRevoked            = errors.New("token has been revoked")
	ErrInvalidAddress          = errors.New("invalid ethereum address")
	ErrInvalidMessage          = fmt.Errorf("malformed siwe message: %w", ErrSignatureInvalid)
)

// IsRejection reports whether err was caused by the client rather than by the server
func IsRejection(err error) bool {
	switch {
	case errors.Is(err, ErrNonceMismatch),
		errors.Is(err, ErrNonceConsumed),
		errors.Is(err, ErrSignatureInvalid),
		errors.Is(err, ErrClientDeclined),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrTokenRevoked),
		errors.Is(err, ErrInvalidAddress):
		return true
	}
	return false
}
