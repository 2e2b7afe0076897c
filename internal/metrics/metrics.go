// Package metrics exposes Prometheus counters for the authentication handshake.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "walletgate"

// Outcome labels for authentication attempts
const (
	OutcomeSuccess             = "success"
	OutcomeNonceMismatch       = "nonce_mismatch"
	OutcomeNonceConsumed       = "nonce_consumed"
	OutcomeSignatureInvalid    = "signature_invalid"
	OutcomeClientDeclined      = "client_declined"
	OutcomeCollaboratorFailure = "collaborator_failure"
)

// Auth groups the handshake counters. A nil *Auth records nothing.
type Auth struct {
	noncesIssued   prometheus.Counter
	attempts       *prometheus.CounterVec
	sessionsMinted prometheus.Counter
	logouts        prometheus.Counter
}

// NewAuth registers the handshake counters with reg
func NewAuth(reg prometheus.Registerer) *Auth {
	factory := promauto.With(reg)
	return &Auth{
		noncesIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nonces_issued_total",
			Help:      "Number of nonces issued.",
		}),
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Number of verification attempts by outcome.",
		}, []string{"outcome"}),
		sessionsMinted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_minted_total",
			Help:      "Number of session credentials issued.",
		}),
		logouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logouts_total",
			Help:      "Number of sessions revoked by logout.",
		}),
	}
}

// NonceIssued counts an issued nonce
func (m *Auth) NonceIssued() {
	if m != nil {
		m.noncesIssued.Inc()
	}
}

// Attempt counts a verification attempt with the given outcome label
func (m *Auth) Attempt(outcome string) {
	if m != nil {
		m.attempts.WithLabelValues(outcome).Inc()
	}
}

// SessionMinted counts an issued session credential
func (m *Auth) SessionMinted() {
	if m != nil {
		m.sessionsMinted.Inc()
	}
}

// LoggedOut counts a session revoked by logout
func (m *Auth) LoggedOut() {
	if m != nil {
		m.logouts.Inc()
	}
}
