package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestAuthCounters(t *testing.T) {
	m := NewAuth(prometheus.NewRegistry())

	m.NonceIssued()
	m.NonceIssued()
	m.Attempt(OutcomeSuccess)
	m.Attempt(OutcomeNonceConsumed)
	m.Attempt(OutcomeNonceConsumed)
	m.SessionMinted()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.noncesIssued))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attempts.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.attempts.WithLabelValues(OutcomeNonceConsumed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsMinted))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.logouts))
}

func TestNilAuthIsNoop(t *testing.T) {
	var m *Auth
	assert.NotPanics(t, func() {
		m.NonceIssued()
		m.Attempt(OutcomeSuccess)
		m.SessionMinted()
		m.LoggedOut()
	})
}
