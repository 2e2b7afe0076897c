package tokenizer

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/walletgate/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestTokenizer(t *testing.T) *JWTTokenizer {
	t.Helper()
	tk, err := NewJWTTokenizer(testSecret)
	require.NoError(t, err)
	return tk.(*JWTTokenizer)
}

func TestNewJWTTokenizerRejectsShortSecret(t *testing.T) {
	for _, secret := range [][]byte{nil, []byte(""), []byte("fallback_secret")} {
		_, err := NewJWTTokenizer(secret)
		assert.ErrorIs(t, err, core.ErrSigningKeyMisconfigured)
	}
}

func TestBindingRoundTrip(t *testing.T) {
	tk := newTestTokenizer(t)
	now := time.Now().Truncate(time.Second)
	in := &core.Binding{
		ID:        "binding-1",
		Nonce:     "abc123",
		IssuedAt:  now,
		ExpiresAt: now.Add(10 * time.Minute),
	}

	token, err := tk.BindingToToken(in)
	require.NoError(t, err)

	out, err := tk.TokenToBinding(token)
	require.NoError(t, err)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Nonce, out.Nonce)
	assert.True(t, in.ExpiresAt.Equal(out.ExpiresAt))
}

func TestSessionRoundTrip(t *testing.T) {
	tk := newTestTokenizer(t)
	now := time.Now().Truncate(time.Second)
	in := &core.Session{
		ID:            "jti-1",
		UserID:        "user-1",
		WalletAddress: "0x11A1b3F2bD2d42D1c4dBa01A5E5b3aC0dE1f9A27",
		IssuedAt:      now,
		ExpiresAt:     now.Add(7 * 24 * time.Hour),
	}

	token, err := tk.SessionToToken(in)
	require.NoError(t, err)

	out, err := tk.TokenToSession(token)
	require.NoError(t, err)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.UserID, out.UserID)
	assert.Equal(t, in.WalletAddress, out.WalletAddress)
}

func TestExpiredSessionIsRejected(t *testing.T) {
	tk := newTestTokenizer(t)
	now := time.Now()
	token, err := tk.SessionToToken(&core.Session{
		ID:            "jti-1",
		UserID:        "user-1",
		WalletAddress: "0x11A1b3F2bD2d42D1c4dBa01A5E5b3aC0dE1f9A27",
		IssuedAt:      now.Add(-8 * 24 * time.Hour),
		ExpiresAt:     now.Add(-time.Hour),
	})
	require.NoError(t, err)

	_, err = tk.TokenToSession(token)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestAudiencesAreNotInterchangeable(t *testing.T) {
	tk := newTestTokenizer(t)
	now := time.Now()
	binding, err := tk.BindingToToken(&core.Binding{ID: "b", Nonce: "n", IssuedAt: now, ExpiresAt: now.Add(time.Minute)})
	require.NoError(t, err)

	_, err = tk.TokenToSession(binding)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestTamperedTokenIsRejected(t *testing.T) {
	tk := newTestTokenizer(t)
	now := time.Now()
	token, err := tk.BindingToToken(&core.Binding{ID: "b", Nonce: "abc123", IssuedAt: now, ExpiresAt: now.Add(time.Minute)})
	require.NoError(t, err)

	// Re-sign the same claims with a different nonce and another key
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, BindingClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "b",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
			Audience:  jwt.ClaimStrings{AudienceBinding},
		},
		Nonce: "xyz999",
	})
	forgedStr, err := forged.SignedString([]byte("another-secret-another-secret-00"))
	require.NoError(t, err)

	_, err = tk.TokenToBinding(forgedStr)
	assert.ErrorIs(t, err, core.ErrInvalidToken)

	parts := strings.Split(token, ".")
	forgedParts := strings.Split(forgedStr, ".")
	_, err = tk.TokenToBinding(forgedParts[0] + "." + forgedParts[1] + "." + parts[2])
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestNoneAlgorithmIsRejected(t *testing.T) {
	tk := newTestTokenizer(t)
	now := time.Now()
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, BindingClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "b",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
			Audience:  jwt.ClaimStrings{AudienceBinding},
		},
		Nonce: "abc123",
	})
	tokenStr, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = tk.TokenToBinding(tokenStr)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}
