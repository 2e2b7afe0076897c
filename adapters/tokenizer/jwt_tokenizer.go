package tokenizer

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/walletgate/core"
	"github.com/layer-3/walletgate/ports"
)

const AudienceBinding = "siwe:binding"
const AudienceSession = "session:access"

// MinSecretLength is the shortest HMAC secret accepted for signing
const MinSecretLength = 32

// JWTTokenizer implements the Tokenizer interface using HS256 JWTs
type JWTTokenizer struct {
	secret []byte
}

// NewJWTTokenizer creates a new JWT tokenizer.
// There is no default secret: a missing or short key is a configuration error.
func NewJWTTokenizer(secret []byte) (ports.Tokenizer, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("secret must be at least %d bytes: %w", MinSecretLength, core.ErrSigningKeyMisconfigured)
	}
	return &JWTTokenizer{secret: append([]byte(nil), secret...)}, nil
}

// BindingToToken converts a Binding to a JWT token
func (j *JWTTokenizer) BindingToToken(binding *core.Binding) (string, error) {
	claims := BindingClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        binding.ID,
			ExpiresAt: jwt.NewNumericDate(binding.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(binding.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceBinding},
		},
		Nonce: binding.Nonce,
	}

	return j.sign(claims)
}

// TokenToBinding converts a JWT token to a Binding
func (j *JWTTokenizer) TokenToBinding(tokenStr string) (*core.Binding, error) {
	claims := &BindingClaims{}
	if err := j.parse(tokenStr, claims, AudienceBinding); err != nil {
		return nil, err
	}

	if claims.ID == "" || claims.Nonce == "" {
		return nil, core.ErrInvalidToken
	}

	return &core.Binding{
		ID:        claims.ID,
		Nonce:     claims.Nonce,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// SessionToToken converts a Session to a session JWT token
func (j *JWTTokenizer) SessionToToken(session *core.Session) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.WalletAddress,
			ID:        session.ID,
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceSession},
		},
		UserID:        session.UserID,
		WalletAddress: session.WalletAddress,
	}

	return j.sign(claims)
}

// TokenToSession parses a session token and returns the associated session
func (j *JWTTokenizer) TokenToSession(tokenStr string) (*core.Session, error) {
	claims := &SessionClaims{}
	if err := j.parse(tokenStr, claims, AudienceSession); err != nil {
		return nil, err
	}

	if claims.ID == "" || claims.UserID == "" || claims.WalletAddress == "" {
		return nil, core.ErrInvalidToken
	}

	return &core.Session{
		ID:            claims.ID,
		UserID:        claims.UserID,
		WalletAddress: claims.WalletAddress,
		IssuedAt:      claims.IssuedAt.Time,
		ExpiresAt:     claims.ExpiresAt.Time,
	}, nil
}

func (j *JWTTokenizer) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signedToken, nil
}

func (j *JWTTokenizer) parse(tokenStr string, claims jwt.Claims, audience string) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	},
		jwt.WithAudience(audience),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return core.ErrTokenExpired
		}
		return fmt.Errorf("failed to parse token: %w", core.ErrInvalidToken)
	}

	if !token.Valid {
		return core.ErrInvalidToken
	}

	return nil
}
