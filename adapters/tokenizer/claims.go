package tokenizer

import "github.com/golang-jwt/jwt/v5"

// BindingClaims combines standard claims with the bound nonce
type BindingClaims struct {
	jwt.RegisteredClaims
	Nonce string `json:"nonce"`
}

// SessionClaims combines standard claims with the authenticated identity
type SessionClaims struct {
	jwt.RegisteredClaims
	UserID        string `json:"userId"`
	WalletAddress string `json:"walletAddress"`
}
