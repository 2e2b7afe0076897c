// Package test holds fixtures shared by package tests.
package test

import (
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/walletgate/core"
	"github.com/layer-3/walletgate/internal/eth"
)

// Domain is the SIWE domain used by fixtures
const Domain = "app.example.com"

// Wallet is an externally owned account that signs SIWE messages like a mobile wallet does
type Wallet struct {
	Key     *ecdsa.PrivateKey
	Address string
}

// NewWallet generates a fresh wallet
func NewWallet(t testing.TB) *Wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &Wallet{Key: key, Address: crypto.PubkeyToAddress(key.PublicKey).Hex()}
}

// Message returns a message for nonce with the window the mobile client requests
func (w *Wallet) Message(nonce string, now time.Time) core.SiweMessage {
	exp := now.Add(7 * 24 * time.Hour)
	nbf := now.Add(-24 * time.Hour)
	return core.SiweMessage{
		Domain:         Domain,
		Address:        w.Address,
		Statement:      "Welcome to TPulseFi",
		URI:            "https://" + Domain + "/",
		Version:        "1",
		ChainID:        480,
		Nonce:          nonce,
		IssuedAt:       now,
		ExpirationTime: &exp,
		NotBefore:      &nbf,
		RequestID:      "0",
	}
}

// Sign signs msg and wraps it in a success payload
func (w *Wallet) Sign(t testing.TB, msg core.SiweMessage) core.AuthPayload {
	t.Helper()
	text := msg.String()
	sig, err := eth.SignPersonal([]byte(text), func(hash []byte) ([]byte, error) {
		return crypto.Sign(hash, w.Key)
	})
	if err != nil {
		t.Fatalf("sign message: %v", err)
	}
	return core.AuthPayload{
		Status:    "success",
		Message:   text,
		Signature: hexutil.Encode(sig),
		Address:   w.Address,
		Version:   2,
	}
}

// SignIn returns a valid payload for nonce
func (w *Wallet) SignIn(t testing.TB, nonce string) core.AuthPayload {
	t.Helper()
	return w.Sign(t, w.Message(nonce, time.Now().UTC().Truncate(time.Second)))
}
