package eth

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/walletgate/core"
)

// SignatureLength is the size of a recoverable secp256k1 signature (R || S || V)
const SignatureLength = crypto.SignatureLength

// MessageHash returns the EIP-191 personal_sign digest of a message
func MessageHash(message []byte) common.Hash {
	return common.BytesToHash(accounts.TextHash(message))
}

// RecoverPersonalSigner recovers the address that produced an EIP-191 signature over message.
// Both the 0/1 and the 27/28 recovery id conventions are accepted.
func RecoverPersonalSigner(message []byte, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes: %w", SignatureLength, core.ErrSignatureInvalid)
	}

	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(message), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover public key: %w", core.ErrSignatureInvalid)
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// SignPersonal produces an EIP-191 signature with V in the 27/28 convention, as wallets return it
func SignPersonal(message []byte, sign func(hash []byte) ([]byte, error)) ([]byte, error) {
	sig, err := sign(accounts.TextHash(message))
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}
