package identity

import (
	"errors"

	"github.com/layer-3/walletgate/internal/eth"
)

// ErrNotFound is returned when no identity matches the lookup
var ErrNotFound = errors.New("identity not found")

func checksum(address string) string {
	addr, err := eth.ParseAddress(address)
	if err != nil {
		return address
	}
	return addr.Hex()
}
