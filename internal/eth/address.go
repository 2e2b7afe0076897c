package eth

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/walletgate/core"
)

// ParseAddress validates a hex address and returns its typed form
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, core.ErrInvalidAddress
	}
	return common.HexToAddress(s), nil
}

// NormalizeAddress returns the lowercase storage key for an address
func NormalizeAddress(s string) (string, error) {
	addr, err := ParseAddress(s)
	if err != nil {
		return "", err
	}
	return "0x" + common.Bytes2Hex(addr.Bytes()), nil
}
