package eth

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc1271ABI = `[{"inputs":[{"name":"hash","type":"bytes32"},{"name":"signature","type":"bytes"}],"name":"isValidSignature","outputs":[{"name":"magicValue","type":"bytes4"}],"stateMutability":"view","type":"function"}]`

// ERC1271MagicValue is returned by isValidSignature for an accepted signature
var ERC1271MagicValue = [4]byte{0x16, 0x26, 0xba, 0x7e}

// ContractCaller is the subset of an RPC client needed for read-only contract calls
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ERC1271Checker validates signatures produced by smart-contract wallets
type ERC1271Checker struct {
	caller ContractCaller
	abi    abi.ABI
}

// NewERC1271Checker creates a checker backed by the given caller
func NewERC1271Checker(caller ContractCaller) (*ERC1271Checker, error) {
	parsed, err := abi.JSON(strings.NewReader(erc1271ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc1271 abi: %w", err)
	}
	return &ERC1271Checker{caller: caller, abi: parsed}, nil
}

// IsValidSignature asks the wallet contract whether sig is valid for hash
func (c *ERC1271Checker) IsValidSignature(ctx context.Context, wallet common.Address, hash common.Hash, sig []byte) (bool, error) {
	data, err := c.abi.Pack("isValidSignature", [32]byte(hash), sig)
	if err != nil {
		return false, fmt.Errorf("pack isValidSignature: %w", err)
	}

	out, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &wallet, Data: data}, nil)
	if err != nil {
		return false, fmt.Errorf("call isValidSignature: %w", err)
	}
	// Contracts without the function revert or return nothing
	if len(out) == 0 {
		return false, nil
	}

	values, err := c.abi.Unpack("isValidSignature", out)
	if err != nil || len(values) != 1 {
		return false, nil
	}
	magic, ok := values[0].([4]byte)
	if !ok {
		return false, nil
	}

	return bytes.Equal(magic[:], ERC1271MagicValue[:]), nil
}

