package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/walletgate/core"
	"github.com/layer-3/walletgate/internal/eth"
	"github.com/spf13/cobra"
)

type signFlags struct {
	key       string
	nonce     string
	domain    string
	uri       string
	statement string
	chainID   int64
	validFor  time.Duration
}

// newSign builds a login request body signed with a local key, for exercising a running server by hand
func newSign() *cobra.Command {
	var f signFlags

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a SIWE message and print a /auth/login request body",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := crypto.HexToECDSA(strings.TrimPrefix(f.key, "0x"))
			if err != nil {
				return fmt.Errorf("invalid private key: %w", err)
			}
			address := crypto.PubkeyToAddress(key.PublicKey).Hex()

			now := time.Now().UTC().Truncate(time.Second)
			exp := now.Add(f.validFor)
			msg := core.SiweMessage{
				Domain:         f.domain,
				Address:        address,
				Statement:      f.statement,
				URI:            f.uri,
				Version:        "1",
				ChainID:        f.chainID,
				Nonce:          f.nonce,
				IssuedAt:       now,
				ExpirationTime: &exp,
			}
			text := msg.String()

			sig, err := eth.SignPersonal([]byte(text), func(hash []byte) ([]byte, error) {
				return crypto.Sign(hash, key)
			})
			if err != nil {
				return err
			}

			body := map[string]any{
				"nonce": f.nonce,
				"payload": core.AuthPayload{
					Status:    "success",
					Message:   text,
					Signature: hexutil.Encode(sig),
					Address:   address,
					Version:   2,
				},
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(body)
		},
	}

	cmd.Flags().StringVar(&f.key, "key", "", "hex encoded secp256k1 private key")
	cmd.Flags().StringVar(&f.nonce, "nonce", "", "nonce returned by GET /nonce")
	cmd.Flags().StringVar(&f.domain, "domain", "localhost:9000", "SIWE domain")
	cmd.Flags().StringVar(&f.uri, "uri", "http://localhost:9000/", "SIWE URI")
	cmd.Flags().StringVar(&f.statement, "statement", "", "SIWE statement")
	cmd.Flags().Int64Var(&f.chainID, "chain-id", 1, "chain id")
	cmd.Flags().DurationVar(&f.validFor, "valid-for", 10*time.Minute, "message lifetime")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("nonce")

	return cmd
}
