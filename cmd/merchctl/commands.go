package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/instawin/merchprize/internal/application/token"
	"github.com/instawin/merchprize/internal/config"
	"github.com/instawin/merchprize/internal/domain/gameparams"
	"github.com/instawin/merchprize/internal/domain/operator"
	"github.com/instawin/merchprize/internal/infrastructure/keystore"
	"github.com/instawin/merchprize/internal/infrastructure/signer"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "merchctl",
		Short:         "Operator tooling for the merchandise prize service",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(newKeygenCmd(), newHashKeyCmd(), newInspectCmd(), newParamsCmd())
	return root
}

func newKeygenCmd() *cobra.Command {
	var (
		keyID string
		size  int
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a signing key entry for SIGNING_KEYS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if size < 16 {
				return fmt.Errorf("--bytes must be at least 16")
			}
			key := make([]byte, size)
			if _, err := rand.Read(key); err != nil {
				return err
			}
			entry := keyID + ":" + hex.EncodeToString(key)
			if _, err := keystore.ParseKeys(entry); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), entry)
			return nil
		},
	}
	cmd.Flags().StringVar(&keyID, "id", "k1", "key id")
	cmd.Flags().IntVar(&size, "bytes", 32, "key length in bytes")
	return cmd
}

func newHashKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key [operator-key]",
		Short: "Hash an operator key for OPERATOR_KEY_HASH; generates a key when none is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				generated, err := operator.GenerateKey()
				if err != nil {
					return err
				}
				key = generated
				fmt.Fprintln(out, "key: "+key)
			}
			hash, err := operator.HashKey(key)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "hash: "+hash)
			return nil
		},
	}
}

type inspectOutput struct {
	TokenID  string          `json:"tokenId"`
	IssuedAt string          `json:"issuedAt"`
	State    json.RawMessage `json:"state"`
}

func newInspectCmd() *cobra.Command {
	var (
		keys   string
		format string
		issuer string
	)
	cmd := &cobra.Command{
		Use:   "inspect <token>",
		Short: "Verify a session token and print its state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := verificationKeys(keys)
			if err != nil {
				return err
			}
			var s token.Signer
			switch format {
			case config.TokenFormatHMAC:
				s = signer.NewHMACSigner(store)
			case config.TokenFormatJWT:
				var opts []signer.JWTOption
				if issuer != "" {
					opts = append(opts, signer.WithIssuer(issuer))
				}
				s = signer.NewJWTSigner(store, opts...)
			default:
				return fmt.Errorf("unknown --format %q", format)
			}

			claims, err := token.NewCodec(s).Decode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			state, err := json.Marshal(claims.State)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(inspectOutput{
				TokenID:  claims.TokenID.String(),
				IssuedAt: claims.IssuedAt.UTC().Format(time.RFC3339),
				State:    state,
			})
		},
	}
	cmd.Flags().StringVar(&keys, "keys", os.Getenv("SIGNING_KEYS"), "signing keys (kid:hex,...)")
	cmd.Flags().StringVar(&format, "format", config.TokenFormatHMAC, "token format: hmac or jwt")
	cmd.Flags().StringVar(&issuer, "issuer", "", "expected JWT issuer")
	return cmd
}

// verificationKeys builds a keystore for verification only; the default key
// is irrelevant so the first id is used.
func verificationKeys(raw string) (*keystore.StaticKeyStore, error) {
	keys, err := keystore.ParseKeys(raw)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no signing keys given; set --keys or SIGNING_KEYS")
	}
	ids := make([]string, 0, len(keys))
	for id := range keys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return keystore.New(keys, ids[0])
}

func newParamsCmd() *cobra.Command {
	params := &cobra.Command{
		Use:   "params",
		Short: "Game parameter tooling",
	}
	params.AddCommand(&cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate game parameter files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			games := make([]*gameparams.GameParams, 0, len(args))
			for _, path := range args {
				g, err := gameparams.Load(path)
				if err != nil {
					return err
				}
				games = append(games, g)
				fmt.Fprintf(cmd.OutOrStdout(), "ok %s: %d price points, %d tiers, %d draw entries\n",
					g.GameID, len(g.PricePoints), len(g.Tiers), len(g.Draw))
			}
			_, err := gameparams.NewRegistry(games...)
			return err
		},
	})
	return params
}
