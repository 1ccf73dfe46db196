package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/visioninhope/BetM3/internal/crypto"
)

// globalOpts are the persistent flags shared by every subcommand.
type globalOpts struct {
	url      string
	key      string
	keyFile  string
	password string
	decimals int32
	out      io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &globalOpts{out: out}

	cmd := &cobra.Command{
		Use:           "betctl",
		Short:         "Create, join and settle bets on a BetM3 engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.url, "url", envOr("BETM3_URL", "http://localhost:8000"), "engine base URL")
	pf.StringVar(&opts.key, "key", os.Getenv("BETM3_PRIVATE_KEY"), "hex private key used to sign requests")
	pf.StringVar(&opts.keyFile, "key-file", os.Getenv("BETM3_KEY_FILE"), "encrypted key file written by encrypt-key")
	pf.StringVar(&opts.password, "password", os.Getenv("BETM3_KEY_PASSWORD"), "password for --key-file")
	pf.Int32Var(&opts.decimals, "decimals", 18, "token decimals used to read and print amounts")

	cmd.AddCommand(
		createCmd(opts),
		joinCmd(opts),
		voteCmd(opts),
		finalizeCmd(opts),
		adminFinalizeCmd(opts),
		setYieldRateCmd(opts),
		setMinStakeCmd(opts),
		transferOwnershipCmd(opts),
		detailsCmd(opts),
		stakeCmd(opts),
		registryCmd(opts),
		encryptKeyCmd(opts),
		archiveCmd(opts),
	)
	return cmd
}

// client builds an API client. Commands that only read pass sign=false and
// work without a key.
func (o *globalOpts) client(sign bool) (*apiClient, error) {
	if !sign {
		return newAPIClient(o.url, nil), nil
	}
	signer, err := crypto.LoadSigner(crypto.KeySource{
		RawPrivateKey: o.key,
		KeyFile:       o.keyFile,
		Password:      o.password,
	})
	if err != nil {
		return nil, err
	}
	return newAPIClient(o.url, signer), nil
}

// print writes v as indented JSON.
func (o *globalOpts) print(v any) error {
	enc := json.NewEncoder(o.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
