package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	s3blob "github.com/visioninhope/BetM3/internal/blob/s3"
	"github.com/visioninhope/BetM3/internal/config"
	"github.com/visioninhope/BetM3/internal/crypto"
)

func encryptKeyCmd(o *globalOpts) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "encrypt-key",
		Short: "Encrypt --key with --password into a key file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if o.key == "" || o.password == "" {
				return fmt.Errorf("encrypt-key needs --key and --password")
			}
			data, err := crypto.EncryptKey(o.key, o.password)
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, data, 0o600); err != nil {
				return fmt.Errorf("write key file: %w", err)
			}
			signer, err := crypto.NewSigner(o.key)
			if err != nil {
				return err
			}
			return o.print(map[string]string{"address": signer.Address().Hex(), "key_file": outPath})
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "betm3.key.json", "path of the key file to write")
	return cmd
}

// archiveCmd reads exports straight from object storage, so it works while
// the engine is down.
func archiveCmd(o *globalOpts) *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect archived bets and registry snapshots",
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "config.toml", "engine configuration with the s3 section")

	archiver := func(cmd *cobra.Command) (*s3blob.Archiver, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		client, err := s3blob.New(cmd.Context(), s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return nil, err
		}
		return s3blob.NewArchiver(nil, s3blob.NewReader(client), nil), nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "bet <bet-id>",
			Short: "Show an archived bet with its events",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseBetID(args[0])
				if err != nil {
					return err
				}
				a, err := archiver(cmd)
				if err != nil {
					return err
				}
				rec, err := a.LoadBet(cmd.Context(), id)
				if err != nil {
					return err
				}
				return o.print(rec)
			},
		},
		&cobra.Command{
			Use:   "snapshot",
			Short: "Summarise the latest registry snapshot",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := archiver(cmd)
				if err != nil {
					return err
				}
				snap, err := a.LatestSnapshot(cmd.Context())
				if err != nil {
					return err
				}
				return o.print(map[string]any{
					"taken_at":    snap.TakenAt,
					"bet_counter": snap.BetCounter,
					"bets":        len(snap.Bets),
					"accounts":    len(snap.Balances),
					"owner":       snap.Params.Owner.Hex(),
					"min_stake":   formatAmount(snap.Params.MinStake.String(), o.decimals),
					"yield_bps":   snap.Params.YieldRateBps,
				})
			},
		},
	)
	return cmd
}
