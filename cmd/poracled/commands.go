package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/pushchain/bridge-oracle/oracleClient/config"
	"github.com/pushchain/bridge-oracle/oracleClient/constant"
	"github.com/pushchain/bridge-oracle/oracleClient/core"
	"github.com/pushchain/bridge-oracle/oracleClient/logger"
	"github.com/pushchain/bridge-oracle/oracleClient/signer"
)

// Set at build time with -ldflags "-X main.Version=... -X main.Commit=...".
var (
	Version = "dev"
	Commit  = ""
)

func InitRootCmd(rootCmd *cobra.Command) {
	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(keysCmd())
	rootCmd.AddCommand(versionCmd())
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the bridge oracle",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(homeFlag)
			if err != nil {
				return err
			}
			log := logger.Init(cfg)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client, err := core.NewOracleClient(cfg, log)
			if err != nil {
				return fmt.Errorf("failed to initialize oracle: %w", err)
			}
			return client.Start(ctx)
		},
	}
}

func initCmd() *cobra.Command {
	var (
		programAddress string
		hubURLs        []string
		oracleID       string
		oracleKid      string
		rpcURLs        []string
		wsURL          string
		threshold      int
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config and generate the oracle signing key",
		Long: `
Writes <home>/config/poracle_config.json from the built-in defaults and
creates <home>/keys/oracle.json if it does not exist yet.

The hub key file (keys/hubs.json by default) is not generated; it must be
obtained from the hub operators before the node can start.

Examples:
  poracled init --program-address <base58> --hub-url https://hub-1 --hub-url https://hub-2
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadDefaultConfig()
			if err != nil {
				return err
			}
			cfg.Solana.ProgramAddress = programAddress
			if cmd.Flags().Changed("hub-url") {
				cfg.HubURLs = hubURLs
			}
			if cmd.Flags().Changed("rpc-url") {
				cfg.Solana.RPCURLs = rpcURLs
			}
			if wsURL != "" {
				cfg.Solana.WSURL = wsURL
			}
			if oracleID != "" {
				cfg.OracleID = oracleID
			}
			if oracleKid != "" {
				cfg.OracleKid = oracleKid
			}
			if threshold > 0 {
				cfg.SignatureThreshold = threshold
			}

			if err := config.Save(cfg, homeFlag); err != nil {
				return err
			}

			keyPath := cfg.OracleKeypairFile
			if !filepath.IsAbs(keyPath) {
				keyPath = filepath.Join(homeFlag, keyPath)
			}
			pub, created, err := ensureKeypair(keyPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✅ Config written to %s\n", filepath.Join(homeFlag, constant.ConfigSubdir, constant.ConfigFileName))
			if created {
				fmt.Fprintf(out, "Generated oracle key %s\n", keyPath)
			}
			fmt.Fprintf(out, "Oracle public key: %s\n", pub)
			fmt.Fprintf(out, "\n⚠️  Place the hub key file at %s before running start.\n", filepath.Join(homeFlag, cfg.HubKeysFile))
			return nil
		},
	}

	cmd.Flags().StringVar(&programAddress, "program-address", "", "Bridge program id (base58)")
	cmd.Flags().StringSliceVar(&hubURLs, "hub-url", nil, "Hub base URL; the first is primary, the second fallback")
	cmd.Flags().StringSliceVar(&rpcURLs, "rpc-url", nil, "Solana RPC URL (repeatable)")
	cmd.Flags().StringVar(&wsURL, "ws-url", "", "Solana websocket URL")
	cmd.Flags().StringVar(&oracleID, "oracle-id", "", "Identifier presented to hubs")
	cmd.Flags().StringVar(&oracleKid, "oracle-kid", "", "Key id presented to hubs")
	cmd.Flags().IntVar(&threshold, "threshold", 0, "Signatures required before an order is relayable")
	_ = cmd.MarkFlagRequired("program-address")

	return cmd
}

// ensureKeypair loads the keypair at path, generating it when missing.
func ensureKeypair(path string) (solana.PublicKey, bool, error) {
	if key, err := signer.KeypairFileLoader(path)(); err == nil {
		return key.PublicKey(), false, nil
	}
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return solana.PublicKey{}, false, fmt.Errorf("failed to generate key: %w", err)
	}
	if err := signer.WriteKeypairFile(path, key); err != nil {
		return solana.PublicKey{}, false, err
	}
	return key.PublicKey(), true, nil
}

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the oracle signing key",
	}
	cmd.AddCommand(keysShowCmd())
	return cmd
}

func keysShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the oracle public key hubs use to verify signatures",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(homeFlag)
			if err != nil {
				return err
			}
			key, err := signer.KeypairFileLoader(cfg.ResolvePath(cfg.OracleKeypairFile))()
			if err != nil {
				return fmt.Errorf("failed to load oracle keypair: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Oracle ID:  %s\n", cfg.OracleID)
			fmt.Fprintf(cmd.OutOrStdout(), "Key ID:     %s\n", cfg.OracleKid)
			fmt.Fprintf(cmd.OutOrStdout(), "Public Key: %s\n", key.PublicKey())
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print poracled version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Name:       %s\n", "poracled")
			fmt.Fprintf(cmd.OutOrStdout(), "Version:    %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "Commit:     %s\n", Commit)
		},
	}
}
