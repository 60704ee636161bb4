package main

import (
	"github.com/spf13/cobra"

	"github.com/pushchain/bridge-oracle/oracleClient/constant"
)

var homeFlag string

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "poracled",
		Short:         "Solana to Qubic bridge oracle daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&homeFlag, "home", constant.DefaultNodeHome, "Node home directory")

	InitRootCmd(rootCmd) // add subcommands like `start` and `version`

	return rootCmd
}
