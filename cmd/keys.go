package cmd

import (
	logger "github.com/vaultik/vaultik/internal/logging"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	debug   bool
	Logger  logger.Logger

	KeysCmd = &cobra.Command{
		Use:   "keys",
		Short: "Manage the keys that unlock your vaults",
		Long:  `Provides generation, listing and removal of passphrase keys, and inspection of every key known to the registry.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			Logger = logger.Logger{
				Verbose: verbose,
				Debug:   debug,
			}
			Logger.Debugf("Initializing keys command with verbose=%t, debug=%t", verbose, debug)
		},
	}
)

func init() {
	KeysCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	KeysCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")

	KeysCmd.AddCommand(keysGenerateCmd)
	KeysCmd.AddCommand(keysListCmd)
	KeysCmd.AddCommand(keysRemoveCmd)
}
