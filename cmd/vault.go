package cmd

import (
	logger "github.com/vaultik/vaultik/internal/logging"
	"github.com/spf13/cobra"
)

var VaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage vaults and their encrypted payloads",
	Long:  `Provides creation, selection, key attachment, encryption and decryption of vaults.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		Logger = logger.Logger{
			Verbose: verbose,
			Debug:   debug,
		}
		Logger.Debugf("Initializing vault command with verbose=%t, debug=%t", verbose, debug)
	},
}

func init() {
	VaultCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	VaultCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")

	VaultCmd.AddCommand(vaultInitCmd)
	VaultCmd.AddCommand(vaultListCmd)
	VaultCmd.AddCommand(vaultUseCmd)
	VaultCmd.AddCommand(vaultStatusCmd)
	VaultCmd.AddCommand(vaultAttachKeyCmd)
	VaultCmd.AddCommand(vaultDetachKeyCmd)
	VaultCmd.AddCommand(vaultEncryptCmd)
	VaultCmd.AddCommand(vaultDecryptCmd)
}
