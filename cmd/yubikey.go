package cmd

import (
	logger "github.com/vaultik/vaultik/internal/logging"
	"github.com/spf13/cobra"
)

var YubikeyCmd = &cobra.Command{
	Use:   "yubikey",
	Short: "Manage YubiKey hardware keys",
	Long:  `Provides device provisioning, registration of existing identities, and live status reporting for YubiKeys.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		Logger = logger.Logger{
			Verbose: verbose,
			Debug:   debug,
		}
		Logger.Debugf("Initializing yubikey command with verbose=%t, debug=%t", verbose, debug)
	},
}

func init() {
	YubikeyCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	YubikeyCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")

	YubikeyCmd.AddCommand(yubikeySetupCmd)
	YubikeyCmd.AddCommand(yubikeyRegisterCmd)
	YubikeyCmd.AddCommand(yubikeyStatusCmd)
}
