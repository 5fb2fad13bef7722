package cmd

import (
	"github.com/spf13/cobra"

	"github.com/vaultik/vaultik/internal/ui"
)

var vaultUseCmd = &cobra.Command{
	Use:   "use <vault-id>",
	Short: "Selects the vault that later commands operate on",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnv()
		if err != nil {
			return Logger.ErrorfAndReturn("failed to initialize: %v", err)
		}

		vault, err := env.vaults.Get(args[0])
		if err != nil {
			return Logger.ErrorfAndReturn("failed to load vault: %v", err)
		}
		if err := env.vaults.SetCurrent(vault.VaultID); err != nil {
			return Logger.ErrorfAndReturn("failed to select vault: %v", err)
		}

		Logger.Infof("Selected vault: %s", vault.VaultID)
		cmd.Println(ui.Success.Sprint("✓") + " Now using vault " + ui.Highlight.Sprint(vault.Label))
		return nil
	},
}
