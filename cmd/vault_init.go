package cmd

import (
	"github.com/spf13/cobra"

	"github.com/vaultik/vaultik/internal/audit"
	"github.com/vaultik/vaultik/internal/ui"
)

var vaultInitLabel string

func init() {
	vaultInitCmd.Flags().StringVarP(&vaultInitLabel, "label", "l", "", "human-readable label for the new vault")
	_ = vaultInitCmd.MarkFlagRequired("label")
}

var vaultInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Creates a new vault and selects it",
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting vault init command")

		env, err := newEnv()
		if err != nil {
			return Logger.ErrorfAndReturn("failed to initialize: %v", err)
		}

		spinner, cleanup := startSpinner("Creating vault...", verbose)
		defer cleanup()

		vault, err := env.vaults.Create(vaultInitLabel)
		if err != nil {
			return Logger.ErrorfAndReturn("failed to create vault: %v", err)
		}
		Logger.Infof("Vault created with id: %s", vault.VaultID)

		if err := env.vaults.SetCurrent(vault.VaultID); err != nil {
			return Logger.ErrorfAndReturn("failed to select vault: %v", err)
		}

		auditEntry := audit.Begin("vault.init")
		auditEntry.VaultID = vault.VaultID
		auditEntry.Outcome = "ok"
		audit.Log(auditEntry)

		spinner.FinalMSG = ui.Success.Sprint("✓") + " Created vault " + ui.Highlight.Sprint(vault.Label) + " " + ui.Muted.Sprint(vault.VaultID) + "\n" +
			ui.Info.Sprint("→") + " Attach a key with " + ui.Code.Sprint("vaultik vault attach-key <key-id>")
		return nil
	},
}
