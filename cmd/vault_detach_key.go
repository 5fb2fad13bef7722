package cmd

import (
	"github.com/spf13/cobra"

	"github.com/vaultik/vaultik/internal/audit"
	"github.com/vaultik/vaultik/internal/ui"
)

var vaultDetachKeyCmd = &cobra.Command{
	Use:   "detach-key <key-id>",
	Short: "Detaches a key from the selected vault",
	Long: `Removes a key from the selected vault's key list. The payload stays
decryptable by the detached key until the next encryption; re-encrypt to
revoke its access.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keyID := args[0]
		Logger.Infof("Starting vault detach-key command for: %s", keyID)

		env, err := newEnv()
		if err != nil {
			return Logger.ErrorfAndReturn("failed to initialize: %v", err)
		}

		vault, err := env.currentVault()
		if err != nil {
			return Logger.ErrorfAndReturn("no vault selected: %v", err)
		}

		spinner, cleanup := startSpinner("Detaching key...", verbose)
		defer cleanup()

		if !vault.HasKey(keyID) {
			spinner.FinalMSG = ui.Warning.Sprint("!") + " Key " + ui.Highlight.Sprint(keyID) + " is not attached to this vault"
			return nil
		}

		if err := env.vaults.RemoveKey(vault.VaultID, keyID); err != nil {
			return Logger.ErrorfAndReturn("failed to detach key: %v", err)
		}

		auditEntry := audit.Begin("vault.detach-key")
		auditEntry.VaultID = vault.VaultID
		auditEntry.KeyID = keyID
		auditEntry.Outcome = "ok"
		audit.Log(auditEntry)

		spinner.FinalMSG = ui.Success.Sprint("✓") + " Detached " + ui.Highlight.Sprint(keyID) + " from " + ui.Highlight.Sprint(vault.Label) + "\n" +
			ui.Warning.Sprint("The current payload still decrypts with the old key.") + " Run " + ui.Code.Sprint("vaultik vault encrypt") + " to revoke it."
		return nil
	},
}
