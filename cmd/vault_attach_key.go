package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/vaultik/vaultik/internal/audit"
	vaulterrors "github.com/vaultik/vaultik/internal/errors"
	"github.com/vaultik/vaultik/internal/registry"
	"github.com/vaultik/vaultik/internal/ui"
	"github.com/vaultik/vaultik/internal/yubikey"
)

var vaultAttachShared bool

func init() {
	vaultAttachKeyCmd.Flags().BoolVar(&vaultAttachShared, "allow-shared", false, "attach a hardware key that already unlocks another vault")
}

var vaultAttachKeyCmd = &cobra.Command{
	Use:   "attach-key <key-id>",
	Short: "Attaches a registered key to the selected vault",
	Long: `Attaches a key to the selected vault's key list. No key material changes;
the next encryption simply includes the key as a recipient. Attaching a
hardware key that already unlocks another vault requires --allow-shared.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keyID := args[0]
		Logger.Infof("Starting vault attach-key command for: %s", keyID)

		env, err := newEnv()
		if err != nil {
			return Logger.ErrorfAndReturn("failed to initialize: %v", err)
		}

		vault, err := env.currentVault()
		if err != nil {
			return Logger.ErrorfAndReturn("no vault selected: %v", err)
		}

		entry, ok := env.registry.Get(keyID)
		if !ok {
			return Logger.ErrorfAndReturn("no key with id %s", keyID)
		}

		spinner, cleanup := startSpinner("Attaching key...", verbose)
		defer cleanup()

		if entry.Kind == registry.KindYubiKey && !vaultAttachShared {
			view, err := env.querier.View(cmd.Context(), entry.Serial, entry.Slot)
			if err != nil {
				view = nil
			}
			if state := yubikey.Classify(view, env.registry, vault); state == yubikey.StateReusedElsewhere {
				spinner.FinalMSG = ui.Error.Sprint("✗") + " " + vaulterrors.ErrAlreadyBoundElsewhere.Error() + "\n" +
					ui.Info.Sprint("→") + " Re-run with " + ui.Code.Sprint("--allow-shared") + " to share the key across vaults"
				return nil
			}
		}

		if err := env.vaults.AddKey(vault.VaultID, keyID); err != nil {
			if errors.Is(err, vaulterrors.ErrKeyAlreadyAttached) {
				spinner.FinalMSG = ui.Warning.Sprint("!") + " Key " + ui.Highlight.Sprint(entry.Label) + " is already attached to this vault"
				return nil
			}
			return Logger.ErrorfAndReturn("failed to attach key: %v", err)
		}

		auditEntry := audit.Begin("vault.attach-key")
		auditEntry.VaultID = vault.VaultID
		auditEntry.KeyID = keyID
		auditEntry.KeyKind = string(entry.Kind)
		auditEntry.Outcome = "ok"
		audit.Log(auditEntry)

		spinner.FinalMSG = ui.Success.Sprint("✓") + " Attached " + ui.Highlight.Sprint(entry.Label) + " to " + ui.Highlight.Sprint(vault.Label) + "\n" +
			ui.Info.Sprint("→") + " Re-encrypt the vault to include the new recipient: " + ui.Code.Sprint("vaultik vault encrypt")
		return nil
	},
}
