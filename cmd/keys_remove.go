package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vaultik/vaultik/internal/audit"
	vaulterrors "github.com/vaultik/vaultik/internal/errors"
	"github.com/vaultik/vaultik/internal/registry"
	"github.com/vaultik/vaultik/internal/ui"
)

var keysRemoveCmd = &cobra.Command{
	Use:   "remove <key-id>",
	Short: "Removes a key from the registry",
	Long:  `Removes a key that is no longer attached to any vault. Detach it from every vault first; removal never leaves dangling references.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keyID := args[0]
		Logger.Infof("Starting keys remove command for: %s", keyID)

		env, err := newEnv()
		if err != nil {
			return Logger.ErrorfAndReturn("failed to initialize: %v", err)
		}

		spinner, cleanup := startSpinner("Removing key...", verbose)
		defer cleanup()

		entry, ok := env.registry.Get(keyID)
		if !ok {
			spinner.FinalMSG = ui.Error.Sprint("✗") + " No key with id " + ui.Highlight.Sprint(keyID)
			return nil
		}

		if err := env.registry.Remove(keyID, env.vaults); err != nil {
			var inUse *registry.InUseError
			if errors.As(err, &inUse) {
				spinner.FinalMSG = ui.Error.Sprint("✗") + " Key is still attached to: " + ui.Highlight.Sprint(strings.Join(inUse.VaultIDs, ", ")) + "\n" +
					ui.Info.Sprint("→") + " Detach it first with " + ui.Code.Sprint("vaultik vault detach-key "+keyID)
				return nil
			}
			if errors.Is(err, vaulterrors.ErrKeyNotFound) {
				spinner.FinalMSG = ui.Error.Sprint("✗") + " No key with id " + ui.Highlight.Sprint(keyID)
				return nil
			}
			return Logger.ErrorfAndReturn("failed to remove key: %v", err)
		}

		// The sealed key file is useless without its registry entry.
		if entry.Kind == registry.KindPassphrase && entry.KeyFilename != "" {
			if err := os.Remove(filepath.Join(env.settings.KeysPath, entry.KeyFilename)); err != nil && !os.IsNotExist(err) {
				Logger.Warnf("Failed to delete key file: %v", err)
			}
		}

		auditEntry := audit.Begin("keys.remove")
		auditEntry.KeyID = keyID
		auditEntry.KeyKind = string(entry.Kind)
		auditEntry.Outcome = "ok"
		audit.Log(auditEntry)

		spinner.FinalMSG = ui.Success.Sprint("✓") + " Removed key " + ui.Highlight.Sprint(entry.Label) + " " + ui.Muted.Sprint(keyID)
		return nil
	},
}
