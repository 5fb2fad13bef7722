package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaultik/vaultik/internal/archive"
	"github.com/vaultik/vaultik/internal/audit"
	"github.com/vaultik/vaultik/internal/crypto"
	"github.com/vaultik/vaultik/internal/registry"
	"github.com/vaultik/vaultik/internal/ui"
)

var (
	vaultDecryptOutput         string
	vaultDecryptPassphraseOnly bool
)

func init() {
	vaultDecryptCmd.Flags().StringVarP(&vaultDecryptOutput, "output", "o", ".", "directory to restore files into")
	vaultDecryptCmd.Flags().BoolVar(&vaultDecryptPassphraseOnly, "passphrase-only", false, "only try passphrase keys, never touch hardware")
}

var vaultDecryptCmd = &cobra.Command{
	Use:   "decrypt",
	Short: "Decrypts the selected vault's payload with any available key",
	Long: `Tries the vault's identities in order: passphrase keys first, then each
hardware key that classifies as registered against a live device snapshot.
The first identity that unwraps the payload wins. Restored files are
verified against the manifest recorded at encryption time.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting vault decrypt command")

		env, err := newEnv()
		if err != nil {
			return Logger.ErrorfAndReturn("failed to initialize: %v", err)
		}

		vault, err := env.currentVault()
		if err != nil {
			return Logger.ErrorfAndReturn("no vault selected: %v", err)
		}

		payloadPath := filepath.Join(env.settings.VaultsPath, vault.VaultID+".age")
		ciphertext, err := os.ReadFile(payloadPath)
		if err != nil {
			return Logger.ErrorfAndReturn("no payload for this vault yet: %v", err)
		}

		opts := crypto.DecryptOptions{
			PassphraseOnly: vaultDecryptPassphraseOnly,
			PIN:            pinProvider(),
			OnTouch:        touchNotifier(),
		}
		if hasPassphraseKey(env, vault.KeyIDs) {
			opts.Passphrase = passphraseProvider("Enter vault passphrase: ")
		}

		started := time.Now()
		result, err := env.engine.Decrypt(cmd.Context(), vault, ciphertext, opts)
		if err != nil {
			auditEntry := audit.Begin("vault.decrypt")
			auditEntry.VaultID = vault.VaultID
			auditEntry.Outcome = "no-matching-identity"
			auditEntry.DurationMS = time.Since(started).Milliseconds()
			audit.Log(auditEntry)

			var noIdentity *crypto.NoIdentityError
			if errors.As(err, &noIdentity) {
				msg := ui.Error.Sprint("✗") + " No available key could decrypt this vault\n"
				for _, attempt := range noIdentity.Attempts {
					msg += "    " + attempt.KeyID + ": " + attempt.Err.Error() + "\n"
				}
				fmt.Print(msg)
				return fmt.Errorf("decryption failed")
			}
			return Logger.ErrorfAndReturn("failed to decrypt: %v", err)
		}

		spinner, cleanup := startSpinner("Restoring files...", verbose)
		defer cleanup()

		if err := archive.Extract(result.Plaintext, vaultDecryptOutput, vault.Files); err != nil {
			return Logger.ErrorfAndReturn("failed to restore files: %v", err)
		}

		auditEntry := audit.Begin("vault.decrypt")
		auditEntry.VaultID = vault.VaultID
		auditEntry.KeyID = result.KeyID
		auditEntry.FilesCount = vault.FileCount
		auditEntry.Outcome = "ok"
		auditEntry.DurationMS = time.Since(started).Milliseconds()
		audit.Log(auditEntry)

		spinner.FinalMSG = ui.Success.Sprint("✓") + fmt.Sprintf(" Restored %d files to ", vault.FileCount) + ui.Path.Sprint(vaultDecryptOutput) + "\n" +
			"    unlocked with: " + ui.Highlight.Sprint(result.KeyID)
		return nil
	},
}

func hasPassphraseKey(env *env, keyIDs []string) bool {
	for _, keyID := range keyIDs {
		if entry, ok := env.registry.Get(keyID); ok && entry.Kind == registry.KindPassphrase {
			return true
		}
	}
	return false
}
