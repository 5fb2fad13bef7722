package cmd

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vaultik/vaultik/internal/audit"
	"github.com/vaultik/vaultik/internal/crypto"
	"github.com/vaultik/vaultik/internal/registry"
	"github.com/vaultik/vaultik/internal/ui"
	"github.com/vaultik/vaultik/internal/utils"
)

var keysGenerateLabel string

func init() {
	keysGenerateCmd.Flags().StringVarP(&keysGenerateLabel, "label", "l", "", "human-readable label for the new key")
	_ = keysGenerateCmd.MarkFlagRequired("label")
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generates a new passphrase-protected key and registers it",
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting keys generate command")

		env, err := newEnv()
		if err != nil {
			return Logger.ErrorfAndReturn("failed to initialize: %v", err)
		}

		passphrase, err := confirmedPassphrase()
		if err != nil {
			return Logger.ErrorfAndReturn("failed to read passphrase: %v", err)
		}

		spinner, cleanup := startSpinner("Generating key...", verbose)
		defer cleanup()

		identity, err := crypto.GenerateIdentity()
		if err != nil {
			return Logger.ErrorfAndReturn("failed to generate key: %v", err)
		}

		blob, err := crypto.WrapIdentity(identity, passphrase)
		if err != nil {
			return Logger.ErrorfAndReturn("failed to seal key: %v", err)
		}

		keyID := "key-" + uuid.New().String()
		filename := keyID + ".age"
		keyPath := filepath.Join(env.settings.KeysPath, filename)
		if err := utils.AtomicWrite(keyPath, blob, 0o600); err != nil {
			return Logger.ErrorfAndReturn("failed to store key file: %v", err)
		}
		Logger.Debugf("Sealed key written to: %s", keyPath)

		recoveryCode, err := generateRecoveryCode()
		if err != nil {
			return Logger.ErrorfAndReturn("failed to generate recovery code: %v", err)
		}
		recoveryHash, err := registry.HashRecoveryCode(recoveryCode)
		if err != nil {
			return Logger.ErrorfAndReturn("failed to hash recovery code: %v", err)
		}

		entry := registry.KeyEntry{
			KeyID:            keyID,
			Kind:             registry.KindPassphrase,
			Label:            keysGenerateLabel,
			Recipient:        identity.Recipient().String(),
			CreatedAt:        time.Now().UTC(),
			KeyFilename:      filename,
			RecoveryCodeHash: recoveryHash,
		}
		if err := env.registry.Add(entry); err != nil {
			return Logger.ErrorfAndReturn("failed to register key: %v", err)
		}
		Logger.Infof("Key registered with id: %s", keyID)

		auditEntry := audit.Begin("keys.generate")
		auditEntry.KeyID = keyID
		auditEntry.KeyKind = string(registry.KindPassphrase)
		auditEntry.Outcome = "ok"
		audit.Log(auditEntry)

		spinner.FinalMSG = ui.Success.Sprint("✓") + " Generated key " + ui.Highlight.Sprint(keysGenerateLabel) + " " + ui.Muted.Sprint(keyID) + "\n" +
			"    recipient: " + ui.Path.Sprint(entry.Recipient) + "\n" +
			"    recovery code: " + ui.Code.Sprint(recoveryCode) + "\n" +
			ui.Warning.Sprint("Store the recovery code somewhere safe. It is shown only once.") + "\n" +
			ui.Info.Sprint("→") + " Attach it to a vault with " + ui.Code.Sprint("vaultik vault attach-key "+keyID)
		return nil
	},
}
