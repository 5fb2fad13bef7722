package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaultik/vaultik/internal/archive"
	"github.com/vaultik/vaultik/internal/audit"
	vaulterrors "github.com/vaultik/vaultik/internal/errors"
	"github.com/vaultik/vaultik/internal/ui"
	"github.com/vaultik/vaultik/internal/utils"
)

var vaultEncryptCmd = &cobra.Command{
	Use:   "encrypt [files...]",
	Short: "Encrypts files into the selected vault for every attached key",
	Long: `Stages the named files into an archive and seals it for every key
attached to the selected vault. Any single key can later decrypt the whole
payload. With no arguments the vault's previous file set is re-encrypted,
which is how a detached key's access is revoked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting vault encrypt command")

		env, err := newEnv()
		if err != nil {
			return Logger.ErrorfAndReturn("failed to initialize: %v", err)
		}

		vault, err := env.currentVault()
		if err != nil {
			return Logger.ErrorfAndReturn("no vault selected: %v", err)
		}

		paths := args
		if len(paths) == 0 {
			for _, f := range vault.Files {
				paths = append(paths, f.Path)
			}
			if len(paths) == 0 {
				return Logger.ErrorfAndReturn("nothing to encrypt: name the files to include")
			}
			Logger.Infof("Re-encrypting the vault's existing file set (%d files)", len(paths))
		}

		root, err := os.Getwd()
		if err != nil {
			return Logger.ErrorfAndReturn("failed to resolve working directory: %v", err)
		}

		spinner, cleanup := startSpinner("Encrypting vault...", verbose)
		defer cleanup()

		payload, manifest, err := archive.Stage(root, paths)
		if err != nil {
			return Logger.ErrorfAndReturn("failed to stage files: %v", err)
		}
		Logger.Debugf("Staged %d files", len(manifest))

		result, err := env.engine.Encrypt(cmd.Context(), vault, bytes.NewReader(payload))
		if err != nil {
			if errors.Is(err, vaulterrors.ErrNoRecipients) {
				spinner.FinalMSG = ui.Error.Sprint("✗") + " This vault has no keys attached\n" +
					ui.Info.Sprint("→") + " Attach one with " + ui.Code.Sprint("vaultik vault attach-key <key-id>")
				return nil
			}
			return Logger.ErrorfAndReturn("failed to encrypt: %v", err)
		}

		payloadPath := filepath.Join(env.settings.VaultsPath, vault.VaultID+".age")
		if err := utils.AtomicWrite(payloadPath, result.Ciphertext, 0o600); err != nil {
			return Logger.ErrorfAndReturn("failed to store payload: %v", err)
		}

		now := time.Now().UTC()
		vault.Files = manifest
		vault.FileCount = len(manifest)
		vault.TotalSize = 0
		for _, f := range manifest {
			vault.TotalSize += f.Size
		}
		vault.EncryptionRevision++
		vault.LastEncryptedAt = &now
		if err := env.vaults.Save(vault); err != nil {
			return Logger.ErrorfAndReturn("failed to update vault manifest: %v", err)
		}

		auditEntry := audit.Begin("vault.encrypt")
		auditEntry.VaultID = vault.VaultID
		auditEntry.KeyIDs = result.KeyIDs
		auditEntry.FilesCount = vault.FileCount
		auditEntry.TotalSize = vault.TotalSize
		auditEntry.Outcome = "ok"
		audit.Log(auditEntry)

		spinner.FinalMSG = ui.Success.Sprint("✓") + fmt.Sprintf(" Encrypted %d files for %d keys\n", vault.FileCount, len(result.KeyIDs)) +
			"    payload: " + ui.Path.Sprint(payloadPath)
		return nil
	},
}
