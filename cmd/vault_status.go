package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vaultik/vaultik/internal/logging"
	"github.com/vaultik/vaultik/internal/registry"
	"github.com/vaultik/vaultik/internal/ui"
	"github.com/vaultik/vaultik/internal/yubikey"
)

var vaultStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Shows the selected vault, its keys and their live device states",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnv()
		if err != nil {
			return Logger.ErrorfAndReturn("failed to initialize: %v", err)
		}

		vault, err := env.currentVault()
		if err != nil {
			return Logger.ErrorfAndReturn("no vault selected: %v", err)
		}

		var b strings.Builder
		b.WriteString(ui.Highlight.Sprint(vault.Label) + " " + ui.Muted.Sprint(vault.VaultID) + "\n")
		b.WriteString(fmt.Sprintf("    files: %d, total size: %d bytes, revision: %d\n", vault.FileCount, vault.TotalSize, vault.EncryptionRevision))
		if vault.LastEncryptedAt != nil {
			b.WriteString("    last encrypted: " + vault.LastEncryptedAt.Format("2006-01-02 15:04") + "\n")
		}

		if len(vault.KeyIDs) == 0 {
			b.WriteString(ui.Warning.Sprint("    no keys attached: this vault cannot be encrypted yet") + "\n")
		}

		for _, keyID := range vault.KeyIDs {
			entry, ok := env.registry.Get(keyID)
			if !ok {
				b.WriteString("  " + ui.Error.Sprint("✗") + " " + keyID + " (missing from registry)\n")
				continue
			}
			switch entry.Kind {
			case registry.KindPassphrase:
				b.WriteString("  " + ui.Success.Sprint("✓") + " " + entry.Label + " " + ui.Muted.Sprint("passphrase") + "\n")
			case registry.KindYubiKey:
				// Classified from a fresh device snapshot every time;
				// devices can be swapped between invocations.
				view, err := env.querier.View(cmd.Context(), entry.Serial, entry.Slot)
				if err != nil {
					view = nil
				}
				state := yubikey.Classify(view, env.registry, vault)
				b.WriteString("  " + stateGlyph(state) + " " + entry.Label +
					" " + ui.Muted.Sprint(logging.Fingerprint(entry.Serial)) +
					" state: " + state.String() + "\n")
			}
		}

		fmt.Print(b.String())
		return nil
	},
}

func stateGlyph(state yubikey.State) string {
	switch state {
	case yubikey.StateRegistered:
		return ui.Success.Sprint("✓")
	case yubikey.StateUnreachable, yubikey.StateLocked:
		return ui.Error.Sprint("✗")
	default:
		return ui.Warning.Sprint("!")
	}
}
