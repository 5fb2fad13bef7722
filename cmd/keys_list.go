package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vaultik/vaultik/internal/logging"
	"github.com/vaultik/vaultik/internal/registry"
	"github.com/vaultik/vaultik/internal/ui"
)

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists every key in the registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnv()
		if err != nil {
			return Logger.ErrorfAndReturn("failed to initialize: %v", err)
		}

		entries, err := env.registry.List()
		if err != nil {
			return Logger.ErrorfAndReturn("failed to read registry: %v", err)
		}

		if len(entries) == 0 {
			fmt.Println(ui.Info.Sprint("No keys registered yet.") + " Run " + ui.Code.Sprint("vaultik keys generate") + " or " + ui.Code.Sprint("vaultik yubikey setup"))
			return nil
		}

		var b strings.Builder
		for _, entry := range entries {
			b.WriteString(formatKeyLine(&entry))
			b.WriteByte('\n')
		}
		fmt.Print(b.String())
		return nil
	},
}

func formatKeyLine(entry *registry.KeyEntry) string {
	line := ui.Highlight.Sprint(entry.Label) + " " + ui.Muted.Sprint(entry.KeyID) + "\n" +
		"    kind: " + string(entry.Kind) + "\n" +
		"    created: " + entry.CreatedAt.Format("2006-01-02 15:04")
	if entry.Kind == registry.KindYubiKey {
		line += "\n    device: " + logging.Fingerprint(entry.Serial) + fmt.Sprintf(" slot %d", entry.Slot)
	}
	if entry.LastUsed != nil {
		line += "\n    last used: " + entry.LastUsed.Format("2006-01-02 15:04")
	} else {
		line += "\n    last used: never"
	}
	return line
}
