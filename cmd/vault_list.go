package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vaultik/vaultik/internal/ui"
)

var vaultListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists every vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnv()
		if err != nil {
			return Logger.ErrorfAndReturn("failed to initialize: %v", err)
		}

		all, err := env.vaults.List()
		if err != nil {
			return Logger.ErrorfAndReturn("failed to list vaults: %v", err)
		}
		if len(all) == 0 {
			fmt.Println(ui.Info.Sprint("No vaults yet.") + " Run " + ui.Code.Sprint("vaultik vault init --label <name>"))
			return nil
		}

		currentID, _ := env.vaults.Current()

		var b strings.Builder
		for _, vault := range all {
			marker := "  "
			if vault.VaultID == currentID {
				marker = ui.Success.Sprint("* ")
			}
			b.WriteString(marker + ui.Highlight.Sprint(vault.Label) + " " + ui.Muted.Sprint(vault.VaultID) + "\n")
			b.WriteString(fmt.Sprintf("    keys: %d, files: %d", len(vault.KeyIDs), vault.FileCount))
			if vault.LastEncryptedAt != nil {
				b.WriteString(", last encrypted: " + vault.LastEncryptedAt.Format("2006-01-02 15:04"))
			}
			b.WriteByte('\n')
		}
		fmt.Print(b.String())
		return nil
	},
}
