package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vaultik/vaultik/internal/logging"
	"github.com/vaultik/vaultik/internal/ui"
	"github.com/vaultik/vaultik/internal/yubikey"
)

var yubikeyStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Shows every attached device and its state against the selected vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnv()
		if err != nil {
			return Logger.ErrorfAndReturn("failed to initialize: %v", err)
		}

		// Status still works with no vault selected; classification then
		// only distinguishes orphaned from registered-anywhere.
		vault, err := env.currentVault()
		if err != nil {
			vault = nil
		}

		views, err := env.querier.ListDevices(cmd.Context())
		if err != nil {
			return Logger.ErrorfAndReturn("failed to query devices: %v", err)
		}
		if len(views) == 0 {
			fmt.Println(ui.Info.Sprint("No YubiKey identities detected.") + " Connect a device, or provision one with " + ui.Code.Sprint("vaultik yubikey setup"))
			return nil
		}

		var b strings.Builder
		for i := range views {
			view := &views[i]
			state := yubikey.Classify(view, env.registry, vault)
			b.WriteString(stateGlyph(state) + " " + ui.Muted.Sprint(logging.Fingerprint(view.Serial)) + fmt.Sprintf(" slot %d", view.Slot))
			if view.IdentityTag != "" {
				b.WriteString(" " + ui.Highlight.Sprint(view.IdentityTag))
			}
			b.WriteString("\n    state: " + state.String())
			if view.PinRetries >= 0 {
				b.WriteString(fmt.Sprintf(", PIN retries: %d", view.PinRetries))
			}
			if view.FirmwareVersion != "" {
				b.WriteString(", firmware: " + view.FirmwareVersion)
			}
			b.WriteByte('\n')
			if entry, ok := env.registry.FindBySlot(view.Serial, view.Slot); ok {
				b.WriteString("    registered as: " + entry.Label + " " + ui.Muted.Sprint(entry.KeyID) + "\n")
			}
		}
		fmt.Print(b.String())
		return nil
	},
}
