package cmd

import (
	"github.com/spf13/cobra"

	"github.com/vaultik/vaultik/internal/audit"
	"github.com/vaultik/vaultik/internal/logging"
	"github.com/vaultik/vaultik/internal/registry"
	"github.com/vaultik/vaultik/internal/ui"
	"github.com/vaultik/vaultik/internal/yubikey"
)

var yubikeyRegisterLabel string

func init() {
	yubikeyRegisterCmd.Flags().StringVarP(&yubikeyRegisterLabel, "label", "l", "", "human-readable label for the adopted key")
	_ = yubikeyRegisterCmd.MarkFlagRequired("label")
}

var yubikeyRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Adopts an existing device identity into the registry",
	Long: `Registers an identity that already exists on the connected YubiKey.
No new key material is generated; the slot's identity is recorded as-is so
a device provisioned on another machine can unlock vaults here.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting yubikey register command")

		env, err := newEnv()
		if err != nil {
			return Logger.ErrorfAndReturn("failed to initialize: %v", err)
		}

		views, err := env.querier.ListDevices(cmd.Context())
		if err != nil {
			return Logger.ErrorfAndReturn("failed to query devices: %v", err)
		}

		spinner, cleanup := startSpinner("Registering device identity...", verbose)
		defer cleanup()

		// Adopt the first orphaned slot. Slots already known to the
		// registry are left alone.
		for i := range views {
			view := &views[i]
			state := yubikey.Classify(view, env.registry, nil)
			if !state.Allows(yubikey.OpRegister) {
				Logger.Debugf("Skipping %s slot %d in state %s", logging.Fingerprint(view.Serial), view.Slot, state)
				continue
			}

			keyID, recoveryCode, err := registerHardwareKey(cmd, env, view.Serial, view.Slot, view.Recipient, view.IdentityTag, yubikeyRegisterLabel, view.FirmwareVersion)
			if err != nil {
				return Logger.ErrorfAndReturn("failed to register key: %v", err)
			}

			auditEntry := audit.Begin("yubikey.register")
			auditEntry.KeyID = keyID
			auditEntry.KeyKind = string(registry.KindYubiKey)
			auditEntry.Device = logging.Fingerprint(view.Serial)
			auditEntry.Outcome = "ok"
			audit.Log(auditEntry)

			spinner.FinalMSG = ui.Success.Sprint("✓") + " Adopted identity on " + ui.Muted.Sprint(logging.Fingerprint(view.Serial)) + " as " + ui.Highlight.Sprint(yubikeyRegisterLabel) + "\n" +
				"    key id: " + keyID + "\n" +
				"    recovery code: " + ui.Code.Sprint(recoveryCode) + "\n" +
				ui.Warning.Sprint("Store the recovery code somewhere safe. It is shown only once.")
			return nil
		}

		spinner.FinalMSG = ui.Error.Sprint("✗") + " No unregistered device identity found\n" +
			ui.Info.Sprint("→") + " An empty device is provisioned with " + ui.Code.Sprint("vaultik yubikey setup")
		return nil
	},
}
