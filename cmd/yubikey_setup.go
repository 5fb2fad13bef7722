package cmd

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vaultik/vaultik/internal/audit"
	"github.com/vaultik/vaultik/internal/logging"
	"github.com/vaultik/vaultik/internal/registry"
	"github.com/vaultik/vaultik/internal/ui"
	"github.com/vaultik/vaultik/internal/utils"
	"github.com/vaultik/vaultik/internal/yubikey"
)

var (
	yubikeySetupLabel       string
	yubikeySetupSlot        uint8
	yubikeySetupTouchPolicy string
)

func init() {
	yubikeySetupCmd.Flags().StringVarP(&yubikeySetupLabel, "label", "l", "", "human-readable label for the new key")
	yubikeySetupCmd.Flags().Uint8Var(&yubikeySetupSlot, "slot", 1, "retired slot to generate the identity into (1-20)")
	yubikeySetupCmd.Flags().StringVar(&yubikeySetupTouchPolicy, "touch-policy", "", "touch policy: always, cached or never")
	_ = yubikeySetupCmd.MarkFlagRequired("label")
}

var yubikeySetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Generates an identity on the connected YubiKey and registers it",
	Long: `Provisions the connected YubiKey: generates a fresh age identity in the
chosen slot, records it in the key registry and stores an identity stub for
decryption. The slot must be empty; an existing identity is never
overwritten. Use the register command for a device that already holds one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting yubikey setup command")

		env, err := newEnv()
		if err != nil {
			return Logger.ErrorfAndReturn("failed to initialize: %v", err)
		}

		serial, err := env.querier.ConnectedSerial(cmd.Context())
		if err != nil || serial == "" {
			return Logger.ErrorfAndReturn("no YubiKey detected: connect the device and try again")
		}
		Logger.Debugf("Detected device: %s", logging.Fingerprint(serial))

		// An empty slot on an attached device comes back as an
		// identity-less view with live PIN state, so a locked device is
		// rejected here before anything writes to it.
		view, err := env.querier.View(cmd.Context(), serial, yubikeySetupSlot)
		if err != nil {
			return Logger.ErrorfAndReturn("failed to query device: %v", err)
		}

		if state := yubikey.Classify(view, env.registry, nil); !state.Allows(yubikey.OpGenerate) {
			switch state {
			case yubikey.StateUnreachable:
				return Logger.ErrorfAndReturn("device stopped answering: reconnect it and try again")
			case yubikey.StateLocked:
				return Logger.ErrorfAndReturn("device is locked: PIN retries exhausted, reset the PIN with ykman first")
			case yubikey.StateOrphaned:
				return Logger.ErrorfAndReturn("slot %d already holds an identity: run %s to adopt it", yubikeySetupSlot, "vaultik yubikey register")
			default:
				return Logger.ErrorfAndReturn("cannot provision slot %d in state %s", yubikeySetupSlot, state)
			}
		}

		generated, err := env.provisioner.Generate(cmd.Context(), yubikey.GenerateOptions{
			Serial:      serial,
			Slot:        yubikeySetupSlot,
			Name:        utils.SanitizeLabel(yubikeySetupLabel),
			TouchPolicy: yubikeySetupTouchPolicy,
			PIN:         pinProvider(),
			OnTouch:     touchNotifier(),
		})
		if err != nil {
			return Logger.ErrorfAndReturn("failed to generate identity on device: %v", err)
		}

		spinner, cleanup := startSpinner("Registering hardware key...", verbose)
		defer cleanup()

		keyID, recoveryCode, err := registerHardwareKey(cmd, env, serial, yubikeySetupSlot, generated.Recipient, generated.IdentityTag, yubikeySetupLabel, view.FirmwareVersion)
		if err != nil {
			return Logger.ErrorfAndReturn("failed to register key: %v", err)
		}

		auditEntry := audit.Begin("yubikey.setup")
		auditEntry.KeyID = keyID
		auditEntry.KeyKind = string(registry.KindYubiKey)
		auditEntry.Device = logging.Fingerprint(serial)
		auditEntry.Outcome = "ok"
		audit.Log(auditEntry)

		spinner.FinalMSG = ui.Success.Sprint("✓") + " Provisioned YubiKey " + ui.Muted.Sprint(logging.Fingerprint(serial)) + " as " + ui.Highlight.Sprint(yubikeySetupLabel) + "\n" +
			"    key id: " + keyID + "\n" +
			"    recipient: " + ui.Path.Sprint(generated.Recipient) + "\n" +
			"    recovery code: " + ui.Code.Sprint(recoveryCode) + "\n" +
			ui.Warning.Sprint("Store the recovery code somewhere safe. It is shown only once.")
		return nil
	},
}

// registerHardwareKey stores the identity stub and adds the registry entry.
// Shared between setup (fresh identity) and register (adopting an orphan).
func registerHardwareKey(cmd *cobra.Command, env *env, serial string, slot uint8, recipient, identityTag, label, firmware string) (string, string, error) {
	stub, err := env.querier.IdentityStub(cmd.Context(), serial)
	if err != nil {
		return "", "", err
	}

	keyID := "key-" + uuid.New().String()
	filename := keyID + ".identity"
	if err := utils.AtomicWrite(filepath.Join(env.settings.KeysPath, filename), []byte(stub), 0o600); err != nil {
		return "", "", err
	}

	recoveryCode, err := generateRecoveryCode()
	if err != nil {
		return "", "", err
	}
	recoveryHash, err := registry.HashRecoveryCode(recoveryCode)
	if err != nil {
		return "", "", err
	}

	entry := registry.KeyEntry{
		KeyID:            keyID,
		Kind:             registry.KindYubiKey,
		Label:            label,
		Recipient:        recipient,
		CreatedAt:        time.Now().UTC(),
		KeyFilename:      filename,
		Serial:           serial,
		Slot:             slot,
		PIVSlot:          0x82 + slot - 1,
		IdentityTag:      identityTag,
		RecoveryCodeHash: recoveryHash,
		FirmwareVersion:  firmware,
	}
	if err := env.registry.Add(entry); err != nil {
		return "", "", err
	}
	return keyID, recoveryCode, nil
}
