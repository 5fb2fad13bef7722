package crypto

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"filippo.io/age"
	"filippo.io/age/plugin"

	vaulterrors "github.com/vaultik/vaultik/internal/errors"
	"github.com/vaultik/vaultik/internal/logging"
	"github.com/vaultik/vaultik/internal/pty"
	"github.com/vaultik/vaultik/internal/registry"
	"github.com/vaultik/vaultik/internal/vaults"
	"github.com/vaultik/vaultik/internal/yubikey"
)

// DeviceQuerier snapshots one hardware slot. A nil view with a nil error
// means the device is not attached.
type DeviceQuerier interface {
	View(ctx context.Context, serial string, slot uint8) (*yubikey.DeviceView, error)
}

// HardwareDecryptor performs one plugin-mediated decryption with the
// identity stub at identityPath. The default implementation drives the age
// binary through a pseudo-terminal; tests substitute a pure-Go fake.
type HardwareDecryptor interface {
	Decrypt(ctx context.Context, identityPath string, ciphertext []byte, pin pty.SecretProvider, onTouch func()) ([]byte, error)
}

// Engine encrypts vault payloads for every registered key at once and
// decrypts with whichever identity is currently available.
type Engine struct {
	Registry *registry.Registry
	// KeysDir holds wrapped passphrase key files and hardware identity stubs.
	KeysDir string
	// Devices supplies live hardware snapshots for classification.
	Devices DeviceQuerier
	// Hardware performs plugin-mediated decryption.
	Hardware HardwareDecryptor
	// Timeout bounds each interactive hardware attempt.
	Timeout time.Duration

	mu          sync.Mutex
	deviceLocks map[string]*sync.Mutex
}

// NewEngine wires an engine against real hardware via the vendor tools.
func NewEngine(reg *registry.Registry, keysDir string, querier *yubikey.Querier, ageBin string, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = pty.DefaultTimeout
	}
	return &Engine{
		Registry: reg,
		KeysDir:  keysDir,
		Devices:  querier,
		Hardware: &pluginDecryptor{ageBin: ageBin, timeout: timeout},
		Timeout:  timeout,
	}
}

// EncryptResult reports which keys a payload was sealed for.
type EncryptResult struct {
	Ciphertext []byte
	// KeyIDs lists every key the payload can be opened with, for audit
	// display. Encryption does not count as key use, so none of their
	// last-used stamps move.
	KeyIDs []string
}

// Encrypt seals plaintext for all of the vault's keys. Each recipient
// independently wraps the same content key, so any single identity opens
// the whole payload; losing one hardware key never locks the user out
// while another key is still bound. Hardware recipients are wrapped from
// their public recipient string alone, no device interaction happens here.
func (e *Engine) Encrypt(ctx context.Context, vault *vaults.Vault, plaintext io.Reader) (*EncryptResult, error) {
	if len(vault.KeyIDs) == 0 {
		return nil, vaulterrors.ErrNoRecipients
	}

	var recipients []age.Recipient
	var keyIDs []string
	for _, keyID := range vault.KeyIDs {
		entry, ok := e.Registry.Get(keyID)
		if !ok {
			return nil, fmt.Errorf("vault %s references unknown key %s: %w", vault.VaultID, keyID, vaulterrors.ErrKeyNotFound)
		}
		recipient, err := parseRecipient(entry.Recipient)
		if err != nil {
			return nil, fmt.Errorf("key %s has an unusable recipient: %w", keyID, err)
		}
		recipients = append(recipients, recipient)
		keyIDs = append(keyIDs, keyID)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipients...)
	if err != nil {
		return nil, fmt.Errorf("failed to start encryption: %w", err)
	}
	if _, err := io.Copy(w, plaintext); err != nil {
		return nil, fmt.Errorf("failed to encrypt payload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize ciphertext: %w", err)
	}

	logging.Op("encrypt").
		WithField("vault", vault.VaultID).
		WithField("recipients", len(recipients)).
		Info("payload encrypted")

	return &EncryptResult{Ciphertext: buf.Bytes(), KeyIDs: keyIDs}, nil
}

// DecryptOptions selects which identities a decrypt call may try.
type DecryptOptions struct {
	// Passphrase supplies the passphrase on demand. Nil skips every
	// passphrase key.
	Passphrase pty.SecretProvider
	// PassphraseOnly stops after the passphrase attempts instead of
	// falling through to hardware keys.
	PassphraseOnly bool
	// PIN supplies the device PIN when a hardware attempt prompts for it.
	PIN pty.SecretProvider
	// OnTouch is invoked when a hardware attempt is waiting on a physical
	// touch, for UI feedback.
	OnTouch func()
}

// DecryptResult carries the recovered plaintext and the key that won.
type DecryptResult struct {
	Plaintext []byte
	KeyID     string
}

// Attempt records one failed identity attempt inside a NoIdentityError.
type Attempt struct {
	KeyID string
	Err   error
}

// NoIdentityError aggregates the per-identity failure reasons when no
// available identity could open the payload. It unwraps to
// ErrNoMatchingIdentity for callers that only branch on the category.
type NoIdentityError struct {
	Attempts []Attempt
}

func (e *NoIdentityError) Error() string {
	if len(e.Attempts) == 0 {
		return vaulterrors.ErrNoMatchingIdentity.Error()
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.KeyID, a.Err))
	}
	return fmt.Sprintf("%s (%s)", vaulterrors.ErrNoMatchingIdentity.Error(), strings.Join(parts, "; "))
}

func (e *NoIdentityError) Unwrap() error {
	return vaulterrors.ErrNoMatchingIdentity
}

// Decrypt tries the vault's identities in a fixed order: passphrase keys
// first when the caller supplied a passphrase, then hardware keys in the
// vault's key list order. Each hardware key is classified against a live
// device snapshot before anything touches the hardware; keys whose device
// is absent or locked are recorded as failures, keys in any other
// non-registered state are skipped. The first identity to unwrap the
// content key wins and only that key's last-used stamp is updated.
func (e *Engine) Decrypt(ctx context.Context, vault *vaults.Vault, ciphertext []byte, opts DecryptOptions) (*DecryptResult, error) {
	var attempts []Attempt

	if opts.Passphrase != nil {
		for _, keyID := range vault.KeyIDs {
			entry, ok := e.Registry.Get(keyID)
			if !ok || entry.Kind != registry.KindPassphrase {
				continue
			}
			plaintext, err := e.tryPassphrase(entry, ciphertext, opts.Passphrase)
			if err == nil {
				return e.win(vault, keyID, plaintext), nil
			}
			attempts = append(attempts, Attempt{KeyID: keyID, Err: err})
			if opts.PassphraseOnly {
				return nil, &NoIdentityError{Attempts: attempts}
			}
		}
	}

	if !opts.PassphraseOnly {
		for _, keyID := range vault.KeyIDs {
			entry, ok := e.Registry.Get(keyID)
			if !ok || entry.Kind != registry.KindYubiKey {
				continue
			}
			plaintext, err, skipped := e.tryHardware(ctx, vault, entry, ciphertext, opts)
			if err == nil && !skipped {
				return e.win(vault, keyID, plaintext), nil
			}
			if !skipped {
				attempts = append(attempts, Attempt{KeyID: keyID, Err: err})
			}
		}
	}

	return nil, &NoIdentityError{Attempts: attempts}
}

func (e *Engine) win(vault *vaults.Vault, keyID string, plaintext []byte) *DecryptResult {
	if err := e.Registry.TouchLastUsed(keyID); err != nil {
		logging.Op("decrypt").WithField("key_id", keyID).WithError(err).Warn("failed to update last-used stamp")
	}
	logging.Op("decrypt").
		WithField("vault", vault.VaultID).
		WithField("key_id", keyID).
		Info("payload decrypted")
	return &DecryptResult{Plaintext: plaintext, KeyID: keyID}
}

func (e *Engine) tryPassphrase(entry *registry.KeyEntry, ciphertext []byte, passphrase pty.SecretProvider) ([]byte, error) {
	secret, err := passphrase()
	if err != nil {
		return nil, err
	}
	blob, err := os.ReadFile(filepath.Join(e.KeysDir, entry.KeyFilename))
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	identity, err := UnwrapIdentity(blob, secret)
	if err != nil {
		return nil, err
	}
	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("identity does not open this payload: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read decrypted payload: %w", err)
	}
	return plaintext, nil
}

// tryHardware classifies the device, then runs one serialized decryption
// attempt against it. The skipped return distinguishes "identity not
// usable right now but not a failure" from a real error.
func (e *Engine) tryHardware(ctx context.Context, vault *vaults.Vault, entry *registry.KeyEntry, ciphertext []byte, opts DecryptOptions) ([]byte, error, bool) {
	view, err := e.Devices.View(ctx, entry.Serial, entry.Slot)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vaulterrors.ErrDeviceUnreachable, err), false
	}

	switch state := yubikey.Classify(view, e.Registry, vault); state {
	case yubikey.StateRegistered:
	case yubikey.StateUnreachable:
		return nil, vaulterrors.ErrDeviceUnreachable, false
	case yubikey.StateLocked:
		return nil, vaulterrors.ErrDeviceLocked, false
	default:
		logging.Op("decrypt").
			WithField("key_id", entry.KeyID).
			WithField("device", logging.Fingerprint(entry.Serial)).
			WithField("state", state.String()).
			Debug("skipping hardware key")
		return nil, nil, true
	}

	// One PIV session per physical device at a time.
	unlock := e.lockDevice(entry.Serial)
	defer unlock()

	started := time.Now()
	plaintext, err := e.Hardware.Decrypt(ctx, filepath.Join(e.KeysDir, entry.KeyFilename), ciphertext, opts.PIN, opts.OnTouch)
	logging.Op("decrypt").
		WithField("device", logging.Fingerprint(entry.Serial)).
		WithField("duration", time.Since(started).String()).
		WithField("ok", err == nil).
		Debug("hardware attempt finished")
	if err != nil {
		return nil, err, false
	}
	return plaintext, nil, false
}

func (e *Engine) lockDevice(serial string) func() {
	e.mu.Lock()
	if e.deviceLocks == nil {
		e.deviceLocks = make(map[string]*sync.Mutex)
	}
	lock, ok := e.deviceLocks[serial]
	if !ok {
		lock = &sync.Mutex{}
		e.deviceLocks[serial] = lock
	}
	e.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

// parseRecipient accepts native x25519 recipients and plugin recipients.
// Plugin wrapping shells out to the plugin binary with only the public
// recipient data, so it needs no attached device.
func parseRecipient(s string) (age.Recipient, error) {
	if recipient, err := age.ParseX25519Recipient(s); err == nil {
		return recipient, nil
	}
	return plugin.NewRecipient(s, silentClientUI())
}

// silentClientUI rejects interactive requests. Recipient wrapping never
// legitimately asks for input, so a request here is a plugin bug worth
// surfacing rather than hanging on.
func silentClientUI() *plugin.ClientUI {
	return &plugin.ClientUI{
		DisplayMessage: func(name, message string) error {
			logging.Op("plugin").WithField("plugin", name).Info(message)
			return nil
		},
		RequestValue: func(name, message string, secret bool) (string, error) {
			return "", fmt.Errorf("plugin %s requested input during non-interactive operation", name)
		},
		Confirm: func(name, message, yes, no string) (bool, error) {
			return false, fmt.Errorf("plugin %s requested confirmation during non-interactive operation", name)
		},
	}
}
