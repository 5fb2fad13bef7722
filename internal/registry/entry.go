package registry

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Kind discriminates the closed set of key entry variants. Consumers switch
// exhaustively on it; adding a kind means visiting every switch.
type Kind string

const (
	KindPassphrase Kind = "passphrase"
	KindYubiKey    Kind = "yubikey"
)

// KeyEntry is one registry record: a key that can unlock vaults. The key id is
// globally unique; entries are independent of any single vault and may be
// referenced by several.
type KeyEntry struct {
	KeyID     string     `json:"key_id"`
	Kind      Kind       `json:"type"`
	Label     string     `json:"label"`
	Recipient string     `json:"recipient"` // age recipient string (public half)
	CreatedAt time.Time  `json:"created_at"`
	LastUsed  *time.Time `json:"last_used,omitempty"`

	// KeyFilename is relative to the keys directory. For passphrase keys it
	// names the age-encrypted private key blob (the wrapping salt and scrypt
	// parameters live inside the blob's age header); for hardware keys it
	// names the identity stub, which holds no private material.
	KeyFilename string `json:"key_filename,omitempty"`

	// YubiKey-only fields.
	Serial           string `json:"serial,omitempty"`
	Slot             uint8  `json:"slot,omitempty"`     // retired slot number (1-20)
	PIVSlot          uint8  `json:"piv_slot,omitempty"` // PIV slot mapping (0x82-0x95)
	IdentityTag      string `json:"identity_tag,omitempty"`
	RecoveryCodeHash string `json:"recovery_code_hash,omitempty"`
	FirmwareVersion  string `json:"firmware_version,omitempty"`
}

// Validate checks the kind-specific required fields.
func (e *KeyEntry) Validate() error {
	if e.KeyID == "" {
		return fmt.Errorf("key entry missing key id")
	}
	if e.Recipient == "" {
		return fmt.Errorf("key entry %s missing recipient", e.KeyID)
	}

	switch e.Kind {
	case KindPassphrase:
		if e.KeyFilename == "" {
			return fmt.Errorf("passphrase entry %s missing key filename", e.KeyID)
		}
	case KindYubiKey:
		if e.Serial == "" {
			return fmt.Errorf("yubikey entry %s missing serial", e.KeyID)
		}
		if e.IdentityTag == "" {
			return fmt.Errorf("yubikey entry %s missing identity tag", e.KeyID)
		}
	default:
		return fmt.Errorf("key entry %s has unknown kind %q", e.KeyID, e.Kind)
	}

	return nil
}

// MatchesSlot reports whether this entry is backed by the given physical slot.
func (e *KeyEntry) MatchesSlot(serial string, slot uint8) bool {
	return e.Kind == KindYubiKey && e.Serial == serial && e.Slot == slot
}

// VerifyRecoveryCode checks a recovery code against the stored hash.
func (e *KeyEntry) VerifyRecoveryCode(code string) bool {
	if e.RecoveryCodeHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(e.RecoveryCodeHash), []byte(code)) == nil
}

// HashRecoveryCode produces the stored form of a recovery code.
func HashRecoveryCode(code string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash recovery code: %w", err)
	}
	return string(hash), nil
}
