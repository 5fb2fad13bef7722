package vaults

import (
	"time"
)

// FileEntry records one file captured in a vault payload.
type FileEntry struct {
	Path   string `json:"path"` // relative to the staging root
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// Vault is one vault manifest. It references keys by opaque id only; no
// private key material is ever present here.
type Vault struct {
	VaultID       string    `json:"vault_id"`
	Label         string    `json:"label"`
	SanitizedName string    `json:"sanitized_name"`
	CreatedAt     time.Time `json:"created_at"`

	// KeyIDs is the ordered list of registry keys that unlock this vault.
	// Order matters: decryption attempts hardware identities in this order.
	// An empty list is a legal transient state during setup.
	KeyIDs []string `json:"key_ids"`

	EncryptionRevision uint32     `json:"encryption_revision"`
	LastEncryptedAt    *time.Time `json:"last_encrypted_at,omitempty"`

	// Payload manifest, set on each encryption.
	Files     []FileEntry `json:"files,omitempty"`
	FileCount int         `json:"file_count"`
	TotalSize int64       `json:"total_size"`
}

// HasKey reports whether keyID is in the vault's key list.
func (v *Vault) HasKey(keyID string) bool {
	for _, id := range v.KeyIDs {
		if id == keyID {
			return true
		}
	}
	return false
}
