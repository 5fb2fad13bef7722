package crypto

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"

	vaulterrors "github.com/vaultik/vaultik/internal/errors"
)

// GenerateIdentity creates a fresh x25519 identity for a passphrase key.
func GenerateIdentity() (*age.X25519Identity, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("failed to generate identity: %w", err)
	}
	return identity, nil
}

// WrapIdentity seals an identity under a passphrase using an scrypt
// recipient stanza, producing an armored blob safe to store on disk. The
// vault ciphertext itself never carries scrypt stanzas; only this key file
// does, which is what lets vault payloads mix passphrase and hardware
// recipients freely.
func WrapIdentity(identity *age.X25519Identity, passphrase string) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to derive passphrase recipient: %w", err)
	}

	var buf bytes.Buffer
	armorWriter := armor.NewWriter(&buf)
	w, err := age.Encrypt(armorWriter, recipient)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap identity: %w", err)
	}
	if _, err := io.WriteString(w, identity.String()+"\n"); err != nil {
		return nil, fmt.Errorf("failed to write identity: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize wrapped identity: %w", err)
	}
	if err := armorWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize armor: %w", err)
	}
	return buf.Bytes(), nil
}

// UnwrapIdentity opens a wrapped key file with the given passphrase. A
// passphrase that fails to unwrap yields ErrWrongPassphrase so callers can
// offer a retry without inspecting library internals.
func UnwrapIdentity(blob []byte, passphrase string) (*age.X25519Identity, error) {
	scryptIdentity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to derive passphrase identity: %w", err)
	}

	var src io.Reader = bytes.NewReader(blob)
	if bytes.HasPrefix(bytes.TrimSpace(blob), []byte(armor.Header)) {
		src = armor.NewReader(src)
	}

	r, err := age.Decrypt(src, scryptIdentity)
	if err != nil {
		var noMatch *age.NoIdentityMatchError
		if errors.As(err, &noMatch) {
			return nil, vaulterrors.ErrWrongPassphrase
		}
		return nil, fmt.Errorf("failed to unwrap key file: %w", err)
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		var noMatch *age.NoIdentityMatchError
		if errors.As(err, &noMatch) {
			return nil, vaulterrors.ErrWrongPassphrase
		}
		return nil, fmt.Errorf("failed to read key file payload: %w", err)
	}

	identity, err := age.ParseX25519Identity(strings.TrimSpace(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("key file payload is not a valid identity: %w", err)
	}
	return identity, nil
}
