package crypto

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vaultik/vaultik/internal/pty"
)

// pluginDecryptor runs the age binary under a pseudo-terminal so the
// yubikey plugin can prompt for PIN and touch. Ciphertext is staged
// through a private temp directory because the plugin pipeline works on
// files, not pipes.
type pluginDecryptor struct {
	ageBin  string
	timeout time.Duration
}

func (d *pluginDecryptor) Decrypt(ctx context.Context, identityPath string, ciphertext []byte, pin pty.SecretProvider, onTouch func()) ([]byte, error) {
	dir, err := os.MkdirTemp("", "vaultik-decrypt-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(dir)

	inPath := filepath.Join(dir, "payload.age")
	outPath := filepath.Join(dir, "payload")
	if err := os.WriteFile(inPath, ciphertext, 0o600); err != nil {
		return nil, fmt.Errorf("failed to stage ciphertext: %w", err)
	}

	_, err = pty.Run(ctx, pty.Options{
		Command: d.ageBin,
		Args:    []string{"--decrypt", "--identity", identityPath, "--output", outPath, inPath},
		Secret:  pin,
		OnTouch: onTouch,
		Timeout: d.timeout,
	})
	if err != nil {
		return nil, err
	}

	plaintext, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("decryption produced no output: %w", err)
	}
	return plaintext, nil
}
