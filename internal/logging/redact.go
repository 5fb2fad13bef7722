package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const redactedPlaceholder = "[REDACTED]"

// RedactSecret removes every occurrence of secret from text. Applied to all
// diagnostic output before it leaves the component that held the secret.
func RedactSecret(text, secret string) string {
	if secret == "" {
		return text
	}
	return strings.ReplaceAll(text, secret, redactedPlaceholder)
}

// Fingerprint reduces a device serial to a fixed-length identifier safe for
// logs and audit entries. The raw serial never appears in either.
func Fingerprint(serial string) string {
	if serial == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(serial))
	return "yk-" + hex.EncodeToString(sum[:4])
}
