package utils

import (
	"strings"
	"unicode"
)

// SanitizeLabel converts a user-facing label to a filesystem-safe name:
// lowercase, runs of non-alphanumerics collapsed to single hyphens, trimmed.
func SanitizeLabel(label string) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(label) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// TruncateForDiagnostics keeps the tail of process output for error messages.
// Raw output can be long; the end is where CLI tools print their failures.
func TruncateForDiagnostics(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return "…" + s[len(s)-max:]
}
