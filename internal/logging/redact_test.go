package logging

import (
	"strings"
	"testing"
)

func TestRedactSecret(t *testing.T) {
	text := "Enter PIN: 123456\nPIN accepted: 123456\ndone"
	got := RedactSecret(text, "123456")

	if strings.Contains(got, "123456") {
		t.Errorf("Expected every occurrence removed, got %q", got)
	}
	if strings.Count(got, "[REDACTED]") != 2 {
		t.Errorf("Expected 2 placeholders, got %q", got)
	}
	if !strings.Contains(got, "done") {
		t.Errorf("Expected surrounding text preserved, got %q", got)
	}
}

func TestRedactSecretEmptySecret(t *testing.T) {
	text := "nothing to hide"
	if got := RedactSecret(text, ""); got != text {
		t.Errorf("Expected text unchanged for an empty secret, got %q", got)
	}
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("11122233")

	if !strings.HasPrefix(fp, "yk-") {
		t.Errorf("Expected a yk- prefix, got %q", fp)
	}
	if len(fp) != len("yk-")+8 {
		t.Errorf("Expected an 8 hex digit fingerprint, got %q", fp)
	}
	if strings.Contains(fp, "11122233") {
		t.Errorf("Expected the raw serial to never appear, got %q", fp)
	}

	// Stable for the same serial, distinct across serials.
	if Fingerprint("11122233") != fp {
		t.Error("Expected a stable fingerprint for the same serial")
	}
	if Fingerprint("99988877") == fp {
		t.Error("Expected different serials to fingerprint differently")
	}
}

func TestFingerprintEmptySerial(t *testing.T) {
	if got := Fingerprint(""); got != "" {
		t.Errorf("Expected an empty fingerprint for an empty serial, got %q", got)
	}
}
