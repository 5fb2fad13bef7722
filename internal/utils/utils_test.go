package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeLabel(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"Family Photos", "family-photos"},
		{"  Tax Docs 2025  ", "tax-docs-2025"},
		{"already-clean", "already-clean"},
		{"Weird///Name!!!", "weird-name"},
		{"--leading--and--trailing--", "leading-and-trailing"},
		{"MiXeD CaSe", "mixed-case"},
		{"", ""},
		{"!!!", ""},
	}

	for _, c := range cases {
		if got := SanitizeLabel(c.input); got != c.want {
			t.Errorf("SanitizeLabel(%q): expected %q, got %q", c.input, c.want, got)
		}
	}
}

func TestTruncateForDiagnostics(t *testing.T) {
	if got := TruncateForDiagnostics("short output", 100); got != "short output" {
		t.Errorf("Expected short input unchanged, got %q", got)
	}

	// The tail survives, not the head: CLI tools print failures last.
	long := strings.Repeat("x", 100) + "error: slot in use"
	got := TruncateForDiagnostics(long, 20)
	if !strings.HasSuffix(got, "error: slot in use") {
		t.Errorf("Expected the tail to survive, got %q", got)
	}
	if !strings.HasPrefix(got, "…") {
		t.Errorf("Expected a truncation marker, got %q", got)
	}

	if got := TruncateForDiagnostics("  padded  ", 100); got != "padded" {
		t.Errorf("Expected surrounding whitespace trimmed, got %q", got)
	}
}

func TestAtomicWriteCreatesFileWithPermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "state.json")

	if err := AtomicWrite(path, []byte(`{"v":1}`), 0o600); err != nil {
		t.Fatalf("AtomicWrite failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read written file: %v", err)
	}
	if string(data) != `{"v":1}` {
		t.Errorf("Unexpected content: %q", data)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Failed to stat written file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("Expected mode 600, got %o", perm)
	}
}

func TestAtomicWriteReplacesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	if err := AtomicWrite(path, []byte("old"), 0o600); err != nil {
		t.Fatalf("First write failed: %v", err)
	}
	if err := AtomicWrite(path, []byte("new"), 0o600); err != nil {
		t.Fatalf("Second write failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(data) != "new" {
		t.Errorf("Expected replacement content, got %q", data)
	}
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	if err := AtomicWrite(path, []byte("content"), 0o600); err != nil {
		t.Fatalf("AtomicWrite failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to list directory: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "state.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("Expected only state.json, got %v", names)
	}
}
