package archive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeTree lays the given relative path / content pairs out under root.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o700); err != nil {
			t.Fatalf("Failed to create directory for %s: %v", rel, err)
		}
		if err := os.WriteFile(full, []byte(content), 0o600); err != nil {
			t.Fatalf("Failed to write %s: %v", rel, err)
		}
	}
}

func TestStageAndExtractRoundTrip(t *testing.T) {
	src := t.TempDir()
	files := map[string]string{
		"notes.txt":        "remember the milk",
		"photos/cat.jpg":   "not really a jpeg",
		"photos/dog.jpg":   "also not a jpeg",
		"deep/a/b/tax.csv": "year,amount\n2025,42\n",
	}
	writeTree(t, src, files)

	data, manifest, err := Stage(src, []string{"photos/dog.jpg", "notes.txt", "deep/a/b/tax.csv", "photos/cat.jpg"})
	if err != nil {
		t.Fatalf("Stage failed: %v", err)
	}

	// The manifest follows sorted path order regardless of input order.
	if len(manifest) != 4 {
		t.Fatalf("Expected 4 manifest entries, got %d", len(manifest))
	}
	wantOrder := []string{"deep/a/b/tax.csv", "notes.txt", "photos/cat.jpg", "photos/dog.jpg"}
	for i, want := range wantOrder {
		if manifest[i].Path != want {
			t.Errorf("Manifest entry %d: expected %q, got %q", i, want, manifest[i].Path)
		}
		if manifest[i].Size != int64(len(files[want])) {
			t.Errorf("Manifest entry %q: expected size %d, got %d", want, len(files[want]), manifest[i].Size)
		}
		if len(manifest[i].SHA256) != 64 {
			t.Errorf("Manifest entry %q: hash %q is not a sha256 hex digest", want, manifest[i].SHA256)
		}
	}

	dest := t.TempDir()
	if err := Extract(data, dest, manifest); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	for rel, content := range files {
		got, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(rel)))
		if err != nil {
			t.Fatalf("Failed to read extracted %s: %v", rel, err)
		}
		if string(got) != content {
			t.Errorf("Extracted %s: expected %q, got %q", rel, content, got)
		}
	}
}

func TestStageDeterministic(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "one", "b.txt": "two"})

	first, _, err := Stage(src, []string{"a.txt", "b.txt"})
	if err != nil {
		t.Fatalf("First stage failed: %v", err)
	}
	second, _, err := Stage(src, []string{"b.txt", "a.txt"})
	if err != nil {
		t.Fatalf("Second stage failed: %v", err)
	}
	if string(first) != string(second) {
		t.Error("Expected identical archives for identical inputs in any order")
	}
}

func TestStageRejectsEscapingPaths(t *testing.T) {
	src := t.TempDir()

	if _, _, err := Stage(src, []string{"../outside.txt"}); err == nil {
		t.Error("Expected an error for a parent-escaping path")
	}
	if _, _, err := Stage(src, []string{"/etc/passwd"}); err == nil {
		t.Error("Expected an error for an absolute path")
	}
	// Dot segments that resolve above root are caught after cleaning.
	if _, _, err := Stage(src, []string{"photos/../../outside.txt"}); err == nil {
		t.Error("Expected an error for a cleaned parent-escaping path")
	}
}

func TestStageRejectsMissingFile(t *testing.T) {
	src := t.TempDir()

	_, _, err := Stage(src, []string{"no-such-file.txt"})
	if err == nil {
		t.Fatal("Expected an error for a missing file")
	}
	if !strings.Contains(err.Error(), "no-such-file.txt") {
		t.Errorf("Expected the error to name the file, got: %v", err)
	}
}

func TestExtractDetectsTamperedContent(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"secret.txt": "original"})

	data, manifest, err := Stage(src, []string{"secret.txt"})
	if err != nil {
		t.Fatalf("Stage failed: %v", err)
	}

	// Corrupt the manifest hash to simulate payload tampering.
	manifest[0].SHA256 = strings.Repeat("0", 64)

	dest := t.TempDir()
	err = Extract(data, dest, manifest)
	if err == nil {
		t.Fatal("Expected an integrity error")
	}
	if !strings.Contains(err.Error(), "integrity") {
		t.Errorf("Expected an integrity failure, got: %v", err)
	}
	// The mismatching file must not survive on disk.
	if _, statErr := os.Stat(filepath.Join(dest, "secret.txt")); !os.IsNotExist(statErr) {
		t.Error("Expected the tampered file to be removed after the integrity failure")
	}
}

func TestExtractWithoutManifestSkipsVerification(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"plain.txt": "fine"})

	data, _, err := Stage(src, []string{"plain.txt"})
	if err != nil {
		t.Fatalf("Stage failed: %v", err)
	}

	dest := t.TempDir()
	if err := Extract(data, dest, nil); err != nil {
		t.Fatalf("Extract without a manifest failed: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dest, "plain.txt"))
	if err != nil {
		t.Fatalf("Failed to read extracted file: %v", err)
	}
	if string(got) != "fine" {
		t.Errorf("Expected %q, got %q", "fine", got)
	}
}

func TestVerifyReportsChangedAndMissingFiles(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"keep.txt":   "unchanged",
		"edit.txt":   "before",
		"delete.txt": "doomed",
	})

	_, manifest, err := Stage(src, []string{"keep.txt", "edit.txt", "delete.txt"})
	if err != nil {
		t.Fatalf("Stage failed: %v", err)
	}

	if err := os.WriteFile(filepath.Join(src, "edit.txt"), []byte("after"), 0o600); err != nil {
		t.Fatalf("Failed to edit file: %v", err)
	}
	if err := os.Remove(filepath.Join(src, "delete.txt")); err != nil {
		t.Fatalf("Failed to remove file: %v", err)
	}

	mismatched, err := Verify(src, manifest)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if len(mismatched) != 2 {
		t.Fatalf("Expected 2 mismatches, got %d: %v", len(mismatched), mismatched)
	}
	found := map[string]bool{}
	for _, p := range mismatched {
		found[p] = true
	}
	if !found["edit.txt"] || !found["delete.txt"] {
		t.Errorf("Expected edit.txt and delete.txt to be reported, got %v", mismatched)
	}

	// Sorted manifest order puts keep.txt last.
	clean, err := Verify(src, manifest[2:])
	if err != nil {
		t.Fatalf("Verify of unchanged file failed: %v", err)
	}
	if len(clean) != 0 {
		t.Errorf("Expected no mismatches for the unchanged file, got %v", clean)
	}
}
