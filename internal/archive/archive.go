package archive

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vaultik/vaultik/internal/vaults"
)

// Stage collects the named files under root into a tar stream and returns
// it with a per-file manifest. Paths in the manifest and the archive are
// slash-separated and relative to root, so the same vault round-trips
// across platforms. Files are written in sorted path order to keep the
// archive bytes stable for identical inputs.
func Stage(root string, paths []string) ([]byte, []vaults.FileEntry, error) {
	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	var manifest []vaults.FileEntry

	for _, rel := range sorted {
		entry, err := stageFile(tw, root, rel)
		if err != nil {
			return nil, nil, err
		}
		manifest = append(manifest, *entry)
	}

	if err := tw.Close(); err != nil {
		return nil, nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return buf.Bytes(), manifest, nil
}

func stageFile(tw *tar.Writer, root, rel string) (*vaults.FileEntry, error) {
	rel = filepath.ToSlash(filepath.Clean(rel))
	if strings.HasPrefix(rel, "../") || filepath.IsAbs(rel) {
		return nil, fmt.Errorf("path %q escapes the vault root", rel)
	}

	full := filepath.Join(root, filepath.FromSlash(rel))
	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", rel, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", rel, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", rel)
	}

	hdr := &tar.Header{
		Name:    rel,
		Mode:    int64(info.Mode().Perm()),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return nil, fmt.Errorf("failed to write archive header for %s: %w", rel, err)
	}

	hash := sha256.New()
	n, err := io.Copy(io.MultiWriter(tw, hash), f)
	if err != nil {
		return nil, fmt.Errorf("failed to archive %s: %w", rel, err)
	}

	return &vaults.FileEntry{
		Path:   rel,
		Size:   n,
		SHA256: hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

// Extract unpacks an archive into destDir, verifying each file against the
// manifest when one is supplied. A hash mismatch aborts the whole extract
// before the mismatching file is kept on disk. Entries with absolute or
// parent-escaping names are rejected.
func Extract(data []byte, destDir string, manifest []vaults.FileEntry) error {
	expected := make(map[string]vaults.FileEntry, len(manifest))
	for _, e := range manifest {
		expected[e.Path] = e
	}

	tr := tar.NewReader(bytes.NewReader(data))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if err := extractFile(tr, hdr, destDir, expected); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(tr *tar.Reader, hdr *tar.Header, destDir string, expected map[string]vaults.FileEntry) error {
	name := filepath.ToSlash(filepath.Clean(hdr.Name))
	if strings.HasPrefix(name, "../") || filepath.IsAbs(name) {
		return fmt.Errorf("archive entry %q escapes the destination", hdr.Name)
	}

	full := filepath.Join(destDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(full), 0o700); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", name, err)
	}

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode).Perm())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}

	hash := sha256.New()
	_, copyErr := io.Copy(io.MultiWriter(f, hash), tr)
	closeErr := f.Close()
	if copyErr != nil {
		os.Remove(full)
		return fmt.Errorf("failed to extract %s: %w", name, copyErr)
	}
	if closeErr != nil {
		os.Remove(full)
		return fmt.Errorf("failed to write %s: %w", name, closeErr)
	}

	if want, ok := expected[name]; ok {
		got := hex.EncodeToString(hash.Sum(nil))
		if got != want.SHA256 {
			os.Remove(full)
			return fmt.Errorf("integrity check failed for %s: content hash does not match the manifest", name)
		}
	}
	return nil
}

// Verify recomputes each manifest entry's hash against files on disk under
// root, returning the paths that no longer match. A missing file counts as
// a mismatch.
func Verify(root string, manifest []vaults.FileEntry) ([]string, error) {
	var mismatched []string
	for _, entry := range manifest {
		full := filepath.Join(root, filepath.FromSlash(entry.Path))
		f, err := os.Open(full)
		if err != nil {
			mismatched = append(mismatched, entry.Path)
			continue
		}
		hash := sha256.New()
		_, err = io.Copy(hash, f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to hash %s: %w", entry.Path, err)
		}
		if hex.EncodeToString(hash.Sum(nil)) != entry.SHA256 {
			mismatched = append(mismatched, entry.Path)
		}
	}
	return mismatched, nil
}
