package audit

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/vaultik/vaultik/internal/configs"
)

// withTempSettings points the global settings at a temp directory and
// restores the original on cleanup.
func withTempSettings(t *testing.T) string {
	t.Helper()

	tempDir := t.TempDir()
	original := configs.UserVaultikSettings
	configs.UserVaultikSettings = configs.SettingsAt(tempDir, tempDir)
	t.Cleanup(func() {
		configs.UserVaultikSettings = original
	})

	if err := os.MkdirAll(configs.UserVaultikSettings.LogsPath, 0o700); err != nil {
		t.Fatalf("Failed to create logs dir: %v", err)
	}
	return tempDir
}

func TestLog_CreatesFile(t *testing.T) {
	withTempSettings(t)

	// Log an entry.
	entry := Entry{
		UserUUID:  "test-uuid",
		Operation: "vault.encrypt",
		VaultID:   "vault-1",
		KeyIDs:    []string{"key-a", "key-b"},
	}
	Log(entry)

	// Verify file was created.
	if _, err := os.Stat(LogPath()); os.IsNotExist(err) {
		t.Fatalf("Audit log file was not created")
	}
}

func TestLog_AppendsEntries(t *testing.T) {
	withTempSettings(t)

	// Log multiple entries.
	Log(Entry{UserUUID: "uuid-1", Operation: "keys.generate", KeyID: "key-a"})
	Log(Entry{UserUUID: "uuid-1", Operation: "vault.encrypt", VaultID: "vault-1"})
	Log(Entry{UserUUID: "uuid-1", Operation: "vault.decrypt", VaultID: "vault-1", Outcome: "ok"})

	// Read and verify.
	entries, err := ReadEntries()
	if err != nil {
		t.Fatalf("Failed to read entries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	if entries[0].Operation != "keys.generate" {
		t.Errorf("Expected first operation to be keys.generate, got %s", entries[0].Operation)
	}
	if entries[2].Outcome != "ok" {
		t.Errorf("Expected last outcome to be ok, got %s", entries[2].Outcome)
	}
}

func TestLog_StampsTimestamp(t *testing.T) {
	withTempSettings(t)

	Log(Entry{UserUUID: "uuid-1", Operation: "vault.init"})

	entries, err := ReadEntries()
	if err != nil {
		t.Fatalf("Failed to read entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].Timestamp == "" {
		t.Error("Expected a timestamp to be stamped automatically")
	}
	if !strings.HasSuffix(entries[0].Timestamp, "Z") {
		t.Errorf("Expected a UTC timestamp, got %s", entries[0].Timestamp)
	}
}

func TestLog_ProducesValidJSONLines(t *testing.T) {
	withTempSettings(t)

	Log(Entry{
		UserUUID:   "uuid-1",
		Operation:  "vault.decrypt",
		VaultID:    "vault-1",
		KeyID:      "key-a",
		KeyKind:    "yubikey",
		Device:     "yk-deadbeef",
		FilesCount: 3,
		TotalSize:  4096,
		Outcome:    "ok",
		DurationMS: 1200,
	})

	data, err := os.ReadFile(LogPath())
	if err != nil {
		t.Fatalf("Failed to read audit log: %v", err)
	}

	// Each line must independently unmarshal.
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line, got %d", len(lines))
	}
	var entry Entry
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("Line is not valid JSON: %v", err)
	}
	if entry.Device != "yk-deadbeef" {
		t.Errorf("Expected device yk-deadbeef, got %s", entry.Device)
	}
	if entry.DurationMS != 1200 {
		t.Errorf("Expected duration 1200, got %d", entry.DurationMS)
	}
}

func TestLog_DroppedSilentlyWithoutSettings(t *testing.T) {
	original := configs.UserVaultikSettings
	configs.UserVaultikSettings = &configs.UserSettings{}
	defer func() {
		configs.UserVaultikSettings = original
	}()

	// Must not panic or create files anywhere.
	Log(Entry{UserUUID: "uuid-1", Operation: "vault.init"})

	if LogPath() != "" {
		t.Errorf("Expected an empty log path without a logs directory, got %s", LogPath())
	}
}

func TestReadEntries_MissingFile(t *testing.T) {
	withTempSettings(t)

	entries, err := ReadEntries()
	if err != nil {
		t.Fatalf("Expected no error for a missing log, got: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no entries, got %d", len(entries))
	}
}

func TestParseEntries_SkipsMalformedLines(t *testing.T) {
	data := strings.Join([]string{
		`{"ts":"2026-01-02T03:04:05.000000Z","uuid":"uuid-1","op":"vault.encrypt"}`,
		`this is not json`,
		`{"ts":"2026-01-02T03:04:06.000000Z","uuid":"uuid-1","op":"vault.decrypt"}`,
		``,
		`{"broken`,
	}, "\n")

	entries, err := ParseEntries([]byte(data))
	if err != nil {
		t.Fatalf("ParseEntries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 valid entries, got %d", len(entries))
	}
	if entries[0].Operation != "vault.encrypt" || entries[1].Operation != "vault.decrypt" {
		t.Errorf("Unexpected operations: %s, %s", entries[0].Operation, entries[1].Operation)
	}
}

func TestParseEntries_Empty(t *testing.T) {
	entries, err := ParseEntries(nil)
	if err != nil {
		t.Fatalf("ParseEntries failed on empty input: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no entries, got %d", len(entries))
	}
}
