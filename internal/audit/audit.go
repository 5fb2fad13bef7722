package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/vaultik/vaultik/internal/configs"
)

// Entry represents a single audit log entry.
type Entry struct {
	Timestamp string `json:"ts"`   // RFC3339 with microseconds.
	UserUUID  string `json:"uuid"` // UUID of the local installation.
	Operation string `json:"op"`   // Operation name.

	// Optional fields depending on operation.
	VaultID    string   `json:"vault_id,omitempty"`    // For vault operations.
	KeyID      string   `json:"key_id,omitempty"`      // For key operations.
	KeyKind    string   `json:"key_kind,omitempty"`    // passphrase or yubikey.
	Device     string   `json:"device,omitempty"`      // Serial fingerprint, never raw.
	KeyIDs     []string `json:"key_ids,omitempty"`     // Recipients of an encrypt.
	FilesCount int      `json:"files_count,omitempty"` // For encrypt/decrypt.
	TotalSize  int64    `json:"total_size,omitempty"`  // For encrypt/decrypt.
	Outcome    string   `json:"outcome,omitempty"`     // ok or the failure category.
	DurationMS int64    `json:"duration_ms,omitempty"` // For interactive operations.
}

// Log appends an entry to the audit log.
// If logging fails, it is dropped silently.
// Operations should not fail just because audit logging failed.
func Log(entry Entry) {
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format("2006-01-02T15:04:05.000000Z")
	}

	logPath := LogPath()
	if logPath == "" {
		return
	}

	// #nosec G306 -- the audit log holds no secret material.
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	_, _ = f.Write(append(data, '\n'))
}

// Begin is a convenience that stamps the operation name and the
// installation UUID from config.
func Begin(op string) Entry {
	entry := Entry{Operation: op}

	userConfig, err := configs.LoadUserConfig(configs.UserVaultikSettings)
	if err != nil {
		return entry
	}
	entry.UserUUID = userConfig.User.UUID
	return entry
}

// LogPath returns the path to the audit log file.
// Returns empty string if the data directory is not configured.
func LogPath() string {
	logsPath := configs.UserVaultikSettings.LogsPath
	if logsPath == "" {
		return ""
	}
	return filepath.Join(logsPath, "audit.jsonl")
}

// ReadEntries reads all entries from the audit log.
// Returns an empty slice if the log doesn't exist.
func ReadEntries() ([]Entry, error) {
	logPath := LogPath()
	if logPath == "" {
		return nil, nil
	}

	data, err := os.ReadFile(logPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return ParseEntries(data)
}

// ParseEntries parses JSON Lines data into audit entries.
// Malformed lines are silently skipped.
func ParseEntries(data []byte) ([]Entry, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var entries []Entry
	start := 0

	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			line := data[start:i]
			start = i + 1

			if len(line) == 0 {
				continue
			}

			var entry Entry
			if err := json.Unmarshal(line, &entry); err != nil {
				// Skip malformed entries.
				continue
			}
			entries = append(entries, entry)
		}
	}

	return entries, nil
}
