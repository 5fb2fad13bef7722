package configs

import (
	"log"
	"os"
	"path/filepath"
)

// UserSettings resolves where Vaultik keeps its durable state. Everything is
// per-user and local: there is no project-relative state.
type UserSettings struct {
	// KeysPath holds encrypted passphrase key blobs.
	KeysPath string

	// RegistryPath is the key registry JSON document.
	RegistryPath string

	// VaultsPath holds one manifest per vault plus the current-vault pointer.
	VaultsPath string

	// ConfigsPath holds config.toml.
	ConfigsPath string

	// LogsPath holds the structured log and the audit trail.
	LogsPath string
}

var UserVaultikSettings *UserSettings

func init() {
	UserVaultikSettings = defaultSettings()
}

func defaultSettings() *UserSettings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("error getting home directory: %s", err)
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		log.Fatalf("error getting config directory: %s", err)
	}

	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return SettingsAt(filepath.Join(dataDir, "vaultik"), filepath.Join(configDir, "vaultik"))
}

// SettingsAt builds settings rooted at explicit directories. Tests use this to
// point all state at a temp dir.
func SettingsAt(dataDir, configDir string) *UserSettings {
	return &UserSettings{
		KeysPath:     filepath.Join(dataDir, "keys"),
		RegistryPath: filepath.Join(dataDir, "keys", "registry.json"),
		VaultsPath:   filepath.Join(dataDir, "vaults"),
		ConfigsPath:  configDir,
		LogsPath:     filepath.Join(dataDir, "logs"),
	}
}

// EnsureDirs creates the state directories with owner-only permissions.
func (s *UserSettings) EnsureDirs() error {
	for _, dir := range []string{s.KeysPath, s.VaultsPath, s.ConfigsPath, s.LogsPath} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	return nil
}
