package configs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testSettings(t *testing.T) *UserSettings {
	t.Helper()
	dir := t.TempDir()
	settings := SettingsAt(filepath.Join(dir, "data"), filepath.Join(dir, "config"))
	if err := settings.EnsureDirs(); err != nil {
		t.Fatalf("Failed to create state directories: %v", err)
	}
	return settings
}

func TestSettingsAtLaysOutStateDirectories(t *testing.T) {
	settings := SettingsAt("/data/vaultik", "/config/vaultik")

	if settings.KeysPath != filepath.Join("/data/vaultik", "keys") {
		t.Errorf("Unexpected keys path: %s", settings.KeysPath)
	}
	if settings.RegistryPath != filepath.Join("/data/vaultik", "keys", "registry.json") {
		t.Errorf("Unexpected registry path: %s", settings.RegistryPath)
	}
	if settings.VaultsPath != filepath.Join("/data/vaultik", "vaults") {
		t.Errorf("Unexpected vaults path: %s", settings.VaultsPath)
	}
	if settings.ConfigsPath != "/config/vaultik" {
		t.Errorf("Unexpected configs path: %s", settings.ConfigsPath)
	}
	if settings.LogsPath != filepath.Join("/data/vaultik", "logs") {
		t.Errorf("Unexpected logs path: %s", settings.LogsPath)
	}
}

func TestEnsureDirsCreatesOwnerOnlyDirectories(t *testing.T) {
	settings := testSettings(t)

	for _, dir := range []string{settings.KeysPath, settings.VaultsPath, settings.ConfigsPath, settings.LogsPath} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("Expected %s to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Errorf("Expected %s to be a directory", dir)
		}
		if perm := info.Mode().Perm(); perm != 0o700 {
			t.Errorf("Expected %s to be owner-only, got %o", dir, perm)
		}
	}
}

func TestLoadUserConfigMissingFileReturnsDefaults(t *testing.T) {
	settings := testSettings(t)

	config, err := LoadUserConfig(settings)
	if err != nil {
		t.Fatalf("Expected defaults for a missing config, got error: %v", err)
	}
	if config.User.UUID != "" {
		t.Errorf("Expected an empty UUID, got %s", config.User.UUID)
	}
	if config.Pty.TimeoutSeconds != 0 {
		t.Errorf("Expected a zero timeout, got %d", config.Pty.TimeoutSeconds)
	}
}

func TestSaveAndLoadUserConfigRoundTrip(t *testing.T) {
	settings := testSettings(t)

	saved := &UserConfig{}
	saved.User.UUID = "8e7a4d1c-0000-4000-8000-1234567890ab"
	saved.Pty.TimeoutSeconds = 90
	saved.Bins.Age = "/opt/age/bin/age"
	saved.Bins.AgePlugin = "/opt/age/bin/age-plugin-yubikey"
	saved.Bins.Ykman = "/usr/local/bin/ykman"

	if err := SaveUserConfig(settings, saved); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loaded, err := LoadUserConfig(settings)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if loaded.User.UUID != saved.User.UUID {
		t.Errorf("Expected UUID %s, got %s", saved.User.UUID, loaded.User.UUID)
	}
	if loaded.Pty.TimeoutSeconds != 90 {
		t.Errorf("Expected timeout 90, got %d", loaded.Pty.TimeoutSeconds)
	}
	if loaded.Bins.Ykman != "/usr/local/bin/ykman" {
		t.Errorf("Expected ykman override to survive, got %s", loaded.Bins.Ykman)
	}

	info, err := os.Stat(filepath.Join(settings.ConfigsPath, "config.toml"))
	if err != nil {
		t.Fatalf("Failed to stat config file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("Expected the config file to be owner-only, got %o", perm)
	}
}

func TestEnsureUserConfigStampsUUIDOnce(t *testing.T) {
	settings := testSettings(t)

	first, err := EnsureUserConfig(settings)
	if err != nil {
		t.Fatalf("Failed to ensure config: %v", err)
	}
	if first.User.UUID == "" {
		t.Fatal("Expected a UUID to be generated")
	}

	// A second call loads the same installation identity.
	second, err := EnsureUserConfig(settings)
	if err != nil {
		t.Fatalf("Failed to ensure config again: %v", err)
	}
	if second.User.UUID != first.User.UUID {
		t.Errorf("Expected a stable UUID, got %s then %s", first.User.UUID, second.User.UUID)
	}

	// The UUID is on disk, not just in memory.
	data, err := os.ReadFile(filepath.Join(settings.ConfigsPath, "config.toml"))
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}
	if !strings.Contains(string(data), first.User.UUID) {
		t.Error("Expected the UUID to be persisted in config.toml")
	}
}
