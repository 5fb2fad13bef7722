package configs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

// UserConfig is the persisted per-user configuration.
type UserConfig struct {
	User User  `toml:"user"`
	Pty  Pty   `toml:"pty"`
	Bins Paths `toml:"binaries"`
}

type User struct {
	UUID string `toml:"user_uuid"`
}

// Pty tunes the interactive automation layer.
type Pty struct {
	// TimeoutSeconds bounds every interactive hardware operation, touch
	// confirmation included. Zero means the built-in default.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Paths overrides the external binaries driven by the automation layer.
// Empty values resolve through PATH.
type Paths struct {
	Age       string `toml:"age"`
	AgePlugin string `toml:"age_plugin_yubikey"`
	Ykman     string `toml:"ykman"`
}

func (c *UserConfig) configPath(settings *UserSettings) string {
	return filepath.Join(settings.ConfigsPath, "config.toml")
}

// LoadUserConfig loads the user configuration, returning defaults if the file
// does not exist yet.
func LoadUserConfig(settings *UserSettings) (*UserConfig, error) {
	config := &UserConfig{}
	configPath := config.configPath(settings)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return config, nil
	}

	if err := loadTOML(configPath, config); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}

	return config, nil
}

// SaveUserConfig saves the user configuration to the config file.
func SaveUserConfig(settings *UserSettings, config *UserConfig) error {
	if err := saveTOML(config.configPath(settings), config); err != nil {
		return fmt.Errorf("failed to save user config: %w", err)
	}
	return nil
}

// saveTOML writes a TOML document with the same owner-only permissions as
// the rest of the state tree.
func saveTOML(path string, data interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer file.Close()

	return toml.NewEncoder(file).Encode(data)
}

func loadTOML(path string, data interface{}) error {
	_, err := toml.DecodeFile(path, data)
	return err
}

// EnsureUserConfig ensures the user configuration exists and has a UUID.
func EnsureUserConfig(settings *UserSettings) (*UserConfig, error) {
	config, err := LoadUserConfig(settings)
	if err != nil {
		return nil, err
	}

	if config.User.UUID == "" {
		config.User.UUID = uuid.New().String()
		if err := SaveUserConfig(settings, config); err != nil {
			return nil, err
		}
	}

	return config, nil
}
