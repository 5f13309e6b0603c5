package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// LoadSettings decodes the settings file at path. A missing file is created
// from the template and the defaults are returned.
func LoadSettings(path string) (*Settings, error) {
	cfg := DefaultSettings()

	if !FileExists(path) {
		if err := CreateDefaultSettings(path); err != nil {
			return nil, fmt.Errorf("failed to create settings: %w", err)
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	return cfg, nil
}

// SaveSettings writes cfg to path with 0600 permissions.
func SaveSettings(path string, cfg *Settings) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Create with secure permissions (0600 - may point at key material)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create settings file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	return nil
}

// CreateDefaultSettings writes the commented template if path does not exist.
func CreateDefaultSettings(path string) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if FileExists(path) {
		return nil
	}

	if err := os.WriteFile(path, []byte(GenerateSettingsTemplate()), 0600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}

	return nil
}

// loadDotEnv reads .env from the working directory and the config dir.
// Variables already set in the environment win.
func loadDotEnv() {
	for _, path := range []string{".env", filepath.Join(GetConfigDir(), ".env")} {
		if !FileExists(path) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			logrus.WithError(err).Warnf("Could not read %s", path)
		}
	}
}
