package config

import (
	"fmt"
	"os"
	"strings"
)

// StoreBackend selects where provider configs are persisted.
type StoreBackend string

const (
	StoreSQLite StoreBackend = "sqlite"
	StoreFile   StoreBackend = "file"
)

// ToolServer describes an MCP server the gateway can call tools on.
type ToolServer struct {
	Name      string            `toml:"name"`
	Transport string            `toml:"transport"` // stdio, sse or http
	Command   string            `toml:"command,omitempty"`
	Args      []string          `toml:"args,omitempty"`
	URL       string            `toml:"url,omitempty"`
	Env       map[string]string `toml:"env,omitempty"`
	Timeout   int               `toml:"timeout,omitempty"` // seconds
}

// Settings is the contents of settings.toml after env overrides.
type Settings struct {
	DataDirectory     string         `toml:"data_directory"`
	Store             StoreBackend   `toml:"store"`
	CredentialStorage SecurityMethod `toml:"credential_storage"`
	SSHKeyPath        string         `toml:"ssh_key_path,omitempty"`
	LogLevel          string         `toml:"log_level"`
	ToolServers       []ToolServer   `toml:"tool_servers,omitempty"`
}

// DataDir returns the expanded data directory, or the platform default
// when none is configured.
func (s *Settings) DataDir() string {
	if s.DataDirectory == "" {
		return GetDefaultDataDir()
	}
	return ExpandPath(s.DataDirectory)
}

// resolveSSHKey picks the first key FindSSHKeys reports when ssh_key storage
// is selected without a key path.
func (s *Settings) resolveSSHKey() {
	if s.CredentialStorage != SecuritySSHKey || s.SSHKeyPath != "" {
		return
	}
	if keys := FindSSHKeys(); len(keys) > 0 {
		s.SSHKeyPath = keys[0]
	}
}

func (s *Settings) applyEnvOverrides() {
	if dataDir := os.Getenv("CHATGATE_DATA_DIR"); dataDir != "" {
		s.DataDirectory = dataDir
	}
	if store := os.Getenv("CHATGATE_STORE"); store != "" {
		s.Store = StoreBackend(strings.ToLower(store))
	}
	if CheckDebug() {
		s.LogLevel = "debug"
	}
}

func (s *Settings) validate() error {
	switch s.Store {
	case StoreSQLite, StoreFile:
	default:
		return fmt.Errorf("unknown store backend %q", s.Store)
	}
	switch s.CredentialStorage {
	case SecurityPlainText:
	case SecuritySSHKey:
		if s.SSHKeyPath == "" {
			return fmt.Errorf("credential_storage = %q needs ssh_key_path (no key found in ~/.ssh)", s.CredentialStorage)
		}
	default:
		return fmt.Errorf("unknown credential storage %q", s.CredentialStorage)
	}
	for _, ts := range s.ToolServers {
		if ts.Name == "" {
			return fmt.Errorf("tool server without a name")
		}
	}
	return nil
}

// CheckDebug reports whether CHATGATE_DEBUG is switched on.
func CheckDebug() bool {
	debug := os.Getenv("CHATGATE_DEBUG")
	return debug == "true" || debug == "1"
}

// Load reads settings.toml (creating it on first run), applies env
// overrides and prepares the data directory.
func Load() (*Settings, error) {
	loadDotEnv()

	settings, err := LoadSettings(GetSettingsFilePath())
	if err != nil {
		return nil, err
	}
	settings.applyEnvOverrides()
	settings.resolveSSHKey()
	if err := settings.validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	dataDir := settings.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// Ensure data directory has correct permissions (fix if needed)
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to set data directory permissions: %w", err)
	}

	return settings, nil
}
