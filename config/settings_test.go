package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsCreatesTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatgate", "settings.toml")

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// The template itself must decode to the defaults.
	again, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), again)
}

func TestSettingsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	want := &Settings{
		DataDirectory:     "/srv/chatgate",
		Store:             StoreFile,
		CredentialStorage: SecuritySSHKey,
		SSHKeyPath:        "~/.ssh/id_ed25519",
		LogLevel:          "debug",
		ToolServers: []ToolServer{
			{Name: "fs", Transport: "stdio", Command: "mcp-fs", Args: []string{"/tmp"}},
			{Name: "search", Transport: "http", URL: "http://localhost:9000/mcp", Timeout: 5},
		},
	}
	require.NoError(t, SaveSettings(path, want))

	got, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSettingsEnvOverrides(t *testing.T) {
	t.Setenv("CHATGATE_DATA_DIR", "/tmp/cg")
	t.Setenv("CHATGATE_STORE", "FILE")
	t.Setenv("CHATGATE_DEBUG", "1")

	s := DefaultSettings()
	s.applyEnvOverrides()
	assert.Equal(t, "/tmp/cg", s.DataDirectory)
	assert.Equal(t, StoreFile, s.Store)
	assert.Equal(t, "debug", s.LogLevel)
	assert.NoError(t, s.validate())
}

func TestSettingsValidate(t *testing.T) {
	s := DefaultSettings()
	s.Store = "redis"
	assert.Error(t, s.validate())

	s = DefaultSettings()
	s.CredentialStorage = "keychain"
	assert.Error(t, s.validate())

	s = DefaultSettings()
	s.ToolServers = []ToolServer{{Transport: "stdio"}}
	assert.Error(t, s.validate())
}

func TestExpandPath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	assert.Equal(t, "/home/tester/.local/share/chatgate", ExpandPath("~/.local/share/chatgate"))
	assert.Equal(t, "", ExpandPath(""))
}

func TestDataDirFallsBackToPlatformDefault(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	s := DefaultSettings()
	s.DataDirectory = ""
	assert.Equal(t, GetDefaultDataDir(), s.DataDir())
}

func TestResolveSSHKeyFromHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	s := DefaultSettings()
	s.CredentialStorage = SecuritySSHKey
	s.resolveSSHKey()
	assert.Empty(t, s.SSHKeyPath)
	assert.Error(t, s.validate())

	key, err := os.ReadFile(writeTestKey(t))
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".ssh"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".ssh", "id_rsa"), []byte("not a key"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".ssh", "id_ed25519"), key, 0600))

	assert.Equal(t, []string{filepath.Join(home, ".ssh", "id_ed25519")}, FindSSHKeys())
	s.resolveSSHKey()
	assert.Equal(t, filepath.Join(home, ".ssh", "id_ed25519"), s.SSHKeyPath)
	assert.NoError(t, s.validate())
}
