package config

func DefaultSettings() *Settings {
	return &Settings{
		DataDirectory:     "~/.local/share/chatgate",
		Store:             StoreSQLite,
		CredentialStorage: SecurityPlainText,
		LogLevel:          "info",
	}
}

func GenerateSettingsTemplate() string {
	return `# chatgate settings
# Location: ~/.config/chatgate/settings.toml
# This file uses TOML format: https://toml.io

# Directory where provider configs, credentials and logs are stored
data_directory = "~/.local/share/chatgate"

# Provider config backend: "sqlite" or "file"
store = "sqlite"

# How API keys are kept on disk: "plaintext" (0600 file) or "ssh_key"
credential_storage = "plaintext"

# SSH private key used when credential_storage = "ssh_key"
# ssh_key_path = "~/.ssh/id_ed25519"

# panic, fatal, error, warn, info, debug or trace
log_level = "info"

# MCP servers exposing tools (optional)
# [[tool_servers]]
# name = "filesystem"
# transport = "stdio"
# command = "npx"
# args = ["-y", "@modelcontextprotocol/server-filesystem", "/tmp"]
`
}
