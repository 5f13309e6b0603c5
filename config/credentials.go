package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"

	"chatgate/model"
)

// SecurityMethod defines the credential storage method
type SecurityMethod string

const (
	SecurityPlainText SecurityMethod = "plaintext"
	SecuritySSHKey    SecurityMethod = "ssh_key"
)

// envCredentials maps providers to the environment variables that seed a
// missing credential.
var envCredentials = map[model.ProviderID]string{
	model.ProviderOpenAI:    "OPENAI_API_KEY",
	model.ProviderDeepSeek:  "DEEPSEEK_API_KEY",
	model.ProviderAnthropic: "ANTHROPIC_API_KEY",
}

// CredentialStore keeps API keys on disk, either as a 0600 TOML file or
// encrypted with a key derived from an SSH private key. Every mutation is
// written through immediately.
type CredentialStore struct {
	mu          sync.RWMutex
	method      SecurityMethod
	dataDir     string
	credentials map[model.ProviderID]string
	fromEnv     map[model.ProviderID]bool
	sealer      *sealer
}

var _ model.CredentialStore = (*CredentialStore)(nil)

// NewCredentialStore creates a store rooted at dataDir. sshKeyPath and
// passphrase are only used by the ssh_key method.
func NewCredentialStore(method SecurityMethod, dataDir, sshKeyPath, passphrase string) *CredentialStore {
	c := &CredentialStore{
		method:      method,
		dataDir:     dataDir,
		credentials: make(map[model.ProviderID]string),
		fromEnv:     make(map[model.ProviderID]bool),
	}
	if method == SecuritySSHKey {
		c.sealer = newSealer(ExpandPath(sshKeyPath), passphrase)
	}
	return c
}

// Load reads credentials from disk, then fills providers that have no stored
// key from the environment. Env-seeded keys are never written back.
func (c *CredentialStore) Load() error {
	var (
		creds map[string]string
		err   error
	)
	switch c.method {
	case SecurityPlainText:
		creds, err = loadPlainText(c.dataDir)
	case SecuritySSHKey:
		creds, err = c.loadEncrypted()
	default:
		return fmt.Errorf("unknown security method: %s", c.method)
	}
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.credentials = make(map[model.ProviderID]string, len(creds))
	for k, v := range creds {
		c.credentials[model.ProviderID(k)] = v
	}
	for p, env := range envCredentials {
		if _, ok := c.credentials[p]; ok {
			continue
		}
		if v := os.Getenv(env); v != "" {
			c.credentials[p] = v
			c.fromEnv[p] = true
		}
	}
	return nil
}

// Credential returns the key for a provider.
func (c *CredentialStore) Credential(p model.ProviderID) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.credentials[p]
	return v, ok && v != ""
}

// SetCredential stores and persists a key.
func (c *CredentialStore) SetCredential(p model.ProviderID, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.credentials[p] = value
	delete(c.fromEnv, p)
	return c.saveLocked()
}

// RemoveCredential deletes and persists. Removing a missing key is not an error.
func (c *CredentialStore) RemoveCredential(p model.ProviderID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.credentials, p)
	delete(c.fromEnv, p)
	return c.saveLocked()
}

// Method returns the configured security method
func (c *CredentialStore) Method() SecurityMethod {
	return c.method
}

func (c *CredentialStore) saveLocked() error {
	creds := make(map[string]string, len(c.credentials))
	for p, v := range c.credentials {
		if c.fromEnv[p] {
			continue
		}
		creds[string(p)] = v
	}

	switch c.method {
	case SecurityPlainText:
		return savePlainText(c.dataDir, creds)
	case SecuritySSHKey:
		return c.saveEncrypted(creds)
	default:
		return fmt.Errorf("unknown security method: %s", c.method)
	}
}

// credentialsPath returns the path to the plain text credentials file
func credentialsPath(dataDir string) string {
	return filepath.Join(dataDir, "credentials.toml")
}

// encryptedCredentialsPath returns the path to the encrypted credentials file
func encryptedCredentialsPath(dataDir string) string {
	return filepath.Join(dataDir, "credentials.enc")
}

type credentialsFile struct {
	Credentials map[string]string `toml:"credentials"`
}

// loadPlainText loads credentials from plain text TOML file
func loadPlainText(dataDir string) (map[string]string, error) {
	path := credentialsPath(dataDir)
	if !FileExists(path) {
		return map[string]string{}, nil
	}

	var cf credentialsFile
	if _, err := toml.DecodeFile(path, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	if cf.Credentials == nil {
		cf.Credentials = map[string]string{}
	}
	return cf.Credentials, nil
}

// savePlainText saves credentials to plain text TOML file with 0600 permissions
func savePlainText(dataDir string, creds map[string]string) error {
	if err := EnsureDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	f, err := os.OpenFile(credentialsPath(dataDir), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create credentials file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(credentialsFile{Credentials: creds}); err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	return nil
}

func (c *CredentialStore) loadEncrypted() (map[string]string, error) {
	path := encryptedCredentialsPath(c.dataDir)
	if !FileExists(path) {
		return map[string]string{}, nil
	}

	encryptedData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read encrypted credentials: %w", err)
	}

	decryptedData, err := c.sealer.open(encryptedData)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credentials: %w", err)
	}

	var creds map[string]string
	if err := json.Unmarshal(decryptedData, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse decrypted credentials: %w", err)
	}
	if creds == nil {
		creds = map[string]string{}
	}
	return creds, nil
}

func (c *CredentialStore) saveEncrypted(creds map[string]string) error {
	jsonData, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to serialize credentials: %w", err)
	}

	encryptedData, err := c.sealer.seal(jsonData)
	if err != nil {
		return fmt.Errorf("failed to encrypt credentials: %w", err)
	}

	if err := EnsureDir(c.dataDir); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.WriteFile(encryptedCredentialsPath(c.dataDir), encryptedData, 0600); err != nil {
		return fmt.Errorf("failed to write encrypted credentials: %w", err)
	}
	return nil
}
