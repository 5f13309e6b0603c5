package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

// LoadSSHSigner parses the private key at keyPath, decrypting it with
// passphrase when one is given.
func LoadSSHSigner(keyPath, passphrase string) (ssh.Signer, error) {
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH key: %w", err)
	}

	var signer ssh.Signer
	if passphrase == "" {
		signer, err = ssh.ParsePrivateKey(keyData)
	} else {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(keyData, []byte(passphrase))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse SSH key: %w", err)
	}
	return signer, nil
}

// IsSSHKeyEncrypted reports whether the key at keyPath needs a passphrase.
func IsSSHKeyEncrypted(keyPath string) (bool, error) {
	_, err := LoadSSHSigner(keyPath, "")
	if err == nil {
		return false, nil
	}
	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) {
		return true, nil
	}
	return false, err
}

// sshKeyCandidates are tried in order by FindSSHKeys. ECDSA keys are left
// out: their signatures are randomized, so the derived key would differ on
// every run.
var sshKeyCandidates = []string{"chatgate_ed25519", "id_ed25519", "id_rsa"}

// FindSSHKeys lists usable private keys under ~/.ssh, most preferred first.
func FindSSHKeys() []string {
	sshDir := filepath.Join(GetHomeDir(), ".ssh")
	var found []string
	for _, name := range sshKeyCandidates {
		keyPath := filepath.Join(sshDir, name)
		if looksLikePrivateKey(keyPath) {
			found = append(found, keyPath)
		}
	}
	return found
}

func looksLikePrivateKey(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	content := string(data)
	return strings.Contains(content, "BEGIN") && strings.Contains(content, "PRIVATE KEY")
}
