package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
)

// keyDerivationMessage is signed to derive the credential file key. Changing
// it makes every existing credentials.enc unreadable.
const keyDerivationMessage = "chatgate-credential-key-v1"

// sealer encrypts the credential file with AES-256-GCM using a key derived
// from an SSH private key signature.
type sealer struct {
	keyPath    string
	passphrase string
	aesKey     []byte
}

func newSealer(keyPath, passphrase string) *sealer {
	return &sealer{keyPath: keyPath, passphrase: passphrase}
}

// init loads the key and derives the AES key. It is a no-op once done.
func (s *sealer) init() error {
	if s.aesKey != nil {
		return nil
	}

	encrypted, err := IsSSHKeyEncrypted(s.keyPath)
	if err != nil {
		return fmt.Errorf("failed to check SSH key: %w", err)
	}
	logrus.WithField("component", "credentials").Debugf("SSH key encrypted=%v", encrypted)

	if encrypted && s.passphrase == "" {
		return fmt.Errorf("SSH key is encrypted - passphrase required")
	}
	passphrase := ""
	if encrypted {
		passphrase = s.passphrase
	}
	signer, err := LoadSSHSigner(s.keyPath, passphrase)
	if err != nil {
		return fmt.Errorf("failed to load SSH key: %w", err)
	}

	aesKey, err := DeriveAESKeyFromSSH(signer)
	if err != nil {
		return fmt.Errorf("failed to derive encryption key: %w", err)
	}
	s.aesKey = aesKey
	return nil
}

func (s *sealer) seal(plaintext []byte) ([]byte, error) {
	if err := s.init(); err != nil {
		return nil, err
	}
	return encryptAESGCM(plaintext, s.aesKey)
}

func (s *sealer) open(ciphertext []byte) ([]byte, error) {
	if err := s.init(); err != nil {
		return nil, err
	}
	return decryptAESGCM(ciphertext, s.aesKey)
}

// encryptAESGCM encrypts data using AES-256-GCM
// Format: [nonce (12 bytes)][ciphertext + tag]
func encryptAESGCM(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// decryptAESGCM expects the layout produced by encryptAESGCM.
func decryptAESGCM(ciphertext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	plaintext, err := gcm.Open(nil, ciphertext[:nonceSize], ciphertext[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// DeriveAESKeyFromSSH derives a 32-byte AES-256 key from an SSH key signature.
// Only deterministic signature schemes (ed25519, RSA PKCS#1 v1.5) yield the
// same key on every run.
func DeriveAESKeyFromSSH(signer ssh.Signer) ([]byte, error) {
	signature, err := signer.Sign(rand.Reader, []byte(keyDerivationMessage))
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}

	hash := sha256.Sum256(signature.Blob)
	return hash[:], nil
}
