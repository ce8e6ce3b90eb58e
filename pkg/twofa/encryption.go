package twofa

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const sealedPrefix = "enc:v1:"

// SecretCipher protects TOTP secrets at rest.
type SecretCipher interface {
	Seal(plaintext string) (string, error)
	Open(stored string) (string, error)
}

// AESSecretCipher encrypts with AES-256-GCM under a PBKDF2-derived key.
// Values written before encryption was enabled carry no prefix and are
// returned unchanged by Open.
type AESSecretCipher struct {
	aead cipher.AEAD
}

func NewAESSecretCipher(passphrase string) (*AESSecretCipher, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("encryption key cannot be empty")
	}

	key := pbkdf2.Key([]byte(passphrase), []byte("aitools-twofa-secret"), 100000, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &AESSecretCipher{aead: aead}, nil
}

func (c *AESSecretCipher) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *AESSecretCipher) Open(stored string) (string, error) {
	if !strings.HasPrefix(stored, sealedPrefix) {
		return stored, nil
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("failed to decode secret: %w", err)
	}
	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("sealed secret too short")
	}
	plaintext, err := c.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt secret: %w", err)
	}
	return string(plaintext), nil
}

type plainSecretCipher struct{}

func (plainSecretCipher) Seal(plaintext string) (string, error) { return plaintext, nil }
func (plainSecretCipher) Open(stored string) (string, error)    { return stored, nil }
