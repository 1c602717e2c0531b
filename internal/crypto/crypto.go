// Package crypto seals small secrets before they are written to the store.
// Uses AES-256-GCM with the secret's storage key as associated data, so a
// sealed value cannot be moved to another key.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

const sealedPrefix = "v1:"

var (
	// ErrEmptyPassphrase is returned when no sealing passphrase is configured
	ErrEmptyPassphrase = errors.New("sealing passphrase must not be empty")
	// ErrCiphertextTooShort is returned when ciphertext is shorter than the nonce
	ErrCiphertextTooShort = errors.New("ciphertext too short")
	// ErrOpenFailed is returned when a sealed value was tampered with, sealed
	// under another key, or sealed with another passphrase
	ErrOpenFailed = errors.New("failed to open sealed value: data may be tampered or wrong passphrase")
)

// Sealer encrypts and decrypts secrets at rest.
type Sealer struct {
	gcm cipher.AEAD
}

// NewSealer derives a 256-bit key from passphrase.
func NewSealer(passphrase string) (*Sealer, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	key := sha256.Sum256([]byte(passphrase))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Sealer{gcm: gcm}, nil
}

// Seal encrypts plaintext bound to label and returns a printable token.
// An empty plaintext seals to an empty string.
func (s *Sealer) Seal(label, plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := s.gcm.Seal(nonce, nonce, []byte(plaintext), []byte(label))
	return sealedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Open reverses Seal. Values without the sealed prefix were written before
// sealing was introduced and are returned as they are.
func (s *Sealer) Open(label, sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	if !IsSealed(sealed) {
		return sealed, nil
	}

	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}

	nonceSize := s.gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", ErrCiphertextTooShort
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := s.gcm.Open(nil, nonce, ciphertext, []byte(label))
	if err != nil {
		return "", ErrOpenFailed
	}

	return string(plaintext), nil
}

// IsSealed reports whether value was produced by Seal.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, sealedPrefix)
}
