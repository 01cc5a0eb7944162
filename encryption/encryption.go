// Package encryption protects message content at rest. Each message gets a
// fresh random AES-256 key; ciphertext and key are stored with the record
// while live delivery carries plaintext, so the store never holds readable
// content.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const keyLength = 32 // AES-256

type Service struct{}

func NewService() *Service {
	return &Service{}
}

// Encrypt seals plaintext under a fresh random key using AES-GCM and
// returns "nonce:ciphertext" in hex alongside the hex-encoded key.
func (s *Service) Encrypt(plaintext string) (string, string, error) {
	key := make([]byte, keyLength)
	if _, err := rand.Read(key); err != nil {
		return "", "", err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", "", err
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext := hex.EncodeToString(nonce) + ":" + hex.EncodeToString(sealed)
	return ciphertext, hex.EncodeToString(key), nil
}

// Decrypt is the inverse of Encrypt.
func (s *Service) Decrypt(ciphertext, key string) (string, error) {
	parts := strings.SplitN(ciphertext, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("malformed ciphertext")
	}

	rawKey, err := hex.DecodeString(key)
	if err != nil {
		return "", fmt.Errorf("malformed key: %w", err)
	}
	nonce, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("malformed nonce: %w", err)
	}
	sealed, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("malformed ciphertext: %w", err)
	}

	gcm, err := newGCM(rawKey)
	if err != nil {
		return "", err
	}
	if len(nonce) != gcm.NonceSize() {
		return "", fmt.Errorf("malformed nonce")
	}

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
