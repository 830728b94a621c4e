// Package crypto encrypts stored account passwords with a secret.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 16
	iterations = 10000
)

// ErrDecrypt is returned for ciphertext that does not open with the secret.
var ErrDecrypt = errors.New("failed to decrypt password")

// Service derives a key from the secret with PBKDF2-SHA256 and seals the
// plaintext with XChaCha20-Poly1305. Output is salt|nonce|ciphertext in URL
// safe base64.
type Service struct {
	rand io.Reader
}

func NewService() *Service {
	return &Service{rand: rand.Reader}
}

func deriveKey(secret string, salt []byte) []byte {
	return pbkdf2.Key([]byte(secret), salt, iterations, chacha20poly1305.KeySize, sha256.New)
}

// Encrypt returns "" for an empty plaintext.
func (s *Service) Encrypt(plaintext, secret string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	buf := make([]byte, saltSize+chacha20poly1305.NonceSizeX, saltSize+chacha20poly1305.NonceSizeX+len(plaintext)+chacha20poly1305.Overhead)
	if _, err := io.ReadFull(s.rand, buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	aead, err := chacha20poly1305.NewX(deriveKey(secret, buf[:saltSize]))
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	out := aead.Seal(buf, buf[saltSize:], []byte(plaintext), nil)
	return base64.URLEncoding.EncodeToString(out), nil
}

// Decrypt returns "" for an empty ciphertext.
func (s *Service) Decrypt(ciphertext, secret string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	raw, err := base64.URLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(raw) < saltSize+chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}
	aead, err := chacha20poly1305.NewX(deriveKey(secret, raw[:saltSize]))
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	nonce := raw[saltSize : saltSize+chacha20poly1305.NonceSizeX]
	plain, err := aead.Open(nil, nonce, raw[saltSize+chacha20poly1305.NonceSizeX:], nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}
