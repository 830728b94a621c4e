package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const serviceName = "mailacct"

// KeyringSecret keeps the server secret in the OS keyring (macOS Keychain,
// Windows Credential Manager, or Linux Secret Service).
type KeyringSecret struct {
	User string
}

func NewKeyringSecret(user string) *KeyringSecret {
	return &KeyringSecret{User: user}
}

// Load returns the stored secret, generating and storing a new one on first
// use.
func (k *KeyringSecret) Load() (string, error) {
	secret, err := keyring.Get(serviceName, k.User)
	if err == nil {
		return secret, nil
	}
	if !errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("failed to load secret from keyring: %w", err)
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	secret = base64.RawURLEncoding.EncodeToString(b)
	if err := k.Save(secret); err != nil {
		return "", err
	}
	return secret, nil
}

// Save replaces the stored secret.
func (k *KeyringSecret) Save(secret string) error {
	if err := keyring.Set(serviceName, k.User, secret); err != nil {
		return fmt.Errorf("failed to save secret to keyring: %w", err)
	}
	return nil
}

// Delete removes the stored secret.
func (k *KeyringSecret) Delete() error {
	if err := keyring.Delete(serviceName, k.User); err != nil {
		return fmt.Errorf("failed to delete secret from keyring: %w", err)
	}
	return nil
}
