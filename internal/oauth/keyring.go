package oauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"
)

// DefaultKeyringService is the keyring service tokens are filed under.
const DefaultKeyringService = "mailacct-oauth"

// ErrNoToken is returned by LoadToken when nothing is stored for a key.
var ErrNoToken = errors.New("no oauth token stored")

// KeyringTokenStore keeps tokens in the OS keyring (macOS Keychain, Windows
// Credential Manager, or Linux Secret Service).
type KeyringTokenStore struct {
	Service string
	now     func() time.Time
}

var _ TokenStore = (*KeyringTokenStore)(nil)

func NewKeyringTokenStore() *KeyringTokenStore {
	return &KeyringTokenStore{Service: DefaultKeyringService, now: time.Now}
}

type storedToken struct {
	Token   *oauth2.Token `json:"token"`
	SavedAt time.Time     `json:"saved_at"`
}

// SaveToken replaces the token stored under key.
func (k *KeyringTokenStore) SaveToken(key string, token *oauth2.Token) error {
	data, err := json.Marshal(storedToken{Token: token, SavedAt: k.now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal token %s: %w", key, err)
	}
	if err := keyring.Set(k.Service, key, string(data)); err != nil {
		return fmt.Errorf("failed to save token %s to keyring: %w", key, err)
	}
	return nil
}

// LoadToken returns the token stored under key, or ErrNoToken.
func (k *KeyringTokenStore) LoadToken(key string) (*oauth2.Token, error) {
	data, err := keyring.Get(k.Service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNoToken, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load token %s from keyring: %w", key, err)
	}
	var st storedToken
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token %s: %w", key, err)
	}
	if st.Token == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoToken, key)
	}
	return st.Token, nil
}

// DeleteToken removes the token under key. A missing token is not an error.
func (k *KeyringTokenStore) DeleteToken(key string) error {
	err := keyring.Delete(k.Service, key)
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("failed to delete token %s from keyring: %w", key, err)
}
