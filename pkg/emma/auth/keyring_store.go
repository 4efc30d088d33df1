package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "emma"
	keyringUser    = "auth-token"
)

// KeyringStore keeps the credential in the OS keychain (macOS Keychain,
// Secret Service, Windows Credential Manager).
type KeyringStore struct {
	Service string
	User    string
}

func NewKeyringStore() *KeyringStore {
	return &KeyringStore{Service: keyringService, User: keyringUser}
}

func (s *KeyringStore) Save(_ context.Context, token string) error {
	if err := keyring.Set(s.Service, s.User, token); err != nil {
		return fmt.Errorf("failed to store credential in keychain: %w", err)
	}
	return nil
}

func (s *KeyringStore) Load(_ context.Context) (string, bool, error) {
	token, err := keyring.Get(s.Service, s.User)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read credential from keychain: %w", err)
	}
	return token, token != "", nil
}

func (s *KeyringStore) Clear(_ context.Context) error {
	if err := keyring.Delete(s.Service, s.User); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to remove credential from keychain: %w", err)
	}
	return nil
}
