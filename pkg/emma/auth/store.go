package auth

import (
	"context"
	"fmt"
)

const (
	StorageFile     = "file"
	StorageKeychain = "keychain"
)

// CredentialStore durably keeps the single credential of this installation.
// Save overwrites any previous credential and must only return once the
// write is known to have succeeded or failed.
type CredentialStore interface {
	Save(ctx context.Context, token string) error
}

// Credentials adds the read and clear operations used by status and logout.
type Credentials interface {
	CredentialStore
	Load(ctx context.Context) (string, bool, error)
	Clear(ctx context.Context) error
}

// NewCredentials returns the store for the configured storage mode. An empty
// mode selects file storage at path.
func NewCredentials(mode, path string) (Credentials, error) {
	switch mode {
	case "", StorageFile:
		return &FileStore{Path: path}, nil
	case StorageKeychain:
		return NewKeyringStore(), nil
	default:
		return nil, fmt.Errorf("unsupported token storage: %s", mode)
	}
}
