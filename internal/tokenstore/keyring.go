package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/openeventsys/sessiond/internal/token"
)

// KeyringStore persists the session record in OS-native secure credential
// storage. Uses macOS Keychain, Windows Credential Manager, or the Linux
// Secret Service.
//
// The keyring offers no change notification, so sessions stored here are
// not synchronized across processes.
type KeyringStore struct {
	service string
	user    string
}

// Compile-time check to ensure KeyringStore implements Store
var _ Store = (*KeyringStore)(nil)

// NewKeyringStore creates a KeyringStore using the given service and user
// identifiers.
func NewKeyringStore(service, user string) (*KeyringStore, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}
	if user == "" {
		return nil, fmt.Errorf("user cannot be empty")
	}

	return &KeyringStore{
		service: service,
		user:    user,
	}, nil
}

// Load returns the record from the system keyring, or nil if no entry
// exists or the entry fails validation.
func (k *KeyringStore) Load(ctx context.Context) (*token.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	payload, err := keyring.Get(k.service, k.user)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return decodeRecord([]byte(payload)), nil
}

// Save persists the record to the system keyring, overwriting any existing
// entry. A nil record deletes the entry.
func (k *KeyringStore) Save(ctx context.Context, rec *token.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if rec == nil {
		err := keyring.Delete(k.service, k.user)
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return err
	}

	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return keyring.Set(k.service, k.user, string(data))
}
