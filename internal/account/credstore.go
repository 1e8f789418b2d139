package account

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileCredentialStore remembers the bound webauthn credential id in a local
// file. The id is not secret (the private key never leaves the
// authenticator) but gets the same 0600 treatment as the session file.
type FileCredentialStore struct {
	filePath string
	mu       sync.Mutex
}

var _ CredentialStore = (*FileCredentialStore)(nil)

// NewFileCredentialStore creates a FileCredentialStore at the given path,
// creating parent directories if needed.
func NewFileCredentialStore(filePath string) (*FileCredentialStore, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0700); err != nil {
		return nil, err
	}
	return &FileCredentialStore{filePath: filePath}, nil
}

// CredentialID returns the remembered credential id, or "" if none is
// bound on this device.
func (f *FileCredentialStore) CredentialID(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.filePath)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// SaveCredentialID persists the credential id, replacing any previous one.
func (f *FileCredentialStore) SaveCredentialID(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	return os.WriteFile(f.filePath, []byte(id+"\n"), 0600)
}
