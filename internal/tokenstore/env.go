package tokenstore

import (
	"context"
	"fmt"
	"os"

	"github.com/openeventsys/sessiond/internal/token"
)

// EnvStore bootstraps a session from an environment variable. The value may
// be either a full stored record (JSON) or a bare access token.
//
// Read-only: refreshed tokens cannot be written back, so env storage only
// suits short-lived tooling with externally managed credentials.
type EnvStore struct {
	envKey string
}

// Compile-time check to ensure EnvStore implements Store
var _ Store = (*EnvStore)(nil)

// NewEnvStore creates an EnvStore for the given environment variable.
// Returns error if the variable name is empty or not set in the environment.
func NewEnvStore(envKey string) (*EnvStore, error) {
	if envKey == "" {
		return nil, fmt.Errorf("environment key cannot be empty")
	}

	if _, exists := os.LookupEnv(envKey); !exists {
		return nil, fmt.Errorf("environment variable %s not set", envKey)
	}

	return &EnvStore{
		envKey: envKey,
	}, nil
}

// Load returns the record from the environment variable. A bare token value
// becomes a record with no refresh token and no expiry.
func (e *EnvStore) Load(ctx context.Context) (*token.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	value := os.Getenv(e.envKey)
	if value == "" {
		return nil, nil
	}
	if rec := decodeRecord([]byte(value)); rec != nil {
		return rec, nil
	}
	return &token.Record{TokenType: "Bearer", AccessToken: value}, nil
}

// Save is not supported for environment variables (they are read-only).
func (e *EnvStore) Save(ctx context.Context, rec *token.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return fmt.Errorf("environment variable storage is read-only")
}
