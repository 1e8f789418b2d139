package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/openeventsys/sessiond/internal/account"
	"github.com/openeventsys/sessiond/internal/tokenstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText       LogFormat = "text"
	LogFormatJSON       LogFormat = "json"
	LogFormatOTLPHTTP   LogFormat = "otlp-http"
	LogFormatOTLPGRPC   LogFormat = "otlp-grpc"
	LogFormatOTLPStdout LogFormat = "otlp-stdout"
)

// SessionStorageType represents the storage backends for the session record.
type SessionStorageType string

const (
	SessionStorageTypeFile    SessionStorageType = "file"
	SessionStorageTypeEnv     SessionStorageType = "env"
	SessionStorageTypeKeyring SessionStorageType = "keyring"
	SessionStorageTypeMemory  SessionStorageType = "memory"
)

// Method names accepted in the auth method priority list.
const (
	MethodWebAuthn = "webauthn"
	MethodEmail    = "email"
	MethodGuest    = "guest"
)

// Default configuration values
const (
	DefaultConfigLogFormat       = LogFormatText
	DefaultConfigServerHost      = "127.0.0.1"
	DefaultConfigServerPort      = 4680
	DefaultConfigShutdownTimeout = 5 * time.Second
	DefaultConfigSessionStorage  = SessionStorageTypeFile
	keyringService               = "sessiond-session"
)

// DefaultConfigAuthMethods is the default priority order, strongest first.
var DefaultConfigAuthMethods = []string{MethodWebAuthn, MethodEmail, MethodGuest}

// ServerConfig holds the agent listener configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// ProviderConfig identifies the registration API this client talks to.
type ProviderConfig struct {
	// BaseURL of the identity provider / registration API.
	BaseURL string `json:"base_url" validate:"required,url"`

	// ClientID presented on token exchanges.
	ClientID string `json:"client_id" validate:"required"`
}

// AuthConfig describes how sessions are persisted and how identities are
// established.
type AuthConfig struct {
	// Storage configuration - where the session record lives
	Storage SessionStorageType `json:"storage" validate:"required,oneof=file env keyring memory"`

	// Storage-specific settings (mutually exclusive based on Storage type)
	File        string `json:"file,omitempty"`         // For file storage: path to session file
	EnvKey      string `json:"env_key,omitempty"`      // For env storage: environment variable name
	KeyringUser string `json:"keyring_user,omitempty"` // For keyring storage: user identifier

	// Methods is the authentication method priority order, strongest first.
	Methods []string `json:"methods" validate:"required,min=1,dive,oneof=webauthn email guest"`

	// MaxFailures bounds consecutive failures per method within a session.
	MaxFailures int `json:"max_failures" validate:"min=1"`

	// CredentialFile remembers the bound webauthn credential id.
	CredentialFile string `json:"credential_file,omitempty"`

	// KeyDir holds the software authenticator's credential keys.
	KeyDir string `json:"key_dir,omitempty"`
}

// NewSessionStore creates the persistence backend from the configuration.
func (a *AuthConfig) NewSessionStore() (tokenstore.Store, error) {
	switch a.Storage {
	case SessionStorageTypeFile:
		return tokenstore.NewFileStore(a.File)
	case SessionStorageTypeEnv:
		return tokenstore.NewEnvStore(a.EnvKey)
	case SessionStorageTypeKeyring:
		return tokenstore.NewKeyringStore(keyringService, a.KeyringUser)
	case SessionStorageTypeMemory:
		return tokenstore.NewMemStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", a.Storage)
	}
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level     `json:"log_level"`
	LogFormat LogFormat      `json:"log_format" validate:"oneof=text json otlp-http otlp-grpc otlp-stdout"`
	Server    ServerConfig   `json:"server"`
	Shutdown  ShutdownConfig `json:"shutdown"`
	Provider  ProviderConfig `json:"provider"`
	Auth      AuthConfig     `json:"auth"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Auth.Storage == "" {
		c.Auth.Storage = DefaultConfigSessionStorage
	}
	if len(c.Auth.Methods) == 0 {
		c.Auth.Methods = slices.Clone(DefaultConfigAuthMethods)
	}
	if c.Auth.MaxFailures == 0 {
		c.Auth.MaxFailures = account.DefaultMaxFailures
	}

	configDir, configDirErr := os.UserConfigDir()
	appDir := ""
	if configDirErr == nil {
		appDir = filepath.Join(configDir, "sessiond")
	}

	// Dynamic defaults based on storage type
	switch c.Auth.Storage {
	case SessionStorageTypeFile:
		if c.Auth.File == "" {
			if configDirErr != nil {
				return fmt.Errorf("auth.file required (auto-detect failed: %w)", configDirErr)
			}
			c.Auth.File = filepath.Join(appDir, "session.json")
		}
	case SessionStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("auth.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Auth.KeyringUser = currentUser.Username
		}
	case SessionStorageTypeEnv:
		// env_key must be explicitly configured (no sensible default)
	}

	if slices.Contains(c.Auth.Methods, MethodWebAuthn) {
		if c.Auth.CredentialFile == "" && appDir != "" {
			c.Auth.CredentialFile = filepath.Join(appDir, "credential")
		}
		if c.Auth.KeyDir == "" && appDir != "" {
			c.Auth.KeyDir = filepath.Join(appDir, "keys")
		}
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Auth.Storage {
	case SessionStorageTypeFile:
		if c.Auth.File == "" {
			return errors.New("file path required for file storage")
		}
	case SessionStorageTypeEnv:
		if c.Auth.EnvKey == "" {
			return errors.New("env_key required for env storage")
		}
	case SessionStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			return errors.New("keyring_user required for keyring storage")
		}
	}

	if slices.Contains(c.Auth.Methods, MethodWebAuthn) {
		if c.Auth.CredentialFile == "" {
			return errors.New("credential_file required for the webauthn method")
		}
		if c.Auth.KeyDir == "" {
			return errors.New("key_dir required for the webauthn method")
		}
	}

	return nil
}
