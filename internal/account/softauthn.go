package account

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// SoftwareAuthenticator is a file-backed P-256 authenticator for headless
// environments and tests. Real platform authenticators (Secure Enclave,
// TPM, security keys) plug in behind the same Authenticator interface; the
// server-side ceremony is identical either way.
//
// Keys are stored one file per credential id under dir, 0600.
type SoftwareAuthenticator struct {
	dir string
}

var _ Authenticator = (*SoftwareAuthenticator)(nil)

// NewSoftwareAuthenticator creates a SoftwareAuthenticator storing keys
// under dir.
func NewSoftwareAuthenticator(dir string) (*SoftwareAuthenticator, error) {
	if dir == "" {
		return nil, fmt.Errorf("key directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &SoftwareAuthenticator{dir: dir}, nil
}

func (s *SoftwareAuthenticator) Available(ctx context.Context) bool {
	return true
}

// attestation is the serialized result of a registration ceremony.
type attestation struct {
	CredentialID string `json:"credentialId"`
	PublicKey    string `json:"publicKey"` // base64 PKIX
	Challenge    string `json:"challenge"`
}

// assertion is the serialized result of an authentication ceremony.
type assertion struct {
	CredentialID string `json:"credentialId"`
	Signature    string `json:"signature"` // base64 ASN.1 over SHA-256(options)
}

// Register generates a new P-256 credential and returns its attestation.
func (s *SoftwareAuthenticator) Register(ctx context.Context, options json.RawMessage) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generating credential key: %w", err)
	}

	credentialID := uuid.NewString()
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return "", "", err
	}
	if err := os.WriteFile(s.keyPath(credentialID), keyDER, 0600); err != nil {
		return "", "", fmt.Errorf("storing credential key: %w", err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", "", err
	}

	result, err := json.Marshal(attestation{
		CredentialID: credentialID,
		PublicKey:    base64.StdEncoding.EncodeToString(pubDER),
		Challenge:    string(options),
	})
	if err != nil {
		return "", "", err
	}
	return credentialID, base64.StdEncoding.EncodeToString(result), nil
}

// Sign produces an assertion over the ceremony options with the stored key.
func (s *SoftwareAuthenticator) Sign(ctx context.Context, credentialID string, options json.RawMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	keyDER, err := os.ReadFile(s.keyPath(credentialID))
	if os.IsNotExist(err) {
		return "", fmt.Errorf("no key stored for credential %s", credentialID)
	}
	if err != nil {
		return "", err
	}
	key, err := x509.ParseECPrivateKey(keyDER)
	if err != nil {
		return "", fmt.Errorf("parsing credential key: %w", err)
	}

	digest := sha256.Sum256(options)
	sig, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	if err != nil {
		return "", fmt.Errorf("signing challenge: %w", err)
	}

	result, err := json.Marshal(assertion{
		CredentialID: credentialID,
		Signature:    base64.StdEncoding.EncodeToString(sig),
	})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(result), nil
}

func (s *SoftwareAuthenticator) keyPath(credentialID string) string {
	return filepath.Join(s.dir, credentialID+".key")
}
