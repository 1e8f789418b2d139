package tokenstore

import (
	"encoding/json"
	"time"

	"github.com/openeventsys/sessiond/internal/token"
)

// storedRecord is the wire layout of a persisted session: one JSON object
// under a fixed key, expiry as epoch seconds. Kept separate from
// token.Record so the storage format can stay stable if the in-memory
// representation grows.
type storedRecord struct {
	TokenType    string `json:"tokenType"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresAt    int64  `json:"expiresAt,omitempty"`
	Scope        string `json:"scope,omitempty"`
	AccountID    string `json:"accountId,omitempty"`
	Email        string `json:"email,omitempty"`
}

func encodeRecord(rec *token.Record) ([]byte, error) {
	sr := storedRecord{
		TokenType:    rec.TokenType,
		AccessToken:  rec.AccessToken,
		RefreshToken: rec.RefreshToken,
		Scope:        rec.Scope,
		AccountID:    rec.AccountID,
		Email:        rec.Email,
	}
	if !rec.ExpiresAt.IsZero() {
		sr.ExpiresAt = rec.ExpiresAt.Unix()
	}
	return json.Marshal(sr)
}

// decodeRecord parses a stored payload. Returns nil for anything that fails
// structural validation so a corrupted or old-format entry degrades to "no
// stored session" instead of failing the load.
func decodeRecord(data []byte) *token.Record {
	var sr storedRecord
	if err := json.Unmarshal(data, &sr); err != nil {
		return nil
	}
	if sr.AccessToken == "" {
		return nil
	}
	rec := &token.Record{
		TokenType:    sr.TokenType,
		AccessToken:  sr.AccessToken,
		RefreshToken: sr.RefreshToken,
		Scope:        sr.Scope,
		AccountID:    sr.AccountID,
		Email:        sr.Email,
	}
	if sr.ExpiresAt != 0 {
		rec.ExpiresAt = time.Unix(sr.ExpiresAt, 0)
	}
	return rec
}
