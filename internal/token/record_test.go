package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{name: "no expiry never expires", expiresAt: time.Time{}, want: false},
		{name: "future expiry", expiresAt: now.Add(time.Hour), want: false},
		{name: "past expiry", expiresAt: now.Add(-time.Hour), want: true},
		{name: "exactly now is expired", expiresAt: now, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &Record{AccessToken: "at", ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, rec.Expired(now))
		})
	}
}

func TestAuthorizationValue(t *testing.T) {
	rec := &Record{TokenType: "Bearer", AccessToken: "abc"}
	assert.Equal(t, "Bearer abc", rec.AuthorizationValue())

	rec = &Record{AccessToken: "abc"}
	assert.Equal(t, "Bearer abc", rec.AuthorizationValue(), "missing token type defaults to Bearer")
}

func TestSupersedes(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	current := &Record{AccessToken: "at1", RefreshToken: "rt1", ExpiresAt: now.Add(time.Hour)}

	tests := []struct {
		name     string
		incoming *Record
		current  *Record
		want     bool
	}{
		{
			name:     "identical record is ignored",
			incoming: &Record{AccessToken: "at1", RefreshToken: "rt1", ExpiresAt: now.Add(time.Hour)},
			current:  current,
			want:     false,
		},
		{
			name:     "newer record is adopted",
			incoming: &Record{AccessToken: "at2", RefreshToken: "rt2", ExpiresAt: now.Add(2 * time.Hour)},
			current:  current,
			want:     true,
		},
		{
			name:     "older record is ignored",
			incoming: &Record{AccessToken: "at0", RefreshToken: "rt0", ExpiresAt: now.Add(-time.Hour)},
			current:  current,
			want:     false,
		},
		{
			name:     "sign-out from another process is adopted",
			incoming: nil,
			current:  current,
			want:     true,
		},
		{
			name:     "nil over nil is ignored",
			incoming: nil,
			current:  nil,
			want:     false,
		},
		{
			name:     "first record over empty store is adopted",
			incoming: &Record{AccessToken: "at1", ExpiresAt: now.Add(time.Hour)},
			current:  nil,
			want:     true,
		},
		{
			name:     "changed record without expiries is adopted",
			incoming: &Record{AccessToken: "at2"},
			current:  &Record{AccessToken: "at1"},
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.incoming.Supersedes(tt.current))
		})
	}
}

func TestResponseRecord(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	resp := &Response{
		AccessToken:  "at",
		TokenType:    "Bearer",
		ExpiresIn:    3600,
		RefreshToken: "rt",
		Scope:        "self-service cart",
	}

	rec, err := resp.Record(now)
	require.NoError(t, err)
	assert.Equal(t, "at", rec.AccessToken)
	assert.Equal(t, "rt", rec.RefreshToken)
	assert.Equal(t, "self-service cart", rec.Scope)
	assert.True(t, rec.ExpiresAt.Equal(now.Add(time.Hour)))
}

func TestResponseRecordNoExpiry(t *testing.T) {
	resp := &Response{AccessToken: "at", TokenType: "Bearer"}

	rec, err := resp.Record(time.Now())
	require.NoError(t, err)
	assert.True(t, rec.ExpiresAt.IsZero())
	assert.False(t, rec.Refreshable())
}

func TestResponseRecordProviderError(t *testing.T) {
	resp := &Response{ErrorCode: "invalid_grant", ErrorDescription: "refresh token superseded"}

	_, err := resp.Record(time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_grant")
}

func TestResponseRecordMissingAccessToken(t *testing.T) {
	_, err := (&Response{TokenType: "Bearer"}).Record(time.Now())
	require.Error(t, err)
}

func TestEnrichFromClaims(t *testing.T) {
	exp := time.Unix(1_800_000_000, 0)
	claims := jwt.MapClaims{
		"sub":   "account-123",
		"email": "attendee@example.com",
		"scope": "self-service",
		"exp":   exp.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)

	resp := &Response{AccessToken: signed, TokenType: "Bearer"}
	rec, err := resp.Record(time.Now())
	require.NoError(t, err)

	assert.Equal(t, "account-123", rec.AccountID)
	assert.Equal(t, "attendee@example.com", rec.Email)
	assert.Equal(t, "self-service", rec.Scope)
	assert.True(t, rec.ExpiresAt.Equal(exp), "expiry taken from claims when expires_in absent")
}

func TestEnrichFromClaimsOpaqueToken(t *testing.T) {
	resp := &Response{AccessToken: "not-a-jwt", TokenType: "Bearer"}
	rec, err := resp.Record(time.Now())
	require.NoError(t, err)
	assert.Empty(t, rec.AccountID)
	assert.Empty(t, rec.Email)
}
