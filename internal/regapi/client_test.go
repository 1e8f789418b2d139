package regapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL, "test-client", WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c, srv
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient("", "cid")
	require.Error(t, err)

	_, err = NewClient("/relative/path", "cid")
	require.Error(t, err)

	c, err := NewClient("https://reg.example.com/api/", "cid")
	require.NoError(t, err)
	assert.Equal(t, "https://reg.example.com", c.Origin().String())
	assert.Equal(t, "https://reg.example.com/api/auth/token", c.endpoint("/auth/token"))
}

func TestRequestHeaders(t *testing.T) {
	var gotAccept, gotRequestID string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotRequestID = r.Header.Get("X-Request-Id")
		_ = json.NewEncoder(w).Encode(AuthInfo{ID: "acc"})
	}))

	_, err := c.CurrentAuth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "application/json", gotAccept)
	assert.NotEmpty(t, gotRequestID)
}

func TestAPIErrorSurfaced(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "account suspended", http.StatusForbidden)
	}))

	_, err := c.CurrentAuth(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "account suspended", apiErr.Body)
}

func TestExchangeRefreshToken(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "rt1", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "test-client", r.PostForm.Get("client_id"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "fresh",
			"token_type":    "Bearer",
			"refresh_token": "rt2",
			"expires_in":    3600,
		})
	}))

	rec, err := c.ExchangeRefreshToken(context.Background(), "rt1")
	require.NoError(t, err)
	assert.Equal(t, "fresh", rec.AccessToken)
	assert.Equal(t, "rt2", rec.RefreshToken)
	assert.Equal(t, "Bearer", rec.TokenType)
	assert.WithinDuration(t, time.Now().Add(time.Hour), rec.ExpiresAt, time.Minute)
}

func TestExchangeRefreshTokenProviderRejection(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_grant",
			"error_description": "refresh token superseded",
		})
	}))

	_, err := c.ExchangeRefreshToken(context.Background(), "superseded")
	require.Error(t, err)
	assert.True(t, IsProviderRejection(err))
}

func TestExchangeRefreshTokenTransportFailureIsNotRejection(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:1", "cid")
	require.NoError(t, err)

	_, err = c.ExchangeRefreshToken(context.Background(), "rt1")
	require.Error(t, err)
	assert.False(t, IsProviderRejection(err))
}

func TestExchangeRefreshTokenRequiresToken(t *testing.T) {
	c, err := NewClient("https://reg.example.com", "cid")
	require.NoError(t, err)

	_, err = c.ExchangeRefreshToken(context.Background(), "")
	require.Error(t, err)
}

func TestCreateAccountGuest(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/account/create", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotContains(t, body, "email_token")

		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "guest-at",
			"token_type":   "Bearer",
		})
	}))

	rec, err := c.CreateAccount(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "guest-at", rec.AccessToken)
	assert.False(t, rec.Refreshable(), "guest sessions carry no refresh token")
}

func TestEmailCodeFlow(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/email/send":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "attendee@example.com", body["email"])
			w.WriteHeader(http.StatusNoContent)
		case "/auth/email/verify":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "424242", body["code"])
			_ = json.NewEncoder(w).Encode(map[string]string{"token": "email-token"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	require.NoError(t, c.SendEmailCode(context.Background(), "attendee@example.com"))

	emailToken, err := c.VerifyEmailCode(context.Background(), "attendee@example.com", "424242")
	require.NoError(t, err)
	assert.Equal(t, "email-token", emailToken)
}

func TestVerifyEmailCodeRequiresToken(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{})
	}))

	_, err := c.VerifyEmailCode(context.Background(), "a@b.c", "000000")
	require.Error(t, err)
}

func TestWebAuthnChallengePaths(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/auth/webauthn/register":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"challenge": "c1",
				"options":   map[string]string{"rp": "events"},
			})
		case r.Method == http.MethodGet && r.URL.Path == "/auth/webauthn/authenticate/cred-1":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"challenge": "c2",
				"options":   map[string]string{"purpose": "authn"},
			})
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}))

	reg, err := c.WebAuthnRegistrationChallenge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "c1", reg.Challenge)
	assert.JSONEq(t, `{"rp":"events"}`, string(reg.Options))

	authn, err := c.WebAuthnAuthenticationChallenge(context.Background(), "cred-1")
	require.NoError(t, err)
	assert.Equal(t, "c2", authn.Challenge)
}
