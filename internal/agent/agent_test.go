package agent

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentForwardsToUpstream(t *testing.T) {
	var gotPath, gotHost, gotAuth, gotBody string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHost = r.Host
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	}))
	defer upstream.Close()

	a, err := New(http.DefaultTransport, upstream.URL)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "http://127.0.0.1:4680/api/orders", strings.NewReader("payload"))
	// Whatever the local client sends must not reach the API; the
	// authorizing transport owns this header.
	req.Header.Set("Authorization", "Bearer local-garbage")
	rr := httptest.NewRecorder()
	a.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
	assert.Equal(t, "/api/orders", gotPath)
	assert.Equal(t, strings.TrimPrefix(upstream.URL, "http://"), gotHost)
	assert.Empty(t, gotAuth)
	assert.Equal(t, "payload", gotBody)
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, "https://reg.example.com")
	require.Error(t, err)

	_, err = New(http.DefaultTransport, "://bad")
	require.Error(t, err)
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
