package tokenstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvStoreRequiresVariable(t *testing.T) {
	_, err := NewEnvStore("")
	require.Error(t, err)

	_, err = NewEnvStore("SESSIOND_TEST_ABSENT")
	require.Error(t, err)
}

func TestEnvStoreBareToken(t *testing.T) {
	t.Setenv("SESSIOND_TEST_SESSION", "opaque-token")

	store, err := NewEnvStore("SESSIOND_TEST_SESSION")
	require.NoError(t, err)

	rec, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", rec.AccessToken)
	assert.Equal(t, "Bearer", rec.TokenType)
	assert.False(t, rec.Refreshable())
	assert.True(t, rec.ExpiresAt.IsZero())
}

func TestEnvStoreStoredRecordPayload(t *testing.T) {
	t.Setenv("SESSIOND_TEST_SESSION", `{"tokenType":"Bearer","accessToken":"at","refreshToken":"rt","expiresAt":1800000000}`)

	store, err := NewEnvStore("SESSIOND_TEST_SESSION")
	require.NoError(t, err)

	rec, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at", rec.AccessToken)
	assert.Equal(t, "rt", rec.RefreshToken)
	assert.True(t, rec.ExpiresAt.Equal(time.Unix(1_800_000_000, 0)))
}

func TestEnvStoreIsReadOnly(t *testing.T) {
	t.Setenv("SESSIOND_TEST_SESSION", "opaque-token")

	store, err := NewEnvStore("SESSIOND_TEST_SESSION")
	require.NoError(t, err)

	require.Error(t, store.Save(context.Background(), testRecord()))
}
