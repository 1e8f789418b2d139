package tokenstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openeventsys/sessiond/internal/token"
)

func testRecord() *token.Record {
	return &token.Record{
		TokenType:    "Bearer",
		AccessToken:  "at",
		RefreshToken: "rt",
		ExpiresAt:    time.Unix(1_800_000_000, 0),
		Scope:        "self-service",
		AccountID:    "account-123",
		Email:        "attendee@example.com",
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	want := testRecord()
	require.NoError(t, store.Save(context.Background(), want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFileStoreLoadMissingFile(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStoreLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	store, err := NewFileStore(path)
	require.NoError(t, err)

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got, "corrupt payload degrades to no stored session")
}

func TestFileStoreLoadInsecurePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"accessToken":"at","tokenType":"Bearer"}`), 0644))

	store, err := NewFileStore(path)
	require.NoError(t, err)

	_, err = store.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure permissions")
}

func TestFileStoreSaveNilRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), testRecord()))
	require.NoError(t, store.Save(context.Background(), nil))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Clearing an already-clear store is fine.
	require.NoError(t, store.Save(context.Background(), nil))
}

func TestFileStoreCreatesParentDirectories(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "nested", "deeper", "session.json")

	_, err := NewFileStore(path)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestFileStoreWatchSeesForeignWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	ours, err := NewFileStore(path)
	require.NoError(t, err)
	theirs, err := NewFileStore(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan *token.Record, 4)
	require.NoError(t, ours.Watch(ctx, func(rec *token.Record) {
		updates <- rec
	}))

	want := testRecord()
	require.NoError(t, theirs.Save(context.Background(), want))

	select {
	case got := <-updates:
		assert.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatal("foreign write not observed")
	}
}

func TestFileStoreWatchSeesForeignRemoval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	ours, err := NewFileStore(path)
	require.NoError(t, err)
	theirs, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, theirs.Save(context.Background(), testRecord()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan *token.Record, 4)
	require.NoError(t, ours.Watch(ctx, func(rec *token.Record) {
		updates <- rec
	}))

	require.NoError(t, theirs.Save(context.Background(), nil))

	select {
	case got := <-updates:
		assert.Nil(t, got, "a foreign sign-out delivers a nil record")
	case <-time.After(2 * time.Second):
		t.Fatal("foreign removal not observed")
	}
}

func TestFileStoreWatchSuppressesOwnWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	store, err := NewFileStore(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan *token.Record, 4)
	require.NoError(t, store.Watch(ctx, func(rec *token.Record) {
		updates <- rec
	}))

	require.NoError(t, store.Save(context.Background(), testRecord()))
	require.NoError(t, store.Save(context.Background(), nil))

	select {
	case rec := <-updates:
		t.Fatalf("own write echoed back as %+v", rec)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestMemStoreExternalUpdate(t *testing.T) {
	mem := NewMemStore()

	var got *token.Record
	require.NoError(t, mem.Watch(context.Background(), func(rec *token.Record) {
		got = rec
	}))

	// Save models this process and must not notify.
	require.NoError(t, mem.Save(context.Background(), testRecord()))
	assert.Nil(t, got)

	want := testRecord()
	want.AccessToken = "other-process"
	mem.ExternalUpdate(want)
	assert.Equal(t, want, got)

	loaded, err := mem.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, loaded)
}

func TestDecodeRecord(t *testing.T) {
	tests := []struct {
		name string
		data string
		want *token.Record
	}{
		{
			name: "full record",
			data: `{"tokenType":"Bearer","accessToken":"at","refreshToken":"rt","expiresAt":1800000000}`,
			want: &token.Record{TokenType: "Bearer", AccessToken: "at", RefreshToken: "rt", ExpiresAt: time.Unix(1_800_000_000, 0)},
		},
		{
			name: "guest record without refresh token",
			data: `{"tokenType":"Bearer","accessToken":"at"}`,
			want: &token.Record{TokenType: "Bearer", AccessToken: "at"},
		},
		{
			name: "missing access token",
			data: `{"tokenType":"Bearer","refreshToken":"rt"}`,
			want: nil,
		},
		{
			name: "not json",
			data: `hunter2`,
			want: nil,
		},
		{
			name: "wrong shape",
			data: `["at"]`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeRecord([]byte(tt.data)))
		})
	}
}

func TestEncodeRecordOmitsEmptyFields(t *testing.T) {
	data, err := encodeRecord(&token.Record{TokenType: "Bearer", AccessToken: "at"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tokenType":"Bearer","accessToken":"at"}`, string(data))
}
