package tokenstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/openeventsys/sessiond/internal/token"
)

// FileStore persists the session record in a local file with atomic writes
// and secure permissions. Writes use temp file + rename for crash safety.
//
// Multiple processes may share the same file; Watch surfaces their writes
// while suppressing echoes of this process's own writes.
type FileStore struct {
	filePath string

	mu sync.Mutex
	// lastPayload is the exact content of our most recent write ("" after a
	// clear, nil before any write). Watch compares against it to tell a
	// foreign mutation from our own.
	lastPayload *string
}

// Compile-time check to ensure FileStore implements Store and Watcher.
var (
	_ Store   = (*FileStore)(nil)
	_ Watcher = (*FileStore)(nil)
)

// NewFileStore creates a FileStore for the given path, creating parent
// directories with 0700 permissions if they don't exist.
func NewFileStore(filePath string) (*FileStore, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	return &FileStore{
		filePath: filePath,
	}, nil
}

// Load returns the stored record. A missing file or a payload that fails
// validation yields (nil, nil). Insecure file permissions are an error.
func (f *FileStore) Load(ctx context.Context) (*token.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(f.filePath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if info.Mode().Perm() != 0600 {
		return nil, fmt.Errorf("insecure permissions on %s: %04o (expected 0600)", f.filePath, info.Mode().Perm())
	}

	data, err := os.ReadFile(f.filePath)
	if err != nil {
		return nil, err
	}

	return decodeRecord(data), nil
}

// Save atomically persists the record using temp file + rename. A nil
// record removes the file.
func (f *FileStore) Save(ctx context.Context, rec *token.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if rec == nil {
		cleared := ""
		f.lastPayload = &cleared
		if err := os.Remove(f.filePath); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}

	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	// Secure temp file in the same directory for atomic rename
	dir := filepath.Dir(f.filePath)
	tempFile, err := os.CreateTemp(dir, "*.tmp")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()
	// Cleanup deferred for all exit paths
	defer func() { _ = os.Remove(tempName) }()
	defer func() { _ = tempFile.Close() }()

	if _, err := tempFile.Write(data); err != nil {
		return err
	}
	if err := tempFile.Chmod(0600); err != nil {
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}

	payload := string(data)
	f.lastPayload = &payload

	return os.Rename(tempName, f.filePath)
}

// Watch observes mutations of the credential file made by other processes
// and invokes handler with the decoded record (nil for a removed or cleared
// file). Returns after the watcher is installed; delivery happens on a
// background goroutine until ctx is cancelled.
func (f *FileStore) Watch(ctx context.Context, handler func(*token.Record)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}

	// Watch the directory: atomic renames replace the file inode, so a
	// watch on the file itself would go stale after the first save.
	if err := watcher.Add(filepath.Dir(f.filePath)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(f.filePath), err)
	}

	go func() {
		defer func() { _ = watcher.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(f.filePath) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
					!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
					continue
				}
				if rec, foreign := f.readForeign(); foreign {
					handler(rec)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "credential file watch error", "error", err)
			}
		}
	}()

	return nil
}

// readForeign reads the current file content and reports whether it differs
// from this process's own last write.
func (f *FileStore) readForeign() (*token.Record, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.filePath)
	if os.IsNotExist(err) {
		if f.lastPayload != nil && *f.lastPayload == "" {
			return nil, false // our own clear
		}
		return nil, true
	}
	if err != nil {
		return nil, false
	}
	if f.lastPayload != nil && *f.lastPayload == string(data) {
		return nil, false // echo of our own write
	}
	return decodeRecord(data), true
}
