package jsonkv

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/maruel/jsonkv/internal/flock"
)

// fileStore performs whole-file reads and writes against the backing path,
// each under an inter-process advisory lock.
type fileStore struct {
	path string
	log  *slog.Logger

	// writeMu orders writes issued by this process: a write started while
	// a previous one is still completing waits for it instead of racing
	// its lock acquisition.
	writeMu sync.Mutex

	mu        sync.Mutex
	lastWrite time.Time // mtime of the last write made through this fileStore
}

// readAll reads and decodes the full backing file under a shared lock.
// Content that does not decode as a JSON object degrades to an empty
// dataset: a corrupt or partially written file must not take down readers.
func (f *fileStore) readAll(ctx context.Context) (*Dataset, error) {
	fd, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.path, err)
	}
	defer func() {
		_ = fd.Close()
	}()
	if err := flock.RLock(ctx, fd); err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", f.path, err)
	}
	defer func() {
		_ = flock.Unlock(fd)
	}()

	raw, err := io.ReadAll(fd)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	d := NewDataset()
	if len(raw) == 0 {
		return d, nil
	}
	if err := json.Unmarshal(raw, d); err != nil {
		f.log.Warn("Discarding undecodable store content", "path", f.path, "error", err)
		return NewDataset(), nil
	}
	return d, nil
}

// writeAll encodes the dataset and overwrites the backing file under an
// exclusive lock.
func (f *fileStore) writeAll(ctx context.Context, d *Dataset) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}
	fd, err := os.OpenFile(f.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.path, err)
	}
	defer func() {
		_ = fd.Close()
	}()
	if err := flock.Lock(ctx, fd); err != nil {
		return fmt.Errorf("failed to lock %s: %w", f.path, err)
	}
	defer func() {
		_ = flock.Unlock(fd)
	}()

	if err := fd.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate %s: %w", f.path, err)
	}
	if _, err := fd.WriteAt(data, 0); err != nil {
		return fmt.Errorf("failed to write %s: %w", f.path, err)
	}
	if st, err := fd.Stat(); err == nil {
		f.mu.Lock()
		f.lastWrite = st.ModTime()
		f.mu.Unlock()
	}
	return nil
}

// modifiedExternally reports whether the file's current mtime comes from a
// writer other than this process, which lets the change watcher skip
// events caused by our own flushes. It holds the write ordering mutex so a
// flush still in flight finishes and records its mtime before the
// comparison is made.
func (f *fileStore) modifiedExternally() (bool, error) {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	st, err := os.Stat(f.path)
	if err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return !st.ModTime().Equal(f.lastWrite), nil
}
