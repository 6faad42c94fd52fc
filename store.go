package jsonkv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Store is a single-file key-value store. Construct it with [New]; every
// method is safe for concurrent use by multiple goroutines.
type Store struct {
	path  string
	opts  Options
	log   *slog.Logger
	files *fileStore

	ready chan struct{} // closed once background initialization finishes

	mu         sync.RWMutex
	view       *Dataset
	seq        uint64 // bumped on every mutation of view
	flushedSeq uint64 // seq captured by the last completed flush

	flushMu      sync.Mutex
	flushPending bool
	flushTimer   *time.Timer

	watch     *fsnotify.Watcher
	watchDone chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
	capWarned atomic.Bool
}

// New opens the store backed by the file at path, creating the file if it
// does not exist. Construction does not block on I/O: initialization runs
// in the background and every operation waits for it to complete. An
// initialization failure is delivered through [Options.OnError] and leaves
// the store running with an empty in-memory view.
func New(path string, opts Options) (*Store, error) {
	if path == "" {
		return nil, errors.New("path is required")
	}
	if opts.DelayedWrite < 0 {
		return nil, errors.New("delayed write must be non-negative")
	}
	if opts.CacheSize < 0 {
		return nil, errors.New("cache size must be non-negative")
	}
	if opts.CacheSize == 0 {
		opts.CacheSize = defaultCacheSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Store{
		path:   path,
		opts:   opts,
		log:    opts.Logger,
		files:  &fileStore{path: path, log: opts.Logger},
		ready:  make(chan struct{}),
		view:   NewDataset(),
		closed: make(chan struct{}),
	}
	go s.init()
	return s, nil
}

func (s *Store) init() {
	defer close(s.ready)
	ctx := context.Background()
	if _, err := os.Stat(s.path); err != nil {
		if !os.IsNotExist(err) {
			s.reportError(fmt.Errorf("failed to stat %s: %w", s.path, err))
			return
		}
		if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
			s.reportError(fmt.Errorf("failed to create directory for %s: %w", s.path, err))
			return
		}
		if err := s.files.writeAll(ctx, NewDataset()); err != nil {
			s.reportError(err)
			return
		}
	} else if !s.opts.NoCache {
		d, err := s.files.readAll(ctx)
		if err != nil {
			s.reportError(err)
		} else {
			s.mu.Lock()
			s.view = d
			s.mu.Unlock()
		}
	}
	if err := s.startWatcher(); err != nil {
		s.reportError(fmt.Errorf("failed to watch %s: %w", s.path, err))
	}
}

// await blocks until initialization has completed, ctx is done, or the
// store is closed.
func (s *Store) await(ctx context.Context) error {
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closed:
		return ErrClosed
	}
}

// refresh reloads the view from disk when caching is disabled. With the
// cache enabled the view is only ever replaced by the change watcher.
//
// While a mutation has not been flushed yet the view is ahead of the file,
// so the reload is skipped: loading the file now would hand the pending
// flush stale content and lose the mutation.
func (s *Store) refresh(ctx context.Context) error {
	if !s.opts.NoCache {
		return nil
	}
	s.mu.RLock()
	dirty := s.seq != s.flushedSeq
	s.mu.RUnlock()
	if dirty {
		return nil
	}
	d, err := s.files.readAll(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	// A mutation may have landed while the file was being read; its state
	// wins over what was just loaded.
	if s.seq == s.flushedSeq {
		s.view = d
	}
	s.mu.Unlock()
	return nil
}

// mutate applies fn to the current dataset view, then requests
// persistence.
func (s *Store) mutate(ctx context.Context, fn func(*Dataset) error) error {
	if err := s.await(ctx); err != nil {
		return err
	}
	if err := s.refresh(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	if err := fn(s.view); err != nil {
		s.mu.Unlock()
		return err
	}
	s.seq++
	n := s.view.Len()
	s.mu.Unlock()
	if n > s.opts.CacheSize && !s.capWarned.Swap(true) {
		s.log.Warn("Store grew past the advisory cache bound", "path", s.path, "entries", n, "bound", s.opts.CacheSize)
	}
	return s.scheduleFlush(ctx)
}

// validate checks the key and marshals the value into its stored form.
func validate(key string, value any) (json.RawMessage, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: key must not be empty", ErrInvalidKey)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return raw, nil
}

// Create inserts value under key. It fails with [ErrKeyExists] if the key
// is already present; use [Store.Update] to overwrite.
func (s *Store) Create(ctx context.Context, key string, value any) error {
	raw, err := validate(key, value)
	if err != nil {
		return err
	}
	return s.mutate(ctx, func(d *Dataset) error {
		if _, ok := d.Get(key); ok {
			return fmt.Errorf("%w: %q", ErrKeyExists, key)
		}
		d.Set(key, raw)
		return nil
	})
}

// Update inserts or replaces the value under key. A replaced key keeps its
// position in the dataset order.
func (s *Store) Update(ctx context.Context, key string, value any) error {
	raw, err := validate(key, value)
	if err != nil {
		return err
	}
	return s.mutate(ctx, func(d *Dataset) error {
		d.Set(key, raw)
		return nil
	})
}

// Read returns the value stored under key, or nil when the key is absent.
// It never mutates state and never triggers a flush.
func (s *Store) Read(ctx context.Context, key string) (json.RawMessage, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: key must not be empty", ErrInvalidKey)
	}
	if err := s.await(ctx); err != nil {
		return nil, err
	}
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, _ := s.view.Get(key)
	return v, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("%w: key must not be empty", ErrInvalidKey)
	}
	return s.mutate(ctx, func(d *Dataset) error {
		d.Delete(key)
		return nil
	})
}

// Action selects what a batched [Op] does to its key.
type Action string

const (
	// ActionCreate inserts or replaces a key. Unlike [Store.Create], a
	// batched create overwrites an existing key.
	ActionCreate Action = "create"
	// ActionUpdate inserts or replaces a key.
	ActionUpdate Action = "update"
	// ActionDelete removes a key; removing an absent key is a no-op.
	ActionDelete Action = "delete"
)

// Op is a single entry of a batch mutation.
type Op struct {
	Action Action
	Key    string
	Value  any // ignored for ActionDelete
}

// BatchWrite applies the operations in order to one snapshot of the
// dataset and requests exactly one flush for the whole batch. All
// operations are validated before any of them is applied.
func (s *Store) BatchWrite(ctx context.Context, ops []Op) error {
	raws := make([]json.RawMessage, len(ops))
	for i, op := range ops {
		switch op.Action {
		case ActionCreate, ActionUpdate:
			raw, err := validate(op.Key, op.Value)
			if err != nil {
				return fmt.Errorf("operation %d: %w", i, err)
			}
			raws[i] = raw
		case ActionDelete:
			if op.Key == "" {
				return fmt.Errorf("operation %d: %w: key must not be empty", i, ErrInvalidKey)
			}
		default:
			return fmt.Errorf("operation %d: unknown action %q", i, op.Action)
		}
	}
	if len(ops) == 0 {
		return nil
	}
	return s.mutate(ctx, func(d *Dataset) error {
		for i, op := range ops {
			if op.Action == ActionDelete {
				d.Delete(op.Key)
			} else {
				d.Set(op.Key, raws[i])
			}
		}
		return nil
	})
}

// BatchRead returns a mapping from each requested key to its value, or nil
// for keys that are absent.
func (s *Store) BatchRead(ctx context.Context, keys []string) (map[string]json.RawMessage, error) {
	if err := s.await(ctx); err != nil {
		return nil, err
	}
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		v, _ := s.view.Get(k)
		out[k] = v
	}
	return out, nil
}

// ReadPage returns the sub-mapping for the 1-based page number at the
// given page size, in dataset order. Out of range pages return an empty
// dataset.
func (s *Store) ReadPage(ctx context.Context, page, size int) (*Dataset, error) {
	if err := s.await(ctx); err != nil {
		return nil, err
	}
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.Page(page, size), nil
}

// Close stops the change watcher, cancels the delayed-flush timer and runs
// any flush that was still pending. The store is unusable afterwards.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		<-s.ready
		close(s.closed)
		if s.watch != nil {
			_ = s.watch.Close()
			<-s.watchDone
		}
		s.flushMu.Lock()
		pending := s.flushPending
		s.flushPending = false
		if s.flushTimer != nil {
			s.flushTimer.Stop()
		}
		s.flushMu.Unlock()
		if pending {
			err = s.flush(context.Background())
		}
	})
	return err
}

func (s *Store) reportError(err error) {
	s.log.Error("Store failure", "path", s.path, "error", err)
	if s.opts.OnError != nil {
		s.opts.OnError(err)
	}
}
