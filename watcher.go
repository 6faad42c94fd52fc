package jsonkv

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// startWatcher begins observing the backing file for writes made by other
// processes. The watch is placed on the parent directory so that the file
// being replaced or recreated does not silently end the watch.
func (s *Store) startWatcher() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		_ = w.Close()
		return err
	}
	s.watch = w
	s.watchDone = make(chan struct{})
	go s.watchLoop(w)
	return nil
}

func (s *Store) watchLoop(w *fsnotify.Watcher) {
	defer close(s.watchDone)
	name := filepath.Clean(s.path)
	for {
		select {
		case <-s.closed:
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				s.resync()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.reportError(fmt.Errorf("failed to watch %s: %w", s.path, err))
		}
	}
}

// resync reloads the backing file after a foreign write and replaces the
// cached view wholesale. The previous view is kept on read failure: stale
// beats unavailable.
func (s *Store) resync() {
	foreign, err := s.files.modifiedExternally()
	if err != nil {
		s.reportError(fmt.Errorf("failed to stat %s: %w", s.path, err))
		return
	}
	if !foreign {
		// One of our own flushes; the view is already current.
		return
	}
	d, err := s.files.readAll(context.Background())
	if err != nil {
		s.reportError(fmt.Errorf("failed to resync %s: %w", s.path, err))
		return
	}
	s.mu.Lock()
	s.view = d
	s.mu.Unlock()
	s.log.Debug("Reloaded after external change", "path", s.path, "entries", d.Len())
	if s.opts.OnChange != nil {
		s.opts.OnChange(d)
	}
}
