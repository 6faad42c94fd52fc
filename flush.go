package jsonkv

import (
	"context"
	"time"
)

// scheduleFlush requests persistence after a successful mutation. Without
// a configured delay the flush happens inside the mutating call; otherwise
// a single coalescing timer captures the dataset as it stands when it
// fires, so a burst of mutations produces one file write.
func (s *Store) scheduleFlush(ctx context.Context) error {
	if s.opts.DelayedWrite <= 0 {
		if err := s.flush(ctx); err != nil {
			// The mutation is committed in memory but not yet durable.
			s.reportError(err)
			return err
		}
		return nil
	}
	s.flushMu.Lock()
	defer s.flushMu.Unlock()
	if s.flushPending {
		// The pending flush reads the dataset at fire time, so it will
		// pick up this mutation too.
		return nil
	}
	s.flushPending = true
	s.flushTimer = time.AfterFunc(s.opts.DelayedWrite, s.delayedFlush)
	return nil
}

func (s *Store) delayedFlush() {
	s.flushMu.Lock()
	if !s.flushPending {
		// Close won the race and has taken over the flush.
		s.flushMu.Unlock()
		return
	}
	s.flushPending = false
	s.flushMu.Unlock()
	if err := s.flush(context.Background()); err != nil {
		s.reportError(err)
	}
}

// Flush persists the current dataset immediately, even an empty one. Use
// it to force durability without waiting for a delayed write.
func (s *Store) Flush(ctx context.Context) error {
	if err := s.await(ctx); err != nil {
		return err
	}
	return s.flush(ctx)
}

// flush snapshots the dataset and writes it out whole. Empty datasets are
// written too: a deletion that empties the store must truncate the file,
// not leave stale entries behind.
func (s *Store) flush(ctx context.Context) error {
	s.mu.RLock()
	snap := s.view.Clone()
	seq := s.seq
	s.mu.RUnlock()
	if err := s.files.writeAll(ctx, snap); err != nil {
		return err
	}
	s.mu.Lock()
	if seq > s.flushedSeq {
		s.flushedSeq = seq
	}
	s.mu.Unlock()
	return nil
}
