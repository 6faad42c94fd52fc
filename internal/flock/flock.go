// Package flock provides advisory file locking used to coordinate access to
// a store's backing file across operating system processes.
//
// Locks attach to an open file handle and are released by [Unlock] or when
// the handle is closed. Acquisition polls with a short retry delay so that
// it honors context cancellation instead of blocking in the kernel forever.
package flock

import (
	"context"
	"os"
	"time"
)

// retryDelay is the pause between acquisition attempts while another
// process holds the lock.
const retryDelay = 10 * time.Millisecond

// Lock acquires an exclusive lock on f, blocking until the lock becomes
// available or ctx is done.
func Lock(ctx context.Context, f *os.File) error {
	return acquire(ctx, f, true)
}

// RLock acquires a shared lock on f, blocking until the lock becomes
// available or ctx is done.
func RLock(ctx context.Context, f *os.File) error {
	return acquire(ctx, f, false)
}

func acquire(ctx context.Context, f *os.File, exclusive bool) error {
	for {
		err := tryLock(f, exclusive)
		if err == nil {
			return nil
		}
		if !contended(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}
}
