package jsonkv

import (
	"log/slog"
	"time"
)

// defaultCacheSize is the advisory bound applied when Options.CacheSize is
// left zero.
const defaultCacheSize = 1000

// Options configures a store. The zero value enables caching with
// synchronous writes and the default cache bound.
type Options struct {
	// NoCache disables the in-memory cached view. Every operation then
	// performs a fresh locked read of the backing file.
	NoCache bool

	// DelayedWrite is how long to coalesce mutations before persisting.
	// Zero persists synchronously within the mutating call.
	DelayedWrite time.Duration

	// CacheSize is the advisory upper bound on cached entries. Growing
	// past it logs a warning; entries are never evicted. Defaults to 1000.
	CacheSize int

	// OnChange is invoked from a background goroutine with the freshly
	// loaded dataset whenever a write by another process is detected.
	OnChange func(*Dataset)

	// OnError is invoked from a background goroutine when initialization,
	// a delayed flush, or a watcher resync fails. Synchronous flush
	// failures are reported here in addition to the mutating caller.
	OnError func(error)

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}
