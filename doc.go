// Package jsonkv implements a single-file, JSON-backed key-value store.
//
// # Overview
//
// A [Store] keeps an ordered string-to-JSON mapping in one file, rewritten
// in full on every flush. It offers CRUD and batch mutation, insertion-order
// pagination, a full in-memory cached view, coalesced delayed writes, and
// detection of changes made to the file by other processes. It targets
// small embedded-storage uses, configuration stores and local caches, where
// a database engine is unwarranted but a naive read-modify-write per call
// would be too slow or unsafe under concurrent access.
//
// # Concurrency
//
// Within a process the cached view is guarded by a read-write mutex, and
// writes are funneled through an ordering mutex so they reach the file in
// the order they were issued. Across processes, every file read and write
// takes an advisory lock on the backing file; two processes' cycles
// serialize on it, though a cached view can go stale the instant another
// process writes, until the change watcher resynchronizes it.
//
// # Durability
//
// With a write delay configured, bursts of mutations coalesce into a single
// flush that persists the dataset as it stands when the timer fires. A
// failed flush leaves the mutation committed in memory but not yet durable.
// Unparsable file content degrades to an empty dataset rather than failing
// reads; see [Options.OnError] for how background failures are reported.
package jsonkv
