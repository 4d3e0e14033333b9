// Package cache defines the durable media behind the third-party data cache
// and the fail-soft EntryStore on top of them. A Store translates a
// Locator{Source, Key} into either StoragePath/<source>/<key>.json files
// (temp file + rename) or a row of the cache_entries SQLite table. EntryStore
// adds the JSON entry envelope (data, fetchedAt, ttlMs) and swallows every
// medium failure so the policy layer degrades to "no cache" instead of
// failing. The package holds no freshness policy: pruning is decided by the
// caller on read.
package cache
