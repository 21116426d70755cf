// Package cache implements a thread-safe bounded key/value store with
// per-entry TTL expiry and least-recently-used eviction.
//
// Each data source owns its own Store; stores are never shared between
// sources. Expired entries are removed lazily on access and eagerly by a
// background sweep goroutine. When the store reaches capacity, the entry
// with the oldest last-access time is evicted before a new entry is
// inserted. The LRU order is tracked with a doubly linked list so both
// lookup and eviction are O(1).
//
// The store is best-effort by design: a failed operation degrades to a
// cache miss rather than surfacing an error to the request path.
package cache
