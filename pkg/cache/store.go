package cache

import (
	"container/list"
	"log/slog"
	"sync"
	"time"
)

// entry is a single cached value. A zero expiresAt means the entry never
// expires. lastAccess is the LRU clock, updated on every read.
type entry struct {
	key        string
	value      any
	expiresAt  time.Time
	lastAccess time.Time
}

// expired reports whether the entry is past its expiry at the given instant.
func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Store is a TTL+LRU key/value cache. All methods are safe for concurrent
// use. The zero value is not usable; construct with New.
type Store struct {
	name       string
	maxSize    int
	defaultTTL time.Duration

	mu      sync.RWMutex
	entries map[string]*list.Element
	// lru orders entries by last access, front = most recent. The back
	// element is the eviction candidate.
	lru    *list.List
	closed bool

	stats statistics

	sweepInterval time.Duration
	stopCh        chan struct{}
	sweepDone     chan struct{}

	logger *slog.Logger
}

// New creates a cache store. maxSize of 0 means unbounded; defaultTTL of 0
// means entries never expire unless PutTTL says otherwise. A background
// sweep goroutine removes expired entries every sweepInterval; pass 0 to
// derive the interval from the TTL (TTL/2, clamped to at least 10 seconds,
// one minute when there is no TTL).
func New(name string, maxSize int, defaultTTL, sweepInterval time.Duration) *Store {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
		if defaultTTL > 0 {
			sweepInterval = defaultTTL / 2
			if sweepInterval < 10*time.Second {
				sweepInterval = 10 * time.Second
			}
		}
	}

	s := &Store{
		name:          name,
		maxSize:       maxSize,
		defaultTTL:    defaultTTL,
		entries:       make(map[string]*list.Element),
		lru:           list.New(),
		sweepInterval: sweepInterval,
		stopCh:        make(chan struct{}),
		sweepDone:     make(chan struct{}),
		logger:        slog.Default().With("component", "cache", "cache", name),
	}

	go s.sweepLoop()

	return s
}

// Put stores a value under key with the store's default TTL. An empty key
// is a no-op.
func (s *Store) Put(key string, value any) {
	s.PutTTL(key, value, s.defaultTTL)
}

// PutTTL stores a value under key with an explicit TTL. A TTL of zero or
// less means the entry never expires. If the store is at capacity and key
// is not already present, the least recently accessed entry is evicted
// first.
func (s *Store) PutTTL(key string, value any, ttl time.Duration) {
	if key == "" {
		return
	}

	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if elem, ok := s.entries[key]; ok {
		// Overwrite in place, refreshing expiry and access order.
		e := elem.Value.(*entry)
		e.value = value
		e.expiresAt = expiryFor(start, ttl)
		e.lastAccess = start
		s.lru.MoveToFront(elem)
	} else {
		if s.maxSize > 0 && len(s.entries) >= s.maxSize {
			s.evictOldest()
		}
		e := &entry{
			key:        key,
			value:      value,
			expiresAt:  expiryFor(start, ttl),
			lastAccess: start,
		}
		s.entries[key] = s.lru.PushFront(e)
	}

	s.stats.recordPut(time.Since(start))
}

// Get returns the live value stored under key, or nil when the key is
// absent or expired. An expired entry is deleted on access, counting as
// both a miss and an eviction. A hit refreshes the entry's LRU position.
func (s *Store) Get(key string) any {
	if key == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.entries[key]
	if !ok {
		s.stats.recordMiss()
		return nil
	}

	e := elem.Value.(*entry)
	now := time.Now()
	if e.expired(now) {
		s.deleteLocked(elem, e)
		s.stats.recordMiss()
		s.stats.recordEviction()
		return nil
	}

	e.lastAccess = now
	s.lru.MoveToFront(elem)
	s.stats.recordHit()
	return e.value
}

// Remove deletes the entry under key, reporting whether a live entry was
// removed. Removing an expired entry counts as an eviction instead.
func (s *Store) Remove(key string) bool {
	if key == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.entries[key]
	if !ok {
		return false
	}

	e := elem.Value.(*entry)
	s.deleteLocked(elem, e)

	if e.expired(time.Now()) {
		s.stats.recordEviction()
		return false
	}
	s.stats.recordRemoval()
	return true
}

// ContainsKey reports whether a live entry exists under key. An expired
// entry is deleted but the LRU position of a live one is not refreshed.
func (s *Store) ContainsKey(key string) bool {
	if key == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.entries[key]
	if !ok {
		return false
	}

	e := elem.Value.(*entry)
	if e.expired(time.Now()) {
		s.deleteLocked(elem, e)
		s.stats.recordEviction()
		return false
	}
	return true
}

// Keys returns all non-expired keys in unspecified order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	keys := make([]string, 0, len(s.entries))
	for key, elem := range s.entries {
		if !elem.Value.(*entry).expired(now) {
			keys = append(keys, key)
		}
	}
	return keys
}

// EvictExpired removes every expired entry and returns the number evicted.
// The background sweep calls this periodically; it is also safe to call
// synchronously.
func (s *Store) EvictExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	evicted := 0
	// Walk from the back: the coldest entries expire first in the common
	// case, but expiry is per-entry so the full list is scanned.
	for elem := s.lru.Back(); elem != nil; {
		prev := elem.Prev()
		e := elem.Value.(*entry)
		if e.expired(now) {
			s.deleteLocked(elem, e)
			s.stats.recordEviction()
			evicted++
		}
		elem = prev
	}
	return evicted
}

// Size returns the current number of entries, including any expired entries
// not yet swept.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear removes all entries without touching statistics counters.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*list.Element)
	s.lru.Init()
}

// IsHealthy reports whether the store is usable (not shut down).
func (s *Store) IsHealthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed
}

// Statistics returns an immutable snapshot of the store's counters.
func (s *Store) Statistics() Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats.snapshot(len(s.entries))
}

// Shutdown stops the background sweep and clears all entries. It is
// idempotent and safe to call concurrently with other operations; every
// caller returns only after the sweep goroutine has exited.
func (s *Store) Shutdown() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		s.entries = make(map[string]*list.Element)
		s.lru.Init()
		close(s.stopCh)
	}
	s.mu.Unlock()

	<-s.sweepDone
}

// evictOldest removes the entry at the back of the LRU list. Must be called
// with the write lock held.
func (s *Store) evictOldest() {
	elem := s.lru.Back()
	if elem == nil {
		return
	}
	e := elem.Value.(*entry)
	s.deleteLocked(elem, e)
	s.stats.recordEviction()
}

// deleteLocked removes an entry from both the map and the LRU list. Must be
// called with the write lock held.
func (s *Store) deleteLocked(elem *list.Element, e *entry) {
	delete(s.entries, e.key)
	s.lru.Remove(elem)
}

// sweepLoop periodically evicts expired entries until Shutdown.
func (s *Store) sweepLoop() {
	defer close(s.sweepDone)

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.EvictExpired(); n > 0 {
				s.logger.Debug("swept expired entries", "evicted", n)
			}
		case <-s.stopCh:
			return
		}
	}
}

// expiryFor computes the absolute expiry for a TTL. TTL <= 0 yields the
// zero time, the never-expires sentinel.
func expiryFor(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
