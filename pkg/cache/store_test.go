package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func newTestStore(maxSize int, ttl time.Duration) *Store {
	// A long sweep interval keeps the background sweeper out of timing
	// sensitive tests.
	return New("test", maxSize, ttl, time.Hour)
}

func TestStore_PutGet(t *testing.T) {
	s := newTestStore(10, 0)
	defer s.Shutdown()

	s.Put("a", "alpha")
	if got := s.Get("a"); got != "alpha" {
		t.Errorf("Get(a) = %v, want alpha", got)
	}
	if got := s.Get("missing"); got != nil {
		t.Errorf("Get(missing) = %v, want nil", got)
	}
}

func TestStore_PutEmptyKeyIgnored(t *testing.T) {
	s := newTestStore(10, 0)
	defer s.Shutdown()

	s.Put("", "value")
	if s.Size() != 0 {
		t.Errorf("Size() = %d after empty-key put, want 0", s.Size())
	}
}

func TestStore_OverwriteKeepsSize(t *testing.T) {
	s := newTestStore(10, 0)
	defer s.Shutdown()

	s.Put("a", 1)
	s.Put("a", 2)

	if s.Size() != 1 {
		t.Errorf("Size() = %d, want 1", s.Size())
	}
	if got := s.Get("a"); got != 2 {
		t.Errorf("Get(a) = %v, want 2", got)
	}
}

func TestStore_TTLExpiry(t *testing.T) {
	s := newTestStore(10, 0)
	defer s.Shutdown()

	s.PutTTL("short", "value", 20*time.Millisecond)
	s.PutTTL("forever", "value", 0)

	if got := s.Get("short"); got != "value" {
		t.Fatalf("Get(short) before expiry = %v, want value", got)
	}

	time.Sleep(40 * time.Millisecond)

	if got := s.Get("short"); got != nil {
		t.Errorf("Get(short) after expiry = %v, want nil", got)
	}
	if got := s.Get("forever"); got != "value" {
		t.Errorf("Get(forever) = %v, want value (zero TTL never expires)", got)
	}
}

func TestStore_LRUEviction(t *testing.T) {
	s := newTestStore(2, 0)
	defer s.Shutdown()

	s.Put("a", 1)
	s.Put("b", 2)

	// Touch a so b becomes the least recently used entry.
	if got := s.Get("a"); got != 1 {
		t.Fatalf("Get(a) = %v, want 1", got)
	}

	s.Put("c", 3)

	if s.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", s.Size())
	}
	if got := s.Get("b"); got != nil {
		t.Errorf("Get(b) = %v, want nil (b was least recently used)", got)
	}
	if got := s.Get("a"); got != 1 {
		t.Errorf("Get(a) = %v, want 1", got)
	}
	if got := s.Get("c"); got != 3 {
		t.Errorf("Get(c) = %v, want 3", got)
	}
}

func TestStore_OverwriteAtCapacityDoesNotEvict(t *testing.T) {
	s := newTestStore(2, 0)
	defer s.Shutdown()

	s.Put("a", 1)
	s.Put("b", 2)
	s.Put("a", 10)

	if got := s.Get("b"); got != 2 {
		t.Errorf("Get(b) = %v, want 2 (overwrite must not evict)", got)
	}
	if got := s.Get("a"); got != 10 {
		t.Errorf("Get(a) = %v, want 10", got)
	}
}

func TestStore_Remove(t *testing.T) {
	s := newTestStore(10, 0)
	defer s.Shutdown()

	s.Put("a", 1)

	if !s.Remove("a") {
		t.Error("Remove(a) = false, want true for live entry")
	}
	if s.Remove("a") {
		t.Error("Remove(a) repeated = true, want false")
	}
	if s.Remove("missing") {
		t.Error("Remove(missing) = true, want false")
	}
}

func TestStore_RemoveExpiredReturnsFalse(t *testing.T) {
	s := newTestStore(10, 0)
	defer s.Shutdown()

	s.PutTTL("a", 1, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if s.Remove("a") {
		t.Error("Remove of expired entry = true, want false")
	}

	stats := s.Statistics()
	if stats.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1 (expired removal counts as eviction)", stats.Evictions)
	}
	if stats.Removals != 0 {
		t.Errorf("Removals = %d, want 0", stats.Removals)
	}
}

func TestStore_ContainsKey(t *testing.T) {
	s := newTestStore(10, 0)
	defer s.Shutdown()

	s.Put("a", 1)
	s.PutTTL("b", 2, 10*time.Millisecond)

	if !s.ContainsKey("a") {
		t.Error("ContainsKey(a) = false, want true")
	}
	if s.ContainsKey("missing") {
		t.Error("ContainsKey(missing) = true, want false")
	}

	time.Sleep(30 * time.Millisecond)
	if s.ContainsKey("b") {
		t.Error("ContainsKey(b) = true after expiry, want false")
	}
}

func TestStore_EvictExpired(t *testing.T) {
	s := newTestStore(10, 0)
	defer s.Shutdown()

	s.PutTTL("a", 1, 10*time.Millisecond)
	s.PutTTL("b", 2, 10*time.Millisecond)
	s.Put("c", 3)

	time.Sleep(30 * time.Millisecond)

	if evicted := s.EvictExpired(); evicted != 2 {
		t.Errorf("EvictExpired() = %d, want 2", evicted)
	}
	if s.Size() != 1 {
		t.Errorf("Size() = %d, want 1", s.Size())
	}
}

func TestStore_Statistics(t *testing.T) {
	s := newTestStore(10, 0)
	defer s.Shutdown()

	s.Put("a", 1)
	s.Get("a")
	s.Get("a")
	s.Get("missing")

	stats := s.Statistics()
	if stats.Puts != 1 {
		t.Errorf("Puts = %d, want 1", stats.Puts)
	}
	if stats.Hits != 2 {
		t.Errorf("Hits = %d, want 2", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
	if rate := stats.HitRate(); rate < 0.66 || rate > 0.67 {
		t.Errorf("HitRate() = %f, want ~0.667", rate)
	}
}

func TestStore_Clear(t *testing.T) {
	s := newTestStore(10, 0)
	defer s.Shutdown()

	for i := 0; i < 5; i++ {
		s.Put(fmt.Sprintf("k%d", i), i)
	}
	s.Clear()

	if s.Size() != 0 {
		t.Errorf("Size() = %d after Clear, want 0", s.Size())
	}
}

func TestStore_ShutdownIdempotent(t *testing.T) {
	s := newTestStore(10, 0)

	s.Put("a", 1)
	s.Shutdown()
	s.Shutdown()

	if s.IsHealthy() {
		t.Error("IsHealthy() = true after Shutdown, want false")
	}
}

func TestStore_ConcurrentShutdownWaitsForSweep(t *testing.T) {
	s := New("shutdown-test", 10, 0, 20*time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Shutdown()
			// Any returning caller must observe the sweep goroutine gone.
			select {
			case <-s.sweepDone:
			default:
				t.Error("Shutdown() returned before the sweep goroutine exited")
			}
		}()
	}
	wg.Wait()

	if s.IsHealthy() {
		t.Error("IsHealthy() = true after concurrent Shutdown, want false")
	}
}

func TestStore_BackgroundSweep(t *testing.T) {
	s := New("sweep-test", 10, 0, 20*time.Millisecond)
	defer s.Shutdown()

	s.PutTTL("a", 1, 10*time.Millisecond)

	time.Sleep(60 * time.Millisecond)

	if s.Size() != 0 {
		t.Errorf("Size() = %d, want 0 after background sweep", s.Size())
	}
}
