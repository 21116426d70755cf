package cache

import "time"

// statistics accumulates operation counters. Guarded by the owning Store's
// mutex.
type statistics struct {
	puts      int64
	hits      int64
	misses    int64
	evictions int64
	removals  int64

	loadTimeTotal time.Duration
	loadSamples   int64
}

func (st *statistics) recordPut(loadTime time.Duration) {
	st.puts++
	st.loadTimeTotal += loadTime
	st.loadSamples++
}

func (st *statistics) recordHit()      { st.hits++ }
func (st *statistics) recordMiss()     { st.misses++ }
func (st *statistics) recordEviction() { st.evictions++ }
func (st *statistics) recordRemoval()  { st.removals++ }

func (st *statistics) snapshot(size int) Statistics {
	var avg time.Duration
	if st.loadSamples > 0 {
		avg = st.loadTimeTotal / time.Duration(st.loadSamples)
	}
	return Statistics{
		Puts:            st.puts,
		Hits:            st.hits,
		Misses:          st.misses,
		Evictions:       st.evictions,
		Removals:        st.removals,
		Size:            size,
		AverageLoadTime: avg,
	}
}

// Statistics is an immutable snapshot of a store's counters.
type Statistics struct {
	// Puts is the total number of successful insert/overwrite operations.
	Puts int64

	// Hits is the number of Get calls that returned a live value.
	Hits int64

	// Misses is the number of Get calls that returned nil.
	Misses int64

	// Evictions counts capacity evictions plus lazy and swept expiries.
	Evictions int64

	// Removals is the number of live entries deleted via Remove.
	Removals int64

	// Size is the entry count at snapshot time.
	Size int

	// AverageLoadTime is the mean duration of put operations.
	AverageLoadTime time.Duration
}

// HitRate returns the fraction of lookups served from cache, in [0, 1].
// A store with no lookups reports 0.
func (s Statistics) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
