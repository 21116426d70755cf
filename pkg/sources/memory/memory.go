// Package memory implements the in-process cache variant of
// sources.ExternalDataSource. The source is its own backing store: reads
// and writes go straight to an owned cache.Store, and the health probe is a
// put/get/remove round trip through that store.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/conduit/pkg/cache"
	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/health"
	"mercator-hq/conduit/pkg/sources"
)

// Source is a cache-backed data source.
type Source struct {
	cfg     config.DataSourceConfig
	store   *cache.Store
	monitor *health.Monitor
	metrics sources.Metrics

	closeOnce sync.Once
	logger    *slog.Logger
}

// New constructs a cache source from configuration. The backing store is
// always created for this variant, regardless of the cache.enabled flag:
// the store is the resource.
func New(cfg config.DataSourceConfig) (*Source, error) {
	maxSize := cfg.Cache.MaxSize
	if maxSize <= 0 {
		maxSize = config.DefaultCacheMaxSize
	}

	s := &Source{
		cfg:    cfg,
		store:  cache.New(cfg.Name, maxSize, cfg.Cache.TTL(), cfg.Cache.SweepInterval),
		logger: slog.Default().With("component", "sources.memory", "source", cfg.Name),
	}
	s.monitor = health.NewMonitor(cfg.Name, s.probe, cfg.HealthCheck)

	s.logger.Info("cache data source initialized",
		"max_size", maxSize,
		"ttl_seconds", cfg.Cache.TTLSeconds,
	)
	return s, nil
}

// StartMonitoring launches the background health probe loop.
func (s *Source) StartMonitoring(ctx context.Context) {
	if s.cfg.HealthCheck.Enabled {
		s.monitor.Start(ctx)
	}
}

// probe verifies the store with a put/get/remove round trip.
func (s *Source) probe(ctx context.Context) error {
	if !s.store.IsHealthy() {
		return fmt.Errorf("cache store is shut down")
	}

	key := fmt.Sprintf("_health_check_%d", time.Now().UnixNano())
	s.store.PutTTL(key, "ok", time.Minute)
	got := s.store.Get(key)
	s.store.Remove(key)

	if got != "ok" {
		return fmt.Errorf("cache round trip returned %v", got)
	}
	return nil
}

// GetName returns the source's configured name.
func (s *Source) GetName() string { return s.cfg.Name }

// GetType returns TypeCache.
func (s *Source) GetType() sources.Type { return sources.TypeCache }

// IsHealthy reports the monitor's current state.
func (s *Source) IsHealthy() bool { return s.monitor.IsHealthy() }

// GetHealth returns a detailed health snapshot.
func (s *Source) GetHealth() health.Status { return s.monitor.Status() }

// GetData looks up the value cached under the key derived from dataType
// and params. A missing or expired entry yields nil.
func (s *Source) GetData(ctx context.Context, dataType string, params ...any) (any, error) {
	start := time.Now()

	key := sources.BuildCacheKey(s.cfg.Cache.KeyPrefix, dataType, params...)
	value := s.store.Get(key)

	if value != nil {
		s.metrics.RecordCacheHit()
	} else {
		s.metrics.RecordCacheMiss()
	}
	s.metrics.RecordSuccess(time.Since(start))
	return value, nil
}

// Query treats the query as a key glob and returns every live value whose
// key matches.
func (s *Source) Query(ctx context.Context, query string, params map[string]any) ([]any, error) {
	start := time.Now()

	if !s.store.IsHealthy() {
		s.metrics.RecordFailure(time.Since(start))
		return nil, &sources.DataSourceError{
			Source:  s.cfg.Name,
			Op:      "query",
			Message: "cache store is shut down",
		}
	}

	keys := s.store.KeysByPattern(query)
	results := make([]any, 0, len(keys))
	for _, key := range keys {
		if value := s.store.Get(key); value != nil {
			results = append(results, value)
		}
	}

	s.metrics.RecordRecords(len(results))
	s.metrics.RecordSuccess(time.Since(start))
	return results, nil
}

// GetMetrics returns a snapshot of the request counters.
func (s *Source) GetMetrics() sources.MetricsSnapshot { return s.metrics.Snapshot() }

// Put stores a value under an explicit key with the default TTL.
func (s *Source) Put(key string, value any) { s.store.Put(key, value) }

// PutTTL stores a value under an explicit key with an explicit TTL.
func (s *Source) PutTTL(key string, value any, ttl time.Duration) {
	s.store.PutTTL(key, value, ttl)
}

// Remove deletes the entry under key, reporting whether a live entry was
// removed.
func (s *Source) Remove(key string) bool { return s.store.Remove(key) }

// ContainsKey reports whether a live entry exists under key.
func (s *Source) ContainsKey(key string) bool { return s.store.ContainsKey(key) }

// Statistics returns the backing store's counters.
func (s *Source) Statistics() cache.Statistics { return s.store.Statistics() }

// Size returns the backing store's entry count.
func (s *Source) Size() int { return s.store.Size() }

// Close stops health monitoring and shuts the store down. It is idempotent.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		s.monitor.Stop()
		s.store.Shutdown()
		s.logger.Info("cache data source closed")
	})
	return nil
}
