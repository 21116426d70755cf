package sourcefactory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/sources"
)

// monitorStarter is implemented by source variants that run background
// health probing.
type monitorStarter interface {
	StartMonitoring(ctx context.Context)
}

// Manager owns the full set of configured data sources: construction,
// registration, load-balanced selection, failover, and lifecycle. It is the
// single entry point the rule engine talks to.
//
// Manager is thread-safe and can be used concurrently.
type Manager struct {
	cfg      config.ManagerConfig
	registry *sources.Registry

	// mu guards typeGroups, cursors, and sourceTags. Group membership
	// changes rarely; selection happens on every request.
	mu         sync.RWMutex
	typeGroups map[sources.Type][]string
	cursors    map[sources.Type]*atomic.Uint64
	sourceTags map[string][]string

	cron      *cron.Cron
	startedAt time.Time
	closed    atomic.Bool
	closeOnce sync.Once

	logger *slog.Logger
}

// NewManager creates a manager with an empty registry.
func NewManager(cfg config.ManagerConfig) *Manager {
	return &Manager{
		cfg:        cfg,
		registry:   sources.NewRegistry(),
		typeGroups: make(map[sources.Type][]string),
		cursors:    make(map[sources.Type]*atomic.Uint64),
		sourceTags: make(map[string][]string),
		startedAt:  time.Now(),
		logger:     slog.Default().With("component", "sourcefactory.manager"),
	}
}

// Registry exposes the underlying registry for read-side consumers.
func (m *Manager) Registry() *sources.Registry { return m.registry }

// Initialize constructs and registers every enabled source from
// configuration. A configuration error on any source aborts initialization
// and tears down the sources created so far: a partially initialized
// manager is worse than a failed startup.
func (m *Manager) Initialize(ctx context.Context, configs []config.DataSourceConfig) error {
	for _, cfg := range configs {
		if !cfg.IsEnabled() {
			m.logger.Info("skipping disabled data source", "name", cfg.Name)
			continue
		}

		if err := m.AddDataSource(ctx, cfg); err != nil {
			m.logger.Error("data source initialization failed, aborting",
				"name", cfg.Name,
				"error", err,
			)
			if shutdownErr := m.registry.Shutdown(); shutdownErr != nil {
				m.logger.Error("cleanup after failed initialization", "error", shutdownErr)
			}
			return fmt.Errorf("failed to initialize data source %q: %w", cfg.Name, err)
		}
	}

	m.logger.Info("data source manager initialized",
		"sources", m.registry.Size(),
		"types", len(m.typeGroups),
	)
	return nil
}

// AddDataSource constructs one source from configuration, registers it, and
// starts its health monitoring.
func (m *Manager) AddDataSource(ctx context.Context, cfg config.DataSourceConfig) error {
	if m.closed.Load() {
		return fmt.Errorf("manager is shut down")
	}

	src, err := New(cfg)
	if err != nil {
		return err
	}

	if err := m.registry.Register(src); err != nil {
		src.Close()
		return err
	}

	m.addToGroup(src.GetType(), src.GetName())

	m.mu.Lock()
	if len(cfg.Tags) > 0 {
		m.sourceTags[src.GetName()] = append([]string(nil), cfg.Tags...)
	} else {
		delete(m.sourceTags, src.GetName())
	}
	m.mu.Unlock()

	if starter, ok := src.(monitorStarter); ok {
		starter.StartMonitoring(ctx)
	}

	m.logger.Info("data source added",
		"name", src.GetName(),
		"type", src.GetType(),
		"description", cfg.Description,
		"tags", cfg.Tags,
	)
	return nil
}

// RemoveDataSource unregisters and closes the named source, reporting
// whether it was present.
func (m *Manager) RemoveDataSource(name string) bool {
	src := m.registry.Get(name)
	if src == nil {
		return false
	}

	m.removeFromGroup(src.GetType(), name)

	m.mu.Lock()
	delete(m.sourceTags, name)
	m.mu.Unlock()

	return m.registry.Unregister(name)
}

func (m *Manager) addToGroup(t sources.Type, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// A replaced registration may carry a new type. The name must live in
	// exactly one group, or selection on the old type would resolve it to
	// a source of the wrong type.
	for other, group := range m.typeGroups {
		if other == t {
			continue
		}
		for i, existing := range group {
			if existing == name {
				m.typeGroups[other] = append(group[:i], group[i+1:]...)
				break
			}
		}
	}

	// Replacing an existing registration must not duplicate the group
	// entry.
	for _, existing := range m.typeGroups[t] {
		if existing == name {
			return
		}
	}
	m.typeGroups[t] = append(m.typeGroups[t], name)
	if _, ok := m.cursors[t]; !ok {
		m.cursors[t] = &atomic.Uint64{}
	}
}

func (m *Manager) removeFromGroup(t sources.Type, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	group := m.typeGroups[t]
	for i, existing := range group {
		if existing == name {
			m.typeGroups[t] = append(group[:i], group[i+1:]...)
			return
		}
	}
}

// GetDataSource returns the named source, or nil when absent.
func (m *Manager) GetDataSource(name string) sources.ExternalDataSource {
	return m.registry.Get(name)
}

// GetDataSourcesByType returns every registered source of the given type.
func (m *Manager) GetDataSourcesByType(t sources.Type) []sources.ExternalDataSource {
	return m.registry.ByType(t)
}

// GetDataSourcesByTag returns every registered source carrying the given
// configuration tag.
func (m *Manager) GetDataSourcesByTag(tag string) []sources.ExternalDataSource {
	m.mu.RLock()
	var names []string
	for name, tags := range m.sourceTags {
		for _, t := range tags {
			if t == tag {
				names = append(names, name)
				break
			}
		}
	}
	m.mu.RUnlock()

	matched := make([]sources.ExternalDataSource, 0, len(names))
	for _, name := range names {
		if src := m.registry.Get(name); src != nil {
			matched = append(matched, src)
		}
	}
	return matched
}

// group returns a snapshot of the named type group.
func (m *Manager) group(t sources.Type) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	group := m.typeGroups[t]
	snapshot := make([]string, len(group))
	copy(snapshot, group)
	return snapshot
}

// nextCursor advances the round-robin cursor for a type group.
func (m *Manager) nextCursor(t sources.Type) uint64 {
	m.mu.RLock()
	cursor := m.cursors[t]
	m.mu.RUnlock()
	if cursor == nil {
		return 0
	}
	return cursor.Add(1) - 1
}

// GetDataSourceWithLoadBalancing selects a source of the given type by
// round-robin. Healthy sources are preferred; when every source in the
// group is unhealthy, the rotation falls back to the full group unless the
// manager requires healthy sources, in which case nil is returned. An empty
// group returns nil.
func (m *Manager) GetDataSourceWithLoadBalancing(t sources.Type) sources.ExternalDataSource {
	group := m.group(t)
	if len(group) == 0 {
		return nil
	}

	offset := m.nextCursor(t)

	// First rotation: healthy sources only.
	for i := range group {
		name := group[(offset+uint64(i))%uint64(len(group))]
		src := m.registry.Get(name)
		if src != nil && src.IsHealthy() {
			return src
		}
	}

	if m.cfg.RequireHealthy {
		m.logger.Warn("no healthy data source available", "type", t)
		return nil
	}

	// Degraded fallback: same rotation over the full group.
	for i := range group {
		name := group[(offset+uint64(i))%uint64(len(group))]
		if src := m.registry.Get(name); src != nil {
			m.logger.Warn("falling back to unhealthy data source",
				"type", t,
				"source", src.GetName(),
			)
			return src
		}
	}
	return nil
}

// GetData routes a lookup to a load-balanced source of the given type.
func (m *Manager) GetData(ctx context.Context, t sources.Type, dataType string, params ...any) (any, error) {
	src := m.GetDataSourceWithLoadBalancing(t)
	if src == nil {
		return nil, &sources.FailoverError{Type: t}
	}
	return src.GetData(ctx, dataType, params...)
}

// QueryWithFailover runs a query against sources of the given type, trying
// each candidate in rotation order until one succeeds. Healthy candidates
// are tried before unhealthy ones. When every candidate fails, the
// aggregated *sources.FailoverError names each attempt and its cause.
func (m *Manager) QueryWithFailover(ctx context.Context, t sources.Type, query string, params map[string]any) ([]any, error) {
	group := m.group(t)
	if len(group) == 0 {
		return nil, &sources.FailoverError{Type: t}
	}

	correlationID := uuid.NewString()
	offset := m.nextCursor(t)

	// Rotation order, healthy candidates first.
	ordered := make([]sources.ExternalDataSource, 0, len(group))
	var unhealthy []sources.ExternalDataSource
	for i := range group {
		name := group[(offset+uint64(i))%uint64(len(group))]
		src := m.registry.Get(name)
		if src == nil {
			continue
		}
		if src.IsHealthy() {
			ordered = append(ordered, src)
		} else {
			unhealthy = append(unhealthy, src)
		}
	}
	ordered = append(ordered, unhealthy...)

	failure := &sources.FailoverError{Type: t}
	for _, src := range ordered {
		results, err := src.Query(ctx, query, params)
		if err == nil {
			if len(failure.Attempts) > 0 {
				m.logger.Info("query succeeded after failover",
					"correlation_id", correlationID,
					"type", t,
					"source", src.GetName(),
					"failed_attempts", len(failure.Attempts),
				)
			}
			return results, nil
		}

		m.logger.Warn("query failed, trying next data source",
			"correlation_id", correlationID,
			"type", t,
			"source", src.GetName(),
			"error", err,
		)
		failure.Attempts = append(failure.Attempts, sources.FailoverAttempt{
			Source: src.GetName(),
			Err:    err,
		})

		if ctx.Err() != nil {
			break
		}
	}

	m.logger.Error("all data sources failed",
		"correlation_id", correlationID,
		"type", t,
		"attempts", len(failure.Attempts),
	)
	return nil, failure
}

// ManagerStatistics is an on-demand snapshot of the manager and every
// registered source.
type ManagerStatistics struct {
	// Registry summarizes registration and health counts.
	Registry sources.RegistryStatistics

	// Sources holds each source's request counters by name.
	Sources map[string]sources.MetricsSnapshot

	// Uptime is how long the manager has been running.
	Uptime time.Duration
}

// Statistics collects registry and per-source metrics.
func (m *Manager) Statistics() ManagerStatistics {
	stats := ManagerStatistics{
		Registry: m.registry.Statistics(),
		Sources:  make(map[string]sources.MetricsSnapshot),
		Uptime:   time.Since(m.startedAt),
	}
	for _, src := range m.registry.All() {
		stats.Sources[src.GetName()] = src.GetMetrics()
	}
	return stats
}

// StartMetricsCollection schedules a periodic statistics sweep that logs an
// aggregate view of the managed sources. The schedule uses cron syntax,
// including @every shorthand.
func (m *Manager) StartMetricsCollection(schedule string) error {
	if schedule == "" {
		schedule = config.DefaultMetricsSchedule
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, m.collectMetrics); err != nil {
		return fmt.Errorf("invalid metrics collection schedule %q: %w", schedule, err)
	}

	m.mu.Lock()
	if m.cron != nil {
		m.cron.Stop()
	}
	m.cron = c
	m.mu.Unlock()

	c.Start()
	m.logger.Info("metrics collection started", "schedule", schedule)
	return nil
}

// collectMetrics logs one aggregate statistics sweep.
func (m *Manager) collectMetrics() {
	stats := m.Statistics()

	var successes, failures, hits, misses int64
	for _, snapshot := range stats.Sources {
		successes += snapshot.SuccessfulRequests
		failures += snapshot.FailedRequests
		hits += snapshot.CacheHits
		misses += snapshot.CacheMisses
	}

	m.logger.Info("data source metrics",
		"total_sources", stats.Registry.TotalSources,
		"healthy_sources", stats.Registry.HealthySources,
		"health_percentage", stats.Registry.HealthPercentage,
		"successful_requests", successes,
		"failed_requests", failures,
		"cache_hits", hits,
		"cache_misses", misses,
	)
}

// Shutdown stops metrics collection and closes every source. In-flight
// cron jobs get a bounded grace period. Shutdown is idempotent.
func (m *Manager) Shutdown() error {
	var err error
	m.closeOnce.Do(func() {
		m.closed.Store(true)

		m.mu.Lock()
		c := m.cron
		m.cron = nil
		m.mu.Unlock()

		if c != nil {
			grace := m.cfg.ShutdownGrace
			if grace <= 0 {
				grace = config.DefaultShutdownGrace
			}
			cronCtx := c.Stop()
			select {
			case <-cronCtx.Done():
			case <-time.After(grace):
				m.logger.Warn("metrics collection did not stop within grace period")
			}
		}

		err = m.registry.Shutdown()
		m.logger.Info("data source manager shut down")
	})
	return err
}
