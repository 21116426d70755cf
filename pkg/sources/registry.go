package sources

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Registry is the process-wide bookkeeping of constructed sources. It is an
// explicit instance, typically owned by the source manager, not a global
// singleton.
//
// Registry is thread-safe and can be used concurrently.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]ExternalDataSource
	closed  bool

	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]ExternalDataSource),
		logger:  slog.Default().With("component", "sources.registry"),
	}
}

// Register adds a source under its name. A name collision overwrites the
// existing registration with a warning (last write wins); the displaced
// source is closed.
func (r *Registry) Register(src ExternalDataSource) error {
	if src == nil {
		return &ConfigError{Field: "source", Message: "cannot register nil data source"}
	}
	name := src.GetName()
	if name == "" {
		return &ConfigError{Field: "name", Message: "data source name cannot be empty"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("registry is shut down")
	}

	if existing, ok := r.sources[name]; ok {
		r.logger.Warn("replacing existing data source", "name", name)
		if err := existing.Close(); err != nil {
			r.logger.Error("error closing displaced data source", "name", name, "error", err)
		}
	}

	r.sources[name] = src

	r.logger.Info("registered data source",
		"name", name,
		"type", src.GetType(),
		"total_sources", len(r.sources),
	)
	return nil
}

// Unregister removes and closes the named source, reporting whether it was
// present.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	src, ok := r.sources[name]
	if ok {
		delete(r.sources, name)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}

	if err := src.Close(); err != nil {
		r.logger.Error("error closing data source", "name", name, "error", err)
	}

	r.logger.Info("unregistered data source", "name", name)
	return true
}

// Get returns the named source, or nil when absent.
func (r *Registry) Get(name string) ExternalDataSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[name]
}

// Names returns all registered source names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	return names
}

// All returns every registered source.
func (r *Registry) All() []ExternalDataSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]ExternalDataSource, 0, len(r.sources))
	for _, src := range r.sources {
		all = append(all, src)
	}
	return all
}

// ByType returns every source of the given type.
func (r *Registry) ByType(t Type) []ExternalDataSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []ExternalDataSource
	for _, src := range r.sources {
		if src.GetType() == t {
			matched = append(matched, src)
		}
	}
	return matched
}

// Healthy returns every source currently reporting healthy.
func (r *Registry) Healthy() []ExternalDataSource {
	return r.filter(func(src ExternalDataSource) bool { return src.IsHealthy() })
}

// Unhealthy returns every source currently reporting unhealthy.
func (r *Registry) Unhealthy() []ExternalDataSource {
	return r.filter(func(src ExternalDataSource) bool { return !src.IsHealthy() })
}

func (r *Registry) filter(keep func(ExternalDataSource) bool) []ExternalDataSource {
	r.mu.RLock()
	snapshot := make([]ExternalDataSource, 0, len(r.sources))
	for _, src := range r.sources {
		snapshot = append(snapshot, src)
	}
	r.mu.RUnlock()

	// Health checks run outside the lock: a synchronous probe on an
	// unmonitored source may block on the resource.
	matched := make([]ExternalDataSource, 0, len(snapshot))
	for _, src := range snapshot {
		if keep(src) {
			matched = append(matched, src)
		}
	}
	return matched
}

// Size returns the number of registered sources.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sources)
}

// RegistryStatistics is a derived, on-demand snapshot of the registry. It
// is not transactionally consistent with concurrent registrations.
type RegistryStatistics struct {
	// TotalSources is the number of registered sources at snapshot time.
	TotalSources int

	// HealthySources is how many reported healthy.
	HealthySources int

	// UnhealthySources is how many reported unhealthy.
	UnhealthySources int

	// HealthPercentage is HealthySources/TotalSources*100. An empty
	// registry reports 100 by convention: nothing is broken.
	HealthPercentage float64

	// TypeCounts breaks the total down by declared type.
	TypeCounts map[Type]int

	// Timestamp is when the snapshot was taken.
	Timestamp time.Time
}

// Statistics scans the current sources and computes derived totals.
func (r *Registry) Statistics() RegistryStatistics {
	snapshot := r.All()

	stats := RegistryStatistics{
		TotalSources: len(snapshot),
		TypeCounts:   make(map[Type]int),
		Timestamp:    time.Now(),
	}

	for _, src := range snapshot {
		stats.TypeCounts[src.GetType()]++
		if src.IsHealthy() {
			stats.HealthySources++
		} else {
			stats.UnhealthySources++
		}
	}

	if stats.TotalSources == 0 {
		stats.HealthPercentage = 100
	} else {
		stats.HealthPercentage = float64(stats.HealthySources) / float64(stats.TotalSources) * 100
	}

	return stats
}

// Shutdown closes every registered source and clears the registry. It is
// idempotent.
func (r *Registry) Shutdown() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	snapshot := r.sources
	r.sources = make(map[string]ExternalDataSource)
	r.mu.Unlock()

	var errs []error
	for name, src := range snapshot {
		if err := src.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close data source %q: %w", name, err))
		}
	}

	r.logger.Info("registry shut down", "closed_sources", len(snapshot))

	if len(errs) > 0 {
		return fmt.Errorf("errors closing data sources: %v", errs)
	}
	return nil
}
