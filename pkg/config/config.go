package config

import "time"

// Config is the root configuration for the conduit runtime.
type Config struct {
	// Logging configures structured log output.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures Prometheus metric export.
	Metrics MetricsConfig `yaml:"metrics"`

	// Manager configures the source manager's resilience behavior.
	Manager ManagerConfig `yaml:"manager"`

	// DataSources lists every external data source to construct at startup.
	DataSources []DataSourceConfig `yaml:"data_sources"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `yaml:"level"`

	// Format is the output format ("json" or "text").
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig configures Prometheus metric export.
type MetricsConfig struct {
	// Enabled turns metric collection on or off.
	Enabled bool `yaml:"enabled"`

	// ListenAddress is where the /metrics endpoint is served (e.g. ":9464").
	ListenAddress string `yaml:"listen_address"`

	// Namespace is the metric namespace prefix.
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem prefix.
	Subsystem string `yaml:"subsystem"`

	// CollectionSchedule is a cron expression for the periodic metrics
	// sweep that copies per-source counters into Prometheus gauges.
	CollectionSchedule string `yaml:"collection_schedule"`
}

// ManagerConfig configures load balancing and shutdown behavior of the
// source manager.
type ManagerConfig struct {
	// RequireHealthy controls load-balancing behavior when a type group has
	// no healthy members. When false (the default), selection falls back to
	// plain round-robin over all sources of the type. When true, selection
	// returns nothing until a member recovers.
	RequireHealthy bool `yaml:"require_healthy"`

	// ShutdownGrace bounds how long Shutdown waits for in-flight background
	// work (probes, sweeps) before forcing cancellation.
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
}

// Data source type names accepted in DataSourceConfig.Type.
const (
	TypeCache        = "cache"
	TypeFileSystem   = "file-system"
	TypeDatabase     = "database"
	TypeRestAPI      = "rest-api"
	TypeMessageQueue = "message-queue"
)

// DataSourceConfig describes one external data source. Name is unique across
// the deployment and immutable after registration.
type DataSourceConfig struct {
	// Name is the unique identifier for this source.
	Name string `yaml:"name"`

	// Type selects the implementation variant: "cache", "file-system",
	// "database", "rest-api", or "message-queue".
	Type string `yaml:"type"`

	// Enabled controls whether the source is constructed at startup.
	// Defaults to true.
	Enabled *bool `yaml:"enabled"`

	// Description is a human-readable description, logged when the source
	// is added to the manager.
	Description string `yaml:"description"`

	// Tags are free-form labels attached to the source. The manager
	// indexes sources by tag for discovery.
	Tags []string `yaml:"tags"`

	// Connection holds type-specific connection parameters.
	Connection ConnectionConfig `yaml:"connection"`

	// Cache configures the source's read-through cache.
	Cache CacheConfig `yaml:"cache"`

	// HealthCheck configures the source's health monitor.
	HealthCheck HealthCheckConfig `yaml:"health_check"`

	// Queries maps logical data type names to source-specific query text
	// (SQL for database sources, endpoint paths for REST sources).
	Queries map[string]string `yaml:"queries"`
}

// IsEnabled reports whether the source should be constructed. A nil Enabled
// field counts as enabled.
func (c *DataSourceConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// ConnectionConfig holds connection parameters. Which fields apply depends
// on the declared source type; validation enforces the type-specific
// requirements.
type ConnectionConfig struct {
	// Database sources.
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// File-system sources.
	BasePath    string `yaml:"base_path"`
	FilePattern string `yaml:"file_pattern"`

	// REST API sources.
	BaseURL string            `yaml:"base_url"`
	Headers map[string]string `yaml:"headers"`

	// Message queue sources. BootstrapServers names an external broker;
	// the in-process broker ignores it with a warning.
	BootstrapServers string   `yaml:"bootstrap_servers"`
	Topics           []string `yaml:"topics"`
	MaxPending       int      `yaml:"max_pending"`

	// Timeout bounds a single operation against the underlying resource.
	Timeout time.Duration `yaml:"timeout"`

	// RetryAttempts is the number of retries after a failed request.
	RetryAttempts int `yaml:"retry_attempts"`

	// RetryDelay is the base delay between retries (doubled per attempt).
	RetryDelay time.Duration `yaml:"retry_delay"`

	// Pool configures the connection pool for database sources.
	Pool PoolConfig `yaml:"pool"`
}

// PoolConfig configures a database/sql connection pool.
type PoolConfig struct {
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// CacheConfig configures the per-source read-through cache.
type CacheConfig struct {
	// Enabled turns the cache on. Sources without a cache pass every read
	// through to the underlying resource.
	Enabled bool `yaml:"enabled"`

	// MaxSize is the maximum entry count before LRU eviction kicks in.
	MaxSize int `yaml:"max_size"`

	// TTLSeconds is the default entry time-to-live. Zero or negative means
	// entries never expire.
	TTLSeconds int `yaml:"ttl_seconds"`

	// KeyPrefix is prepended to every generated cache key.
	KeyPrefix string `yaml:"key_prefix"`

	// SweepInterval is how often the background sweep evicts expired
	// entries. Zero selects a default derived from the TTL.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// TTL returns the configured default TTL as a duration. Zero means no
// expiry.
func (c *CacheConfig) TTL() time.Duration {
	if c.TTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TTLSeconds) * time.Second
}

// HealthCheckConfig configures a source's hysteresis health monitor.
type HealthCheckConfig struct {
	// Enabled turns background monitoring on. Disabled monitors answer
	// health queries with an immediate synchronous probe.
	Enabled bool `yaml:"enabled"`

	// Query is the probe command: SQL text for databases, a path for REST
	// sources, unused by in-memory variants.
	Query string `yaml:"query"`

	// Interval is the period between background probes.
	Interval time.Duration `yaml:"interval"`

	// Timeout bounds a single probe.
	Timeout time.Duration `yaml:"timeout"`

	// FailureThreshold is the number of consecutive probe failures before a
	// healthy source is marked unhealthy.
	FailureThreshold int `yaml:"failure_threshold"`

	// SuccessThreshold is the number of consecutive probe successes before
	// an unhealthy source is marked healthy again.
	SuccessThreshold int `yaml:"success_threshold"`

	// LogFailures controls whether individual probe failures are logged.
	LogFailures bool `yaml:"log_failures"`
}
