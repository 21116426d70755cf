package config

import "time"

// Default values applied to unset configuration fields.
const (
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
	DefaultMetricsAddress     = ":9464"
	DefaultMetricsNamespace   = "conduit"
	DefaultMetricsSubsystem   = "sources"
	DefaultMetricsSchedule    = "@every 1m"
	DefaultShutdownGrace      = 5 * time.Second
	DefaultConnectionTimeout  = 30 * time.Second
	DefaultRetryDelay         = 500 * time.Millisecond
	DefaultCacheMaxSize       = 10000
	DefaultHealthInterval     = 30 * time.Second
	DefaultHealthTimeout      = 5 * time.Second
	DefaultFailureThreshold   = 3
	DefaultSuccessThreshold   = 1
	DefaultQueueMaxPending    = 1000
	DefaultPoolMaxOpenConns   = 10
	DefaultPoolMaxIdleConns   = 5
	DefaultPoolConnMaxLife    = time.Hour
)

// ApplyDefaults fills unset fields of cfg with default values. It is called
// by LoadFile before validation; callers constructing a Config in code can
// invoke it directly.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}

	if cfg.Metrics.ListenAddress == "" {
		cfg.Metrics.ListenAddress = DefaultMetricsAddress
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Subsystem == "" {
		cfg.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if cfg.Metrics.CollectionSchedule == "" {
		cfg.Metrics.CollectionSchedule = DefaultMetricsSchedule
	}

	if cfg.Manager.ShutdownGrace <= 0 {
		cfg.Manager.ShutdownGrace = DefaultShutdownGrace
	}

	for i := range cfg.DataSources {
		applySourceDefaults(&cfg.DataSources[i])
	}
}

func applySourceDefaults(ds *DataSourceConfig) {
	conn := &ds.Connection
	if conn.Timeout == 0 {
		conn.Timeout = DefaultConnectionTimeout
	}
	if conn.RetryDelay == 0 {
		conn.RetryDelay = DefaultRetryDelay
	}
	if conn.MaxPending == 0 {
		conn.MaxPending = DefaultQueueMaxPending
	}
	if conn.Pool.MaxOpenConns == 0 {
		conn.Pool.MaxOpenConns = DefaultPoolMaxOpenConns
	}
	if conn.Pool.MaxIdleConns == 0 {
		conn.Pool.MaxIdleConns = DefaultPoolMaxIdleConns
	}
	if conn.Pool.ConnMaxLifetime == 0 {
		conn.Pool.ConnMaxLifetime = DefaultPoolConnMaxLife
	}

	if ds.Cache.Enabled && ds.Cache.MaxSize == 0 {
		ds.Cache.MaxSize = DefaultCacheMaxSize
	}

	hc := &ds.HealthCheck
	if hc.Interval == 0 {
		hc.Interval = DefaultHealthInterval
	}
	if hc.Timeout == 0 {
		hc.Timeout = DefaultHealthTimeout
	}
	if hc.FailureThreshold == 0 {
		hc.FailureThreshold = DefaultFailureThreshold
	}
	if hc.SuccessThreshold == 0 {
		hc.SuccessThreshold = DefaultSuccessThreshold
	}
}
