// Package database implements the relational variant of
// sources.ExternalDataSource on top of database/sql. Lookups run named
// queries from configuration; ad-hoc SQL goes through Query. Results are
// returned as generic column maps so callers need no schema knowledge.
//
// Two SQLite drivers are registered: "sqlite" (pure Go) and "sqlite3"
// (cgo). Configuration picks one per source.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"mercator-hq/conduit/pkg/cache"
	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/health"
	"mercator-hq/conduit/pkg/sources"
)

// defaultProbeQuery is run by the health probe when no query is configured.
const defaultProbeQuery = "SELECT 1"

// namedParamPattern matches :name placeholders in SQL text. A double colon
// (the cast operator) is not a placeholder.
var namedParamPattern = regexp.MustCompile(`(^|[^:]):([A-Za-z_][A-Za-z0-9_]*)`)

// Source serves lookups from a SQL database.
type Source struct {
	cfg     config.DataSourceConfig
	db      *sql.DB
	queries map[string]string

	store   *cache.Store
	monitor *health.Monitor
	metrics sources.Metrics

	closeOnce sync.Once
	logger    *slog.Logger
}

// New opens the configured database, applies pool settings, and verifies
// connectivity with one ping.
func New(cfg config.DataSourceConfig) (*Source, error) {
	driver := cfg.Connection.Driver
	switch driver {
	case "sqlite", "sqlite3":
	default:
		return nil, &sources.ConfigError{
			Source:  cfg.Name,
			Field:   "connection.driver",
			Message: fmt.Sprintf("unsupported driver %q (supported: sqlite, sqlite3)", driver),
		}
	}

	db, err := sql.Open(driver, cfg.Connection.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database for %q: %w", cfg.Name, err)
	}

	pool := cfg.Connection.Pool
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	if pool.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	}

	timeout := cfg.Connection.Timeout
	if timeout <= 0 {
		timeout = config.DefaultConnectionTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database for %q: %w", cfg.Name, err)
	}

	s := &Source{
		cfg:     cfg,
		db:      db,
		queries: cfg.Queries,
		logger:  slog.Default().With("component", "sources.database", "source", cfg.Name),
	}
	if cfg.Cache.Enabled {
		maxSize := cfg.Cache.MaxSize
		if maxSize <= 0 {
			maxSize = config.DefaultCacheMaxSize
		}
		s.store = cache.New(cfg.Name+"-cache", maxSize, cfg.Cache.TTL(), cfg.Cache.SweepInterval)
	}
	s.monitor = health.NewMonitor(cfg.Name, s.probe, cfg.HealthCheck)

	s.logger.Info("database data source initialized",
		"driver", driver,
		"database", cfg.Connection.Database,
		"named_queries", len(cfg.Queries),
		"cache_enabled", cfg.Cache.Enabled,
	)
	return s, nil
}

// StartMonitoring launches the background health probe loop.
func (s *Source) StartMonitoring(ctx context.Context) {
	if s.cfg.HealthCheck.Enabled {
		s.monitor.Start(ctx)
	}
}

// probe runs the configured health query, defaulting to SELECT 1.
func (s *Source) probe(ctx context.Context) error {
	query := s.cfg.HealthCheck.Query
	if query == "" {
		query = defaultProbeQuery
	}
	var result any
	if err := s.db.QueryRowContext(ctx, query).Scan(&result); err != nil {
		return fmt.Errorf("health query failed: %w", err)
	}
	return nil
}

// GetName returns the source's configured name.
func (s *Source) GetName() string { return s.cfg.Name }

// GetType returns TypeDatabase.
func (s *Source) GetType() sources.Type { return sources.TypeDatabase }

// IsHealthy reports the monitor's current state.
func (s *Source) IsHealthy() bool { return s.monitor.IsHealthy() }

// GetHealth returns a detailed health snapshot.
func (s *Source) GetHealth() health.Status { return s.monitor.Status() }

// GetData runs the named query configured for dataType, binding params in
// placeholder order, and returns the first row as a map. No configured
// query or no matching row yields nil; execution failures are absorbed
// into a nil result after logging and counting.
func (s *Source) GetData(ctx context.Context, dataType string, params ...any) (any, error) {
	start := time.Now()

	query, ok := s.queries[dataType]
	if !ok {
		s.metrics.RecordCacheMiss()
		s.metrics.RecordSuccess(time.Since(start))
		return nil, nil
	}

	var cacheKey string
	if s.store != nil {
		cacheKey = sources.BuildCacheKey(s.cfg.Cache.KeyPrefix, dataType, params...)
		if value := s.store.Get(cacheKey); value != nil {
			s.metrics.RecordCacheHit()
			s.metrics.RecordSuccess(time.Since(start))
			return value, nil
		}
		s.metrics.RecordCacheMiss()
	}

	rows, err := s.execute(ctx, query, bindPositional(query, params))
	if err != nil {
		s.metrics.RecordFailure(time.Since(start))
		s.logger.Error("lookup query failed",
			"data_type", dataType,
			"error", err,
		)
		return nil, nil
	}
	if len(rows) == 0 {
		s.metrics.RecordSuccess(time.Since(start))
		return nil, nil
	}

	if s.store != nil {
		s.store.Put(cacheKey, rows[0])
	}

	s.metrics.RecordRecords(1)
	s.metrics.RecordSuccess(time.Since(start))
	return rows[0], nil
}

// Query executes arbitrary SQL with named parameters and returns every row
// as a column map.
func (s *Source) Query(ctx context.Context, query string, params map[string]any) ([]any, error) {
	start := time.Now()

	args := make([]any, 0, len(params))
	for name, value := range params {
		args = append(args, sql.Named(name, value))
	}

	rows, err := s.execute(ctx, query, args)
	if err != nil {
		s.metrics.RecordFailure(time.Since(start))
		return nil, &sources.DataSourceError{
			Source:  s.cfg.Name,
			Op:      "query",
			Message: "query execution failed",
			Cause:   err,
		}
	}

	s.metrics.RecordRecords(len(rows))
	s.metrics.RecordSuccess(time.Since(start))
	return rows, nil
}

// execute runs a query with a per-operation timeout and scans all rows into
// column maps.
func (s *Source) execute(ctx context.Context, query string, args []any) ([]any, error) {
	if s.cfg.Connection.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Connection.Timeout)
		defer cancel()
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			value := values[i]
			// Drivers return TEXT columns as []byte; strings are easier
			// on downstream rule evaluation.
			if b, ok := value.([]byte); ok {
				value = string(b)
			}
			row[col] = value
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// bindPositional maps positional lookup parameters onto a query's :name
// placeholders in order of first appearance. Extra parameters are dropped.
func bindPositional(query string, params []any) []any {
	matches := namedParamPattern.FindAllStringSubmatch(query, -1)

	seen := make(map[string]bool)
	args := make([]any, 0, len(params))
	i := 0
	for _, m := range matches {
		name := m[2]
		if seen[name] {
			continue
		}
		seen[name] = true
		if i >= len(params) {
			break
		}
		args = append(args, sql.Named(name, params[i]))
		i++
	}
	return args
}

// GetMetrics returns a snapshot of the request counters.
func (s *Source) GetMetrics() sources.MetricsSnapshot { return s.metrics.Snapshot() }

// Close stops monitoring, shuts the cache down, and closes the pool. It is
// idempotent.
func (s *Source) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.monitor.Stop()
		if s.store != nil {
			s.store.Shutdown()
		}
		err = s.db.Close()
		s.logger.Info("database data source closed")
	})
	return err
}
