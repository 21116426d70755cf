// Package rest implements the HTTP variant of sources.ExternalDataSource.
// Lookups resolve named endpoint templates from configuration, requests
// retry with exponential backoff, and a circuit breaker stops hammering an
// endpoint that keeps failing.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"mercator-hq/conduit/pkg/cache"
	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/health"
	"mercator-hq/conduit/pkg/sources"
)

const (
	// defaultProbePath is probed when no health check query is configured.
	defaultProbePath = "/health"

	// breakerResetTimeout is how long an open breaker waits before letting
	// a trial request through.
	breakerResetTimeout = 30 * time.Second

	// maxErrorBody bounds how much of an error response body is read for
	// the error message.
	maxErrorBody = 512
)

// Source serves lookups from a REST API.
type Source struct {
	cfg     config.DataSourceConfig
	baseURL string
	client  *http.Client

	endpoints map[string]string
	breaker   *breaker

	store   *cache.Store
	monitor *health.Monitor
	metrics sources.Metrics

	closeOnce sync.Once
	logger    *slog.Logger
}

// New constructs a REST source. The base URL must have been validated as
// absolute by configuration loading.
func New(cfg config.DataSourceConfig) (*Source, error) {
	if _, err := url.ParseRequestURI(cfg.Connection.BaseURL); err != nil {
		return nil, &sources.ConfigError{
			Source:  cfg.Name,
			Field:   "connection.base_url",
			Message: fmt.Sprintf("invalid base URL: %v", err),
		}
	}

	logger := slog.Default().With("component", "sources.rest", "source", cfg.Name)

	failureThreshold := cfg.HealthCheck.FailureThreshold
	if failureThreshold <= 0 {
		failureThreshold = config.DefaultFailureThreshold
	}

	timeout := cfg.Connection.Timeout
	if timeout <= 0 {
		timeout = config.DefaultConnectionTimeout
	}

	s := &Source{
		cfg:       cfg,
		baseURL:   strings.TrimRight(cfg.Connection.BaseURL, "/"),
		client:    &http.Client{Timeout: timeout},
		endpoints: cfg.Queries,
		breaker:   newBreaker(failureThreshold, breakerResetTimeout, logger),
		logger:    logger,
	}
	if cfg.Cache.Enabled {
		maxSize := cfg.Cache.MaxSize
		if maxSize <= 0 {
			maxSize = config.DefaultCacheMaxSize
		}
		s.store = cache.New(cfg.Name+"-cache", maxSize, cfg.Cache.TTL(), cfg.Cache.SweepInterval)
	}
	s.monitor = health.NewMonitor(cfg.Name, s.probe, cfg.HealthCheck)

	s.logger.Info("rest data source initialized",
		"base_url", s.baseURL,
		"endpoints", len(cfg.Queries),
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

// probe issues a GET against the configured health path. The probe bypasses
// the circuit breaker: it is the recovery signal, not client traffic.
func (s *Source) probe(ctx context.Context) error {
	path := s.cfg.HealthCheck.Query
	if path == "" {
		path = defaultProbePath
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return err
	}
	s.applyHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("health endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// GetName returns the source's configured name.
func (s *Source) GetName() string { return s.cfg.Name }

// GetType returns TypeRestAPI.
func (s *Source) GetType() sources.Type { return sources.TypeRestAPI }

// IsHealthy reports the monitor's current state.
func (s *Source) IsHealthy() bool { return s.monitor.IsHealthy() }

// GetHealth returns a detailed health snapshot.
func (s *Source) GetHealth() health.Status { return s.monitor.Status() }

// BreakerState exposes the circuit breaker's current mode.
func (s *Source) BreakerState() BreakerState { return s.breaker.State() }

// GetData resolves the endpoint template configured for dataType, filling
// its {placeholders} with params in order, and returns the decoded JSON
// response. No configured endpoint yields nil; request failures are
// absorbed into a nil result after logging and counting.
func (s *Source) GetData(ctx context.Context, dataType string, params ...any) (any, error) {
	start := time.Now()

	template, ok := s.endpoints[dataType]
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

	path := fillPositional(template, params)
	value, err := s.fetch(ctx, path)
	if err != nil {
		s.metrics.RecordFailure(time.Since(start))
		s.logger.Error("lookup request failed",
			"data_type", dataType,
			"path", path,
			"error", err,
		)
		return nil, nil
	}

	if value != nil && s.store != nil {
		s.store.Put(cacheKey, value)
	}

	s.metrics.RecordRecords(1)
	s.metrics.RecordSuccess(time.Since(start))
	return value, nil
}

// Query treats the query as an endpoint path template, filling its
// {placeholders} from the params map, and returns the decoded response as a
// result list.
func (s *Source) Query(ctx context.Context, query string, params map[string]any) ([]any, error) {
	start := time.Now()

	path := fillNamed(query, params)
	value, err := s.fetch(ctx, path)
	if err != nil {
		s.metrics.RecordFailure(time.Since(start))
		return nil, &sources.DataSourceError{
			Source:  s.cfg.Name,
			Op:      "query",
			Message: fmt.Sprintf("request to %q failed", path),
			Cause:   err,
		}
	}

	var results []any
	switch v := value.(type) {
	case nil:
	case []any:
		results = v
	default:
		results = []any{v}
	}

	s.metrics.RecordRecords(len(results))
	s.metrics.RecordSuccess(time.Since(start))
	return results, nil
}

// fetch issues a GET with retry and circuit breaking. A 404 is a clean
// miss, not a failure.
func (s *Source) fetch(ctx context.Context, path string) (any, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	attempts := s.cfg.Connection.RetryAttempts + 1
	delay := s.cfg.Connection.RetryDelay
	if delay <= 0 {
		delay = config.DefaultRetryDelay
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := delay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		value, retryable, err := s.doRequest(ctx, path)
		if err == nil {
			return value, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return nil, lastErr
}

// doRequest performs one guarded HTTP GET. The boolean reports whether the
// failure is worth retrying.
func (s *Source) doRequest(ctx context.Context, path string) (any, bool, error) {
	if !s.breaker.allow() {
		return nil, false, ErrBreakerOpen
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return nil, false, err
	}
	s.applyHeaders(req)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.breaker.recordFailure()
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		s.breaker.recordSuccess()
		io.Copy(io.Discard, resp.Body)
		return nil, false, nil

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var value any
		if err := json.NewDecoder(resp.Body).Decode(&value); err != nil {
			s.breaker.recordFailure()
			return nil, false, fmt.Errorf("invalid JSON response: %w", err)
		}
		s.breaker.recordSuccess()
		return value, false, nil

	case resp.StatusCode >= 500:
		s.breaker.recordFailure()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, true, fmt.Errorf("server error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))

	default:
		// 4xx other than 404: the request is wrong, retrying cannot help.
		s.breaker.recordSuccess()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, false, fmt.Errorf("request rejected with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

func (s *Source) applyHeaders(req *http.Request) {
	for name, value := range s.cfg.Connection.Headers {
		req.Header.Set(name, value)
	}
}

// fillPositional replaces {placeholder} segments with params in order of
// appearance. Unfilled placeholders are left in place.
func fillPositional(template string, params []any) string {
	var sb strings.Builder
	i := 0
	rest := template
	for {
		open := strings.Index(rest, "{")
		if open < 0 {
			sb.WriteString(rest)
			break
		}
		closing := strings.Index(rest[open:], "}")
		if closing < 0 {
			sb.WriteString(rest)
			break
		}
		sb.WriteString(rest[:open])
		if i < len(params) {
			sb.WriteString(url.PathEscape(fmt.Sprintf("%v", params[i])))
			i++
		} else {
			sb.WriteString(rest[open : open+closing+1])
		}
		rest = rest[open+closing+1:]
	}
	return sb.String()
}

// fillNamed replaces {name} segments with values from the params map.
// Unknown names are left in place.
func fillNamed(template string, params map[string]any) string {
	result := template
	for name, value := range params {
		result = strings.ReplaceAll(result, "{"+name+"}", url.PathEscape(fmt.Sprintf("%v", value)))
	}
	return result
}

// GetMetrics returns a snapshot of the request counters.
func (s *Source) GetMetrics() sources.MetricsSnapshot { return s.metrics.Snapshot() }

// Close stops monitoring, shuts the cache down, and releases idle
// connections. It is idempotent.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		s.monitor.Stop()
		if s.store != nil {
			s.store.Shutdown()
		}
		s.client.CloseIdleConnections()
		s.logger.Info("rest data source closed")
	})
	return nil
}
