// Package metrics exports Prometheus metrics for the data source manager.
// The collector is pull-based: each scrape snapshots the manager's
// statistics and emits const metrics, so no counters are duplicated
// between the manager and the registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/sourcefactory"
)

// StatisticsSource supplies the manager statistics each scrape reads.
type StatisticsSource interface {
	Statistics() sourcefactory.ManagerStatistics
}

// Collector implements prometheus.Collector over a statistics source.
//
// Metrics:
//   - <ns>_<sub>_sources_total: registered data sources
//   - <ns>_<sub>_sources_healthy: sources currently healthy
//   - <ns>_<sub>_health_percentage: healthy share of the registry
//   - <ns>_<sub>_sources_by_type: registered sources by declared type
//   - <ns>_<sub>_requests_total: per-source requests by outcome
//   - <ns>_<sub>_cache_events_total: per-source cache hits and misses
//   - <ns>_<sub>_records_processed_total: per-source records returned
//   - <ns>_<sub>_request_latency_seconds: per-source mean request latency
//   - <ns>_<sub>_uptime_seconds: manager uptime
type Collector struct {
	source StatisticsSource

	sourcesTotal   *prometheus.Desc
	sourcesHealthy *prometheus.Desc
	healthPercent  *prometheus.Desc
	sourcesByType  *prometheus.Desc
	requestsTotal  *prometheus.Desc
	cacheEvents    *prometheus.Desc
	recordsTotal   *prometheus.Desc
	requestLatency *prometheus.Desc
	uptimeSeconds  *prometheus.Desc
}

// NewCollector creates a collector reading from the given statistics
// source. Namespace and subsystem default to "conduit" and "datasource".
func NewCollector(cfg config.MetricsConfig, source StatisticsSource) *Collector {
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "conduit"
	}
	subsystem := cfg.Subsystem
	if subsystem == "" {
		subsystem = "datasource"
	}

	name := func(n string) string {
		return prometheus.BuildFQName(namespace, subsystem, n)
	}

	return &Collector{
		source: source,
		sourcesTotal: prometheus.NewDesc(
			name("sources_total"),
			"Number of registered data sources",
			nil, nil,
		),
		sourcesHealthy: prometheus.NewDesc(
			name("sources_healthy"),
			"Number of data sources currently reporting healthy",
			nil, nil,
		),
		healthPercent: prometheus.NewDesc(
			name("health_percentage"),
			"Percentage of data sources reporting healthy",
			nil, nil,
		),
		sourcesByType: prometheus.NewDesc(
			name("sources_by_type"),
			"Number of registered data sources by type",
			[]string{"type"}, nil,
		),
		requestsTotal: prometheus.NewDesc(
			name("requests_total"),
			"Total requests served by a data source, by outcome",
			[]string{"source", "outcome"}, nil,
		),
		cacheEvents: prometheus.NewDesc(
			name("cache_events_total"),
			"Total cache lookups by a data source, by result",
			[]string{"source", "result"}, nil,
		),
		recordsTotal: prometheus.NewDesc(
			name("records_processed_total"),
			"Total records returned by a data source",
			[]string{"source"}, nil,
		),
		requestLatency: prometheus.NewDesc(
			name("request_latency_seconds"),
			"Mean request latency of a data source",
			[]string{"source"}, nil,
		),
		uptimeSeconds: prometheus.NewDesc(
			name("uptime_seconds"),
			"Seconds since the data source manager started",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sourcesTotal
	ch <- c.sourcesHealthy
	ch <- c.healthPercent
	ch <- c.sourcesByType
	ch <- c.requestsTotal
	ch <- c.cacheEvents
	ch <- c.recordsTotal
	ch <- c.requestLatency
	ch <- c.uptimeSeconds
}

// Collect implements prometheus.Collector. Each scrape takes one
// statistics snapshot.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Statistics()

	ch <- prometheus.MustNewConstMetric(c.sourcesTotal,
		prometheus.GaugeValue, float64(stats.Registry.TotalSources))
	ch <- prometheus.MustNewConstMetric(c.sourcesHealthy,
		prometheus.GaugeValue, float64(stats.Registry.HealthySources))
	ch <- prometheus.MustNewConstMetric(c.healthPercent,
		prometheus.GaugeValue, stats.Registry.HealthPercentage)
	ch <- prometheus.MustNewConstMetric(c.uptimeSeconds,
		prometheus.GaugeValue, stats.Uptime.Seconds())

	for sourceType, count := range stats.Registry.TypeCounts {
		ch <- prometheus.MustNewConstMetric(c.sourcesByType,
			prometheus.GaugeValue, float64(count), string(sourceType))
	}

	for name, snapshot := range stats.Sources {
		ch <- prometheus.MustNewConstMetric(c.requestsTotal,
			prometheus.CounterValue, float64(snapshot.SuccessfulRequests), name, "success")
		ch <- prometheus.MustNewConstMetric(c.requestsTotal,
			prometheus.CounterValue, float64(snapshot.FailedRequests), name, "failure")
		ch <- prometheus.MustNewConstMetric(c.cacheEvents,
			prometheus.CounterValue, float64(snapshot.CacheHits), name, "hit")
		ch <- prometheus.MustNewConstMetric(c.cacheEvents,
			prometheus.CounterValue, float64(snapshot.CacheMisses), name, "miss")
		ch <- prometheus.MustNewConstMetric(c.recordsTotal,
			prometheus.CounterValue, float64(snapshot.RecordsProcessed), name)
		ch <- prometheus.MustNewConstMetric(c.requestLatency,
			prometheus.GaugeValue, snapshot.AverageLatency.Seconds(), name)
	}
}

// NewRegistry creates a Prometheus registry with the collector registered.
func NewRegistry(c *Collector) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(c)
	return registry
}

// Handler returns an HTTP handler serving the registry in the Prometheus
// exposition format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
