package metrics

import (
	"testing"
	"time"

	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/sourcefactory"
	"mercator-hq/conduit/pkg/sources"
)

// stubStats returns a fixed statistics snapshot.
type stubStats struct {
	stats sourcefactory.ManagerStatistics
}

func (s *stubStats) Statistics() sourcefactory.ManagerStatistics { return s.stats }

func testStats() sourcefactory.ManagerStatistics {
	return sourcefactory.ManagerStatistics{
		Registry: sources.RegistryStatistics{
			TotalSources:     2,
			HealthySources:   1,
			UnhealthySources: 1,
			HealthPercentage: 50,
			TypeCounts: map[sources.Type]int{
				sources.TypeDatabase: 1,
				sources.TypeRestAPI:  1,
			},
			Timestamp: time.Now(),
		},
		Sources: map[string]sources.MetricsSnapshot{
			"db-1": {
				SuccessfulRequests: 10,
				FailedRequests:     2,
				CacheHits:          7,
				CacheMisses:        5,
				RecordsProcessed:   42,
				AverageLatency:     15 * time.Millisecond,
			},
			"api-1": {
				SuccessfulRequests: 3,
			},
		},
		Uptime: time.Minute,
	}
}

func TestCollector_Gather(t *testing.T) {
	collector := NewCollector(config.MetricsConfig{
		Namespace: "conduit",
		Subsystem: "sources",
	}, &stubStats{stats: testStats()})

	registry := NewRegistry(collector)
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}

	byName := make(map[string]bool)
	for _, mf := range families {
		byName[mf.GetName()] = true
	}

	want := []string{
		"conduit_sources_sources_total",
		"conduit_sources_sources_healthy",
		"conduit_sources_health_percentage",
		"conduit_sources_sources_by_type",
		"conduit_sources_requests_total",
		"conduit_sources_cache_events_total",
		"conduit_sources_records_processed_total",
		"conduit_sources_request_latency_seconds",
		"conduit_sources_uptime_seconds",
	}
	for _, name := range want {
		if !byName[name] {
			t.Errorf("metric family %q missing from scrape", name)
		}
	}
}

func TestCollector_Values(t *testing.T) {
	collector := NewCollector(config.MetricsConfig{}, &stubStats{stats: testStats()})

	registry := NewRegistry(collector)
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}

	for _, mf := range families {
		switch mf.GetName() {
		case "conduit_datasource_sources_total":
			if v := mf.GetMetric()[0].GetGauge().GetValue(); v != 2 {
				t.Errorf("sources_total = %f, want 2", v)
			}
		case "conduit_datasource_health_percentage":
			if v := mf.GetMetric()[0].GetGauge().GetValue(); v != 50 {
				t.Errorf("health_percentage = %f, want 50", v)
			}
		case "conduit_datasource_requests_total":
			// Two sources, two outcomes each.
			if len(mf.GetMetric()) != 4 {
				t.Errorf("requests_total has %d series, want 4", len(mf.GetMetric()))
			}
		}
	}
}

func TestHandler(t *testing.T) {
	collector := NewCollector(config.MetricsConfig{}, &stubStats{stats: testStats()})
	if Handler(NewRegistry(collector)) == nil {
		t.Fatal("Handler() returned nil")
	}
}
