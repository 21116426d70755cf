package health

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"mercator-hq/conduit/pkg/config"
)

func testConfig() config.HealthCheckConfig {
	return config.HealthCheckConfig{
		Enabled:          true,
		Interval:         10 * time.Millisecond,
		Timeout:          50 * time.Millisecond,
		FailureThreshold: 3,
		SuccessThreshold: 1,
	}
}

func TestMonitor_StartsHealthy(t *testing.T) {
	m := NewMonitor("test", func(ctx context.Context) error { return nil }, testConfig())

	status := m.Status()
	if !status.Healthy {
		t.Error("new monitor should report healthy before any probe")
	}
	if !status.LastCheck.IsZero() {
		t.Error("LastCheck should be zero before any probe")
	}
}

func TestMonitor_FailureHysteresis(t *testing.T) {
	probeErr := fmt.Errorf("connection refused")
	m := NewMonitor("test", func(ctx context.Context) error { return probeErr }, testConfig())

	ctx := context.Background()

	// Two failures stay under the threshold of three.
	if !m.PerformCheck(ctx) {
		t.Fatal("still healthy after 1 failure, got unhealthy")
	}
	if !m.PerformCheck(ctx) {
		t.Fatal("still healthy after 2 failures, got unhealthy")
	}

	if m.PerformCheck(ctx) {
		t.Fatal("3rd consecutive failure should flip to unhealthy")
	}

	status := m.Status()
	if status.ConsecutiveFailures != 3 {
		t.Errorf("ConsecutiveFailures = %d, want 3", status.ConsecutiveFailures)
	}
	if status.LastError != "connection refused" {
		t.Errorf("LastError = %q, want connection refused", status.LastError)
	}
}

func TestMonitor_RecoveryHysteresis(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	m := NewMonitor("test", func(ctx context.Context) error {
		if failing.Load() {
			return fmt.Errorf("down")
		}
		return nil
	}, testConfig())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		m.PerformCheck(ctx)
	}
	if m.Status().Healthy {
		t.Fatal("monitor should be unhealthy after 3 failures")
	}

	// Success threshold of one: a single good probe recovers.
	failing.Store(false)
	if !m.PerformCheck(ctx) {
		t.Fatal("single success should flip back to healthy")
	}

	status := m.Status()
	if status.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d after recovery, want 0", status.ConsecutiveFailures)
	}
	if status.LastError != "" {
		t.Errorf("LastError = %q after recovery, want empty", status.LastError)
	}
}

func TestMonitor_SuccessResetsFailureCount(t *testing.T) {
	var calls atomic.Int64
	m := NewMonitor("test", func(ctx context.Context) error {
		// Fail twice, succeed once, repeat.
		if calls.Add(1)%3 != 0 {
			return fmt.Errorf("flaky")
		}
		return nil
	}, testConfig())

	ctx := context.Background()
	for i := 0; i < 9; i++ {
		m.PerformCheck(ctx)
	}

	// The failure streak never reaches three, so the monitor stays healthy.
	if !m.Status().Healthy {
		t.Error("monitor should stay healthy when failures never reach the threshold")
	}
}

func TestMonitor_SuccessThresholdGreaterThanOne(t *testing.T) {
	cfg := testConfig()
	cfg.SuccessThreshold = 2

	var failing atomic.Bool
	failing.Store(true)
	m := NewMonitor("test", func(ctx context.Context) error {
		if failing.Load() {
			return fmt.Errorf("down")
		}
		return nil
	}, cfg)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		m.PerformCheck(ctx)
	}

	failing.Store(false)
	if m.PerformCheck(ctx) {
		t.Fatal("one success should not recover with threshold 2")
	}
	if !m.PerformCheck(ctx) {
		t.Fatal("two successes should recover with threshold 2")
	}
}

func TestMonitor_ProbeTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond
	cfg.FailureThreshold = 1

	m := NewMonitor("test", func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}, cfg)

	if m.PerformCheck(context.Background()) {
		t.Error("probe exceeding its timeout should count as a failure")
	}
}

func TestMonitor_IsHealthySynchronousWhenNotRunning(t *testing.T) {
	var calls atomic.Int64
	m := NewMonitor("test", func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, testConfig())

	if !m.IsHealthy() {
		t.Error("IsHealthy() = false, want true")
	}
	if calls.Load() != 1 {
		t.Errorf("probe calls = %d, want 1 (synchronous check when not running)", calls.Load())
	}
}

func TestMonitor_BackgroundLoop(t *testing.T) {
	var calls atomic.Int64
	m := NewMonitor("test", func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, testConfig())

	m.Start(context.Background())
	defer m.Stop()

	time.Sleep(50 * time.Millisecond)

	if calls.Load() < 2 {
		t.Errorf("probe calls = %d, want at least 2 (immediate + ticker)", calls.Load())
	}

	if !m.IsHealthy() {
		t.Error("IsHealthy() = false while background loop runs, want true")
	}
	if m.Status().LastCheck.IsZero() {
		t.Error("LastCheck should be set after background probes")
	}
}

func TestMonitor_StartStopIdempotent(t *testing.T) {
	m := NewMonitor("test", func(ctx context.Context) error { return nil }, testConfig())

	ctx := context.Background()
	m.Start(ctx)
	m.Start(ctx)
	m.Stop()
	m.Stop()
}
