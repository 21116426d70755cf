package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/conduit/pkg/config"
)

// ProbeFunc checks one resource. It returns nil when the resource is usable
// and an error describing the problem otherwise. Probes must respect the
// context deadline.
type ProbeFunc func(ctx context.Context) error

// Status is an immutable snapshot of a monitor's state.
type Status struct {
	// Healthy is the current hysteresis state.
	Healthy bool

	// ConsecutiveFailures counts probe failures since the last success.
	ConsecutiveFailures int

	// ConsecutiveSuccesses counts probe successes since the last failure.
	ConsecutiveSuccesses int

	// LastCheck is when the most recent probe completed. Zero when no probe
	// has run yet.
	LastCheck time.Time

	// LastError is the message from the most recent failed probe, cleared
	// on success.
	LastError string
}

// stopGrace bounds how long Stop waits for an in-flight probe before
// returning anyway.
const stopGrace = 5 * time.Second

// Monitor decides whether a resource is usable, tolerating probe noise via
// consecutive-count thresholds. The zero value is not usable; construct
// with NewMonitor. A monitor starts in the healthy state.
type Monitor struct {
	name  string
	probe ProbeFunc

	interval         time.Duration
	timeout          time.Duration
	failureThreshold int
	successThreshold int
	logFailures      bool

	mu                   sync.Mutex
	healthy              bool
	consecutiveFailures  int
	consecutiveSuccesses int
	lastCheck            time.Time
	lastError            string

	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	logger *slog.Logger
}

// NewMonitor creates a monitor for a named resource. Threshold and timing
// parameters come from the health-check configuration; zero values fall
// back to the package defaults applied by config.ApplyDefaults.
func NewMonitor(name string, probe ProbeFunc, cfg config.HealthCheckConfig) *Monitor {
	interval := cfg.Interval
	if interval <= 0 {
		interval = config.DefaultHealthInterval
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultHealthTimeout
	}
	failureThreshold := cfg.FailureThreshold
	if failureThreshold < 1 {
		failureThreshold = config.DefaultFailureThreshold
	}
	successThreshold := cfg.SuccessThreshold
	if successThreshold < 1 {
		successThreshold = config.DefaultSuccessThreshold
	}

	return &Monitor{
		name:             name,
		probe:            probe,
		interval:         interval,
		timeout:          timeout,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		logFailures:      cfg.LogFailures,
		healthy:          true,
		logger:           slog.Default().With("component", "health", "source", name),
	}
}

// PerformCheck runs a single probe, bounded by the configured timeout, and
// applies the hysteresis state transition. It returns the state after the
// check.
func (m *Monitor) PerformCheck(ctx context.Context) bool {
	err := m.runProbe(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastCheck = time.Now()

	if err == nil {
		m.consecutiveSuccesses++
		m.consecutiveFailures = 0
		m.lastError = ""

		if !m.healthy && m.consecutiveSuccesses >= m.successThreshold {
			m.healthy = true
			m.logger.Info("resource recovered",
				"consecutive_successes", m.consecutiveSuccesses,
			)
		}
		return m.healthy
	}

	m.consecutiveFailures++
	m.consecutiveSuccesses = 0
	m.lastError = err.Error()

	if m.logFailures {
		m.logger.Warn("health probe failed",
			"error", err,
			"consecutive_failures", m.consecutiveFailures,
		)
	}

	if m.healthy && m.consecutiveFailures >= m.failureThreshold {
		m.healthy = false
		m.logger.Warn("resource marked unhealthy",
			"consecutive_failures", m.consecutiveFailures,
			"error", err,
		)
	}
	return m.healthy
}

// runProbe executes the probe with a hard timeout. The probe runs in its
// own goroutine so a probe that ignores its context cannot wedge the
// monitor.
func (m *Monitor) runProbe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.probe(probeCtx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-probeCtx.Done():
		return probeCtx.Err()
	}
}

// IsHealthy returns the current state. While background monitoring runs it
// never blocks; otherwise it performs an immediate synchronous check.
func (m *Monitor) IsHealthy() bool {
	m.mu.Lock()
	running := m.running
	healthy := m.healthy
	m.mu.Unlock()

	if running {
		return healthy
	}
	return m.PerformCheck(context.Background())
}

// Status returns an immutable snapshot of the monitor state.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Status{
		Healthy:              m.healthy,
		ConsecutiveFailures:  m.consecutiveFailures,
		ConsecutiveSuccesses: m.consecutiveSuccesses,
		LastCheck:            m.lastCheck,
		LastError:            m.lastError,
	}
}

// Start launches the background probe loop: an immediate first probe, then
// one per interval. Calling Start on a running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.running = true
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	m.logger.Info("health monitoring started", "interval", m.interval)

	go m.run(loopCtx, done)
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	// Immediate first probe so callers get a real state without waiting a
	// full interval.
	m.PerformCheck(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.PerformCheck(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Stop cancels the background probe loop and waits up to a fixed grace
// period for an in-flight probe to finish. Calling Stop on a stopped
// monitor is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	cancel()

	select {
	case <-done:
	case <-time.After(stopGrace):
		m.logger.Warn("health monitor stop timed out waiting for in-flight probe")
	}

	m.logger.Info("health monitoring stopped")
}
