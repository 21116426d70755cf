// Package health implements a hysteresis-based health monitor for a single
// external resource.
//
// A Monitor periodically runs a probe against its resource and tracks
// consecutive successes and failures. State only flips after the configured
// number of consecutive signals: a healthy resource must fail
// FailureThreshold probes in a row to be marked unhealthy, and an unhealthy
// one must succeed SuccessThreshold probes in a row to recover. A single
// flapping probe therefore never changes the reported state.
//
// The passive state query (IsHealthy) is decoupled from the active probe:
// while background monitoring runs, IsHealthy returns the last computed
// state without blocking, keeping slow probes off the request path.
package health
