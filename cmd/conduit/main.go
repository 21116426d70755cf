// Conduit is a resilient access layer for the external data sources a
// rules and enrichment engine depends on.
//
// It manages a fleet of heterogeneous sources (caches, file trees, SQL
// databases, REST APIs, message queues) behind one capability interface,
// providing:
//   - Per-source health monitoring with hysteresis
//   - Round-robin load balancing across sources of a type
//   - Automatic failover when a source fails mid-query
//   - Read-through caching with TTL and LRU eviction
//   - Prometheus metrics for the whole fleet
//
// Usage:
//
//	# Start with default configuration
//	conduit run
//
//	# Start with a custom configuration file
//	conduit run --config /etc/conduit/config.yaml
//
//	# Validate configuration without starting
//	conduit validate --config config.yaml
//
//	# Show version information
//	conduit version
package main

func main() {
	Execute()
}
