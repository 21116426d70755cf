// Package sources defines the capability contract that every external data
// source variant implements, together with the shared registry, per-source
// metrics, and the error taxonomy of the access layer.
//
// A source is constructed once from its configuration, registered under its
// unique name, and serves reads until the registry shuts it down. Five
// variants exist, one per declared type: in-memory cache, file system,
// database, REST API, and message queue. Each variant composes its own
// cache.Store and health.Monitor as its configuration requests; those
// components are never shared between sources.
//
// The registry is an explicit instance owned by the source manager rather
// than process-global state, so isolated registries can coexist in tests
// and embedders.
package sources
