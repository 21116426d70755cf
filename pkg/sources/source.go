package sources

import (
	"context"
	"fmt"

	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/health"
)

// Type identifies a data source implementation variant.
type Type string

// Supported data source types.
const (
	TypeCache        Type = config.TypeCache
	TypeFileSystem   Type = config.TypeFileSystem
	TypeDatabase     Type = config.TypeDatabase
	TypeRestAPI      Type = config.TypeRestAPI
	TypeMessageQueue Type = config.TypeMessageQueue
)

// ParseType converts a configured type string to a Type. Unknown strings
// yield a ConfigError.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeCache, TypeFileSystem, TypeDatabase, TypeRestAPI, TypeMessageQueue:
		return Type(s), nil
	default:
		return "", &ConfigError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported data source type: %q (supported: cache, file-system, database, rest-api, message-queue)", s),
		}
	}
}

// ExternalDataSource is the capability set every source variant implements.
// The rule/enrichment engine consumes sources exclusively through this
// interface.
//
// All implementations must be safe for concurrent use. Methods that reach
// the underlying resource accept a context for cancellation and timeout
// control.
type ExternalDataSource interface {
	// GetName returns the source's configured unique name.
	GetName() string

	// GetType returns the source's declared type.
	GetType() Type

	// IsHealthy returns the source's current health state. While background
	// monitoring runs this never blocks on the resource.
	IsHealthy() bool

	// GetHealth returns a detailed health snapshot including consecutive
	// failure/success counts and the last probe error.
	GetHealth() health.Status

	// GetData retrieves a single value for a logical data type and lookup
	// parameters. It returns nil when no value exists. Internal failures
	// are absorbed: logged, counted in metrics, and reported as a nil
	// value, never as a panic. A non-nil error indicates the request
	// itself was invalid for this source.
	GetData(ctx context.Context, dataType string, params ...any) (any, error)

	// Query executes a source-specific query (a key glob for cache and
	// queue sources, SQL for databases, an endpoint path for REST sources)
	// and returns the matching values. Failures surface as a
	// *DataSourceError carrying the source name and underlying cause.
	Query(ctx context.Context, query string, params map[string]any) ([]any, error)

	// GetMetrics returns a snapshot of the source's request counters.
	GetMetrics() MetricsSnapshot

	// Close releases the source's resources: cache cleared, health monitor
	// stopped, connections released. Close is idempotent.
	Close() error
}
