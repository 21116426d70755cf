package sources

import (
	"fmt"
	"strings"
)

// ConfigError represents an invalid data source configuration. It is raised
// synchronously during initialization and aborts startup for the offending
// source.
type ConfigError struct {
	// Source is the name of the misconfigured data source, empty when the
	// error precedes naming.
	Source string

	// Field is the configuration field that is invalid.
	Field string

	// Message describes the configuration error.
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("data source configuration error for field %q: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("data source %q configuration error for field %q: %s",
		e.Source, e.Field, e.Message)
}

// DataSourceError represents a failure during GetData or Query on an
// otherwise registered source. It carries the source name, the operation,
// and the underlying cause.
type DataSourceError struct {
	// Source is the name of the data source that failed.
	Source string

	// Op is the operation that failed ("query", "get_data", ...).
	Op string

	// Message is the error message.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *DataSourceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("data source %q %s failed: %s: %v", e.Source, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("data source %q %s failed: %s", e.Source, e.Op, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *DataSourceError) Unwrap() error {
	return e.Cause
}

// FailoverAttempt records one failed candidate during a failover query.
type FailoverAttempt struct {
	// Source is the candidate's name.
	Source string

	// Err is the error the candidate returned.
	Err error
}

// FailoverError reports that every candidate source in a type group failed.
// It aggregates all per-source causes into one error.
type FailoverError struct {
	// Type is the data source type that was queried.
	Type Type

	// Attempts holds every candidate's failure, in the order tried.
	Attempts []FailoverAttempt
}

// Error implements the error interface, naming every failed source.
func (e *FailoverError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("no data sources available for type %q", e.Type)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "all %d data sources failed for type %q: ", len(e.Attempts), e.Type)
	for i, a := range e.Attempts {
		if i > 0 {
			sb.WriteString("; ")
		}
		fmt.Fprintf(&sb, "%s: %v", a.Source, a.Err)
	}
	return sb.String()
}

// Unwrap returns the per-source causes for errors.Is/As traversal.
func (e *FailoverError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errs
}
