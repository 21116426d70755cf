package config

import (
	"fmt"
	"net/url"
	"strings"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field
	// (e.g. "data_sources[2].connection.timeout").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a
// configuration. It implements the error interface and provides access to
// all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

var validTypes = map[string]bool{
	TypeCache:        true,
	TypeFileSystem:   true,
	TypeDatabase:     true,
	TypeRestAPI:      true,
	TypeMessageQueue: true,
}

// Validate validates the entire configuration. All validation errors are
// collected and returned together as a ValidationError; nil means the
// configuration is valid.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateDataSources(cfg.DataSources)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateLogging(lc *LoggingConfig) []FieldError {
	var errs []FieldError

	switch lc.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unsupported level %q (supported: debug, info, warn, error)", lc.Level),
		})
	}

	switch lc.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "logging.format",
			Message: fmt.Sprintf("unsupported format %q (supported: json, text)", lc.Format),
		})
	}

	return errs
}

func validateDataSources(sources []DataSourceConfig) []FieldError {
	var errs []FieldError

	seen := make(map[string]bool, len(sources))
	for i := range sources {
		ds := &sources[i]
		prefix := fmt.Sprintf("data_sources[%d]", i)

		if ds.Name == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".name",
				Message: "name is required",
			})
		} else if seen[ds.Name] {
			errs = append(errs, FieldError{
				Field:   prefix + ".name",
				Message: fmt.Sprintf("duplicate data source name %q", ds.Name),
			})
		}
		seen[ds.Name] = true

		if !validTypes[ds.Type] {
			errs = append(errs, FieldError{
				Field:   prefix + ".type",
				Message: fmt.Sprintf("unsupported type %q (supported: cache, file-system, database, rest-api, message-queue)", ds.Type),
			})
			continue
		}

		errs = append(errs, validateConnection(prefix, ds)...)
		errs = append(errs, validateHealthCheck(prefix, &ds.HealthCheck)...)

		if ds.Cache.Enabled && ds.Cache.MaxSize < 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".cache.max_size",
				Message: "must not be negative",
			})
		}
	}

	return errs
}

func validateConnection(prefix string, ds *DataSourceConfig) []FieldError {
	var errs []FieldError
	conn := &ds.Connection

	if conn.Timeout <= 0 {
		errs = append(errs, FieldError{
			Field:   prefix + ".connection.timeout",
			Message: "must be positive",
		})
	}
	if conn.RetryAttempts < 0 {
		errs = append(errs, FieldError{
			Field:   prefix + ".connection.retry_attempts",
			Message: "must not be negative",
		})
	}

	switch ds.Type {
	case TypeFileSystem:
		if conn.BasePath == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".connection.base_path",
				Message: "base_path is required for file-system sources",
			})
		}

	case TypeDatabase:
		if conn.Driver == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".connection.driver",
				Message: "driver is required for database sources",
			})
		}
		if conn.Database == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".connection.database",
				Message: "database is required for database sources",
			})
		}

	case TypeRestAPI:
		if conn.BaseURL == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".connection.base_url",
				Message: "base_url is required for rest-api sources",
			})
		} else if u, err := url.Parse(conn.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".connection.base_url",
				Message: fmt.Sprintf("invalid URL %q", conn.BaseURL),
			})
		}

	case TypeMessageQueue:
		if conn.MaxPending < 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".connection.max_pending",
				Message: "must not be negative",
			})
		}
	}

	return errs
}

func validateHealthCheck(prefix string, hc *HealthCheckConfig) []FieldError {
	var errs []FieldError

	if !hc.Enabled {
		return nil
	}
	if hc.Interval <= 0 {
		errs = append(errs, FieldError{
			Field:   prefix + ".health_check.interval",
			Message: "must be positive",
		})
	}
	if hc.Timeout <= 0 {
		errs = append(errs, FieldError{
			Field:   prefix + ".health_check.timeout",
			Message: "must be positive",
		})
	}
	if hc.FailureThreshold < 1 {
		errs = append(errs, FieldError{
			Field:   prefix + ".health_check.failure_threshold",
			Message: "must be at least 1",
		})
	}
	if hc.SuccessThreshold < 1 {
		errs = append(errs, FieldError{
			Field:   prefix + ".health_check.success_threshold",
			Message: "must be at least 1",
		})
	}

	return errs
}
