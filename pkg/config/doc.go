// Package config defines the configuration value objects consumed by the
// data-source access layer, along with YAML loading, default application,
// and validation.
//
// Configuration flows one way: the application loads a Config at startup,
// validation runs once, and the resulting DataSourceConfig values are handed
// to the source manager. The core packages only read configuration; they
// never mutate it after initialization.
//
// The loading sequence is:
//
//  1. Load YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides (CONDUIT_* variables)
//  4. Validate the final configuration
//
// Validation errors are collected into a single ValidationError listing
// every offending field, so a misconfigured deployment fails fast with a
// complete report rather than one error at a time.
package config
