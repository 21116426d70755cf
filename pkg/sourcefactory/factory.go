package sourcefactory

import (
	"fmt"
	"log/slog"

	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/sources"
	"mercator-hq/conduit/pkg/sources/database"
	"mercator-hq/conduit/pkg/sources/file"
	"mercator-hq/conduit/pkg/sources/memory"
	"mercator-hq/conduit/pkg/sources/queue"
	"mercator-hq/conduit/pkg/sources/rest"
)

// New creates a data source instance from its configuration.
//
// Supported source types:
//   - "cache": in-process TTL/LRU store
//   - "file-system": JSON documents under a watched directory
//   - "database": SQL database lookups
//   - "rest-api": HTTP endpoint lookups
//   - "message-queue": in-process topic broker
//
// A misconfigured source returns a *sources.ConfigError; configuration
// problems abort construction rather than producing a half-working source.
func New(cfg config.DataSourceConfig) (sources.ExternalDataSource, error) {
	sourceType, err := sources.ParseType(cfg.Type)
	if err != nil {
		return nil, err
	}

	slog.Debug("creating data source",
		"name", cfg.Name,
		"type", sourceType,
	)

	var src sources.ExternalDataSource

	switch sourceType {
	case sources.TypeCache:
		src, err = memory.New(cfg)

	case sources.TypeFileSystem:
		src, err = file.New(cfg)

	case sources.TypeDatabase:
		src, err = database.New(cfg)

	case sources.TypeRestAPI:
		src, err = rest.New(cfg)

	case sources.TypeMessageQueue:
		src, err = queue.New(cfg)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create data source %q: %w", cfg.Name, err)
	}

	return src, nil
}
