// Package file implements the file-system variant of
// sources.ExternalDataSource. Records are JSON documents under a base
// directory; the source indexes them in memory and keeps the index fresh
// with an fsnotify watcher, debounced to avoid reload storms.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"mercator-hq/conduit/pkg/cache"
	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/health"
	"mercator-hq/conduit/pkg/sources"
)

// reloadDebounce is the quiet period after a file event before the index
// is rebuilt. Editors commonly emit several events per save.
const reloadDebounce = 100 * time.Millisecond

// Source serves JSON documents from a directory tree.
type Source struct {
	cfg      config.DataSourceConfig
	basePath string
	pattern  string

	mu    sync.RWMutex
	index map[string]any

	watcher *fsnotify.Watcher
	monitor *health.Monitor
	metrics sources.Metrics

	debounceMu    sync.Mutex
	debounceTimer *time.Timer

	closeOnce sync.Once
	stopCh    chan struct{}
	watchDone chan struct{}
	logger    *slog.Logger
}

// New constructs a file source and performs the initial directory scan.
// The base path must exist and be a directory.
func New(cfg config.DataSourceConfig) (*Source, error) {
	basePath := cfg.Connection.BasePath
	info, err := os.Stat(basePath)
	if err != nil {
		return nil, &sources.ConfigError{
			Source:  cfg.Name,
			Field:   "connection.base_path",
			Message: fmt.Sprintf("cannot access base path: %v", err),
		}
	}
	if !info.IsDir() {
		return nil, &sources.ConfigError{
			Source:  cfg.Name,
			Field:   "connection.base_path",
			Message: fmt.Sprintf("base path %q is not a directory", basePath),
		}
	}

	pattern := cfg.Connection.FilePattern
	if pattern == "" {
		pattern = "*.json"
	}

	s := &Source{
		cfg:       cfg,
		basePath:  basePath,
		pattern:   pattern,
		index:     make(map[string]any),
		stopCh:    make(chan struct{}),
		watchDone: make(chan struct{}),
		logger:    slog.Default().With("component", "sources.file", "source", cfg.Name),
	}
	s.monitor = health.NewMonitor(cfg.Name, s.probe, cfg.HealthCheck)

	if err := s.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher for %q: %w", cfg.Name, err)
	}
	s.watcher = watcher

	if err := s.watchTree(); err != nil {
		watcher.Close()
		return nil, err
	}
	go s.watchLoop()

	s.logger.Info("file data source initialized",
		"base_path", basePath,
		"file_pattern", pattern,
		"documents", s.Size(),
	)
	return s, nil
}

// StartMonitoring launches the background health probe loop.
func (s *Source) StartMonitoring(ctx context.Context) {
	if s.cfg.HealthCheck.Enabled {
		s.monitor.Start(ctx)
	}
}

// probe verifies the base directory is still accessible.
func (s *Source) probe(ctx context.Context) error {
	info, err := os.Stat(s.basePath)
	if err != nil {
		return fmt.Errorf("base path inaccessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("base path %q is no longer a directory", s.basePath)
	}
	return nil
}

// reload rebuilds the in-memory index from the directory tree. Files that
// fail to parse are skipped with a warning; a partial index beats none.
func (s *Source) reload() error {
	fresh := make(map[string]any)

	err := filepath.Walk(s.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && path != s.basePath {
				return filepath.SkipDir
			}
			return nil
		}
		matched, err := filepath.Match(s.pattern, info.Name())
		if err != nil {
			return &sources.ConfigError{
				Source:  s.cfg.Name,
				Field:   "connection.file_pattern",
				Message: fmt.Sprintf("invalid file pattern %q: %v", s.pattern, err),
			}
		}
		if !matched {
			return nil
		}

		doc, err := decodeFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable document", "path", path, "error", err)
			return nil
		}

		fresh[s.documentKey(path)] = doc
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan %q: %w", s.basePath, err)
	}

	s.mu.Lock()
	s.index = fresh
	s.mu.Unlock()

	s.logger.Debug("document index rebuilt", "documents", len(fresh))
	return nil
}

// documentKey derives the index key: the path relative to the base
// directory, slash-separated, without the file extension.
func (s *Source) documentKey(path string) string {
	rel, err := filepath.Rel(s.basePath, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	rel = filepath.ToSlash(rel)
	return strings.TrimSuffix(rel, filepath.Ext(rel))
}

func decodeFile(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return doc, nil
}

// watchTree registers the base directory and every subdirectory with the
// watcher.
func (s *Source) watchTree() error {
	return filepath.Walk(s.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if strings.HasPrefix(info.Name(), ".") && path != s.basePath {
			return filepath.SkipDir
		}
		if err := s.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch directory %q: %w", path, err)
		}
		return nil
	})
}

func (s *Source) watchLoop() {
	defer close(s.watchDone)

	for {
		select {
		case <-s.stopCh:
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Chmod == fsnotify.Chmod {
				continue
			}
			// New subdirectories must be added to the watch set.
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := s.watcher.Add(event.Name); err != nil {
						s.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
				}
			}
			s.scheduleReload(event)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("file watcher error", "error", err)
		}
	}
}

// scheduleReload debounces rapid event bursts into one index rebuild.
func (s *Source) scheduleReload(event fsnotify.Event) {
	s.debounceMu.Lock()
	defer s.debounceMu.Unlock()

	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.debounceTimer = time.AfterFunc(reloadDebounce, func() {
		select {
		case <-s.stopCh:
			return
		default:
		}
		s.logger.Info("reloading documents", "path", event.Name, "op", event.Op.String())
		if err := s.reload(); err != nil {
			s.logger.Error("document reload failed", "error", err)
		}
	})
}

// GetName returns the source's configured name.
func (s *Source) GetName() string { return s.cfg.Name }

// GetType returns TypeFileSystem.
func (s *Source) GetType() sources.Type { return sources.TypeFileSystem }

// IsHealthy reports the monitor's current state.
func (s *Source) IsHealthy() bool { return s.monitor.IsHealthy() }

// GetHealth returns a detailed health snapshot.
func (s *Source) GetHealth() health.Status { return s.monitor.Status() }

// GetData returns the document indexed under dataType. With a parameter,
// the document is descended into: a map is keyed by the parameter's string
// form, and a list of records is scanned for one whose "id" field equals
// it. A missing document or sub-record yields nil.
func (s *Source) GetData(ctx context.Context, dataType string, params ...any) (any, error) {
	start := time.Now()

	s.mu.RLock()
	doc, ok := s.index[dataType]
	s.mu.RUnlock()

	if !ok {
		s.metrics.RecordCacheMiss()
		s.metrics.RecordSuccess(time.Since(start))
		return nil, nil
	}

	value := doc
	if len(params) > 0 {
		value = lookup(doc, params[0])
	}

	if value != nil {
		s.metrics.RecordCacheHit()
	} else {
		s.metrics.RecordCacheMiss()
	}
	s.metrics.RecordSuccess(time.Since(start))
	return value, nil
}

// lookup descends one level into a decoded document.
func lookup(doc, param any) any {
	key := fmt.Sprintf("%v", param)
	switch d := doc.(type) {
	case map[string]any:
		return d[key]
	case []any:
		for _, item := range d {
			rec, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if fmt.Sprintf("%v", rec["id"]) == key {
				return rec
			}
		}
	}
	return nil
}

// Query treats the query as a glob over document keys and returns every
// matching document.
func (s *Source) Query(ctx context.Context, query string, params map[string]any) ([]any, error) {
	start := time.Now()

	s.mu.RLock()
	results := make([]any, 0)
	for key, doc := range s.index {
		if cache.Match(query, key) {
			results = append(results, doc)
		}
	}
	s.mu.RUnlock()

	s.metrics.RecordRecords(len(results))
	s.metrics.RecordSuccess(time.Since(start))
	return results, nil
}

// GetMetrics returns a snapshot of the request counters.
func (s *Source) GetMetrics() sources.MetricsSnapshot { return s.metrics.Snapshot() }

// Size returns the number of indexed documents.
func (s *Source) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

// Keys returns every indexed document key.
func (s *Source) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.index))
	for key := range s.index {
		keys = append(keys, key)
	}
	return keys
}

// Close stops the watcher and health monitor. It is idempotent.
func (s *Source) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopCh)
		s.monitor.Stop()

		s.debounceMu.Lock()
		if s.debounceTimer != nil {
			s.debounceTimer.Stop()
			s.debounceTimer = nil
		}
		s.debounceMu.Unlock()

		err = s.watcher.Close()
		<-s.watchDone

		s.logger.Info("file data source closed")
	})
	return err
}
