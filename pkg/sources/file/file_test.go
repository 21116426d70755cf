package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/sources"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func testSource(t *testing.T, dir string) *Source {
	t.Helper()
	s, err := New(config.DataSourceConfig{
		Name: "files-1",
		Type: config.TypeFileSystem,
		Connection: config.ConnectionConfig{
			BasePath:    dir,
			FilePattern: "*.json",
		},
		HealthCheck: config.HealthCheckConfig{
			FailureThreshold: 1,
			SuccessThreshold: 1,
		},
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew_RejectsMissingBasePath(t *testing.T) {
	_, err := New(config.DataSourceConfig{
		Name: "files-1",
		Type: config.TypeFileSystem,
		Connection: config.ConnectionConfig{
			BasePath: "/nonexistent/path",
		},
	})
	if err == nil {
		t.Fatal("New() with missing base path should fail")
	}
}

func TestSource_InitialScan(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "currencies.json", `{"USD": "US Dollar", "EUR": "Euro"}`)
	writeFile(t, dir, "reference/countries.json", `[{"id": "US", "name": "United States"}]`)
	writeFile(t, dir, "notes.txt", "not indexed")

	s := testSource(t, dir)

	if s.Size() != 2 {
		t.Errorf("Size() = %d, want 2 (txt file excluded)", s.Size())
	}

	keys := s.Keys()
	found := map[string]bool{}
	for _, k := range keys {
		found[k] = true
	}
	if !found["currencies"] || !found["reference/countries"] {
		t.Errorf("Keys() = %v, want currencies and reference/countries", keys)
	}
}

func TestSource_GetData(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "currencies.json", `{"USD": "US Dollar", "EUR": "Euro"}`)
	writeFile(t, dir, "countries.json", `[{"id": "US", "name": "United States"}, {"id": "DE", "name": "Germany"}]`)

	s := testSource(t, dir)
	ctx := context.Background()

	// Whole document.
	doc, err := s.GetData(ctx, "currencies")
	if err != nil {
		t.Fatalf("GetData() failed: %v", err)
	}
	if m, ok := doc.(map[string]any); !ok || m["USD"] != "US Dollar" {
		t.Errorf("GetData(currencies) = %v, want the full map", doc)
	}

	// Map lookup by key.
	value, err := s.GetData(ctx, "currencies", "EUR")
	if err != nil {
		t.Fatalf("GetData() failed: %v", err)
	}
	if value != "Euro" {
		t.Errorf("GetData(currencies, EUR) = %v, want Euro", value)
	}

	// Record list lookup by id.
	record, err := s.GetData(ctx, "countries", "DE")
	if err != nil {
		t.Fatalf("GetData() failed: %v", err)
	}
	if m, ok := record.(map[string]any); !ok || m["name"] != "Germany" {
		t.Errorf("GetData(countries, DE) = %v, want the Germany record", record)
	}

	// Misses.
	if v, _ := s.GetData(ctx, "missing"); v != nil {
		t.Errorf("GetData(missing) = %v, want nil", v)
	}
	if v, _ := s.GetData(ctx, "currencies", "XXX"); v != nil {
		t.Errorf("GetData(currencies, XXX) = %v, want nil", v)
	}
}

func TestSource_QueryGlob(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ref-currencies.json", `{}`)
	writeFile(t, dir, "ref-countries.json", `{}`)
	writeFile(t, dir, "trades.json", `{}`)

	s := testSource(t, dir)

	results, err := s.Query(context.Background(), "ref-*", nil)
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Query(ref-*) returned %d documents, want 2", len(results))
	}
}

func TestSource_SkipsInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.json", `{"a": 1}`)
	writeFile(t, dir, "bad.json", `{not json`)

	s := testSource(t, dir)

	if s.Size() != 1 {
		t.Errorf("Size() = %d, want 1 (invalid JSON skipped)", s.Size())
	}
}

func TestSource_ReloadOnChange(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "data.json", `{"v": 1}`)

	s := testSource(t, dir)

	writeFile(t, dir, "added.json", `{"v": 2}`)

	deadline := time.After(2 * time.Second)
	for s.Size() != 2 {
		select {
		case <-deadline:
			t.Fatalf("Size() = %d, want 2 after watcher reload", s.Size())
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestSource_Identity(t *testing.T) {
	dir := t.TempDir()
	s := testSource(t, dir)

	if s.GetName() != "files-1" {
		t.Errorf("GetName() = %q, want files-1", s.GetName())
	}
	if s.GetType() != sources.TypeFileSystem {
		t.Errorf("GetType() = %q, want file-system", s.GetType())
	}
	if !s.IsHealthy() {
		t.Error("IsHealthy() = false for an accessible directory")
	}
}

func TestSource_CloseIdempotent(t *testing.T) {
	dir := t.TempDir()
	s := testSource(t, dir)

	if err := s.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() failed: %v", err)
	}
}
