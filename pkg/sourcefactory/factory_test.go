package sourcefactory

import (
	"testing"

	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/sources"
)

func TestNew_Cache(t *testing.T) {
	src, err := New(config.DataSourceConfig{
		Name:  "cache-1",
		Type:  "cache",
		Cache: config.CacheConfig{MaxSize: 10},
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer src.Close()

	if src.GetName() != "cache-1" {
		t.Errorf("GetName() = %q, want cache-1", src.GetName())
	}
	if src.GetType() != sources.TypeCache {
		t.Errorf("GetType() = %q, want cache", src.GetType())
	}
}

func TestNew_MessageQueue(t *testing.T) {
	src, err := New(config.DataSourceConfig{
		Name: "queue-1",
		Type: "message-queue",
		Connection: config.ConnectionConfig{
			Topics: []string{"events"},
		},
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer src.Close()

	if src.GetType() != sources.TypeMessageQueue {
		t.Errorf("GetType() = %q, want message-queue", src.GetType())
	}
}

func TestNew_FileSystem(t *testing.T) {
	src, err := New(config.DataSourceConfig{
		Name: "files-1",
		Type: "file-system",
		Connection: config.ConnectionConfig{
			BasePath: t.TempDir(),
		},
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer src.Close()

	if src.GetType() != sources.TypeFileSystem {
		t.Errorf("GetType() = %q, want file-system", src.GetType())
	}
}

func TestNew_UnknownType(t *testing.T) {
	_, err := New(config.DataSourceConfig{
		Name: "bad",
		Type: "redis",
	})
	if err == nil {
		t.Fatal("New() with unknown type should fail")
	}
}

func TestNew_PropagatesConfigError(t *testing.T) {
	_, err := New(config.DataSourceConfig{
		Name: "files-1",
		Type: "file-system",
		Connection: config.ConnectionConfig{
			BasePath: "/no/such/directory",
		},
	})
	if err == nil {
		t.Fatal("New() with bad file source config should fail")
	}
}
