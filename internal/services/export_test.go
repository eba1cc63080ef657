package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/todolist-app/server/internal/store/memstore"
	"github.com/todolist-app/server/types"
)

type memoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (m *memoryObjects) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("size mismatch")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

func (m *memoryObjects) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func TestExportAllWritesSnapshotPerUser(t *testing.T) {
	mem := memstore.New()
	ctx := context.Background()
	for _, name := range []string{"alice", "bob"} {
		if _, err := mem.Users().Create(ctx, types.User{Username: name, PasswordHash: "hash-" + name}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	if _, err := mem.Items().Create(ctx, types.Item{Name: "Buy milk", Owner: "alice"}); err != nil {
		t.Fatalf("create item: %v", err)
	}

	objects := newMemoryObjects()
	exporter := NewExportService(mem.Users(), mem.Items(), objects)
	exporter.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	count, err := exporter.ExportAll(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 snapshots, got %d", count)
	}

	raw := string(objects.objects[ExportKey("alice")])
	if strings.Contains(raw, "hash-alice") {
		t.Fatalf("snapshot leaks the password hash: %s", raw)
	}
	if objects.types[ExportKey("alice")] != "application/json" {
		t.Fatalf("unexpected content type %q", objects.types[ExportKey("alice")])
	}

	snapshot, err := exporter.Load(ctx, "alice")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snapshot.Username != "alice" || len(snapshot.Items) != 1 || snapshot.Items[0].Name != "Buy milk" {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
	if !snapshot.ExportedAt.Equal(exporter.now()) {
		t.Fatalf("unexpected export time %v", snapshot.ExportedAt)
	}

	empty, err := exporter.Load(ctx, "bob")
	if err != nil {
		t.Fatalf("load bob: %v", err)
	}
	if empty.Items == nil || len(empty.Items) != 0 {
		t.Fatalf("expected an empty item list for bob, got %#v", empty.Items)
	}
}

func TestExportKeyEscapesUsername(t *testing.T) {
	if got := ExportKey("a b?"); got != "exports/a%20b%3F.json" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestLoadMissingSnapshot(t *testing.T) {
	exporter := NewExportService(nil, nil, newMemoryObjects())
	if _, err := exporter.Load(context.Background(), "nobody"); err == nil {
		t.Fatalf("expected an error for a missing snapshot")
	}
}
