package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSqliteStoragePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	ctx := context.Background()

	storage, err := OpenSqlite(path)
	if err != nil {
		t.Fatalf("Failed to open storage: %v", err)
	}
	if err := storage.Save(ctx, "test-session", sampleHistory()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	storage.Close()

	reopened, err := OpenSqlite(path)
	if err != nil {
		t.Fatalf("Failed to reopen storage: %v", err)
	}
	defer reopened.Close()

	loaded, err := reopened.Load(ctx, "test-session")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(loaded))
	}
	if len(loaded[1].ToolCalls) != 2 || loaded[1].ToolCalls[0].Arguments != `{"pattern":"TODO"}` {
		t.Errorf("tool calls not persisted: %+v", loaded[1].ToolCalls)
	}
	if loaded[3].ToolCalls != nil {
		t.Errorf("turn without tool calls should load nil, got %+v", loaded[3].ToolCalls)
	}
}

func TestSqliteStorageDeleteCascadesMessages(t *testing.T) {
	storage, err := NewSqliteInMemory()
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer storage.Close()

	ctx := context.Background()
	if err := storage.Save(ctx, "s", sampleHistory()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := storage.Delete(ctx, "s"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	var count int
	if err := storage.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected messages to be deleted with their session, %d left", count)
	}
}
