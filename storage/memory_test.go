package storage

import (
	"context"
	"testing"

	"github.com/richinex/parley/model"
)

func TestInMemoryStorageListSessionsSorted(t *testing.T) {
	storage := NewInMemoryStorage()
	ctx := context.Background()

	for _, id := range []string{"b", "a", "c"} {
		if err := storage.Save(ctx, id, []model.Turn{model.UserTurn(id)}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	sessions, err := storage.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 3 || sessions[0] != "a" || sessions[2] != "c" {
		t.Errorf("expected sorted sessions, got %v", sessions)
	}
}

func TestInMemoryStorageIsolation(t *testing.T) {
	storage := NewInMemoryStorage()
	ctx := context.Background()

	original := []model.Turn{
		model.AssistantTurn("Original", []model.ToolCallRecord{{ID: "1", Name: "grep"}}),
	}
	if err := storage.Save(ctx, "test-session", original); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Modify the original slice
	original[0].Content = "Modified"
	original[0].ToolCalls[0].ID = "2"

	loaded, err := storage.Load(ctx, "test-session")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded[0].Content != "Original" || loaded[0].ToolCalls[0].ID != "1" {
		t.Errorf("storage should copy data, got %+v", loaded[0])
	}

	// Modifying the loaded copy must not leak back either
	loaded[0].ToolCalls[0].ID = "3"
	again, _ := storage.Load(ctx, "test-session")
	if again[0].ToolCalls[0].ID != "1" {
		t.Errorf("loaded copy leaked into storage: %+v", again[0])
	}
}
