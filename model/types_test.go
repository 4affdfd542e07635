package model

import "testing"

func TestToolCallsCollectsInOrder(t *testing.T) {
	history := []Turn{
		UserTurn("hi"),
		AssistantTurn("calling", []ToolCallRecord{{ID: "1", Name: "a"}, {ID: "2", Name: "b"}}),
		UserTurn("#a:1"),
		AssistantTurn("again", []ToolCallRecord{{ID: "3", Name: "c"}}),
	}

	calls := ToolCalls(history)
	if len(calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", len(calls))
	}
	for i, id := range []string{"1", "2", "3"} {
		if calls[i].ID != id {
			t.Errorf("call %d: expected id %q, got %q", i, id, calls[i].ID)
		}
	}
}

func TestSelectionEmpty(t *testing.T) {
	var nilSel *Selection
	if !nilSel.Empty() {
		t.Error("nil selection should be empty")
	}
	if !(&Selection{Content: "  \n"}).Empty() {
		t.Error("whitespace selection should be empty")
	}
	if (&Selection{Content: "x := 1"}).Empty() {
		t.Error("selection with content should not be empty")
	}
}

func TestStaticSource(t *testing.T) {
	var src Source = StaticSource{Buffer: 3, Window: 7, Dir: "/work"}
	if src.BufferID() != 3 || src.WindowID() != 7 || src.CWD() != "/work" {
		t.Errorf("unexpected source values: %+v", src)
	}
}

func TestFiletype(t *testing.T) {
	tests := []struct {
		mime, uri, want string
	}{
		{"text/x-go", "file:///a/main.go", "go"},
		{"text/markdown", "", "markdown"},
		{"application/json", "", "json"},
		{"text/plain", "file:///notes.txt", "text"},
		{"", "file:///a/b.rs", "rs"},
		{"", "", "text"},
		{"application/vnd.api+json", "https://x/y.json", "json"},
	}
	for _, tt := range tests {
		if got := Filetype(tt.mime, tt.uri); got != tt.want {
			t.Errorf("Filetype(%q, %q) = %q, want %q", tt.mime, tt.uri, got, tt.want)
		}
	}
}
