// Package storage provides conversation storage abstraction.
//
// Information Hiding:
// - Storage backend implementation details hidden behind interface
// - Allows swapping between memory, JSON files and SQLite without API changes
// - Each storage implementation encapsulates its own data structures and protocols

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/richinex/parley/model"
)

// ConversationStorage defines the interface for storing conversation history.
// Implementations can use different backends (memory, file, database).
type ConversationStorage interface {
	// Save saves conversation history for a session, replacing what was stored.
	Save(ctx context.Context, sessionID string, history []model.Turn) error

	// Load loads conversation history for a session.
	// Returns empty slice (not nil) if session doesn't exist.
	// Returns error only for storage failures (I/O errors, etc.), not missing sessions.
	Load(ctx context.Context, sessionID string) ([]model.Turn, error)

	// Delete deletes conversation history for a session.
	Delete(ctx context.Context, sessionID string) error

	// ListSessions lists all session IDs.
	ListSessions(ctx context.Context) ([]string, error)

	// Exists checks if a session exists.
	Exists(ctx context.Context, sessionID string) (bool, error)

	// Close releases the backend.
	Close() error
}

// Open picks a backend from the path: ".db", ".sqlite" and ".sqlite3" files
// use SQLite, anything else is a directory of JSON documents.
func Open(path string) (ConversationStorage, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return OpenSqlite(path)
	default:
		return OpenJSONDir(path)
	}
}

// MarshalHistory encodes history as an ordered JSON array of turns.
func MarshalHistory(history []model.Turn) ([]byte, error) {
	if history == nil {
		history = []model.Turn{}
	}
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode history: %w", err)
	}
	return data, nil
}

// UnmarshalHistory decodes a document written by MarshalHistory.
func UnmarshalHistory(data []byte) ([]model.Turn, error) {
	history := []model.Turn{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return history, nil
	}
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	for i, turn := range history {
		if turn.Role != model.RoleUser && turn.Role != model.RoleAssistant {
			return nil, fmt.Errorf("turn %d: unknown role %q", i, turn.Role)
		}
	}
	return history, nil
}

func cloneHistory(history []model.Turn) []model.Turn {
	copied := make([]model.Turn, len(history))
	for i, turn := range history {
		copied[i] = turn
		if turn.ToolCalls != nil {
			copied[i].ToolCalls = append([]model.ToolCallRecord(nil), turn.ToolCalls...)
		}
	}
	return copied
}
