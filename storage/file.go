// Package storage provides JSON document conversation storage.
//
// Information Hiding:
// - One <session>.json document per session inside a directory
// - Atomic replacement via temp file and rename
// - Session id validation so ids never escape the directory

package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/richinex/parley/model"
)

const historyExt = ".json"

// JSONDirStorage implements ConversationStorage with one JSON document per session.
type JSONDirStorage struct {
	mu  sync.RWMutex
	dir string
}

// OpenJSONDir opens or creates a history directory.
func OpenJSONDir(dir string) (*JSONDirStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return &JSONDirStorage{dir: dir}, nil
}

func (s *JSONDirStorage) path(sessionID string) (string, error) {
	if sessionID == "" || sessionID == "." || sessionID == ".." || strings.ContainsAny(sessionID, `/\`) {
		return "", fmt.Errorf("invalid session id %q", sessionID)
	}
	return filepath.Join(s.dir, sessionID+historyExt), nil
}

// Save writes the session document atomically.
func (s *JSONDirStorage) Save(ctx context.Context, sessionID string, history []model.Turn) error {
	path, err := s.path(sessionID)
	if err != nil {
		return err
	}
	data, err := MarshalHistory(history)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, "."+sessionID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace history: %w", err)
	}
	return nil
}

// Load reads the session document. Returns empty slice if session doesn't exist.
func (s *JSONDirStorage) Load(ctx context.Context, sessionID string) ([]model.Turn, error) {
	path, err := s.path(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, err := os.ReadFile(path)
	s.mu.RUnlock()
	if errors.Is(err, os.ErrNotExist) {
		return []model.Turn{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return UnmarshalHistory(data)
}

// Delete removes the session document.
func (s *JSONDirStorage) Delete(ctx context.Context, sessionID string) error {
	path, err := s.path(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete history: %w", err)
	}
	return nil
}

// ListSessions lists the sessions with a document, sorted.
func (s *JSONDirStorage) ListSessions(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	entries, err := os.ReadDir(s.dir)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	sessions := []string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != historyExt {
			continue
		}
		sessions = append(sessions, strings.TrimSuffix(name, historyExt))
	}
	sort.Strings(sessions)
	return sessions, nil
}

// Exists checks if a session document exists.
func (s *JSONDirStorage) Exists(ctx context.Context, sessionID string) (bool, error) {
	path, err := s.path(sessionID)
	if err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err = os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat history: %w", err)
	}
	return true, nil
}

// Close is a no-op.
func (s *JSONDirStorage) Close() error { return nil }

// Verify JSONDirStorage implements ConversationStorage
var _ ConversationStorage = (*JSONDirStorage)(nil)
