// Package sessions persists conversation histories as JSON files, one per
// session, under a configurable directory.
package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/haasonsaas/scout/pkg/models"
)

// sessionIDPattern restricts session ids to filename-safe characters so a
// crafted id cannot escape the store directory.
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Store keeps one JSON document per session under dir. Writes are atomic:
// a crash mid-save leaves the previous document intact.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates the directory if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("sessions: directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("sessions: creating %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Load returns the stored turns for sessionID, or an empty slice when the
// session has never been saved.
func (s *Store) Load(_ context.Context, sessionID string) ([]models.Turn, error) {
	path, err := s.path(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []models.Turn{}, nil
		}
		return nil, fmt.Errorf("sessions: reading %s: %w", sessionID, err)
	}
	if len(data) == 0 {
		return []models.Turn{}, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("sessions: decoding %s: %w", sessionID, err)
	}
	return doc.Turns, nil
}

// Save replaces the stored turns for sessionID.
func (s *Store) Save(_ context.Context, sessionID string, turns []models.Turn) error {
	path, err := s.path(sessionID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(document{SessionID: sessionID, Turns: turns}, "", "  ")
	if err != nil {
		return fmt.Errorf("sessions: encoding %s: %w", sessionID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeFileAtomic(path, data, 0o600)
}

// Delete removes the session document. Deleting a session that was never
// saved is not an error.
func (s *Store) Delete(_ context.Context, sessionID string) error {
	path, err := s.path(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("sessions: deleting %s: %w", sessionID, err)
	}
	return nil
}

// List returns the ids of all stored sessions.
func (s *Store) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("sessions: listing: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if filepath.Ext(name) != ".json" {
			continue
		}
		ids = append(ids, name[:len(name)-len(".json")])
	}
	return ids, nil
}

func (s *Store) path(sessionID string) (string, error) {
	if !sessionIDPattern.MatchString(sessionID) {
		return "", fmt.Errorf("sessions: invalid session id %q", sessionID)
	}
	return filepath.Join(s.dir, sessionID+".json"), nil
}

type document struct {
	SessionID string        `json:"session_id"`
	Turns     []models.Turn `json:"turns"`
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
