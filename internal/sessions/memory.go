package sessions

import (
	"context"
	"sort"
	"sync"

	"github.com/haasonsaas/scout/pkg/models"
)

// MemoryStore keeps histories in process memory. It backs tests and
// single-shot invocations where persistence is not wanted.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string][]models.Turn
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]models.Turn)}
}

// Load returns a copy of the stored turns, or an empty slice for an unknown
// session id.
func (s *MemoryStore) Load(_ context.Context, sessionID string) ([]models.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := s.sessions[sessionID]
	out := make([]models.Turn, len(turns))
	copy(out, turns)
	return out, nil
}

// Save replaces the stored turns for sessionID.
func (s *MemoryStore) Save(_ context.Context, sessionID string, turns []models.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]models.Turn, len(turns))
	copy(stored, turns)
	s.sessions[sessionID] = stored
	return nil
}

// Delete removes the session. Unknown ids are not an error.
func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// List returns the ids of all stored sessions in sorted order.
func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
