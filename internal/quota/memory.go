package quota

import (
	"context"
	"sync"

	"github.com/raphaelgruber/mooddine/internal/models"
)

// MemoryStore keeps the quota record in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	state models.QuotaState
	ok    bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context) (models.QuotaState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.ok, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, state models.QuotaState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.ok = true
	return nil
}
