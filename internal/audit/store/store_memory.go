package store

import (
	"context"
	"sync"

	"bedrock/internal/audit/models"
	"bedrock/pkg/platform/tx"
)

// InMemory stores audit entries in memory. Appends issued inside an ambient
// memory transaction register an undo so a rollback removes the row.
type InMemory struct {
	mu      sync.RWMutex
	entries []models.Entry
}

// NewInMemory creates an in-memory audit store.
func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Append(ctx context.Context, entry models.Entry) error {
	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.mu.Unlock()

	if m, ok := tx.MemFrom(ctx); ok {
		id := entry.ID
		m.OnRollback(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, e := range s.entries {
				if e.ID == id {
					s.entries = append(s.entries[:i], s.entries[i+1:]...)
					return
				}
			}
		})
	}
	return nil
}

func (s *InMemory) ListByDescription(_ context.Context, description string) ([]models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Entry
	for _, e := range s.entries {
		if e.Description == description {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *InMemory) List(_ context.Context) ([]models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Entry{}, s.entries...), nil
}

func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}
