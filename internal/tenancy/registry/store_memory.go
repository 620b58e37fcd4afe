package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"bedrock/internal/sentinel"
	"bedrock/internal/tenancy/models"
)

// InMemory stores tenant records in memory.
type InMemory struct {
	mu      sync.RWMutex
	tenants map[string]*models.Tenant
	nameIdx map[string]string
}

// NewInMemory creates an in-memory tenant registry store.
func NewInMemory() *InMemory {
	return &InMemory{
		tenants: make(map[string]*models.Tenant),
		nameIdx: make(map[string]string),
	}
}

// CreateIfAvailable atomically creates the tenant if neither the ID nor the
// name (case-insensitive) is already taken.
func (s *InMemory) CreateIfAvailable(_ context.Context, t *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tenants[t.ID]; exists {
		return fmt.Errorf("tenant id must be unique: %w", sentinel.ErrAlreadyUsed)
	}
	lower := strings.ToLower(t.Name)
	if _, exists := s.nameIdx[lower]; exists {
		return fmt.Errorf("tenant name must be unique: %w", sentinel.ErrAlreadyUsed)
	}
	clone := *t
	s.tenants[t.ID] = &clone
	s.nameIdx[lower] = t.ID
	return nil
}

func (s *InMemory) Update(_ context.Context, t *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.tenants[t.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.nameIdx, strings.ToLower(existing.Name))
	clone := *t
	s.tenants[t.ID] = &clone
	s.nameIdx[strings.ToLower(t.Name)] = t.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, tenantID string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tenants[tenantID]; ok {
		clone := *t
		return &clone, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindByName(_ context.Context, name string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.nameIdx[strings.ToLower(name)]; ok {
		clone := *s.tenants[id]
		return &clone, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) List(_ context.Context) ([]*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		clone := *t
		out = append(out, &clone)
	}
	return out, nil
}

func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tenants), nil
}
