package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"bedrock/internal/rbac/models"
	"bedrock/internal/sentinel"
	"bedrock/pkg/platform/tx"
)

// InMemory stores roles and permissions in memory for one tenant.
type InMemory struct {
	mu          sync.RWMutex
	roles       map[uuid.UUID]*models.Role
	roleNameIdx map[string]uuid.UUID
	permissions map[uuid.UUID]*models.Permission
	permNameIdx map[string]uuid.UUID
	userRoles   map[uuid.UUID][]uuid.UUID
}

// NewInMemory creates an in-memory RBAC store.
func NewInMemory() *InMemory {
	return &InMemory{
		roles:       make(map[uuid.UUID]*models.Role),
		roleNameIdx: make(map[string]uuid.UUID),
		permissions: make(map[uuid.UUID]*models.Permission),
		permNameIdx: make(map[string]uuid.UUID),
		userRoles:   make(map[uuid.UUID][]uuid.UUID),
	}
}

func (s *InMemory) CreatePermission(_ context.Context, p *models.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(p.Name)
	if _, exists := s.permNameIdx[key]; exists {
		return fmt.Errorf("permission name must be unique: %w", sentinel.ErrAlreadyUsed)
	}
	s.permissions[p.ID] = p
	s.permNameIdx[key] = p.ID
	return nil
}

func (s *InMemory) CreateRole(_ context.Context, r *models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(r.Name)
	if _, exists := s.roleNameIdx[key]; exists {
		return fmt.Errorf("role name must be unique: %w", sentinel.ErrAlreadyUsed)
	}
	s.roles[r.ID] = r
	s.roleNameIdx[key] = r.ID
	return nil
}

func (s *InMemory) FindRole(_ context.Context, roleID uuid.UUID) (*models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.roles[roleID]; ok {
		return r, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindRoleByName(_ context.Context, name string) (*models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.roleNameIdx[strings.ToLower(name)]; ok {
		return s.roles[id], nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) ListRoles(_ context.Context) ([]*models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, r)
	}
	return out, nil
}

func (s *InMemory) ListPermissions(_ context.Context) ([]*models.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Permission, 0, len(s.permissions))
	for _, p := range s.permissions {
		out = append(out, p)
	}
	return out, nil
}

func (s *InMemory) ReplaceUserRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range roleIDs {
		if _, ok := s.roles[id]; !ok {
			return fmt.Errorf("role %s: %w", id, sentinel.ErrNotFound)
		}
	}
	previous := s.userRoles[userID]
	s.userRoles[userID] = append([]uuid.UUID{}, roleIDs...)

	if m, ok := tx.MemFrom(ctx); ok {
		m.OnRollback(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.userRoles[userID] = previous
		})
	}
	return nil
}

func (s *InMemory) RolesForUser(_ context.Context, userID uuid.UUID) ([]*models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.userRoles[userID]
	out := make([]*models.Role, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.roles[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}
