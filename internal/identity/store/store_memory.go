package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"bedrock/internal/identity/models"
	"bedrock/internal/sentinel"
	"bedrock/pkg/platform/tx"
)

// InMemory stores users in memory for one tenant.
type InMemory struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]*models.User
	emailIdx map[string]uuid.UUID
}

// NewInMemory creates an in-memory user store.
func NewInMemory() *InMemory {
	return &InMemory{
		users:    make(map[uuid.UUID]*models.User),
		emailIdx: make(map[string]uuid.UUID),
	}
}

// CreateIfEmailAvailable atomically creates the user if the email is not taken
// by a live user (case-insensitive).
func (s *InMemory) CreateIfEmailAvailable(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(user.Email)
	if id, exists := s.emailIdx[key]; exists {
		if existing, ok := s.users[id]; ok && !existing.IsDeleted() {
			return fmt.Errorf("email must be unique: %w", sentinel.ErrAlreadyUsed)
		}
	}
	clone := *user
	s.users[user.ID] = &clone
	s.emailIdx[key] = user.ID

	if m, ok := tx.MemFrom(ctx); ok {
		id := user.ID
		m.OnRollback(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.users, id)
			delete(s.emailIdx, key)
		})
	}
	return nil
}

func (s *InMemory) Update(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[user.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	previous := *existing
	oldKey := strings.ToLower(existing.Email)
	newKey := strings.ToLower(user.Email)
	if oldKey != newKey {
		if otherID, taken := s.emailIdx[newKey]; taken && otherID != user.ID {
			if other, ok := s.users[otherID]; ok && !other.IsDeleted() {
				return fmt.Errorf("email must be unique: %w", sentinel.ErrAlreadyUsed)
			}
		}
		delete(s.emailIdx, oldKey)
		s.emailIdx[newKey] = user.ID
	}
	clone := *user
	s.users[user.ID] = &clone

	if m, ok := tx.MemFrom(ctx); ok {
		m.OnRollback(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			restored := previous
			s.users[restored.ID] = &restored
			delete(s.emailIdx, newKey)
			s.emailIdx[oldKey] = restored.ID
		})
	}
	return nil
}

func (s *InMemory) FindByID(_ context.Context, userID uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[userID]; ok && !u.IsDeleted() {
		clone := *u
		return &clone, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.emailIdx[strings.ToLower(email)]; ok {
		if u, ok := s.users[id]; ok && !u.IsDeleted() {
			clone := *u
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) List(_ context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		if !u.IsDeleted() {
			clone := *u
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, u := range s.users {
		if !u.IsDeleted() {
			count++
		}
	}
	return count, nil
}
