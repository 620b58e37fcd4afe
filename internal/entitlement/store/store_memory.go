package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"bedrock/internal/entitlement/models"
	"bedrock/internal/sentinel"
	"bedrock/pkg/platform/tx"
)

// InMemoryPlans stores plans in memory.
type InMemoryPlans struct {
	mu      sync.RWMutex
	plans   map[uuid.UUID]*models.Plan
	slugIdx map[string]uuid.UUID
}

// NewInMemoryPlans creates an in-memory plan store.
func NewInMemoryPlans() *InMemoryPlans {
	return &InMemoryPlans{
		plans:   make(map[uuid.UUID]*models.Plan),
		slugIdx: make(map[string]uuid.UUID),
	}
}

func (s *InMemoryPlans) Create(_ context.Context, plan *models.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(plan.Slug)
	if _, exists := s.slugIdx[key]; exists {
		return fmt.Errorf("plan slug must be unique: %w", sentinel.ErrAlreadyUsed)
	}
	s.plans[plan.ID] = plan
	s.slugIdx[key] = plan.ID
	return nil
}

func (s *InMemoryPlans) FindByID(_ context.Context, planID uuid.UUID) (*models.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.plans[planID]; ok {
		return p, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryPlans) FindBySlug(_ context.Context, slug string) (*models.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.slugIdx[strings.ToLower(slug)]; ok {
		return s.plans[id], nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryPlans) List(_ context.Context) ([]*models.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Plan, 0, len(s.plans))
	for _, p := range s.plans {
		out = append(out, p)
	}
	return out, nil
}

// InMemorySubscriptions stores subscriptions in memory for one tenant.
type InMemorySubscriptions struct {
	mu   sync.RWMutex
	subs []*models.Subscription
}

// NewInMemorySubscriptions creates an in-memory subscription store.
func NewInMemorySubscriptions() *InMemorySubscriptions {
	return &InMemorySubscriptions{}
}

func (s *InMemorySubscriptions) Create(ctx context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	if m, ok := tx.MemFrom(ctx); ok {
		id := sub.ID
		m.OnRollback(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, existing := range s.subs {
				if existing.ID == id {
					s.subs = append(s.subs[:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
	return nil
}

func (s *InMemorySubscriptions) Update(ctx context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.subs {
		if existing.ID == sub.ID {
			previous := *existing
			s.subs[i] = sub
			if m, ok := tx.MemFrom(ctx); ok {
				m.OnRollback(func() {
					s.mu.Lock()
					defer s.mu.Unlock()
					for j, cur := range s.subs {
						if cur.ID == previous.ID {
							restored := previous
							s.subs[j] = &restored
							return
						}
					}
				})
			}
			return nil
		}
	}
	return sentinel.ErrNotFound
}

func (s *InMemorySubscriptions) Latest(_ context.Context) (*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.subs) == 0 {
		return nil, sentinel.ErrNotFound
	}
	latest := s.subs[0]
	for _, sub := range s.subs[1:] {
		if sub.CreatedAt.After(latest.CreatedAt) {
			latest = sub
		}
	}
	return latest, nil
}
