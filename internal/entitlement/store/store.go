// Package store defines plan and subscription persistence for one tenant's
// data store.
package store

import (
	"context"

	"github.com/google/uuid"

	"bedrock/internal/entitlement/models"
)

// PlanStore persists plans and their feature matrices.
type PlanStore interface {
	Create(ctx context.Context, plan *models.Plan) error
	FindByID(ctx context.Context, planID uuid.UUID) (*models.Plan, error)
	FindBySlug(ctx context.Context, slug string) (*models.Plan, error)
	List(ctx context.Context) ([]*models.Plan, error)
}

// SubscriptionStore persists subscriptions for one tenant.
type SubscriptionStore interface {
	Create(ctx context.Context, sub *models.Subscription) error
	Update(ctx context.Context, sub *models.Subscription) error
	// Latest returns the most recently created subscription, or
	// sentinel.ErrNotFound when the tenant has none.
	Latest(ctx context.Context) (*models.Subscription, error)
}
