package registry

import (
	"context"

	"bedrock/internal/tenancy/models"
)

// Store persists tenant records in the central store.
type Store interface {
	CreateIfAvailable(ctx context.Context, tenant *models.Tenant) error
	Update(ctx context.Context, tenant *models.Tenant) error
	// FindByID returns the tenant regardless of lifecycle status; callers
	// decide how to treat soft-deleted rows.
	FindByID(ctx context.Context, tenantID string) (*models.Tenant, error)
	FindByName(ctx context.Context, name string) (*models.Tenant, error)
	List(ctx context.Context) ([]*models.Tenant, error)
	Count(ctx context.Context) (int, error)
}
