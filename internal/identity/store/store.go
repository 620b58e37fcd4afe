// Package store defines user persistence for one tenant's data store.
package store

import (
	"context"

	"github.com/google/uuid"

	"bedrock/internal/identity/models"
)

// Store persists users for one tenant. Soft-deleted users are excluded from
// every read path; FindByEmail and the email uniqueness check only consider
// live rows.
type Store interface {
	CreateIfEmailAvailable(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Count(ctx context.Context) (int, error)
}
