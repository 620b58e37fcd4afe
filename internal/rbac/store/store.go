// Package store defines tenant-scoped role/permission persistence. A Store is
// bound to one tenant's data store; roles and permissions from one tenant are
// invisible in another's.
package store

import (
	"context"

	"github.com/google/uuid"

	"bedrock/internal/rbac/models"
)

// Store persists roles, permissions, and role assignments for one tenant.
type Store interface {
	CreatePermission(ctx context.Context, p *models.Permission) error
	CreateRole(ctx context.Context, r *models.Role) error
	FindRole(ctx context.Context, roleID uuid.UUID) (*models.Role, error)
	FindRoleByName(ctx context.Context, name string) (*models.Role, error)
	ListRoles(ctx context.Context) ([]*models.Role, error)
	ListPermissions(ctx context.Context) ([]*models.Permission, error)

	// ReplaceUserRoles atomically replaces the target user's role set.
	ReplaceUserRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) error
	RolesForUser(ctx context.Context, userID uuid.UUID) ([]*models.Role, error)
}
