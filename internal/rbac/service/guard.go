// Package service enforces role-based access control within the active
// tenant. The escalation rule is the core invariant: an actor can only grant
// a permission set that is a subset of what the actor already holds, and the
// rule applies equally to self-assignment.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	auditmodels "bedrock/internal/audit/models"
	rbacmodels "bedrock/internal/rbac/models"
	"bedrock/internal/sentinel"
	"bedrock/internal/store"
	dErrors "bedrock/pkg/domain-errors"
)

// Scope resolves the store bundle for the active call. Satisfied by
// tenancy.Manager.
type Scope interface {
	Stores(ctx context.Context) *store.Bundle
}

// AuditLogger records role changes and blocked escalation attempts.
type AuditLogger interface {
	LogActivity(ctx context.Context, event, subjectType string, payload map[string]any) error
	LogSecurityEvent(ctx context.Context, event, subjectType string, payload map[string]any) error
}

// Option configures the Guard.
type Option func(*Guard)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) { g.logger = logger }
}

func WithAuditLogger(audit AuditLogger) Option {
	return func(g *Guard) { g.audit = audit }
}

// Guard answers permission questions and applies role changes for the active
// tenant.
type Guard struct {
	scope  Scope
	logger *slog.Logger
	audit  AuditLogger
}

func NewGuard(scope Scope, opts ...Option) *Guard {
	g := &Guard{
		scope:  scope,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// HasPermission reports whether the user holds the named permission through
// any of their roles. A missing permission is a business answer, not an
// error.
func (g *Guard) HasPermission(ctx context.Context, userID uuid.UUID, permission string) (bool, error) {
	if permission == "" {
		return false, nil
	}
	set, err := g.permissionsOf(ctx, userID)
	if err != nil {
		return false, err
	}
	return set.Contains(permission), nil
}

// Permissions returns the user's effective permission set: the union of all
// their roles' permissions.
func (g *Guard) Permissions(ctx context.Context, userID uuid.UUID) (rbacmodels.PermissionSet, error) {
	return g.permissionsOf(ctx, userID)
}

func (g *Guard) permissionsOf(ctx context.Context, userID uuid.UUID) (rbacmodels.PermissionSet, error) {
	roles, err := g.scope.Stores(ctx).Roles.RolesForUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user roles")
	}
	return rbacmodels.NewPermissionSet().Union(roles...), nil
}

// AssignRoles replaces the target user's role set. The actor must already
// hold every permission the new role set grants; otherwise the change is an
// escalation and is blocked and recorded as a security event. Self-assignment
// follows the same rule, so an actor cannot widen their own grants either.
func (g *Guard) AssignRoles(ctx context.Context, actorID, targetID uuid.UUID, roleIDs []uuid.UUID) error {
	stores := g.scope.Stores(ctx)

	requested := make([]*rbacmodels.Role, 0, len(roleIDs))
	for _, roleID := range roleIDs {
		role, err := stores.Roles.FindRole(ctx, roleID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeValidation, "unknown role: "+roleID.String())
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load role")
		}
		requested = append(requested, role)
	}

	granted := rbacmodels.NewPermissionSet().Union(requested...)
	actorSet, err := g.permissionsOf(ctx, actorID)
	if err != nil {
		return err
	}

	if !granted.SubsetOf(actorSet) {
		g.logger.WarnContext(ctx, "blocked role escalation attempt",
			"actor_id", actorID,
			"target_id", targetID,
			"requested", granted.Names(),
		)
		if g.audit != nil {
			_ = g.audit.LogSecurityEvent(ctx, auditmodels.EventEscalationBlocked, "user", map[string]any{
				"id":        targetID.String(),
				"actor_id":  actorID.String(),
				"requested": granted.Names(),
			})
		}
		return dErrors.New(dErrors.CodeEscalationForbidden,
			"requested roles exceed the actor's own permissions")
	}

	if err := stores.Roles.ReplaceUserRoles(ctx, targetID, roleIDs); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeValidation, "unknown role in assignment")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to assign roles")
	}

	if g.audit != nil {
		names := make([]string, len(requested))
		for i, r := range requested {
			names[i] = r.Name
		}
		_ = g.audit.LogActivity(ctx, auditmodels.EventRolesUpdated, "user", map[string]any{
			"id":       targetID.String(),
			"actor_id": actorID.String(),
			"roles":    names,
		})
	}
	return nil
}

// CreateRole adds a role to the active tenant's store.
func (g *Guard) CreateRole(ctx context.Context, role *rbacmodels.Role) error {
	if role.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "role name is required")
	}
	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	if err := g.scope.Stores(ctx).Roles.CreateRole(ctx, role); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return dErrors.New(dErrors.CodeConflict, "role already exists: "+role.Name)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create role")
	}
	return nil
}

// CreatePermission adds a permission to the active tenant's store.
func (g *Guard) CreatePermission(ctx context.Context, p *rbacmodels.Permission) error {
	if p.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "permission name is required")
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if err := g.scope.Stores(ctx).Roles.CreatePermission(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return dErrors.New(dErrors.CodeConflict, "permission already exists: "+p.Name)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create permission")
	}
	return nil
}

// ListRoles returns the active tenant's roles.
func (g *Guard) ListRoles(ctx context.Context) ([]*rbacmodels.Role, error) {
	return g.scope.Stores(ctx).Roles.ListRoles(ctx)
}

// RolesOf returns the target user's assigned roles.
func (g *Guard) RolesOf(ctx context.Context, userID uuid.UUID) ([]*rbacmodels.Role, error) {
	return g.scope.Stores(ctx).Roles.RolesForUser(ctx, userID)
}
