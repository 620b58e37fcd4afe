package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditmodels "bedrock/internal/audit/models"
	rbacmodels "bedrock/internal/rbac/models"
	rbacservice "bedrock/internal/rbac/service"
	dErrors "bedrock/pkg/domain-errors"
	"bedrock/pkg/testutil"
)

type fixture struct {
	env   *testutil.Env
	guard *rbacservice.Guard

	admin  *rbacmodels.Role
	editor *rbacmodels.Role
	viewer *rbacmodels.Role
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	env := testutil.NewEnv(t)
	env.MustCreateTenant(t, "acme", "Acme")
	guard := rbacservice.NewGuard(env.Manager, rbacservice.WithAuditLogger(env.Audit))

	f := &fixture{env: env, guard: guard}
	env.Run(t, "acme", func(ctx context.Context) {
		f.admin = f.mustRole(t, ctx, "admin", "users.view", "users.edit", "roles.manage")
		f.editor = f.mustRole(t, ctx, "editor", "users.view", "users.edit")
		f.viewer = f.mustRole(t, ctx, "viewer", "users.view")
	})
	return f
}

func (f *fixture) mustRole(t *testing.T, ctx context.Context, name string, permissions ...string) *rbacmodels.Role {
	t.Helper()
	role := &rbacmodels.Role{Name: name, Permissions: permissions}
	require.NoError(t, f.guard.CreateRole(ctx, role), "create role %s", name)
	return role
}

// assign writes the role set directly, bypassing the escalation check, to
// bootstrap actors for the tests.
func (f *fixture) assign(t *testing.T, ctx context.Context, userID uuid.UUID, roles ...*rbacmodels.Role) {
	t.Helper()
	ids := make([]uuid.UUID, len(roles))
	for i, r := range roles {
		ids[i] = r.ID
	}
	require.NoError(t, f.env.Manager.Stores(ctx).Roles.ReplaceUserRoles(ctx, userID, ids))
}

func TestHasPermission(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	f.env.Run(t, "acme", func(ctx context.Context) {
		f.assign(t, ctx, userID, f.viewer)

		ok, err := f.guard.HasPermission(ctx, userID, "users.view")
		require.NoError(t, err)
		assert.True(t, ok, "viewer must hold users.view")

		ok, err = f.guard.HasPermission(ctx, userID, "users.edit")
		require.NoError(t, err)
		assert.False(t, ok, "viewer must not hold users.edit")

		ok, err = f.guard.HasPermission(ctx, userID, "")
		require.NoError(t, err)
		assert.False(t, ok, "empty permission must be false")
	})
}

func TestPermissionsUnionAcrossRoles(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	f.env.Run(t, "acme", func(ctx context.Context) {
		f.assign(t, ctx, userID, f.viewer, f.editor)

		set, err := f.guard.Permissions(ctx, userID)
		require.NoError(t, err)
		for _, p := range []string{"users.view", "users.edit"} {
			assert.True(t, set.Contains(p), "expected %s in the effective set %v", p, set.Names())
		}
		assert.False(t, set.Contains("roles.manage"), "union must not invent permissions")
	})
}

func TestAssignRolesWithinActorGrants(t *testing.T) {
	f := newFixture(t)
	actorID, targetID := uuid.New(), uuid.New()

	f.env.Run(t, "acme", func(ctx context.Context) {
		f.assign(t, ctx, actorID, f.admin)

		require.NoError(t, f.guard.AssignRoles(ctx, actorID, targetID, []uuid.UUID{f.editor.ID}))

		ok, err := f.guard.HasPermission(ctx, targetID, "users.edit")
		require.NoError(t, err)
		assert.True(t, ok, "target must hold the newly assigned permission")

		entries, err := f.env.Audit.TrailByEvent(ctx, auditmodels.EventRolesUpdated)
		require.NoError(t, err)
		assert.Len(t, entries, 1, "role assignment must be audited")
	})
}

func TestAssignRolesBlocksEscalation(t *testing.T) {
	f := newFixture(t)
	actorID, targetID := uuid.New(), uuid.New()

	f.env.Run(t, "acme", func(ctx context.Context) {
		f.assign(t, ctx, actorID, f.editor)

		err := f.guard.AssignRoles(ctx, actorID, targetID, []uuid.UUID{f.admin.ID})
		require.True(t, dErrors.HasCode(err, dErrors.CodeEscalationForbidden), "expected escalation_forbidden, got %v", err)

		roles, err := f.guard.RolesOf(ctx, targetID)
		require.NoError(t, err)
		assert.Empty(t, roles, "blocked assignment must not change the target's roles")

		entries, err := f.env.Audit.TrailByEvent(ctx, auditmodels.EventEscalationBlocked)
		require.NoError(t, err)
		require.Len(t, entries, 1, "blocked escalation must be recorded")
		assert.True(t, entries[0].IsSecurityEvent, "blocked escalation must be a security event")
	})

	// The mirror of the blocked attempt must reach the central log.
	central, err := f.env.Central.Audit.ListByDescription(context.Background(), auditmodels.EventEscalationBlocked)
	require.NoError(t, err)
	assert.Len(t, central, 1, "expected the escalation event mirrored centrally")
}

func TestAssignRolesBlocksSelfEscalation(t *testing.T) {
	f := newFixture(t)
	actorID := uuid.New()

	f.env.Run(t, "acme", func(ctx context.Context) {
		f.assign(t, ctx, actorID, f.viewer)

		err := f.guard.AssignRoles(ctx, actorID, actorID, []uuid.UUID{f.admin.ID})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeEscalationForbidden), "self-assignment must follow the same rule, got %v", err)
	})
}

func TestAssignRolesEqualSetAllowed(t *testing.T) {
	f := newFixture(t)
	actorID, targetID := uuid.New(), uuid.New()

	f.env.Run(t, "acme", func(ctx context.Context) {
		f.assign(t, ctx, actorID, f.editor)

		// Granting exactly what the actor holds is not an escalation.
		assert.NoError(t, f.guard.AssignRoles(ctx, actorID, targetID, []uuid.UUID{f.editor.ID}), "equal permission set must be assignable")
	})
}

func TestAssignRolesUnknownRole(t *testing.T) {
	f := newFixture(t)
	actorID := uuid.New()

	f.env.Run(t, "acme", func(ctx context.Context) {
		f.assign(t, ctx, actorID, f.admin)

		err := f.guard.AssignRoles(ctx, actorID, uuid.New(), []uuid.UUID{uuid.New()})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "expected validation error for unknown role, got %v", err)
	})
}

func TestCreateRoleConflicts(t *testing.T) {
	f := newFixture(t)

	f.env.Run(t, "acme", func(ctx context.Context) {
		err := f.guard.CreateRole(ctx, &rbacmodels.Role{Name: "admin"})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict), "expected conflict for duplicate role name, got %v", err)

		err = f.guard.CreateRole(ctx, &rbacmodels.Role{})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "expected validation error for empty role name, got %v", err)
	})
}

// Roles created in one tenant do not exist in another.
func TestRolesAreTenantScoped(t *testing.T) {
	f := newFixture(t)
	f.env.MustCreateTenant(t, "globex", "Globex")
	userID := uuid.New()

	f.env.Run(t, "acme", func(ctx context.Context) {
		f.assign(t, ctx, userID, f.admin)
	})
	f.env.Run(t, "globex", func(ctx context.Context) {
		roles, err := f.guard.ListRoles(ctx)
		require.NoError(t, err)
		assert.Empty(t, roles, "another tenant must not see acme's roles")

		ok, err := f.guard.HasPermission(ctx, userID, "users.view")
		require.NoError(t, err)
		assert.False(t, ok, "permissions must not carry across tenant stores")
	})
}
