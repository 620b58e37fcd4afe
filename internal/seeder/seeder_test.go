package seeder_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	entservice "bedrock/internal/entitlement/service"
	identityservice "bedrock/internal/identity/service"
	rbacservice "bedrock/internal/rbac/service"
	"bedrock/internal/seeder"
	"bedrock/pkg/testutil"
)

func TestSeedAll(t *testing.T) {
	env := testutil.NewEnv(t)
	users := identityservice.New(env.Manager, identityservice.WithAuditLogger(env.Audit))
	guard := rbacservice.NewGuard(env.Manager, rbacservice.WithAuditLogger(env.Audit))
	s := seeder.New(env.Registry, env.Manager, users, guard, slog.Default())
	ctx := context.Background()

	require.NoError(t, s.SeedAll(ctx))

	plans, err := env.Central.Plans.List(ctx)
	require.NoError(t, err)
	assert.Len(t, plans, 2, "expected the basic and premium plans")

	resolver := entservice.NewResolver(env.Manager, entservice.WithClock(env.Clock))
	for _, tenantID := range []string{"acme", "globex"} {
		_, err := env.Registry.Lookup(ctx, tenantID)
		require.NoError(t, err, "tenant %s must be active", tenantID)

		env.Run(t, tenantID, func(ctx context.Context) {
			admin, err := users.FindByEmail(ctx, "admin@"+tenantID+".test")
			require.NoError(t, err, "admin for %s", tenantID)

			ok, err := guard.HasPermission(ctx, admin.ID, "roles.manage")
			require.NoError(t, err)
			assert.True(t, ok, "seeded admin for %s must hold roles.manage", tenantID)

			roles, err := guard.ListRoles(ctx)
			require.NoError(t, err)
			assert.Len(t, roles, 3, "expected admin/editor/viewer in %s", tenantID)
		})

		// Plan attachment differs per tenant.
		env.Run(t, tenantID, func(ctx context.Context) {
			plan, err := resolver.CurrentPlan(ctx)
			require.NoError(t, err)
			require.NotNil(t, plan, "seeded tenant %s must have a plan", tenantID)
			want := map[string]string{"acme": "premium", "globex": "basic"}[tenantID]
			assert.Equal(t, want, plan.Slug, "tenant %s plan", tenantID)
		})
	}

	// Seeding twice must fail cleanly on the unique tenant ids, not corrupt
	// state.
	assert.Error(t, s.SeedAll(ctx), "expected re-seeding to report the conflict")
}
