package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	entmodels "bedrock/internal/entitlement/models"
	entservice "bedrock/internal/entitlement/service"
	"bedrock/pkg/testutil"
)

func seedPlan(t *testing.T, env *testutil.Env, slug string, features []entmodels.Feature) *entmodels.Plan {
	t.Helper()
	plan := &entmodels.Plan{
		ID:            uuid.New(),
		Slug:          slug,
		Name:          slug,
		BillingPeriod: "monthly",
		Active:        true,
		Features:      features,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, env.Central.Plans.Create(context.Background(), plan), "seed plan %s", slug)
	return plan
}

func TestHasFeatureViaAttachedPlan(t *testing.T) {
	env := testutil.NewEnv(t)
	env.MustCreateTenant(t, "acme", "Acme")
	plan := seedPlan(t, env, "basic", []entmodels.Feature{
		{Code: "feature_a", Value: entmodels.BoolValue(true)},
		{Code: "feature_b", Value: entmodels.BoolValue(false)},
		{Code: "max_users", Value: entmodels.IntValue(10)},
	})
	_, err := env.Registry.AttachPlan(context.Background(), "acme", &plan.ID)
	require.NoError(t, err)
	resolver := entservice.NewResolver(env.Manager, entservice.WithClock(env.Clock))

	env.Run(t, "acme", func(ctx context.Context) {
		cases := []struct {
			code   string
			strict bool
			want   bool
		}{
			{"feature_a", false, true},
			{"feature_a", true, true},
			{"feature_b", false, true}, // present on the plan
			{"feature_b", true, false}, // present but disabled
			{"max_users", true, true},
			{"unknown", false, false},
			{"", false, false},
		}
		for _, tc := range cases {
			got, err := resolver.HasFeature(ctx, tc.code, tc.strict)
			require.NoError(t, err, "HasFeature(%q, strict=%v)", tc.code, tc.strict)
			assert.Equal(t, tc.want, got, "HasFeature(%q, strict=%v)", tc.code, tc.strict)
		}

		value, err := resolver.GetFeatureValue(ctx, "max_users")
		require.NoError(t, err)
		assert.Equal(t, int64(10), value.Raw())

		missing, err := resolver.GetFeatureValue(ctx, "unknown")
		require.NoError(t, err)
		assert.True(t, missing.IsZero(), "unknown feature must yield the zero value, got %v", missing.Raw())
	})
}

func TestNoEntitlementWithoutPlan(t *testing.T) {
	env := testutil.NewEnv(t)
	env.MustCreateTenant(t, "acme", "Acme")
	resolver := entservice.NewResolver(env.Manager, entservice.WithClock(env.Clock))

	env.Run(t, "acme", func(ctx context.Context) {
		got, err := resolver.HasFeature(ctx, "feature_a", false)
		require.NoError(t, err)
		assert.False(t, got, "a tenant with no plan must have no features")

		plan, err := resolver.CurrentPlan(ctx)
		require.NoError(t, err)
		assert.Nil(t, plan, "expected no current plan")
	})
}

func TestNoEntitlementOutsideTenantScope(t *testing.T) {
	env := testutil.NewEnv(t)
	resolver := entservice.NewResolver(env.Manager, entservice.WithClock(env.Clock))

	got, err := resolver.HasFeature(context.Background(), "feature_a", false)
	require.NoError(t, err)
	assert.False(t, got, "central scope must resolve no features")
}

func TestSubscriptionOverridesAttachedPlan(t *testing.T) {
	env := testutil.NewEnv(t)
	env.MustCreateTenant(t, "acme", "Acme")
	basic := seedPlan(t, env, "basic", []entmodels.Feature{
		{Code: "feature_a", Value: entmodels.BoolValue(true)},
	})
	premium := seedPlan(t, env, "premium", []entmodels.Feature{
		{Code: "feature_a", Value: entmodels.BoolValue(true)},
		{Code: "feature_c", Value: entmodels.BoolValue(true)},
	})
	_, err := env.Registry.AttachPlan(context.Background(), "acme", &basic.ID)
	require.NoError(t, err)
	resolver := entservice.NewResolver(env.Manager, entservice.WithClock(env.Clock))

	env.Run(t, "acme", func(ctx context.Context) {
		now := env.Clock.Now()
		sub := &entmodels.Subscription{
			ID:        uuid.New(),
			TenantID:  "acme",
			PlanID:    premium.ID,
			Status:    entmodels.SubscriptionActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		require.NoError(t, env.Manager.Stores(ctx).Subscriptions.Create(ctx, sub))

		plan, err := resolver.CurrentPlan(ctx)
		require.NoError(t, err)
		require.NotNil(t, plan, "subscription must win over the attached plan")
		assert.Equal(t, premium.ID, plan.ID)

		got, err := resolver.HasFeature(ctx, "feature_c", true)
		require.NoError(t, err)
		assert.True(t, got, "premium feature must be granted through the subscription")
	})
}

func TestExpiredSubscriptionGrantsNothing(t *testing.T) {
	env := testutil.NewEnv(t)
	env.MustCreateTenant(t, "acme", "Acme")
	basic := seedPlan(t, env, "basic", []entmodels.Feature{
		{Code: "feature_a", Value: entmodels.BoolValue(true)},
	})
	_, err := env.Registry.AttachPlan(context.Background(), "acme", &basic.ID)
	require.NoError(t, err)
	resolver := entservice.NewResolver(env.Manager, entservice.WithClock(env.Clock))

	env.Run(t, "acme", func(ctx context.Context) {
		now := env.Clock.Now()
		endsAt := now.Add(30 * 24 * time.Hour)
		sub := &entmodels.Subscription{
			ID:        uuid.New(),
			TenantID:  "acme",
			PlanID:    basic.ID,
			Status:    entmodels.SubscriptionActive,
			EndsAt:    &endsAt,
			CreatedAt: now,
			UpdatedAt: now,
		}
		require.NoError(t, env.Manager.Stores(ctx).Subscriptions.Create(ctx, sub))

		got, err := resolver.HasFeature(ctx, "feature_a", true)
		require.NoError(t, err)
		assert.True(t, got, "feature must be granted while the subscription runs")

		// Expiry is evaluated per call against the clock. No status
		// transition, no fallback to the attached plan.
		env.Advance(31 * 24 * time.Hour)
		got, err = resolver.HasFeature(ctx, "feature_a", false)
		require.NoError(t, err)
		assert.False(t, got, "lapsed subscription must cut features off immediately")

		plan, err := resolver.CurrentPlan(ctx)
		require.NoError(t, err)
		assert.Nil(t, plan, "lapsed subscription must not fall back to the attached plan")
	})
}

func TestCancelledSubscriptionGrantsNothing(t *testing.T) {
	env := testutil.NewEnv(t)
	env.MustCreateTenant(t, "acme", "Acme")
	basic := seedPlan(t, env, "basic", []entmodels.Feature{
		{Code: "feature_a", Value: entmodels.BoolValue(true)},
	})
	resolver := entservice.NewResolver(env.Manager, entservice.WithClock(env.Clock))

	env.Run(t, "acme", func(ctx context.Context) {
		now := env.Clock.Now()
		sub := &entmodels.Subscription{
			ID:        uuid.New(),
			TenantID:  "acme",
			PlanID:    basic.ID,
			Status:    entmodels.SubscriptionCancelled,
			CreatedAt: now,
			UpdatedAt: now,
		}
		require.NoError(t, env.Manager.Stores(ctx).Subscriptions.Create(ctx, sub))

		got, err := resolver.HasFeature(ctx, "feature_a", false)
		require.NoError(t, err)
		assert.False(t, got, "cancelled subscription must grant nothing")
	})
}

func TestMissingPlanReferenceDegradesToNoPlan(t *testing.T) {
	env := testutil.NewEnv(t)
	env.MustCreateTenant(t, "acme", "Acme")
	ghost := uuid.New()
	_, err := env.Registry.AttachPlan(context.Background(), "acme", &ghost)
	require.NoError(t, err)
	resolver := entservice.NewResolver(env.Manager, entservice.WithClock(env.Clock))

	env.Run(t, "acme", func(ctx context.Context) {
		got, err := resolver.HasFeature(ctx, "feature_a", false)
		require.NoError(t, err, "a dangling plan reference must not error")
		assert.False(t, got, "a dangling plan reference must grant nothing")
	})
}
