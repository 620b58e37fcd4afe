package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditmodels "bedrock/internal/audit/models"
	billingservice "bedrock/internal/billing/service"
	entmodels "bedrock/internal/entitlement/models"
	entservice "bedrock/internal/entitlement/service"
	dErrors "bedrock/pkg/domain-errors"
	"bedrock/pkg/testutil"
)

type fixture struct {
	env      *testutil.Env
	billing  *billingservice.Service
	resolver *entservice.Resolver
	plan     *entmodels.Plan
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	env := testutil.NewEnv(t)
	env.MustCreateTenant(t, "acme", "Acme")

	plan := &entmodels.Plan{
		ID:     uuid.New(),
		Slug:   "premium",
		Name:   "Premium",
		Active: true,
		Features: []entmodels.Feature{
			{Code: "feature_a", Value: entmodels.BoolValue(true)},
		},
		CreatedAt: time.Now(),
	}
	require.NoError(t, env.Central.Plans.Create(context.Background(), plan), "seed plan")

	return &fixture{
		env:      env,
		billing:  billingservice.New(env.Manager, billingservice.WithClock(env.Clock), billingservice.WithAuditLogger(env.Audit)),
		resolver: entservice.NewResolver(env.Manager, entservice.WithClock(env.Clock)),
		plan:     plan,
	}
}

func TestRecordPaymentActivatesSubscription(t *testing.T) {
	f := newFixture(t)

	f.env.Run(t, "acme", func(ctx context.Context) {
		got, err := f.resolver.HasFeature(ctx, "feature_a", false)
		require.NoError(t, err)
		require.False(t, got, "no features before the first payment")

		paidThrough := f.env.Clock.Now().Add(30 * 24 * time.Hour)
		sub, err := f.billing.RecordPayment(ctx, f.plan.ID, paidThrough)
		require.NoError(t, err)
		assert.Equal(t, f.plan.ID, sub.PlanID)
		assert.Equal(t, entmodels.SubscriptionActive, sub.Status)
		require.NotNil(t, sub.EndsAt)
		assert.True(t, sub.EndsAt.Equal(paidThrough), "subscription must run through the paid period")

		got, err = f.resolver.HasFeature(ctx, "feature_a", true)
		require.NoError(t, err)
		assert.True(t, got, "payment must switch entitlements on")

		entries, err := f.env.Audit.TrailByEvent(ctx, auditmodels.EventSubscriptionActivated)
		require.NoError(t, err)
		require.Len(t, entries, 1, "activation must be audited")
		assert.True(t, entries[0].IsSecurityEvent, "activation must be a security event")
	})
}

func TestRecordPaymentExtendsSamePlan(t *testing.T) {
	f := newFixture(t)

	f.env.Run(t, "acme", func(ctx context.Context) {
		first := f.env.Clock.Now().Add(30 * 24 * time.Hour)
		sub, err := f.billing.RecordPayment(ctx, f.plan.ID, first)
		require.NoError(t, err)

		second := first.Add(30 * 24 * time.Hour)
		extended, err := f.billing.RecordPayment(ctx, f.plan.ID, second)
		require.NoError(t, err)
		assert.Equal(t, sub.ID, extended.ID, "the same plan must extend the existing subscription, not create a new one")
		require.NotNil(t, extended.EndsAt)
		assert.True(t, extended.EndsAt.Equal(second), "extension must move the end date")
	})
}

func TestRecordPaymentReactivatesLapsedSubscription(t *testing.T) {
	f := newFixture(t)

	f.env.Run(t, "acme", func(ctx context.Context) {
		first := f.env.Clock.Now().Add(24 * time.Hour)
		_, err := f.billing.RecordPayment(ctx, f.plan.ID, first)
		require.NoError(t, err)

		f.env.Advance(48 * time.Hour)
		got, err := f.resolver.HasFeature(ctx, "feature_a", false)
		require.NoError(t, err)
		require.False(t, got, "features must lapse with the subscription")

		renewed := f.env.Clock.Now().Add(30 * 24 * time.Hour)
		_, err = f.billing.RecordPayment(ctx, f.plan.ID, renewed)
		require.NoError(t, err)

		got, err = f.resolver.HasFeature(ctx, "feature_a", false)
		require.NoError(t, err)
		assert.True(t, got, "renewal must restore entitlements")
	})
}

func TestRecordPaymentSwitchesPlan(t *testing.T) {
	f := newFixture(t)
	other := &entmodels.Plan{ID: uuid.New(), Slug: "basic", Name: "Basic", Active: true, CreatedAt: time.Now()}
	require.NoError(t, f.env.Central.Plans.Create(context.Background(), other), "seed plan")

	f.env.Run(t, "acme", func(ctx context.Context) {
		paidThrough := f.env.Clock.Now().Add(30 * 24 * time.Hour)
		first, err := f.billing.RecordPayment(ctx, f.plan.ID, paidThrough)
		require.NoError(t, err)

		f.env.Advance(time.Hour)
		switched, err := f.billing.RecordPayment(ctx, other.ID, paidThrough)
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, switched.ID, "a different plan must create a new subscription row")

		plan, err := f.resolver.CurrentPlan(ctx)
		require.NoError(t, err)
		require.NotNil(t, plan, "entitlement must follow the newest subscription")
		assert.Equal(t, other.ID, plan.ID)
	})
}

func TestRecordPaymentValidation(t *testing.T) {
	f := newFixture(t)

	// No tenant context.
	_, err := f.billing.RecordPayment(context.Background(), f.plan.ID, time.Now())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), "expected invalid_input outside tenant scope, got %v", err)

	f.env.Run(t, "acme", func(ctx context.Context) {
		_, err := f.billing.RecordPayment(ctx, uuid.New(), time.Now())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "expected validation error for unknown plan, got %v", err)
	})
}

func TestFailPaymentLeavesEntitlementsAlone(t *testing.T) {
	f := newFixture(t)

	f.env.Run(t, "acme", func(ctx context.Context) {
		paidThrough := f.env.Clock.Now().Add(30 * 24 * time.Hour)
		_, err := f.billing.RecordPayment(ctx, f.plan.ID, paidThrough)
		require.NoError(t, err)

		require.NoError(t, f.billing.FailPayment(ctx, f.plan.ID, "card_declined"))

		// The failure is recorded but the running subscription is untouched.
		got, err := f.resolver.HasFeature(ctx, "feature_a", false)
		require.NoError(t, err)
		assert.True(t, got, "a failed renewal must not cut the paid period short")

		entries, err := f.env.Audit.TrailByEvent(ctx, auditmodels.EventPaymentFailed)
		require.NoError(t, err)
		require.Len(t, entries, 1, "failure must be audited")
		assert.Equal(t, "card_declined", entries[0].Properties["reason"])
	})
}
