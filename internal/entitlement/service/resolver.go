// Package service resolves feature entitlements for the active tenant.
// Resolution is evaluated on every call against the injected clock, never
// cached, so an expired subscription cuts features off immediately without a
// status transition having run.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"bedrock/internal/entitlement/models"
	"bedrock/internal/sentinel"
	"bedrock/internal/store"
	"bedrock/internal/tenancy"
	dErrors "bedrock/pkg/domain-errors"
)

// Scope resolves store bundles per call. Satisfied by tenancy.Manager.
type Scope interface {
	Stores(ctx context.Context) *store.Bundle
	Central() *store.Bundle
}

// Option configures the Resolver.
type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

func WithClock(clk clock.Clock) Option {
	return func(r *Resolver) { r.clock = clk }
}

// Resolver answers feature questions for the active tenant. Plans are held in
// the central store; subscriptions live in each tenant's store.
type Resolver struct {
	scope  Scope
	logger *slog.Logger
	clock  clock.Clock
}

func NewResolver(scope Scope, opts ...Option) *Resolver {
	r := &Resolver{
		scope:  scope,
		logger: slog.Default(),
		clock:  clock.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HasFeature reports whether the active tenant's plan grants the feature.
// In strict mode the feature's value must also be truthy, so a plan that
// carries the feature with value false still reads as disabled. Empty or
// unknown codes are simply false, never an error.
func (r *Resolver) HasFeature(ctx context.Context, code string, strict bool) (bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return false, nil
	}
	plan, err := r.currentPlan(ctx)
	if err != nil || plan == nil {
		return false, err
	}
	feature, ok := plan.Feature(code)
	if !ok {
		return false, nil
	}
	if strict {
		return feature.Value.Truthy(), nil
	}
	return true, nil
}

// GetFeatureValue returns the feature's value for the active tenant, or the
// zero Value when the tenant has no entitlement to it.
func (r *Resolver) GetFeatureValue(ctx context.Context, code string) (models.Value, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return models.Value{}, nil
	}
	plan, err := r.currentPlan(ctx)
	if err != nil || plan == nil {
		return models.Value{}, err
	}
	feature, ok := plan.Feature(code)
	if !ok {
		return models.Value{}, nil
	}
	return feature.Value, nil
}

// CurrentPlan returns the plan the active tenant is entitled to, or nil when
// no entitlement applies.
func (r *Resolver) CurrentPlan(ctx context.Context) (*models.Plan, error) {
	return r.currentPlan(ctx)
}

// currentPlan picks the plan backing entitlement checks: the latest
// subscription when it is active right now, otherwise the tenant's directly
// attached plan when no subscription rows exist at all. An inactive or lapsed
// subscription grants nothing and does not fall back.
func (r *Resolver) currentPlan(ctx context.Context) (*models.Plan, error) {
	tc, ok := tenancy.FromContext(ctx)
	if !ok {
		return nil, nil
	}

	sub, err := r.scope.Stores(ctx).Subscriptions.Latest(ctx)
	switch {
	case err == nil:
		if !sub.ActiveForEntitlement(r.clock.Now()) {
			return nil, nil
		}
		return r.findPlan(ctx, sub.PlanID)
	case errors.Is(err, sentinel.ErrNotFound):
		if tc.Tenant().PlanID == nil {
			return nil, nil
		}
		return r.findPlan(ctx, *tc.Tenant().PlanID)
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load subscription")
	}
}

func (r *Resolver) findPlan(ctx context.Context, planID uuid.UUID) (*models.Plan, error) {
	plan, err := r.scope.Central().Plans.FindByID(ctx, planID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			r.logger.WarnContext(ctx, "entitlement references missing plan", "plan_id", planID)
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load plan")
	}
	return plan, nil
}
