// Package service applies billing outcomes to tenant entitlements. A
// successful payment activates or extends the tenant's subscription inside a
// transaction; a failed payment is recorded but never touches entitlements.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	auditmodels "bedrock/internal/audit/models"
	entmodels "bedrock/internal/entitlement/models"
	"bedrock/internal/sentinel"
	"bedrock/internal/store"
	"bedrock/internal/tenancy"
	dErrors "bedrock/pkg/domain-errors"
)

// Scope resolves the store bundle for the active call. Satisfied by
// tenancy.Manager.
type Scope interface {
	Stores(ctx context.Context) *store.Bundle
	Central() *store.Bundle
}

// AuditLogger records subscription activations and payment failures.
type AuditLogger interface {
	LogSecurityEvent(ctx context.Context, event, subjectType string, payload map[string]any) error
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithClock(clk clock.Clock) Option {
	return func(s *Service) { s.clock = clk }
}

func WithAuditLogger(audit AuditLogger) Option {
	return func(s *Service) { s.audit = audit }
}

// Service applies payment outcomes to the active tenant's subscription.
type Service struct {
	scope  Scope
	logger *slog.Logger
	clock  clock.Clock
	audit  AuditLogger
}

func New(scope Scope, opts ...Option) *Service {
	s := &Service{
		scope:  scope,
		logger: slog.Default(),
		clock:  clock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordPayment activates the tenant's subscription for the plan through
// paidThrough. An existing subscription for the same plan is extended and
// reactivated; otherwise a fresh subscription row is created. Requires an
// active tenant context.
func (s *Service) RecordPayment(ctx context.Context, planID uuid.UUID, paidThrough time.Time) (*entmodels.Subscription, error) {
	tc, ok := tenancy.FromContext(ctx)
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "payment requires an active tenant context")
	}
	if _, err := s.scope.Central().Plans.FindByID(ctx, planID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeValidation, "unknown plan: "+planID.String())
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load plan")
	}

	stores := s.scope.Stores(ctx)
	now := s.clock.Now().UTC()

	var sub *entmodels.Subscription
	err := stores.Tx.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := stores.Subscriptions.Latest(ctx)
		switch {
		case err == nil && existing.PlanID == planID:
			existing.Status = entmodels.SubscriptionActive
			existing.EndsAt = &paidThrough
			existing.UpdatedAt = now
			if err := stores.Subscriptions.Update(ctx, existing); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to extend subscription")
			}
			sub = existing
			return nil
		case err == nil || errors.Is(err, sentinel.ErrNotFound):
			sub = &entmodels.Subscription{
				ID:        uuid.New(),
				TenantID:  tc.Tenant().ID,
				PlanID:    planID,
				Status:    entmodels.SubscriptionActive,
				EndsAt:    &paidThrough,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := stores.Subscriptions.Create(ctx, sub); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create subscription")
			}
			return nil
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load subscription")
		}
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "subscription activated",
		"tenant_id", tc.Tenant().ID,
		"plan_id", planID,
		"paid_through", paidThrough,
	)
	if s.audit != nil {
		_ = s.audit.LogSecurityEvent(ctx, auditmodels.EventSubscriptionActivated, "subscription", map[string]any{
			"id":           sub.ID.String(),
			"plan_id":      planID.String(),
			"paid_through": paidThrough,
		})
	}
	return sub, nil
}

// FailPayment records a failed payment. Entitlements are left untouched; the
// subscription lapses on its own when EndsAt passes.
func (s *Service) FailPayment(ctx context.Context, planID uuid.UUID, reason string) error {
	tc, ok := tenancy.FromContext(ctx)
	if !ok {
		return dErrors.New(dErrors.CodeInvalidInput, "payment requires an active tenant context")
	}

	s.logger.WarnContext(ctx, "payment failed",
		"tenant_id", tc.Tenant().ID,
		"plan_id", planID,
		"reason", reason,
	)
	if s.audit != nil {
		return s.audit.LogSecurityEvent(ctx, auditmodels.EventPaymentFailed, "subscription", map[string]any{
			"plan_id": planID.String(),
			"reason":  reason,
		})
	}
	return nil
}
