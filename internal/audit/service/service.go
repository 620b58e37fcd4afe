// Package service records the audit trail. Every write is routed by the
// active tenant context: tenant-scoped calls land in the tenant's audit store,
// central calls in the central one. Security events raised inside a tenant are
// additionally mirrored to the central store so a compromised tenant cannot
// erase the evidence.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"bedrock/internal/audit/metrics"
	"bedrock/internal/audit/models"
	"bedrock/internal/store"
	"bedrock/internal/tenancy"
	"bedrock/pkg/platform/tx"
	"bedrock/pkg/requestcontext"
)

// Scope resolves which store bundle a call writes to. Satisfied by
// tenancy.Manager.
type Scope interface {
	Stores(ctx context.Context) *store.Bundle
	Central() *store.Bundle
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// Service is the audit trail recorder.
type Service struct {
	scope   Scope
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(scope Scope, opts ...Option) *Service {
	s := &Service{
		scope:  scope,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LogActivity records a routine audit entry in the store scoped to the
// current call. A nil payload still produces an entry with an empty property
// bag.
func (s *Service) LogActivity(ctx context.Context, event, subjectType string, payload map[string]any) error {
	entry := s.build(ctx, event, subjectType, payload, false)
	return s.write(ctx, s.scope.Stores(ctx), entry)
}

// LogSecurityEvent records a security-relevant entry. Inside a tenant context
// the entry is written to the tenant store and mirrored to the central store;
// the mirror is written outside any ambient transaction so it survives a
// rollback of the surrounding tenant work.
func (s *Service) LogSecurityEvent(ctx context.Context, event, subjectType string, payload map[string]any) error {
	entry := s.build(ctx, event, subjectType, payload, true)
	if s.metrics != nil {
		s.metrics.SecurityEvents.Inc()
	}

	tc, tenantScoped := tenancy.FromContext(ctx)

	var result error
	if err := s.write(ctx, s.scope.Stores(ctx), entry); err != nil {
		result = multierror.Append(result, fmt.Errorf("scoped audit write: %w", err))
	}
	if tenantScoped {
		mirror := entry
		mirror.ID = uuid.New()
		mirror.Store = models.StoreCentral
		mirror.TenantID = tc.Tenant().ID
		if err := s.write(tx.Detach(ctx), s.scope.Central(), mirror); err != nil {
			result = multierror.Append(result, fmt.Errorf("central audit mirror: %w", err))
		}
	}
	return result
}

// Trail lists the audit entries visible in the current scope.
func (s *Service) Trail(ctx context.Context) ([]models.Entry, error) {
	return s.scope.Stores(ctx).Audit.List(ctx)
}

// TrailByEvent lists scoped entries for one event name.
func (s *Service) TrailByEvent(ctx context.Context, event string) ([]models.Entry, error) {
	return s.scope.Stores(ctx).Audit.ListByDescription(ctx, event)
}

// CentralTrail lists the central audit log regardless of tenant scope. Used
// by operators reviewing security events across tenants.
func (s *Service) CentralTrail(ctx context.Context) ([]models.Entry, error) {
	return s.scope.Central().Audit.List(tx.Detach(ctx))
}

func (s *Service) build(ctx context.Context, event, subjectType string, payload map[string]any, security bool) models.Entry {
	props := models.Sanitize(payload)

	entry := models.Entry{
		ID:              uuid.New(),
		Description:     event,
		SubjectType:     subjectType,
		Properties:      props,
		IsSecurityEvent: security,
		Store:           models.StoreCentral,
		CreatedAt:       requestcontext.Now(ctx),
	}
	if tc, ok := tenancy.FromContext(ctx); ok {
		entry.Store = models.StoreTenant
		entry.TenantID = tc.Tenant().ID
	}
	if id, ok := props["id"].(string); ok {
		entry.SubjectID = id
	}
	if p, ok := requestcontext.PrincipalFrom(ctx); ok {
		entry.CauserType = p.Kind
		entry.CauserID = p.ID
	}
	return entry
}

func (s *Service) write(ctx context.Context, bundle *store.Bundle, entry models.Entry) error {
	if err := bundle.Audit.Append(ctx, entry); err != nil {
		if s.metrics != nil {
			s.metrics.WriteFailures.Inc()
		}
		s.logger.ErrorContext(ctx, "failed to persist audit entry",
			"event", entry.Description,
			"store", string(entry.Store),
			"error", err,
		)
		return err
	}
	if s.metrics != nil {
		s.metrics.EntriesWritten.WithLabelValues(string(entry.Store)).Inc()
	}
	s.logger.DebugContext(ctx, "audit entry recorded",
		"event", entry.Description,
		"store", string(entry.Store),
		"security", entry.IsSecurityEvent,
	)
	return nil
}
