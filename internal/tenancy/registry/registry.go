// Package registry is the source of truth for tenant existence and lifecycle
// status, held in the central store. Every other tenancy component consults it
// before touching tenant data.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"bedrock/internal/sentinel"
	tenancymetrics "bedrock/internal/tenancy/metrics"
	"bedrock/internal/tenancy/models"
	dErrors "bedrock/pkg/domain-errors"
	"bedrock/pkg/requestcontext"
)

// Invalidator evicts a tenant's connection handle. Satisfied by the
// ConnectionRouter; wired in by main so the registry stays free of routing
// concerns.
type Invalidator interface {
	Invalidate(tenantID string)
}

// AuditLogger records registry lifecycle events. Satisfied by the audit
// service.
type AuditLogger interface {
	LogActivity(ctx context.Context, event, subjectType string, payload map[string]any) error
	LogSecurityEvent(ctx context.Context, event, subjectType string, payload map[string]any) error
}

// Service orchestrates tenant lifecycle management.
type Service struct {
	tenants     Store
	logger      *slog.Logger
	audit       AuditLogger
	invalidator Invalidator
	metrics     *tenancymetrics.Metrics
}

// Option configures the registry service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditLogger(audit AuditLogger) Option {
	return func(s *Service) { s.audit = audit }
}

func WithInvalidator(inv Invalidator) Option {
	return func(s *Service) { s.invalidator = inv }
}

func WithMetrics(m *tenancymetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a tenant registry service over the given store.
func NewService(tenants Store, opts ...Option) *Service {
	s := &Service{tenants: tenants}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetInvalidator wires the handle eviction hook after construction. The
// router depends on the registry, so main binds this side after both exist.
func (s *Service) SetInvalidator(inv Invalidator) {
	s.invalidator = inv
}

// SetAuditLogger wires the audit sink after construction, for the same
// late-binding reason as SetInvalidator.
func (s *Service) SetAuditLogger(audit AuditLogger) {
	s.audit = audit
}

// Create registers a new tenant. The identifier is caller-supplied and becomes
// the tenant's store key.
func (s *Service) Create(ctx context.Context, tenantID, name string) (*models.Tenant, error) {
	tenant, err := models.NewTenant(strings.TrimSpace(tenantID), strings.TrimSpace(name), requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.tenants.CreateIfAvailable(ctx, tenant); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "tenant id and name must be unique")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create tenant")
	}
	if s.metrics != nil {
		s.metrics.TenantsCreated.Inc()
	}
	s.emit(ctx, "tenant.created", tenant)
	return tenant, nil
}

// Get returns the tenant regardless of lifecycle status.
func (s *Service) Get(ctx context.Context, tenantID string) (*models.Tenant, error) {
	if tenantID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "tenant id is required")
	}
	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, wrapTenantErr(err)
	}
	return tenant, nil
}

// Lookup returns the tenant only if it is registered and active. This is the
// check the ConnectionRouter and context manager rely on.
func (s *Service) Lookup(ctx context.Context, tenantID string) (*models.Tenant, error) {
	tenant, err := s.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !tenant.IsActive() {
		return nil, dErrors.New(dErrors.CodeTenantInactive, "tenant has been deleted")
	}
	return tenant, nil
}

// GetByName retrieves a tenant by display name (case-insensitive).
func (s *Service) GetByName(ctx context.Context, name string) (*models.Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "tenant name is required")
	}
	tenant, err := s.tenants.FindByName(ctx, name)
	if err != nil {
		return nil, wrapTenantErr(err)
	}
	return tenant, nil
}

// List returns all tenants, including soft-deleted ones.
func (s *Service) List(ctx context.Context) ([]*models.Tenant, error) {
	tenants, err := s.tenants.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list tenants")
	}
	return tenants, nil
}

// SoftDelete marks the tenant deleted and evicts its connection handle so no
// further context can activate it.
func (s *Service) SoftDelete(ctx context.Context, tenantID string) (*models.Tenant, error) {
	tenant, err := s.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if err := tenant.SoftDelete(requestcontext.Now(ctx)); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConflict, "tenant is already deleted")
	}
	if err := s.tenants.Update(ctx, tenant); err != nil {
		return nil, wrapTenantErr(err)
	}
	if s.invalidator != nil {
		s.invalidator.Invalidate(tenant.ID)
	}
	if s.metrics != nil {
		s.metrics.TenantsDeleted.Inc()
	}
	if s.audit != nil {
		// Tenant deletion is a security event: it must stay visible centrally.
		if err := s.audit.LogSecurityEvent(ctx, "tenant.deleted", "tenant",
			map[string]any{"id": tenant.ID, "name": tenant.Name}); err != nil && s.logger != nil {
			s.logger.ErrorContext(ctx, "failed to log tenant deletion", "error", err, "tenant_id", tenant.ID)
		}
	}
	return tenant, nil
}

// Restore transitions a soft-deleted tenant back to active.
func (s *Service) Restore(ctx context.Context, tenantID string) (*models.Tenant, error) {
	tenant, err := s.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if err := tenant.Restore(requestcontext.Now(ctx)); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConflict, "tenant is already active")
	}
	if err := s.tenants.Update(ctx, tenant); err != nil {
		return nil, wrapTenantErr(err)
	}
	s.emit(ctx, "tenant.restored", tenant)
	return tenant, nil
}

// AttachPlan points the tenant at a plan. Entitlement falls back to this plan
// when the tenant carries no subscription rows.
func (s *Service) AttachPlan(ctx context.Context, tenantID string, planID *uuid.UUID) (*models.Tenant, error) {
	tenant, err := s.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	tenant.PlanID = planID
	tenant.UpdatedAt = requestcontext.Now(ctx)
	if err := s.tenants.Update(ctx, tenant); err != nil {
		return nil, wrapTenantErr(err)
	}
	return tenant, nil
}

func (s *Service) emit(ctx context.Context, event string, tenant *models.Tenant) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, event,
			"tenant_id", tenant.ID,
			"request_id", requestcontext.RequestID(ctx),
			"log_type", "audit",
		)
	}
	if s.audit == nil {
		return
	}
	err := s.audit.LogActivity(ctx, event, "tenant", map[string]any{
		"id":   tenant.ID,
		"name": tenant.Name,
	})
	if err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event", "event", event, "error", err)
	}
}

func wrapTenantErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeTenantNotFound, "tenant not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "tenant registry failure")
}
