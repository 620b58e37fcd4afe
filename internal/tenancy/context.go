// Package tenancy carries the active tenant context through a logical call.
// A Context is initialized once per call, rides the context.Context, and must
// be ended when the call finishes so the underlying connection handle can be
// released. State never leaks across calls: every call gets its own Context.
package tenancy

import (
	"context"
	"log/slog"

	"bedrock/internal/store"
	tenancymetrics "bedrock/internal/tenancy/metrics"
	"bedrock/internal/tenancy/models"
	"bedrock/internal/tenancy/router"
	"bedrock/internal/tenancy/tracer"
	dErrors "bedrock/pkg/domain-errors"
)

type ctxKey struct{}

// WithContext stashes the tenant context in ctx so downstream services can
// route their reads and writes to the right store.
func WithContext(ctx context.Context, tc *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// FromContext extracts the tenant context, if any. A missing or inactive
// context means the call is operating in central scope.
func FromContext(ctx context.Context) (*Context, bool) {
	tc, ok := ctx.Value(ctxKey{}).(*Context)
	if !ok || tc == nil || !tc.active {
		return nil, false
	}
	return tc, true
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func WithMetrics(metrics *tenancymetrics.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

func WithTracer(t tracer.Tracer) Option {
	return func(m *Manager) { m.tracer = t }
}

// Manager creates tenant contexts. It holds the pieces every context needs:
// the router for handle resolution and the central store bundle used when no
// tenant context is active.
type Manager struct {
	router  *router.Router
	central *store.Bundle
	logger  *slog.Logger
	metrics *tenancymetrics.Metrics
	tracer  tracer.Tracer
}

// NewManager creates a tenant context manager.
func NewManager(r *router.Router, central *store.Bundle, opts ...Option) *Manager {
	m := &Manager{
		router:  r,
		central: central,
		logger:  slog.Default(),
		tracer:  tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Central returns the central store bundle.
func (m *Manager) Central() *store.Bundle {
	return m.central
}

// NewContext returns an uninitialized tenant context scoped to one logical
// call. Contexts are not safe for concurrent use and must not be shared
// across calls.
func (m *Manager) NewContext() *Context {
	return &Context{manager: m}
}

// Run executes fn with a tenant context initialized for tenantID, ending the
// context when fn returns or panics. This is the preferred entry point for
// tenant-scoped work outside the HTTP layer.
func (m *Manager) Run(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error {
	tc := m.NewContext()
	if err := tc.Initialize(ctx, tenantID); err != nil {
		return err
	}
	defer tc.End()
	return fn(WithContext(ctx, tc))
}

// Context tracks the tenant active for one logical call.
type Context struct {
	manager *Manager
	tenant  *models.Tenant
	handle  *router.Handle
	active  bool
}

// Initialize resolves the tenant and pins its connection handle for the
// duration of the call. Initializing an already-active context is an error:
// the caller must End the current context first.
func (c *Context) Initialize(ctx context.Context, tenantID string) (err error) {
	ctx, span := c.manager.tracer.Start(ctx, tracer.SpanContextInitialize,
		tracer.String(tracer.AttrTenantID, tenantID),
	)
	defer func() { span.End(err) }()

	if c.active {
		err = dErrors.New(dErrors.CodeContextAlreadyActive,
			"tenant context already initialized for "+c.tenant.ID)
		c.fail(ctx, tenantID, err)
		return err
	}

	handle, err := c.manager.router.Resolve(ctx, tenantID)
	if err != nil {
		c.fail(ctx, tenantID, err)
		return err
	}

	// The router already validated the tenant, so a failed lookup here only
	// degrades the cached record to its identifier.
	tenant, lookupErr := c.manager.router.LookupTenant(ctx, tenantID)
	if lookupErr != nil {
		tenant = &models.Tenant{ID: tenantID}
	}
	c.tenant = tenant
	c.handle = handle
	c.active = true
	if c.manager.metrics != nil {
		c.manager.metrics.ContextsInitialized.Inc()
	}
	c.manager.logger.DebugContext(ctx, "tenant context initialized", "tenant_id", tenantID)
	return nil
}

func (c *Context) fail(ctx context.Context, tenantID string, err error) {
	if c.manager.metrics != nil {
		c.manager.metrics.ContextFailures.WithLabelValues(string(dErrors.CodeOf(err))).Inc()
	}
	c.manager.logger.WarnContext(ctx, "tenant context initialization failed",
		"tenant_id", tenantID,
		"error", err,
	)
}

// End releases the connection handle and deactivates the context. End is
// idempotent: extra calls are no-ops.
func (c *Context) End() {
	if !c.active {
		return
	}
	c.active = false
	c.handle.Release()
	c.handle = nil
	c.tenant = nil
}

// Active reports whether a tenant is currently initialized.
func (c *Context) Active() bool {
	return c.active
}

// Tenant returns the active tenant, or nil when the context is not
// initialized.
func (c *Context) Tenant() *models.Tenant {
	if !c.active {
		return nil
	}
	return c.tenant
}

// Stores returns the store bundle for the active tenant, falling back to the
// central bundle when no tenant is initialized. Domain services call this
// instead of holding a store directly, which is what keeps tenant data
// isolated per call.
func (c *Context) Stores() *store.Bundle {
	if c.active {
		return c.handle.Stores()
	}
	return c.manager.central
}

// Stores resolves the store bundle for ctx: the active tenant's bundle when a
// tenant context rides the call, the central bundle otherwise.
func (m *Manager) Stores(ctx context.Context) *store.Bundle {
	if tc, ok := FromContext(ctx); ok {
		return tc.Stores()
	}
	return m.central
}
