package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	auditservice "bedrock/internal/audit/service"
	"bedrock/internal/platform/config"
	"bedrock/internal/store"
	"bedrock/internal/tenancy"
	"bedrock/internal/tenancy/registry"
	"bedrock/internal/tenancy/router"
)

// Env is a fully wired in-memory tenancy engine for tests. Metrics are left
// unset: the promauto collectors register globally and would collide across
// test packages.
type Env struct {
	Registry *registry.Service
	Router   *router.Router
	Manager  *tenancy.Manager
	Audit    *auditservice.Service
	Central  *store.Bundle
	Clock    *clock.Mock
}

// NewEnv builds an in-memory environment with a mock clock driving the
// router.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	return NewEnvWithConfig(t, config.DefaultHandles())
}

// NewEnvWithConfig builds the environment with explicit handle-pool settings.
func NewEnvWithConfig(t *testing.T, handles config.Handles) *Env {
	t.Helper()

	mock := clock.NewMock()
	central := store.NewMemoryBundle()

	reg := registry.NewService(registry.NewInMemory())
	rt := router.New(reg, router.MemoryOpener(), handles, router.WithClock(mock))
	manager := tenancy.NewManager(rt, central)
	reg.SetInvalidator(rt)

	audit := auditservice.New(manager)
	reg.SetAuditLogger(audit)

	return &Env{
		Registry: reg,
		Router:   rt,
		Manager:  manager,
		Audit:    audit,
		Central:  central,
		Clock:    mock,
	}
}

// MustCreateTenant registers a tenant or fails the test.
func (e *Env) MustCreateTenant(t *testing.T, tenantID, name string) {
	t.Helper()
	if _, err := e.Registry.Create(context.Background(), tenantID, name); err != nil {
		t.Fatalf("failed to create tenant %s: %v", tenantID, err)
	}
}

// Run executes fn inside an initialized tenant context.
func (e *Env) Run(t *testing.T, tenantID string, fn func(ctx context.Context)) {
	t.Helper()
	err := e.Manager.Run(context.Background(), tenantID, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
	if err != nil {
		t.Fatalf("tenant run failed for %s: %v", tenantID, err)
	}
}

// Advance moves the mock clock forward.
func (e *Env) Advance(d time.Duration) {
	e.Clock.Add(d)
}
