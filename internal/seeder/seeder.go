// Package seeder populates the demo environment: plan catalog, demo tenants,
// baseline roles and permissions, and an admin user per tenant.
package seeder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	entmodels "bedrock/internal/entitlement/models"
	identityservice "bedrock/internal/identity/service"
	rbacmodels "bedrock/internal/rbac/models"
	rbacservice "bedrock/internal/rbac/service"
	"bedrock/internal/tenancy"
	"bedrock/internal/tenancy/registry"
	"bedrock/pkg/requestcontext"
)

// Seeder populates stores with demo data.
type Seeder struct {
	registry *registry.Service
	manager  *tenancy.Manager
	users    *identityservice.Service
	rbac     *rbacservice.Guard
	logger   *slog.Logger
}

// New creates a seeder over the wired services.
func New(reg *registry.Service, manager *tenancy.Manager, users *identityservice.Service, guard *rbacservice.Guard, logger *slog.Logger) *Seeder {
	return &Seeder{
		registry: reg,
		manager:  manager,
		users:    users,
		rbac:     guard,
		logger:   logger,
	}
}

// SeedAll populates the plan catalog and demo tenants.
func (s *Seeder) SeedAll(ctx context.Context) error {
	s.logger.Info("seeding demo data...")

	plans, err := s.seedPlans(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed plans: %w", err)
	}

	demoTenants := []struct {
		id   string
		name string
		plan string
	}{
		{"acme", "Acme Corporation", "premium"},
		{"globex", "Globex Industries", "basic"},
	}

	// Tenants are independent stores, so they seed in parallel.
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range demoTenants {
		t := t
		g.Go(func() error {
			if err := s.seedTenant(gctx, t.id, t.name, plans[t.plan]); err != nil {
				return fmt.Errorf("failed to seed tenant %s: %w", t.id, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.logger.Info("demo data seeded successfully",
		"plans", len(plans),
		"tenants", len(demoTenants),
	)
	return nil
}

// seedPlans writes the plan catalog to the central store and returns the
// plans by slug.
func (s *Seeder) seedPlans(ctx context.Context) (map[string]*entmodels.Plan, error) {
	now := requestcontext.Now(ctx)
	catalog := []*entmodels.Plan{
		{
			ID:            uuid.New(),
			Slug:          "basic",
			Name:          "Basic",
			Description:   "Entry tier for small teams",
			PriceCents:    900,
			BillingPeriod: "monthly",
			Active:        true,
			Features: []entmodels.Feature{
				{Code: "users", Value: entmodels.IntValue(10), Description: "Seat limit"},
				{Code: "storage", Value: entmodels.IntValue(5), Description: "Storage in GB"},
				{Code: "feature_a", Value: entmodels.BoolValue(true)},
				{Code: "feature_b", Value: entmodels.BoolValue(false)},
			},
			CreatedAt: now,
		},
		{
			ID:            uuid.New(),
			Slug:          "premium",
			Name:          "Premium",
			Description:   "Full feature set",
			PriceCents:    4900,
			BillingPeriod: "monthly",
			Active:        true,
			Features: []entmodels.Feature{
				{Code: "users", Value: entmodels.IntValue(50), Description: "Seat limit"},
				{Code: "storage", Value: entmodels.IntValue(50), Description: "Storage in GB"},
				{Code: "feature_a", Value: entmodels.BoolValue(true)},
				{Code: "feature_b", Value: entmodels.BoolValue(true)},
				{Code: "feature_c", Value: entmodels.BoolValue(true)},
			},
			CreatedAt: now,
		},
	}

	bySlug := make(map[string]*entmodels.Plan, len(catalog))
	for _, plan := range catalog {
		if err := s.manager.Central().Plans.Create(ctx, plan); err != nil {
			return nil, err
		}
		bySlug[plan.Slug] = plan
	}
	return bySlug, nil
}

// seedTenant registers the tenant, attaches its plan, and seeds its store
// with baseline roles, permissions, and an admin user.
func (s *Seeder) seedTenant(ctx context.Context, tenantID, name string, plan *entmodels.Plan) error {
	if _, err := s.registry.Create(ctx, tenantID, name); err != nil {
		return err
	}
	if _, err := s.registry.AttachPlan(ctx, tenantID, &plan.ID); err != nil {
		return err
	}

	return s.manager.Run(ctx, tenantID, func(ctx context.Context) error {
		roles, err := s.seedRoles(ctx)
		if err != nil {
			return err
		}

		admin, err := s.users.Create(ctx, "Admin", "admin@"+tenantID+".test", "change-me-now")
		if err != nil {
			return err
		}
		// Direct store write: the admin role bootstrap has no prior actor to
		// pass the escalation check.
		adminRole := roles["admin"]
		return s.manager.Stores(ctx).Roles.ReplaceUserRoles(ctx, admin.ID, []uuid.UUID{adminRole.ID})
	})
}

// Baseline permission names shared by every tenant.
var baselinePermissions = []string{
	"users.view",
	"users.create",
	"users.edit",
	"users.delete",
	"roles.manage",
	"plans.manage",
}

func (s *Seeder) seedRoles(ctx context.Context) (map[string]*rbacmodels.Role, error) {
	for _, name := range baselinePermissions {
		if err := s.rbac.CreatePermission(ctx, &rbacmodels.Permission{Name: name}); err != nil {
			return nil, err
		}
	}

	roleDefs := []struct {
		name        string
		permissions []string
	}{
		{"admin", baselinePermissions},
		{"editor", []string{"users.view", "users.create", "users.edit"}},
		{"viewer", []string{"users.view"}},
	}

	roles := make(map[string]*rbacmodels.Role, len(roleDefs))
	for _, def := range roleDefs {
		role := &rbacmodels.Role{Name: def.name, Permissions: def.permissions}
		if err := s.rbac.CreateRole(ctx, role); err != nil {
			return nil, err
		}
		roles[def.name] = role
	}
	return roles, nil
}
