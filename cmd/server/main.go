package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	auditmetrics "bedrock/internal/audit/metrics"
	auditservice "bedrock/internal/audit/service"
	billingservice "bedrock/internal/billing/service"
	entservice "bedrock/internal/entitlement/service"
	identityservice "bedrock/internal/identity/service"
	"bedrock/internal/platform/config"
	"bedrock/internal/platform/database"
	"bedrock/internal/platform/logger"
	platformmetrics "bedrock/internal/platform/metrics"
	rbacservice "bedrock/internal/rbac/service"
	"bedrock/internal/seeder"
	"bedrock/internal/store"
	"bedrock/internal/tenancy"
	tenancymetrics "bedrock/internal/tenancy/metrics"
	"bedrock/internal/tenancy/registry"
	"bedrock/internal/tenancy/router"
	"bedrock/internal/tenancy/tracer"
	httptransport "bedrock/internal/transport/http"
	"bedrock/migrations"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal service
// packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing bedrock",
		"addr", cfg.Addr,
		"postgres", cfg.DatabaseURL != "",
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	tMetrics := tenancymetrics.New()
	aMetrics := auditmetrics.New()
	hMetrics := platformmetrics.New()

	// Storage: PostgreSQL when configured, in-memory demo stores otherwise.
	var (
		central      *store.Bundle
		registryStor registry.Store
		opener       router.Opener
		health       func(*http.Request) error
	)
	if cfg.DatabaseURL != "" {
		dbCfg := database.DefaultConfig()
		dbCfg.URL = cfg.DatabaseURL
		pool, err := database.New(dbCfg)
		if err != nil {
			log.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close() //nolint:errcheck // shutdown path

		schema, err := migrations.Central()
		if err == nil {
			err = migrations.Apply(ctx, pool.DB(), schema)
		}
		if err != nil {
			log.Error("failed to migrate central store", "error", err)
			os.Exit(1)
		}

		central = database.CentralBundle(pool.DB())
		registryStor = registry.NewPostgres(pool.DB())
		opener = database.NewTenantOpener(pool, dbCfg, "tenant_")
		health = func(r *http.Request) error { return pool.Health(r.Context()) }
	} else {
		central = store.NewMemoryBundle()
		registryStor = registry.NewInMemory()
		opener = router.MemoryOpener()
	}

	reg := registry.NewService(registryStor,
		registry.WithLogger(log),
		registry.WithMetrics(tMetrics),
	)
	rt := router.New(reg, opener, cfg.Handles,
		router.WithLogger(log),
		router.WithMetrics(tMetrics),
	)
	rt.StartSweeper(ctx)

	manager := tenancy.NewManager(rt, central,
		tenancy.WithLogger(log),
		tenancy.WithMetrics(tMetrics),
		tenancy.WithTracer(tracer.NewOTel()),
	)
	reg.SetInvalidator(rt)

	audit := auditservice.New(manager,
		auditservice.WithLogger(log),
		auditservice.WithMetrics(aMetrics),
	)
	reg.SetAuditLogger(audit)

	users := identityservice.New(manager,
		identityservice.WithLogger(log),
		identityservice.WithAuditLogger(audit),
	)
	guard := rbacservice.NewGuard(manager,
		rbacservice.WithLogger(log),
		rbacservice.WithAuditLogger(audit),
	)
	resolver := entservice.NewResolver(manager, entservice.WithLogger(log))
	billing := billingservice.New(manager,
		billingservice.WithLogger(log),
		billingservice.WithAuditLogger(audit),
	)

	if cfg.DatabaseURL == "" {
		if err := seeder.New(reg, manager, users, guard, log).SeedAll(ctx); err != nil {
			log.Error("failed to seed demo data", "error", err)
			os.Exit(1)
		}
	}

	perm := httptransport.NewPermissionMiddleware(guard, hMetrics)
	handler := httptransport.NewRouter(httptransport.Deps{
		Manager:      manager,
		Tenants:      httptransport.NewTenantHandler(reg, log),
		Users:        httptransport.NewUserHandler(users, perm, log),
		Roles:        httptransport.NewRoleHandler(guard, perm, log),
		Entitlements: httptransport.NewEntitlementHandler(resolver, central.Plans, log),
		Billing:      httptransport.NewBillingHandler(billing, log),
		Audit:        httptransport.NewAuditHandler(audit, log),
		Metrics:      hMetrics,
		JWTKey:       []byte(cfg.JWTSigningKey),
		Logger:       log,
		Health:       health,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info("starting http server", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
