// Package httptransport is the thin HTTP layer. Handlers delegate to domain
// services without embedding business logic; the tenant context middleware is
// the only place a tenant becomes active.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bedrock/internal/platform/metrics"
	"bedrock/internal/platform/middleware"
	"bedrock/internal/tenancy"
)

// Deps bundles everything the router needs.
type Deps struct {
	Manager      *tenancy.Manager
	Tenants      *TenantHandler
	Users        *UserHandler
	Roles        *RoleHandler
	Entitlements *EntitlementHandler
	Billing      *BillingHandler
	Audit        *AuditHandler
	Metrics      *metrics.Metrics
	JWTKey       []byte
	Logger       *slog.Logger
	Health       func(*http.Request) error
}

// NewRouter wires all endpoints with the middleware stack. Central endpoints
// operate on the shared store; everything mounted under /t/{tenantID} runs
// inside a tenant context that is initialized and ended per request.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if d.Health != nil {
			if err := d.Health(req); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Central scope: tenant lifecycle, plan catalog, operator audit trail.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(d.JWTKey, d.Logger))
		d.Tenants.Register(r)
		d.Entitlements.RegisterCentral(r)
		d.Audit.RegisterCentral(r)
	})

	// Tenant scope: every request below initializes the tenant context and
	// ends it when the response is written. Lives under /t/ to keep the
	// runtime surface separate from the lifecycle endpoints above.
	r.Route("/t/{tenantID}", func(r chi.Router) {
		r.Use(middleware.Authenticate(d.JWTKey, d.Logger))
		r.Use(TenantContext(d.Manager))
		d.Users.Register(r)
		d.Roles.Register(r)
		d.Entitlements.RegisterTenant(r)
		d.Billing.Register(r)
		d.Audit.RegisterTenant(r)
	})

	return r
}
