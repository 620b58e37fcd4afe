package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"bedrock/internal/tenancy"
)

// TenantContext initializes a tenant context from the {tenantID} URL
// parameter and guarantees End on every exit path, including handler panics.
// Handlers below this middleware see the tenant's store bundle through the
// context.
func TenantContext(manager *tenancy.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID := chi.URLParam(r, "tenantID")

			tc := manager.NewContext()
			if err := tc.Initialize(r.Context(), tenantID); err != nil {
				writeError(w, err)
				return
			}
			defer tc.End()

			next.ServeHTTP(w, r.WithContext(tenancy.WithContext(r.Context(), tc)))
		})
	}
}
