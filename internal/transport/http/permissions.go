package httptransport

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"bedrock/internal/platform/metrics"
	dErrors "bedrock/pkg/domain-errors"
	"bedrock/pkg/requestcontext"
)

// PermissionChecker answers whether a user holds a permission in the active
// tenant. Satisfied by the rbac Guard.
type PermissionChecker interface {
	HasPermission(ctx context.Context, userID uuid.UUID, permission string) (bool, error)
}

// PermissionMiddleware gates routes on the authenticated principal's
// permissions within the active tenant.
type PermissionMiddleware struct {
	guard   PermissionChecker
	metrics *metrics.Metrics
}

func NewPermissionMiddleware(guard PermissionChecker, m *metrics.Metrics) *PermissionMiddleware {
	return &PermissionMiddleware{guard: guard, metrics: m}
}

// Require rejects the request with PermissionDenied unless the principal
// holds the named permission.
func (pm *PermissionMiddleware) Require(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := requestcontext.PrincipalFrom(r.Context())
			if !ok {
				writeError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
				return
			}
			userID, err := uuid.Parse(principal.ID)
			if err != nil {
				writeError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid principal"))
				return
			}

			allowed, err := pm.guard.HasPermission(r.Context(), userID, permission)
			if err != nil {
				writeError(w, err)
				return
			}
			if !allowed {
				if pm.metrics != nil {
					pm.metrics.IncrementPermissionDenials()
				}
				writeError(w, dErrors.New(dErrors.CodePermissionDenied, "missing permission: "+permission))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
