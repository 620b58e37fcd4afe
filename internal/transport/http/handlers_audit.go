package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	auditmodels "bedrock/internal/audit/models"
	jsonutil "bedrock/internal/transport/http/json"
)

// AuditService exposes the audit trail for review.
type AuditService interface {
	Trail(ctx context.Context) ([]auditmodels.Entry, error)
	TrailByEvent(ctx context.Context, event string) ([]auditmodels.Entry, error)
	CentralTrail(ctx context.Context) ([]auditmodels.Entry, error)
}

// AuditHandler serves the audit trail endpoints: the scoped trail inside a
// tenant subtree and the cross-tenant central trail for operators.
type AuditHandler struct {
	audit  AuditService
	logger *slog.Logger
}

func NewAuditHandler(audit AuditService, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{audit: audit, logger: logger}
}

// RegisterTenant mounts the tenant-scoped trail.
func (h *AuditHandler) RegisterTenant(r chi.Router) {
	r.Get("/audit", h.handleTrail)
}

// RegisterCentral mounts the operator trail.
func (h *AuditHandler) RegisterCentral(r chi.Router) {
	r.Get("/audit", h.handleCentralTrail)
}

func (h *AuditHandler) handleTrail(w http.ResponseWriter, r *http.Request) {
	var (
		entries []auditmodels.Entry
		err     error
	)
	if event := r.URL.Query().Get("event"); event != "" {
		entries, err = h.audit.TrailByEvent(r.Context(), event)
	} else {
		entries, err = h.audit.Trail(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *AuditHandler) handleCentralTrail(w http.ResponseWriter, r *http.Request) {
	entries, err := h.audit.CentralTrail(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
