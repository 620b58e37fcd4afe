package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"bedrock/internal/tenancy/models"
	jsonutil "bedrock/internal/transport/http/json"
	dErrors "bedrock/pkg/domain-errors"
)

// RegistryService is the tenant lifecycle surface the transport layer needs.
type RegistryService interface {
	Create(ctx context.Context, tenantID, name string) (*models.Tenant, error)
	Get(ctx context.Context, tenantID string) (*models.Tenant, error)
	List(ctx context.Context) ([]*models.Tenant, error)
	SoftDelete(ctx context.Context, tenantID string) (*models.Tenant, error)
	Restore(ctx context.Context, tenantID string) (*models.Tenant, error)
	AttachPlan(ctx context.Context, tenantID string, planID *uuid.UUID) (*models.Tenant, error)
}

// TenantHandler serves the central tenant lifecycle endpoints.
type TenantHandler struct {
	registry RegistryService
	logger   *slog.Logger
}

func NewTenantHandler(registry RegistryService, logger *slog.Logger) *TenantHandler {
	return &TenantHandler{registry: registry, logger: logger}
}

func (h *TenantHandler) Register(r chi.Router) {
	r.Post("/tenants", h.handleCreate)
	r.Get("/tenants", h.handleList)
	r.Get("/tenants/{tenantID}", h.handleGet)
	r.Delete("/tenants/{tenantID}", h.handleDelete)
	r.Post("/tenants/{tenantID}/restore", h.handleRestore)
	r.Put("/tenants/{tenantID}/plan", h.handleAttachPlan)
}

type createTenantRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (h *TenantHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	tenant, err := h.registry.Create(r.Context(), req.ID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusCreated, tenant)
}

func (h *TenantHandler) handleList(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.registry.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, map[string]any{"tenants": tenants})
}

func (h *TenantHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	tenant, err := h.registry.Get(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, tenant)
}

func (h *TenantHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	tenant, err := h.registry.SoftDelete(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, tenant)
}

func (h *TenantHandler) handleRestore(w http.ResponseWriter, r *http.Request) {
	tenant, err := h.registry.Restore(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, tenant)
}

type attachPlanRequest struct {
	PlanID *uuid.UUID `json:"plan_id"`
}

func (h *TenantHandler) handleAttachPlan(w http.ResponseWriter, r *http.Request) {
	var req attachPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	tenant, err := h.registry.AttachPlan(r.Context(), chi.URLParam(r, "tenantID"), req.PlanID)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, tenant)
}
