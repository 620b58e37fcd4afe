package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	entmodels "bedrock/internal/entitlement/models"
	jsonutil "bedrock/internal/transport/http/json"
	dErrors "bedrock/pkg/domain-errors"
)

// EntitlementService is the feature resolution surface the transport layer
// needs.
type EntitlementService interface {
	HasFeature(ctx context.Context, code string, strict bool) (bool, error)
	GetFeatureValue(ctx context.Context, code string) (entmodels.Value, error)
	CurrentPlan(ctx context.Context) (*entmodels.Plan, error)
}

// PlanCatalog is the central plan management surface.
type PlanCatalog interface {
	Create(ctx context.Context, plan *entmodels.Plan) error
	List(ctx context.Context) ([]*entmodels.Plan, error)
}

// EntitlementHandler serves tenant-scoped feature checks and the central plan
// catalog.
type EntitlementHandler struct {
	resolver EntitlementService
	plans    PlanCatalog
	logger   *slog.Logger
}

func NewEntitlementHandler(resolver EntitlementService, plans PlanCatalog, logger *slog.Logger) *EntitlementHandler {
	return &EntitlementHandler{resolver: resolver, plans: plans, logger: logger}
}

// RegisterTenant mounts the tenant-scoped feature endpoints.
func (h *EntitlementHandler) RegisterTenant(r chi.Router) {
	r.Get("/features/{code}", h.handleFeature)
	r.Get("/plan", h.handleCurrentPlan)
}

// RegisterCentral mounts the central plan catalog endpoints.
func (h *EntitlementHandler) RegisterCentral(r chi.Router) {
	r.Get("/plans", h.handleListPlans)
	r.Post("/plans", h.handleCreatePlan)
}

func (h *EntitlementHandler) handleFeature(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	strict := r.URL.Query().Get("strict") == "true"

	enabled, err := h.resolver.HasFeature(r.Context(), code, strict)
	if err != nil {
		writeError(w, err)
		return
	}
	value, err := h.resolver.GetFeatureValue(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, map[string]any{
		"code":    code,
		"enabled": enabled,
		"value":   value,
	})
}

func (h *EntitlementHandler) handleCurrentPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.resolver.CurrentPlan(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if plan == nil {
		writeError(w, dErrors.New(dErrors.CodeNotFound, "no active plan"))
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, plan)
}

func (h *EntitlementHandler) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, map[string]any{"plans": plans})
}

type createPlanRequest struct {
	Slug          string              `json:"slug"`
	Name          string              `json:"name"`
	Description   string              `json:"description"`
	PriceCents    int64               `json:"price_cents"`
	BillingPeriod string              `json:"billing_period"`
	Features      []entmodels.Feature `json:"features"`
}

func (h *EntitlementHandler) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req createPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Slug == "" || req.Name == "" {
		writeError(w, dErrors.New(dErrors.CodeValidation, "slug and name are required"))
		return
	}
	plan := &entmodels.Plan{
		ID:            uuid.New(),
		Slug:          req.Slug,
		Name:          req.Name,
		Description:   req.Description,
		PriceCents:    req.PriceCents,
		BillingPeriod: req.BillingPeriod,
		Active:        true,
		Features:      req.Features,
	}
	if err := h.plans.Create(r.Context(), plan); err != nil {
		writeError(w, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusCreated, plan)
}
