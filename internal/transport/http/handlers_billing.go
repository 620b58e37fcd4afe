package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	entmodels "bedrock/internal/entitlement/models"
	jsonutil "bedrock/internal/transport/http/json"
	dErrors "bedrock/pkg/domain-errors"
)

// BillingService applies payment outcomes to the active tenant.
type BillingService interface {
	RecordPayment(ctx context.Context, planID uuid.UUID, paidThrough time.Time) (*entmodels.Subscription, error)
	FailPayment(ctx context.Context, planID uuid.UUID, reason string) error
}

// BillingHandler serves tenant-scoped payment notifications.
type BillingHandler struct {
	billing BillingService
	logger  *slog.Logger
}

func NewBillingHandler(billing BillingService, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{billing: billing, logger: logger}
}

func (h *BillingHandler) Register(r chi.Router) {
	r.Post("/billing/payments", h.handlePayment)
}

type paymentRequest struct {
	PlanID      uuid.UUID `json:"plan_id"`
	Status      string    `json:"status"`
	PaidThrough time.Time `json:"paid_through"`
	Reason      string    `json:"reason"`
}

func (h *BillingHandler) handlePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	switch req.Status {
	case "succeeded":
		if req.PaidThrough.IsZero() {
			writeError(w, dErrors.New(dErrors.CodeValidation, "paid_through is required"))
			return
		}
		sub, err := h.billing.RecordPayment(r.Context(), req.PlanID, req.PaidThrough)
		if err != nil {
			writeError(w, err)
			return
		}
		jsonutil.WriteJSON(w, http.StatusOK, sub)
	case "failed":
		if err := h.billing.FailPayment(r.Context(), req.PlanID, req.Reason); err != nil {
			writeError(w, err)
			return
		}
		jsonutil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
	default:
		writeError(w, dErrors.New(dErrors.CodeValidation, "status must be succeeded or failed"))
	}
}
