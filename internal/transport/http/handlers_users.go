package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	identitymodels "bedrock/internal/identity/models"
	identityservice "bedrock/internal/identity/service"
	jsonutil "bedrock/internal/transport/http/json"
	dErrors "bedrock/pkg/domain-errors"
)

// UserService is the user management surface the transport layer needs.
type UserService interface {
	Create(ctx context.Context, name, email, password string) (*identitymodels.User, error)
	Update(ctx context.Context, userID uuid.UUID, input identityservice.UpdateInput) (*identitymodels.User, error)
	Delete(ctx context.Context, userID uuid.UUID) error
	Get(ctx context.Context, userID uuid.UUID) (*identitymodels.User, error)
	List(ctx context.Context) ([]*identitymodels.User, error)
}

// UserHandler serves tenant-scoped user endpoints. It sits below the tenant
// context middleware, so the identity service resolves against the active
// tenant's store.
type UserHandler struct {
	users  UserService
	perm   *PermissionMiddleware
	logger *slog.Logger
}

func NewUserHandler(users UserService, perm *PermissionMiddleware, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, perm: perm, logger: logger}
}

func (h *UserHandler) Register(r chi.Router) {
	r.With(h.perm.Require("users.view")).Get("/users", h.handleList)
	r.With(h.perm.Require("users.view")).Get("/users/{userID}", h.handleGet)
	r.With(h.perm.Require("users.create")).Post("/users", h.handleCreate)
	r.With(h.perm.Require("users.edit")).Put("/users/{userID}", h.handleUpdate)
	r.With(h.perm.Require("users.delete")).Delete("/users/{userID}", h.handleDelete)
}

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *UserHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	user, err := h.users.Create(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusCreated, user)
}

type updateUserRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

func (h *UserHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
		return
	}
	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	user, err := h.users.Update(r.Context(), userID, identityservice.UpdateInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, user)
}

func (h *UserHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
		return
	}
	if err := h.users.Delete(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
		return
	}
	user, err := h.users.Get(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, user)
}

func (h *UserHandler) handleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, map[string]any{"users": users})
}
