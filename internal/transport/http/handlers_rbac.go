package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	rbacmodels "bedrock/internal/rbac/models"
	jsonutil "bedrock/internal/transport/http/json"
	dErrors "bedrock/pkg/domain-errors"
	"bedrock/pkg/requestcontext"
)

// RoleService is the role management surface the transport layer needs.
type RoleService interface {
	ListRoles(ctx context.Context) ([]*rbacmodels.Role, error)
	RolesOf(ctx context.Context, userID uuid.UUID) ([]*rbacmodels.Role, error)
	CreateRole(ctx context.Context, role *rbacmodels.Role) error
	AssignRoles(ctx context.Context, actorID, targetID uuid.UUID, roleIDs []uuid.UUID) error
}

// RoleHandler serves tenant-scoped role endpoints.
type RoleHandler struct {
	roles  RoleService
	perm   *PermissionMiddleware
	logger *slog.Logger
}

func NewRoleHandler(roles RoleService, perm *PermissionMiddleware, logger *slog.Logger) *RoleHandler {
	return &RoleHandler{roles: roles, perm: perm, logger: logger}
}

func (h *RoleHandler) Register(r chi.Router) {
	r.With(h.perm.Require("roles.manage")).Get("/roles", h.handleList)
	r.With(h.perm.Require("roles.manage")).Post("/roles", h.handleCreate)
	r.With(h.perm.Require("roles.manage")).Get("/users/{userID}/roles", h.handleRolesOf)
	// Assignment is guarded by the escalation rule in the service, not by a
	// permission alone.
	r.Put("/users/{userID}/roles", h.handleAssign)
}

func (h *RoleHandler) handleList(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.ListRoles(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

type createRoleRequest struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

func (h *RoleHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	role := &rbacmodels.Role{Name: req.Name, Permissions: req.Permissions}
	if err := h.roles.CreateRole(r.Context(), role); err != nil {
		writeError(w, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusCreated, role)
}

func (h *RoleHandler) handleRolesOf(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
		return
	}
	roles, err := h.roles.RolesOf(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

type assignRolesRequest struct {
	RoleIDs []uuid.UUID `json:"role_ids"`
}

func (h *RoleHandler) handleAssign(w http.ResponseWriter, r *http.Request) {
	targetID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
		return
	}
	principal, ok := requestcontext.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	actorID, err := uuid.Parse(principal.ID)
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid principal"))
		return
	}

	var req assignRolesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.roles.AssignRoles(r.Context(), actorID, targetID, req.RoleIDs); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
