// Package service manages user accounts within the active tenant. Mutations
// are audit-logged; an email change is treated as a security event and the
// authenticated principal can never delete its own account.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	auditmodels "bedrock/internal/audit/models"
	"bedrock/internal/identity/models"
	"bedrock/internal/sentinel"
	"bedrock/internal/store"
	dErrors "bedrock/pkg/domain-errors"
	"bedrock/pkg/requestcontext"
)

// Scope resolves the store bundle for the active call. Satisfied by
// tenancy.Manager.
type Scope interface {
	Stores(ctx context.Context) *store.Bundle
}

// AuditLogger records user lifecycle events.
type AuditLogger interface {
	LogActivity(ctx context.Context, event, subjectType string, payload map[string]any) error
	LogSecurityEvent(ctx context.Context, event, subjectType string, payload map[string]any) error
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditLogger(audit AuditLogger) Option {
	return func(s *Service) { s.audit = audit }
}

// Service manages users in the active tenant's store.
type Service struct {
	scope  Scope
	logger *slog.Logger
	audit  AuditLogger
}

func New(scope Scope, opts ...Option) *Service {
	s := &Service{
		scope:  scope,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpdateInput carries the mutable user fields. Nil pointers leave the field
// unchanged.
type UpdateInput struct {
	Name     *string
	Email    *string
	Password *string
}

// Create registers a new user. The email must be unique among live users in
// this tenant; a soft-deleted user's email can be reused.
func (s *Service) Create(ctx context.Context, name, email, password string) (*models.User, error) {
	user, err := models.NewUser(name, email, password, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.scope.Stores(ctx).Users.CreateIfEmailAvailable(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "email already in use: "+user.Email)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}

	s.logger.InfoContext(ctx, "user created", "user_id", user.ID, "email", user.Email)
	if s.audit != nil {
		_ = s.audit.LogActivity(ctx, auditmodels.EventUserCreated, "user", map[string]any{
			"id":    user.ID.String(),
			"email": user.Email,
		})
	}
	return user, nil
}

// Update applies the given field changes. Changing the email address is
// recorded as a security event so the old address is preserved centrally.
func (s *Service) Update(ctx context.Context, userID uuid.UUID, input UpdateInput) (*models.User, error) {
	users := s.scope.Stores(ctx).Users
	user, err := users.FindByID(ctx, userID)
	if err != nil {
		return nil, s.notFoundOr(err, "failed to load user")
	}

	previousEmail := user.Email
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "user name cannot be empty")
		}
		user.Name = name
	}
	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if email == "" || !strings.Contains(email, "@") {
			return nil, dErrors.New(dErrors.CodeValidation, "a valid email is required")
		}
		user.Email = email
	}
	if input.Password != nil {
		rehashed, err := models.NewUser(user.Name, user.Email, *input.Password, requestcontext.Now(ctx))
		if err != nil {
			return nil, err
		}
		user.PasswordHash = rehashed.PasswordHash
	}
	user.UpdatedAt = requestcontext.Now(ctx)

	if err := users.Update(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "email already in use: "+user.Email)
		}
		return nil, s.notFoundOr(err, "failed to update user")
	}

	if s.audit != nil {
		payload := map[string]any{"id": user.ID.String()}
		if user.Email != previousEmail {
			payload["previous_email"] = previousEmail
			payload["email"] = user.Email
			_ = s.audit.LogSecurityEvent(ctx, auditmodels.EventUserUpdated, "user", payload)
		} else {
			_ = s.audit.LogActivity(ctx, auditmodels.EventUserUpdated, "user", payload)
		}
	}
	return user, nil
}

// Delete soft-deletes a user. A principal deleting its own account is
// blocked.
func (s *Service) Delete(ctx context.Context, userID uuid.UUID) error {
	if p, ok := requestcontext.PrincipalFrom(ctx); ok && p.ID == userID.String() {
		if s.audit != nil {
			_ = s.audit.LogSecurityEvent(ctx, auditmodels.EventUserDeleted, "user", map[string]any{
				"id":      userID.String(),
				"blocked": true,
				"reason":  "self_deletion",
			})
		}
		return dErrors.New(dErrors.CodeSelfDeletionForbidden, "cannot delete own account")
	}

	users := s.scope.Stores(ctx).Users
	user, err := users.FindByID(ctx, userID)
	if err != nil {
		return s.notFoundOr(err, "failed to load user")
	}

	user.SoftDelete(requestcontext.Now(ctx))
	if err := users.Update(ctx, user); err != nil {
		return s.notFoundOr(err, "failed to delete user")
	}

	s.logger.InfoContext(ctx, "user deleted", "user_id", userID)
	if s.audit != nil {
		_ = s.audit.LogActivity(ctx, auditmodels.EventUserDeleted, "user", map[string]any{
			"id": userID.String(),
		})
	}
	return nil
}

// Get returns a live user by ID.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.scope.Stores(ctx).Users.FindByID(ctx, userID)
	if err != nil {
		return nil, s.notFoundOr(err, "failed to load user")
	}
	return user, nil
}

// FindByEmail returns the live user with the given email.
func (s *Service) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.scope.Stores(ctx).Users.FindByEmail(ctx, email)
	if err != nil {
		return nil, s.notFoundOr(err, "failed to load user")
	}
	return user, nil
}

// List returns all live users in the active tenant.
func (s *Service) List(ctx context.Context) ([]*models.User, error) {
	users, err := s.scope.Stores(ctx).Users.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list users")
	}
	return users, nil
}

// Authenticate verifies credentials and returns the matching user.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	if !user.CheckPassword(password) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	return user, nil
}

func (s *Service) notFoundOr(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
