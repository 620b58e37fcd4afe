package models

import (
	"regexp"
	"time"

	"github.com/google/uuid"

	dErrors "bedrock/pkg/domain-errors"
)

// TenantStatus enumerates tenant lifecycle states.
type TenantStatus string

const (
	TenantStatusActive  TenantStatus = "active"
	TenantStatusDeleted TenantStatus = "deleted"
)

// Tenant is an isolated customer account. The ID is a caller-supplied opaque
// string, immutable after creation; it doubles as the data-store key.
type Tenant struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Status    TenantStatus `json:"status"`
	PlanID    *uuid.UUID   `json:"plan_id,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	DeletedAt *time.Time   `json:"deleted_at,omitempty"`
}

func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive && t.DeletedAt == nil
}

// SoftDelete marks the tenant deleted with a tombstone timestamp.
// Returns an error if the tenant is already deleted.
func (t *Tenant) SoftDelete(now time.Time) error {
	if !t.IsActive() {
		return dErrors.New(dErrors.CodeInvariantViolation, "tenant is already deleted")
	}
	t.Status = TenantStatusDeleted
	t.DeletedAt = &now
	t.UpdatedAt = now
	return nil
}

// Restore transitions a soft-deleted tenant back to active.
// Returns an error if the tenant is not deleted.
func (t *Tenant) Restore(now time.Time) error {
	if t.IsActive() {
		return dErrors.New(dErrors.CodeInvariantViolation, "tenant is already active")
	}
	t.Status = TenantStatusActive
	t.DeletedAt = nil
	t.UpdatedAt = now
	return nil
}

// Tenant IDs become store names, so the character set is restricted.
var tenantIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// NewTenant validates and constructs a tenant.
func NewTenant(tenantID, name string, now time.Time) (*Tenant, error) {
	if !tenantIDPattern.MatchString(tenantID) {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant id must be lowercase alphanumeric with - or _, max 63 characters")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant name must be 128 characters or less")
	}
	return &Tenant{
		ID:        tenantID,
		Name:      name,
		Status:    TenantStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
