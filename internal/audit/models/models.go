package models

import (
	"time"

	"github.com/google/uuid"
)

// StoreTag marks which store an entry was written to.
type StoreTag string

const (
	StoreTenant  StoreTag = "tenant"
	StoreCentral StoreTag = "central"
)

// Entry is one audit record. Subject and causer fields are empty strings when
// unknown; stores persist them as NULL. Central entries raised inside a tenant
// context additionally carry the originating TenantID.
type Entry struct {
	ID              uuid.UUID      `json:"id"`
	Description     string         `json:"description"`
	SubjectType     string         `json:"subject_type,omitempty"`
	SubjectID       string         `json:"subject_id,omitempty"`
	CauserType      string         `json:"causer_type,omitempty"`
	CauserID        string         `json:"causer_id,omitempty"`
	Properties      map[string]any `json:"properties"`
	IsSecurityEvent bool           `json:"is_security_event"`
	TenantID        string         `json:"tenant_id,omitempty"`
	Store           StoreTag       `json:"store"`
	CreatedAt       time.Time      `json:"created_at"`
}

// Well-known audit event names.
const (
	EventTenantCreated         = "tenant.created"
	EventTenantDeleted         = "tenant.deleted"
	EventTenantRestored        = "tenant.restored"
	EventUserCreated           = "user.created"
	EventUserUpdated           = "user.updated"
	EventUserDeleted           = "user.deleted"
	EventRolesUpdated          = "user.roles_updated"
	EventEscalationBlocked     = "rbac.escalation_blocked"
	EventSubscriptionActivated = "subscription.activated"
	EventPaymentFailed         = "payment.failed"
)
