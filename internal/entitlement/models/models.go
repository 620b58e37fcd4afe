package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Plan is a subscription tier with an ordered set of feature entries.
type Plan struct {
	ID            uuid.UUID `json:"id"`
	Slug          string    `json:"slug"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	PriceCents    int64     `json:"price_cents"`
	BillingPeriod string    `json:"billing_period"`
	Active        bool      `json:"active"`
	Features      []Feature `json:"features"`
	CreatedAt     time.Time `json:"created_at"`
}

// Feature returns the plan feature with the given code, if present.
func (p *Plan) Feature(code string) (Feature, bool) {
	for _, f := range p.Features {
		if f.Code == code {
			return f, true
		}
	}
	return Feature{}, false
}

// Feature is one entitlement entry on a plan: a code mapped to a boolean,
// integer, or string value.
type Feature struct {
	Code        string `json:"code"`
	Value       Value  `json:"value"`
	Description string `json:"description"`
}

// Value is a tagged feature value. The zero Value is absent/null.
type Value struct {
	raw any
}

func BoolValue(b bool) Value     { return Value{raw: b} }
func IntValue(i int64) Value     { return Value{raw: i} }
func StringValue(s string) Value { return Value{raw: s} }

// Raw returns the stored value, or nil for the zero Value.
func (v Value) Raw() any { return v.raw }

// IsZero reports whether no value is stored.
func (v Value) IsZero() bool { return v.raw == nil }

// Truthy coerces the value to a boolean: false, zero, empty, "false" and "0"
// are all disabled. Any other present value counts as enabled.
func (v Value) Truthy() bool {
	switch raw := v.raw.(type) {
	case nil:
		return false
	case bool:
		return raw
	case int64:
		return raw != 0
	case string:
		s := strings.ToLower(strings.TrimSpace(raw))
		return s != "" && s != "false" && s != "0"
	default:
		return true
	}
}

// MarshalJSON emits the raw value so feature matrices serialize naturally.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.raw)
}

// UnmarshalJSON accepts booleans, integers, and strings.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case float64:
		v.raw = int64(t)
	default:
		v.raw = t
	}
	return nil
}

// ParseValue converts a stored text representation back into a typed Value.
// Used by SQL stores that persist the value as text alongside a kind column.
func ParseValue(kind, text string) Value {
	switch kind {
	case "bool":
		return BoolValue(text == "true")
	case "int":
		i, _ := strconv.ParseInt(text, 10, 64)
		return IntValue(i)
	default:
		return StringValue(text)
	}
}

// Kind returns the storage kind tag for the value.
func (v Value) Kind() string {
	switch v.raw.(type) {
	case bool:
		return "bool"
	case int64:
		return "int"
	default:
		return "string"
	}
}

// Text returns the storage text representation for the value.
func (v Value) Text() string {
	switch raw := v.raw.(type) {
	case bool:
		return strconv.FormatBool(raw)
	case int64:
		return strconv.FormatInt(raw, 10)
	case string:
		return raw
	default:
		return ""
	}
}

// SubscriptionStatus enumerates subscription lifecycle states.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPaused    SubscriptionStatus = "paused"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Subscription links a tenant to a plan for a period.
type Subscription struct {
	ID          uuid.UUID          `json:"id"`
	TenantID    string             `json:"tenant_id"`
	PlanID      uuid.UUID          `json:"plan_id"`
	Status      SubscriptionStatus `json:"status"`
	TrialEndsAt *time.Time         `json:"trial_ends_at,omitempty"`
	EndsAt      *time.Time         `json:"ends_at,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// ActiveForEntitlement reports whether the subscription grants features at the
// given instant: status must be active and any end timestamp still in the
// future. Expiry is evaluated here on every call so a lapsed subscription cuts
// entitlements off without a status transition.
func (s *Subscription) ActiveForEntitlement(now time.Time) bool {
	if s == nil || s.Status != SubscriptionActive {
		return false
	}
	return s.EndsAt == nil || s.EndsAt.After(now)
}
