// Package store groups the per-store persistence interfaces into a Bundle: the
// complete set of stores backed by one physical data store. The central store
// and every tenant store each get their own Bundle, so store-level isolation
// holds by construction: a query can only ever see the bundle it was handed.
package store

import (
	auditstore "bedrock/internal/audit/store"
	entstore "bedrock/internal/entitlement/store"
	identitystore "bedrock/internal/identity/store"
	rbacstore "bedrock/internal/rbac/store"
	"bedrock/pkg/platform/tx"
)

// Bundle is the set of stores backed by one physical data store, plus the
// transaction runner scoped to it.
type Bundle struct {
	Users         identitystore.Store
	Roles         rbacstore.Store
	Audit         auditstore.Store
	Plans         entstore.PlanStore
	Subscriptions entstore.SubscriptionStore
	Tx            tx.Runner
}

// NewMemoryBundle builds a fully in-memory bundle. Used for the demo
// environment and throughout the tests.
func NewMemoryBundle() *Bundle {
	return &Bundle{
		Users:         identitystore.NewInMemory(),
		Roles:         rbacstore.NewInMemory(),
		Audit:         auditstore.NewInMemory(),
		Plans:         entstore.NewInMemoryPlans(),
		Subscriptions: entstore.NewInMemorySubscriptions(),
		Tx:            tx.NewMemRunner(),
	}
}
