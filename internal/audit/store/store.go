// Package store defines the audit log persistence contract and its memory and
// PostgreSQL implementations. One Store instance is bound to exactly one data
// store (a tenant's or the central one); routing between them is the audit
// service's job.
package store

import (
	"context"

	"bedrock/internal/audit/models"
)

// Store persists audit entries for a single data store.
type Store interface {
	Append(ctx context.Context, entry models.Entry) error
	ListByDescription(ctx context.Context, description string) ([]models.Entry, error)
	List(ctx context.Context) ([]models.Entry, error)
	Count(ctx context.Context) (int, error)
}
