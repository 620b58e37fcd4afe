package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"bedrock/internal/audit/models"
	"bedrock/pkg/platform/tx"
)

// Postgres persists audit entries in a PostgreSQL audit_logs table. Writes
// join the ambient SQL transaction when one is carried in the context.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed audit store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// execer abstracts *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) conn(ctx context.Context) execer {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

func (s *Postgres) Append(ctx context.Context, entry models.Entry) error {
	props, err := json.Marshal(entry.Properties)
	if err != nil {
		// Properties are sanitized upstream; an empty bag is the safe fallback.
		props = []byte("{}")
	}
	query := `
		INSERT INTO audit_logs (id, description, subject_type, subject_id, causer_type, causer_id,
			properties, is_security_event, tenant_id, created_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8, NULLIF($9, ''), $10)
	`
	_, err = s.conn(ctx).ExecContext(ctx, query,
		entry.ID,
		entry.Description,
		entry.SubjectType,
		entry.SubjectID,
		entry.CauserType,
		entry.CauserID,
		props,
		entry.IsSecurityEvent,
		entry.TenantID,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *Postgres) ListByDescription(ctx context.Context, description string) ([]models.Entry, error) {
	query := selectEntries + ` WHERE description = $1 ORDER BY created_at`
	rows, err := s.conn(ctx).QueryContext(ctx, query, description)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only rows
	return scanEntries(rows)
}

func (s *Postgres) List(ctx context.Context) ([]models.Entry, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, selectEntries+` ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only rows
	return scanEntries(rows)
}

func (s *Postgres) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count audit entries: %w", err)
	}
	return count, nil
}

const selectEntries = `
	SELECT id, description, COALESCE(subject_type, ''), COALESCE(subject_id, ''),
		COALESCE(causer_type, ''), COALESCE(causer_id, ''), properties,
		is_security_event, COALESCE(tenant_id, ''), created_at
	FROM audit_logs
`

func scanEntries(rows *sql.Rows) ([]models.Entry, error) {
	var out []models.Entry
	for rows.Next() {
		var (
			entry models.Entry
			id    uuid.UUID
			props []byte
		)
		if err := rows.Scan(&id, &entry.Description, &entry.SubjectType, &entry.SubjectID,
			&entry.CauserType, &entry.CauserID, &props, &entry.IsSecurityEvent,
			&entry.TenantID, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.ID = id
		entry.Properties = map[string]any{}
		if len(props) > 0 {
			if err := json.Unmarshal(props, &entry.Properties); err != nil {
				return nil, fmt.Errorf("decode audit properties: %w", err)
			}
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
