package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"bedrock/internal/sentinel"
	"bedrock/internal/tenancy/models"
)

// Postgres persists tenant records in the central PostgreSQL store.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed tenant registry store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) CreateIfAvailable(ctx context.Context, t *models.Tenant) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, name, status, plan_id, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, t.ID, t.Name, string(t.Status), t.PlanID, t.CreatedAt, t.UpdatedAt, t.DeletedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("tenant id and name must be unique: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

func (s *Postgres) Update(ctx context.Context, t *models.Tenant) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tenants
		SET name = $2, status = $3, plan_id = $4, updated_at = $5, deleted_at = $6
		WHERE id = $1
	`, t.ID, t.Name, string(t.Status), t.PlanID, t.UpdatedAt, t.DeletedAt)
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update tenant rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

const selectTenants = `
	SELECT id, name, status, plan_id, created_at, updated_at, deleted_at
	FROM tenants
`

func (s *Postgres) FindByID(ctx context.Context, tenantID string) (*models.Tenant, error) {
	return scanOne(s.db.QueryRowContext(ctx, selectTenants+`WHERE id = $1`, tenantID))
}

func (s *Postgres) FindByName(ctx context.Context, name string) (*models.Tenant, error) {
	return scanOne(s.db.QueryRowContext(ctx, selectTenants+`WHERE lower(name) = lower($1)`, name))
}

func (s *Postgres) List(ctx context.Context) ([]*models.Tenant, error) {
	rows, err := s.db.QueryContext(ctx, selectTenants+`ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only rows

	var out []*models.Tenant
	for rows.Next() {
		t := &models.Tenant{}
		var status string
		if err := rows.Scan(&t.ID, &t.Name, &status, &t.PlanID,
			&t.CreatedAt, &t.UpdatedAt, &t.DeletedAt); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		t.Status = models.TenantStatus(status)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Postgres) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tenants`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count tenants: %w", err)
	}
	return count, nil
}

func scanOne(row *sql.Row) (*models.Tenant, error) {
	t := &models.Tenant{}
	var status string
	err := row.Scan(&t.ID, &t.Name, &status, &t.PlanID, &t.CreatedAt, &t.UpdatedAt, &t.DeletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find tenant: %w", err)
	}
	t.Status = models.TenantStatus(status)
	return t, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
