package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"bedrock/internal/rbac/models"
	"bedrock/internal/sentinel"
	"bedrock/pkg/platform/tx"
)

// Postgres persists roles and permissions in a tenant's PostgreSQL store.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed RBAC store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

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

func (s *Postgres) CreatePermission(ctx context.Context, p *models.Permission) error {
	_, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO permissions (id, name, created_at) VALUES ($1, $2, $3)`,
		p.ID, p.Name, p.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("permission name must be unique: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create permission: %w", err)
	}
	return nil
}

func (s *Postgres) CreateRole(ctx context.Context, r *models.Role) error {
	conn := s.conn(ctx)
	_, err := conn.ExecContext(ctx,
		`INSERT INTO roles (id, name, created_at) VALUES ($1, $2, $3)`,
		r.ID, r.Name, r.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("role name must be unique: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create role: %w", err)
	}
	for _, perm := range r.Permissions {
		_, err := conn.ExecContext(ctx, `
			INSERT INTO role_permissions (role_id, permission_id)
			SELECT $1, id FROM permissions WHERE name = $2
		`, r.ID, perm)
		if err != nil {
			return fmt.Errorf("attach permission %q: %w", perm, err)
		}
	}
	return nil
}

func (s *Postgres) FindRole(ctx context.Context, roleID uuid.UUID) (*models.Role, error) {
	return s.findRole(ctx, `WHERE r.id = $1`, roleID)
}

func (s *Postgres) FindRoleByName(ctx context.Context, name string) (*models.Role, error) {
	return s.findRole(ctx, `WHERE lower(r.name) = lower($1)`, name)
}

func (s *Postgres) findRole(ctx context.Context, where string, arg any) (*models.Role, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, selectRoles+where, arg)
	if err != nil {
		return nil, fmt.Errorf("find role: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only rows
	roles, err := scanRoles(rows)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return roles[0], nil
}

func (s *Postgres) ListRoles(ctx context.Context) ([]*models.Role, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, selectRoles)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only rows
	return scanRoles(rows)
}

func (s *Postgres) ListPermissions(ctx context.Context) ([]*models.Permission, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT id, name, created_at FROM permissions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only rows
	var out []*models.Permission
	for rows.Next() {
		p := &models.Permission{}
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Postgres) ReplaceUserRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) error {
	conn := s.conn(ctx)
	for _, roleID := range roleIDs {
		var exists bool
		if err := conn.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM roles WHERE id = $1)`, roleID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("validate role: %w", err)
		}
		if !exists {
			return fmt.Errorf("role %s: %w", roleID, sentinel.ErrNotFound)
		}
	}
	if _, err := conn.ExecContext(ctx,
		`DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear user roles: %w", err)
	}
	for _, roleID := range roleIDs {
		if _, err := conn.ExecContext(ctx,
			`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`, userID, roleID); err != nil {
			return fmt.Errorf("assign role: %w", err)
		}
	}
	return nil
}

func (s *Postgres) RolesForUser(ctx context.Context, userID uuid.UUID) ([]*models.Role, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		selectRoles+`JOIN user_roles ur ON ur.role_id = r.id WHERE ur.user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("roles for user: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only rows
	return scanRoles(rows)
}

const selectRoles = `
	SELECT r.id, r.name, r.created_at,
		COALESCE(array_agg(p.name) FILTER (WHERE p.name IS NOT NULL), '{}')
	FROM roles r
	LEFT JOIN role_permissions rp ON rp.role_id = r.id
	LEFT JOIN permissions p ON p.id = rp.permission_id
	GROUP BY r.id, r.name, r.created_at
`

func scanRoles(rows *sql.Rows) ([]*models.Role, error) {
	var out []*models.Role
	for rows.Next() {
		r := &models.Role{}
		var perms []byte
		if err := rows.Scan(&r.ID, &r.Name, &r.CreatedAt, &perms); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		r.Permissions = parseTextArray(perms)
		out = append(out, r)
	}
	return out, rows.Err()
}

// parseTextArray decodes a simple Postgres text[] literal ({a,b,c}).
func parseTextArray(raw []byte) []string {
	s := string(raw)
	if len(s) < 2 || s == "{}" {
		return nil
	}
	s = s[1 : len(s)-1]
	var out []string
	for _, part := range splitArray(s) {
		if part != "" && part != "NULL" {
			out = append(out, trimQuotes(part))
		}
	}
	return out
}

func splitArray(s string) []string {
	var parts []string
	var cur []byte
	inQuotes := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
			cur = append(cur, c)
		case c == ',' && !inQuotes:
			parts = append(parts, string(cur))
			cur = cur[:0]
		default:
			cur = append(cur, c)
		}
	}
	return append(parts, string(cur))
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
