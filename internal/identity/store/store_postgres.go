package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"bedrock/internal/identity/models"
	"bedrock/internal/sentinel"
	"bedrock/pkg/platform/tx"
)

// Postgres persists users in a tenant's PostgreSQL store.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed user store.
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

func (s *Postgres) CreateIfEmailAvailable(ctx context.Context, user *models.User) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, status, created_at, updated_at)
		VALUES ($1, $2, lower($3), $4, $5, $6, $7)
	`, user.ID, user.Name, user.Email, user.PasswordHash, string(user.Status),
		user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("email must be unique: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Postgres) Update(ctx context.Context, user *models.User) error {
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE users
		SET name = $2, email = lower($3), password_hash = $4, status = $5, updated_at = $6, deleted_at = $7
		WHERE id = $1
	`, user.ID, user.Name, user.Email, user.PasswordHash, string(user.Status),
		user.UpdatedAt, user.DeletedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("email must be unique: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("update user: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

const selectUsers = `
	SELECT id, name, email, password_hash, status, created_at, updated_at, deleted_at
	FROM users
`

func (s *Postgres) FindByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.findOne(ctx, selectUsers+`WHERE id = $1 AND deleted_at IS NULL`, userID)
}

func (s *Postgres) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, selectUsers+`WHERE email = lower($1) AND deleted_at IS NULL`, email)
}

func (s *Postgres) findOne(ctx context.Context, query string, arg any) (*models.User, error) {
	user, err := scanUser(s.conn(ctx).QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (s *Postgres) List(ctx context.Context) ([]*models.User, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		selectUsers+`WHERE deleted_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only rows

	var out []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

func (s *Postgres) Count(ctx context.Context) (int, error) {
	var count int
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE deleted_at IS NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var status string
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash,
		&status, &user.CreatedAt, &user.UpdatedAt, &user.DeletedAt); err != nil {
		return nil, err
	}
	user.Status = models.UserStatus(status)
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
