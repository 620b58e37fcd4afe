package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"bedrock/internal/entitlement/models"
	"bedrock/internal/sentinel"
	"bedrock/pkg/platform/tx"
)

// PostgresPlans persists plans in a tenant's PostgreSQL store.
type PostgresPlans struct {
	db *sql.DB
}

// NewPostgresPlans constructs a PostgreSQL-backed plan store.
func NewPostgresPlans(db *sql.DB) *PostgresPlans {
	return &PostgresPlans{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func conn(ctx context.Context, db *sql.DB) execer {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return db
}

func (s *PostgresPlans) Create(ctx context.Context, plan *models.Plan) error {
	c := conn(ctx, s.db)
	_, err := c.ExecContext(ctx, `
		INSERT INTO plans (id, slug, name, description, price_cents, billing_period, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, plan.ID, plan.Slug, plan.Name, plan.Description, plan.PriceCents, plan.BillingPeriod, plan.Active, plan.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("plan slug must be unique: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create plan: %w", err)
	}
	for i, f := range plan.Features {
		_, err := c.ExecContext(ctx, `
			INSERT INTO plan_features (plan_id, position, code, value_kind, value_text, description)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, plan.ID, i, f.Code, f.Value.Kind(), f.Value.Text(), f.Description)
		if err != nil {
			return fmt.Errorf("create plan feature %q: %w", f.Code, err)
		}
	}
	return nil
}

func (s *PostgresPlans) FindByID(ctx context.Context, planID uuid.UUID) (*models.Plan, error) {
	return s.findPlan(ctx, `WHERE id = $1`, planID)
}

func (s *PostgresPlans) FindBySlug(ctx context.Context, slug string) (*models.Plan, error) {
	return s.findPlan(ctx, `WHERE lower(slug) = lower($1)`, slug)
}

func (s *PostgresPlans) findPlan(ctx context.Context, where string, arg any) (*models.Plan, error) {
	c := conn(ctx, s.db)
	plan := &models.Plan{}
	err := c.QueryRowContext(ctx, `
		SELECT id, slug, name, description, price_cents, billing_period, active, created_at
		FROM plans `+where, arg,
	).Scan(&plan.ID, &plan.Slug, &plan.Name, &plan.Description, &plan.PriceCents,
		&plan.BillingPeriod, &plan.Active, &plan.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find plan: %w", err)
	}
	if err := s.loadFeatures(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *PostgresPlans) loadFeatures(ctx context.Context, plan *models.Plan) error {
	rows, err := conn(ctx, s.db).QueryContext(ctx, `
		SELECT code, value_kind, value_text, description
		FROM plan_features WHERE plan_id = $1 ORDER BY position
	`, plan.ID)
	if err != nil {
		return fmt.Errorf("load plan features: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only rows
	for rows.Next() {
		var f models.Feature
		var kind, text string
		if err := rows.Scan(&f.Code, &kind, &text, &f.Description); err != nil {
			return fmt.Errorf("scan plan feature: %w", err)
		}
		f.Value = models.ParseValue(kind, text)
		plan.Features = append(plan.Features, f)
	}
	return rows.Err()
}

func (s *PostgresPlans) List(ctx context.Context) ([]*models.Plan, error) {
	rows, err := conn(ctx, s.db).QueryContext(ctx, `
		SELECT id, slug, name, description, price_cents, billing_period, active, created_at
		FROM plans ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only rows

	var out []*models.Plan
	for rows.Next() {
		plan := &models.Plan{}
		if err := rows.Scan(&plan.ID, &plan.Slug, &plan.Name, &plan.Description,
			&plan.PriceCents, &plan.BillingPeriod, &plan.Active, &plan.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		out = append(out, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, plan := range out {
		if err := s.loadFeatures(ctx, plan); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// PostgresSubscriptions persists subscriptions in a tenant's PostgreSQL store.
type PostgresSubscriptions struct {
	db *sql.DB
}

// NewPostgresSubscriptions constructs a PostgreSQL-backed subscription store.
func NewPostgresSubscriptions(db *sql.DB) *PostgresSubscriptions {
	return &PostgresSubscriptions{db: db}
}

func (s *PostgresSubscriptions) Create(ctx context.Context, sub *models.Subscription) error {
	_, err := conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO subscriptions (id, tenant_id, plan_id, status, trial_ends_at, ends_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, sub.ID, sub.TenantID, sub.PlanID, string(sub.Status), sub.TrialEndsAt, sub.EndsAt, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

func (s *PostgresSubscriptions) Update(ctx context.Context, sub *models.Subscription) error {
	res, err := conn(ctx, s.db).ExecContext(ctx, `
		UPDATE subscriptions
		SET plan_id = $2, status = $3, trial_ends_at = $4, ends_at = $5, updated_at = $6
		WHERE id = $1
	`, sub.ID, sub.PlanID, string(sub.Status), sub.TrialEndsAt, sub.EndsAt, sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update subscription rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresSubscriptions) Latest(ctx context.Context) (*models.Subscription, error) {
	sub := &models.Subscription{}
	err := conn(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, tenant_id, plan_id, status, trial_ends_at, ends_at, created_at, updated_at
		FROM subscriptions ORDER BY created_at DESC LIMIT 1
	`).Scan(&sub.ID, &sub.TenantID, &sub.PlanID, &sub.Status, &sub.TrialEndsAt,
		&sub.EndsAt, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("latest subscription: %w", err)
	}
	return sub, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
