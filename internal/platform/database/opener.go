package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	auditstore "bedrock/internal/audit/store"
	entstore "bedrock/internal/entitlement/store"
	identitystore "bedrock/internal/identity/store"
	rbacstore "bedrock/internal/rbac/store"
	"bedrock/internal/store"
	"bedrock/migrations"
	"bedrock/pkg/platform/tx"
)

// CentralBundle builds the store bundle over the central database.
func CentralBundle(db *sql.DB) *store.Bundle {
	return &store.Bundle{
		Users:         identitystore.NewPostgres(db),
		Roles:         rbacstore.NewPostgres(db),
		Audit:         auditstore.NewPostgres(db),
		Plans:         entstore.NewPostgresPlans(db),
		Subscriptions: entstore.NewPostgresSubscriptions(db),
		Tx:            tx.NewSQLRunner(db),
	}
}

// TenantOpener opens one PostgreSQL database per tenant, named by prefixing
// the tenant ID. The database is created and the tenant schema applied on
// first use; the router caches the resulting bundle, so the cost is paid once
// per handle lifetime.
type TenantOpener struct {
	admin  *sql.DB
	base   Config
	prefix string
}

// NewTenantOpener builds an opener over the admin pool. baseCfg.URL is the
// DSN template; its database name is replaced per tenant.
func NewTenantOpener(admin *Pool, baseCfg Config, prefix string) *TenantOpener {
	if prefix == "" {
		prefix = "tenant_"
	}
	return &TenantOpener{admin: admin.DB(), base: baseCfg, prefix: prefix}
}

// Open creates the tenant database if needed, applies the tenant schema, and
// returns a bundle of PostgreSQL stores over it.
func (o *TenantOpener) Open(ctx context.Context, tenantID string) (*store.Bundle, func() error, error) {
	dbName := o.databaseName(tenantID)
	if err := o.ensureDatabase(ctx, dbName); err != nil {
		return nil, nil, err
	}

	dsn, err := o.tenantDSN(dbName)
	if err != nil {
		return nil, nil, err
	}
	pool, err := New(Config{
		URL:             dsn,
		MaxOpenConns:    o.base.MaxOpenConns,
		MaxIdleConns:    o.base.MaxIdleConns,
		ConnMaxLifetime: o.base.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open tenant database %s: %w", dbName, err)
	}

	schema, err := migrations.Tenant()
	if err != nil {
		pool.Close() //nolint:errcheck // cleanup on init failure
		return nil, nil, err
	}
	if err := migrations.Apply(ctx, pool.DB(), schema); err != nil {
		pool.Close() //nolint:errcheck // cleanup on init failure
		return nil, nil, fmt.Errorf("migrate tenant database %s: %w", dbName, err)
	}

	db := pool.DB()
	bundle := &store.Bundle{
		Users:         identitystore.NewPostgres(db),
		Roles:         rbacstore.NewPostgres(db),
		Audit:         auditstore.NewPostgres(db),
		Plans:         entstore.NewPostgresPlans(db),
		Subscriptions: entstore.NewPostgresSubscriptions(db),
		Tx:            tx.NewSQLRunner(db),
	}
	return bundle, pool.Close, nil
}

// databaseName derives the database name from the tenant ID verbatim, so
// distinct tenant IDs always land in distinct databases. Hyphens are legal
// here: CREATE DATABASE quotes the name and the DSN path carries it as-is.
func (o *TenantOpener) databaseName(tenantID string) string {
	return o.prefix + tenantID
}

func (o *TenantOpener) ensureDatabase(ctx context.Context, dbName string) error {
	var exists bool
	err := o.admin.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, dbName,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check tenant database %s: %w", dbName, err)
	}
	if exists {
		return nil
	}
	// CREATE DATABASE cannot be parameterized; dbName is derived from the
	// restricted tenant ID alphabet above.
	if _, err := o.admin.ExecContext(ctx, fmt.Sprintf(`CREATE DATABASE %q`, dbName)); err != nil {
		return fmt.Errorf("create tenant database %s: %w", dbName, err)
	}
	return nil
}

func (o *TenantOpener) tenantDSN(dbName string) (string, error) {
	u, err := url.Parse(o.base.URL)
	if err != nil {
		return "", fmt.Errorf("parse database url: %w", err)
	}
	u.Path = "/" + dbName
	return u.String(), nil
}
