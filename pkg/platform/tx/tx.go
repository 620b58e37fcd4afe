// Package tx carries an ambient transaction through context.Context so stores
// can join the caller's transaction without threading it explicitly. Two
// flavors exist: a *sql.Tx for PostgreSQL-backed stores and a staged memory
// transaction for in-memory stores. A Runner abstracts "run fn transactionally"
// for services.
package tx

import (
	"context"
	"database/sql"
	"sync"
	"time"

	dErrors "bedrock/pkg/domain-errors"
)

type sqlTxKey struct{}
type memTxKey struct{}

// Runner provides a transactional boundary for store mutations.
// Implementations may wrap a database transaction or an in-memory staging area.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// WithTx attaches a SQL transaction to the context.
func WithTx(ctx context.Context, t *sql.Tx) context.Context {
	return context.WithValue(ctx, sqlTxKey{}, t)
}

// From returns the ambient SQL transaction, if any.
func From(ctx context.Context) (*sql.Tx, bool) {
	t, ok := ctx.Value(sqlTxKey{}).(*sql.Tx)
	if !ok || t == nil {
		return nil, false
	}
	return t, true
}

// Detach strips any ambient transaction from the context. Writes issued on the
// detached context commit independently of the caller's transaction; the audit
// service uses this for its central security mirror.
func Detach(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, sqlTxKey{}, (*sql.Tx)(nil))
	return context.WithValue(ctx, memTxKey{}, (*Mem)(nil))
}

// Mem is a staged in-memory transaction. Stores apply writes immediately and
// register compensating undo functions; rollback runs the undos in reverse.
type Mem struct {
	mu    sync.Mutex
	undos []func()
}

// OnRollback registers a compensating action for a write already applied.
func (m *Mem) OnRollback(undo func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undos = append(m.undos, undo)
}

func (m *Mem) rollback() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.undos) - 1; i >= 0; i-- {
		m.undos[i]()
	}
	m.undos = nil
}

// WithMem attaches a memory transaction to the context.
func WithMem(ctx context.Context, m *Mem) context.Context {
	return context.WithValue(ctx, memTxKey{}, m)
}

// MemFrom returns the ambient memory transaction, if any.
func MemFrom(ctx context.Context) (*Mem, bool) {
	m, ok := ctx.Value(memTxKey{}).(*Mem)
	if !ok || m == nil {
		return nil, false
	}
	return m, true
}

const defaultTxTimeout = 5 * time.Second

// MemRunner serializes mutations for in-memory stores and rolls back staged
// writes when fn fails.
type MemRunner struct {
	mu      sync.Mutex
	timeout time.Duration
}

// NewMemRunner creates a Runner for in-memory store bundles.
func NewMemRunner() *MemRunner {
	return &MemRunner{}
}

func (r *MemRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, ok := MemFrom(ctx); ok {
		// Nested call joins the outer transaction.
		return fn(ctx)
	}

	timeout := r.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m := &Mem{}
	if err := fn(WithMem(ctx, m)); err != nil {
		m.rollback()
		return err
	}
	return nil
}

// SQLRunner wraps mutations in a database transaction carried via context.
type SQLRunner struct {
	db      *sql.DB
	timeout time.Duration
}

// NewSQLRunner creates a Runner over a database handle.
func NewSQLRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{db: db}
}

func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if t, ok := From(ctx); ok && t != nil {
		return fn(ctx)
	}

	timeout := r.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	t, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = t.Rollback() //nolint:errcheck // rollback after commit is a no-op
	}()

	if err := fn(WithTx(ctx, t)); err != nil {
		return err
	}
	return t.Commit()
}
