// Package router maps tenant identifiers to live data-store handles. It owns
// the only cross-call shared structure in the tenancy engine: the handle
// cache. Creation is single-flighted per tenant key, reads of cached handles
// are lock-cheap, and unrelated tenants never serialize on each other.
package router

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/singleflight"

	"bedrock/internal/platform/config"
	"bedrock/internal/store"
	tenancymetrics "bedrock/internal/tenancy/metrics"
	"bedrock/internal/tenancy/models"
	dErrors "bedrock/pkg/domain-errors"
)

// Registry is the tenant lookup the router validates against. Satisfied by
// registry.Service.
type Registry interface {
	Lookup(ctx context.Context, tenantID string) (*models.Tenant, error)
}

// Opener establishes a connection to one tenant's data store and returns its
// store bundle plus a close function.
type Opener interface {
	Open(ctx context.Context, tenantID string) (*store.Bundle, func() error, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, tenantID string) (*store.Bundle, func() error, error)

func (f OpenerFunc) Open(ctx context.Context, tenantID string) (*store.Bundle, func() error, error) {
	return f(ctx, tenantID)
}

// MemoryOpener returns an Opener that builds a fresh in-memory bundle per
// tenant. The bundle's contents live exactly as long as the cached handle.
func MemoryOpener() Opener {
	return OpenerFunc(func(context.Context, string) (*store.Bundle, func() error, error) {
		return store.NewMemoryBundle(), nil, nil
	})
}

// Option configures a Router.
type Option func(*Router)

func WithClock(clk clock.Clock) Option {
	return func(r *Router) { r.clock = clk }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) { r.logger = logger }
}

func WithMetrics(m *tenancymetrics.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// Router resolves tenants to connection handles.
type Router struct {
	registry Registry
	opener   Opener
	cfg      config.Handles
	clock    clock.Clock
	logger   *slog.Logger
	metrics  *tenancymetrics.Metrics

	mu      sync.RWMutex
	handles map[string]*Handle
	group   singleflight.Group
}

// New creates a ConnectionRouter.
func New(reg Registry, opener Opener, cfg config.Handles, opts ...Option) *Router {
	r := &Router{
		registry: reg,
		opener:   opener,
		cfg:      cfg,
		clock:    clock.New(),
		handles:  make(map[string]*Handle),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve validates the tenant and returns its handle with a reference already
// acquired. Callers must Release the handle when the logical call ends.
// Concurrent calls for the same tenant share a single handle creation.
func (r *Router) Resolve(ctx context.Context, tenantID string) (*Handle, error) {
	start := time.Now()
	defer r.metrics.ObserveResolve(start)

	if _, err := r.registry.Lookup(ctx, tenantID); err != nil {
		return nil, err
	}

	// tryAcquire checks liveness and takes the reference in one step, so the
	// sweeper cannot close a handle between the two. A handle evicted right
	// after creation loses the race once; the second round recreates it.
	for attempt := 0; attempt < 2; attempt++ {
		r.mu.RLock()
		h, ok := r.handles[tenantID]
		r.mu.RUnlock()
		if ok && h.tryAcquire() {
			return h, nil
		}

		v, err, _ := r.group.Do(tenantID, func() (any, error) {
			// Re-check under the flight: a concurrent caller may have created it.
			r.mu.RLock()
			existing, ok := r.handles[tenantID]
			r.mu.RUnlock()
			if ok && existing.alive() {
				return existing, nil
			}
			return r.open(ctx, tenantID)
		})
		if err != nil {
			return nil, err
		}
		if h := v.(*Handle); h.tryAcquire() {
			return h, nil
		}
	}
	return nil, dErrors.New(dErrors.CodeTenantNotFound, "tenant store is no longer available")
}

// open establishes the tenant's store connection with bounded retries and
// backoff, then caches the handle.
func (r *Router) open(ctx context.Context, tenantID string) (*Handle, error) {
	timeout := r.cfg.AcquireTimeout
	if timeout <= 0 {
		timeout = config.DefaultHandles().AcquireTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= r.cfg.OpenRetries; attempt++ {
		if attempt > 0 {
			backoff := r.cfg.RetryBackoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, r.timeoutErr(tenantID, lastErr)
			case <-r.clock.After(backoff):
			}
			if r.logger != nil {
				r.logger.WarnContext(ctx, "retrying tenant store connection",
					"tenant_id", tenantID,
					"attempt", attempt,
					"error", lastErr,
				)
			}
		}
		bundle, closeFn, err := r.opener.Open(ctx, tenantID)
		if err == nil {
			h, cacheErr := r.cache(tenantID, bundle, closeFn)
			if cacheErr == nil {
				return h, nil
			}
			// The pool rejected the bundle; close the connection we just
			// opened or it leaks on every rejected Resolve.
			if closeFn != nil {
				if cerr := closeFn(); cerr != nil && r.logger != nil {
					r.logger.Error("failed to close rejected tenant bundle",
						"tenant_id", tenantID, "error", cerr)
				}
			}
			return nil, cacheErr
		}
		lastErr = err
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			break
		}
	}
	return nil, r.timeoutErr(tenantID, lastErr)
}

func (r *Router) timeoutErr(tenantID string, cause error) error {
	return dErrors.Wrap(cause, dErrors.CodeConnectionTimeout,
		"tenant store unreachable: "+tenantID)
}

func (r *Router) cache(tenantID string, bundle *store.Bundle, closeFn func() error) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cfg.MaxHandles > 0 && len(r.handles) >= r.cfg.MaxHandles {
		if !r.evictOneLocked() {
			return nil, dErrors.New(dErrors.CodeUnavailable, "tenant handle pool exhausted")
		}
	}

	h := newHandle(tenantID, bundle, closeFn, r.clock)
	r.handles[tenantID] = h
	if r.metrics != nil {
		r.metrics.ActiveHandles.Set(float64(len(r.handles)))
	}
	return h, nil
}

// evictOneLocked removes the least recently used idle handle. Returns false
// when every cached handle is currently referenced. A victim that gets
// acquired between selection and the claim is skipped and the next candidate
// is tried.
func (r *Router) evictOneLocked() bool {
	for {
		var victim *Handle
		for _, h := range r.handles {
			if h.Refs() > 0 {
				continue
			}
			if victim == nil || h.lastUsedAt().Before(victim.lastUsedAt()) {
				victim = h
			}
		}
		if victim == nil {
			return false
		}
		if victim.evictIfUnreferenced() {
			r.removeLocked(victim)
			return true
		}
	}
}

// Invalidate forcibly evicts a tenant's handle, e.g. when the tenant is
// deleted. In-flight references keep their bundle until released; new Resolve
// calls will fail at the registry check.
func (r *Router) Invalidate(tenantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.handles[tenantID]; ok {
		r.dropLocked(h)
	}
}

// dropLocked force-closes a handle regardless of references. Only Invalidate
// takes this path: the tenant's store is going away.
func (r *Router) dropLocked(h *Handle) {
	if !h.markClosed() {
		return
	}
	r.removeLocked(h)
}

// removeLocked finishes an eviction whose handle is already claimed closed.
func (r *Router) removeLocked(h *Handle) {
	delete(r.handles, h.tenantID)
	if err := h.runCloseFn(); err != nil && r.logger != nil {
		r.logger.Error("failed to close tenant handle", "tenant_id", h.tenantID, "error", err)
	}
	if r.metrics != nil {
		r.metrics.HandleEvictions.Inc()
		r.metrics.ActiveHandles.Set(float64(len(r.handles)))
	}
}

// EvictIdle drops handles that have been unreferenced for longer than the idle
// TTL. Handles currently held by an active context are never touched.
func (r *Router) EvictIdle() int {
	if r.cfg.IdleTTL <= 0 {
		return 0
	}
	cutoff := r.clock.Now().Add(-r.cfg.IdleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for _, h := range r.handles {
		if h.evictIfIdle(cutoff) {
			r.removeLocked(h)
			evicted++
		}
	}
	return evicted
}

// StartSweeper runs EvictIdle periodically until ctx is cancelled.
func (r *Router) StartSweeper(ctx context.Context) {
	interval := r.cfg.IdleTTL
	if interval <= 0 {
		return
	}
	ticker := r.clock.Ticker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.EvictIdle(); n > 0 && r.logger != nil {
					r.logger.Debug("evicted idle tenant handles", "count", n)
				}
			}
		}
	}()
}

// LookupTenant exposes the registry lookup backing Resolve, so callers that
// already hold a handle can fetch the tenant record without a second
// dependency on the registry.
func (r *Router) LookupTenant(ctx context.Context, tenantID string) (*models.Tenant, error) {
	return r.registry.Lookup(ctx, tenantID)
}

// Len returns the number of cached handles.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}
