package router

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"bedrock/internal/store"
)

// Handle is a live, reference-counted connection to one tenant's data store.
// The router caches handles by tenant ID; a handle is only eligible for
// eviction while its reference count is zero.
type Handle struct {
	tenantID string
	stores   *store.Bundle
	closeFn  func() error
	clock    clock.Clock

	mu       sync.Mutex
	refs     int
	lastUsed time.Time
	closed   bool
}

func newHandle(tenantID string, stores *store.Bundle, closeFn func() error, clk clock.Clock) *Handle {
	return &Handle{
		tenantID: tenantID,
		stores:   stores,
		closeFn:  closeFn,
		clock:    clk,
		lastUsed: clk.Now(),
	}
}

// TenantID returns the tenant this handle is bound to.
func (h *Handle) TenantID() string { return h.tenantID }

// Stores returns the store bundle backed by this tenant's data store.
func (h *Handle) Stores() *store.Bundle { return h.stores }

// tryAcquire takes a reference unless the handle has been closed. The check
// and the increment are one step under the handle mutex, so an eviction can
// never slip in between them. The handle cannot be evicted while references
// are held.
func (h *Handle) tryAcquire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.refs++
	h.lastUsed = h.clock.Now()
	return true
}

// Release drops a reference taken by Resolve.
func (h *Handle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.refs > 0 {
		h.refs--
	}
	h.lastUsed = h.clock.Now()
}

// Refs returns the current reference count.
func (h *Handle) Refs() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refs
}

// lastUsedAt returns the time of the last acquire or release.
func (h *Handle) lastUsedAt() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastUsed
}

// evictIfIdle marks the handle closed when it holds no references and was
// last used before the cutoff. Marking and the reference check are one step,
// so a tryAcquire that lands first keeps the handle open. The caller runs
// runCloseFn after a successful claim.
func (h *Handle) evictIfIdle(cutoff time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.refs > 0 || !h.lastUsed.Before(cutoff) {
		return false
	}
	h.closed = true
	return true
}

// evictIfUnreferenced is evictIfIdle without the age requirement, used when
// the pool is full and any idle handle will do.
func (h *Handle) evictIfUnreferenced() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.refs > 0 {
		return false
	}
	h.closed = true
	return true
}

// alive reports whether the handle has not been closed.
func (h *Handle) alive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.closed
}

// markClosed transitions to closed. Returns false when already closed.
func (h *Handle) markClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.closed = true
	return true
}

// runCloseFn releases the underlying store connection. Call exactly once,
// after a successful markClosed or evict claim.
func (h *Handle) runCloseFn() error {
	if h.closeFn != nil {
		return h.closeFn()
	}
	return nil
}
