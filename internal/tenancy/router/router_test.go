package router_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identitymodels "bedrock/internal/identity/models"
	"bedrock/internal/platform/config"
	"bedrock/internal/store"
	"bedrock/internal/tenancy/registry"
	"bedrock/internal/tenancy/router"
	dErrors "bedrock/pkg/domain-errors"
	"bedrock/pkg/testutil"
)

func testHandles() config.Handles {
	return config.Handles{
		MaxHandles:     8,
		IdleTTL:        10 * time.Minute,
		AcquireTimeout: 500 * time.Millisecond,
		OpenRetries:    2,
		RetryBackoff:   time.Millisecond,
	}
}

func TestResolveAcquiresReference(t *testing.T) {
	env := testutil.NewEnvWithConfig(t, testHandles())
	env.MustCreateTenant(t, "acme", "Acme")
	ctx := context.Background()

	h, err := env.Router.Resolve(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", h.TenantID())
	assert.Equal(t, 1, h.Refs(), "resolve must hand out an acquired reference")

	h.Release()
	assert.Equal(t, 0, h.Refs())
}

func TestResolveUnknownTenant(t *testing.T) {
	env := testutil.NewEnvWithConfig(t, testHandles())

	_, err := env.Router.Resolve(context.Background(), "ghost")
	require.True(t, dErrors.HasCode(err, dErrors.CodeTenantNotFound), "expected tenant_not_found, got %v", err)
	assert.Zero(t, env.Router.Len(), "no handle should be cached for an unknown tenant")
}

func TestResolveDeletedTenant(t *testing.T) {
	env := testutil.NewEnvWithConfig(t, testHandles())
	env.MustCreateTenant(t, "acme", "Acme")
	ctx := context.Background()

	_, err := env.Router.Resolve(ctx, "acme")
	require.NoError(t, err)

	_, err = env.Registry.SoftDelete(ctx, "acme")
	require.NoError(t, err)
	assert.Zero(t, env.Router.Len(), "deletion must evict the cached handle")

	_, err = env.Router.Resolve(ctx, "acme")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTenantInactive), "expected tenant_inactive, got %v", err)
}

func TestConcurrentResolveSharesOneBundle(t *testing.T) {
	env := testutil.NewEnvWithConfig(t, testHandles())
	env.MustCreateTenant(t, "acme", "Acme")
	ctx := context.Background()

	handles := make([]*router.Handle, 16)
	result := testutil.RunConcurrent(len(handles), func(idx int) error {
		h, err := env.Router.Resolve(ctx, "acme")
		if err != nil {
			return err
		}
		handles[idx] = h
		return nil
	})
	require.Equal(t, int32(len(handles)), result.Successes, "expected all resolves to succeed, got %+v", result)
	assert.Equal(t, 1, env.Router.Len(), "expected a single cached handle")

	// A write through one handle must be visible through every other: they all
	// share the same tenant store bundle.
	user, err := identitymodels.NewUser("Jane", "jane@acme.test", "change-me-now", time.Now())
	require.NoError(t, err)
	require.NoError(t, handles[0].Stores().Users.CreateIfEmailAvailable(ctx, user))
	for i, h := range handles {
		_, err := h.Stores().Users.FindByID(ctx, user.ID)
		assert.NoError(t, err, "handle %d does not see the shared write", i)
		h.Release()
	}
}

func TestEvictIdle(t *testing.T) {
	env := testutil.NewEnvWithConfig(t, testHandles())
	env.MustCreateTenant(t, "acme", "Acme")
	env.MustCreateTenant(t, "globex", "Globex")
	ctx := context.Background()

	acme, err := env.Router.Resolve(ctx, "acme")
	require.NoError(t, err)
	globex, err := env.Router.Resolve(ctx, "globex")
	require.NoError(t, err)
	globex.Release()

	env.Advance(11 * time.Minute)
	assert.Equal(t, 1, env.Router.EvictIdle(), "only the released handle is evictable")
	assert.Equal(t, 1, env.Router.Len(), "referenced handle must survive eviction")

	// After the reference is released and the TTL passes again, the survivor
	// becomes evictable too.
	acme.Release()
	env.Advance(11 * time.Minute)
	assert.Equal(t, 1, env.Router.EvictIdle())
}

func TestEvictedBundleIsDiscarded(t *testing.T) {
	env := testutil.NewEnvWithConfig(t, testHandles())
	env.MustCreateTenant(t, "acme", "Acme")
	ctx := context.Background()

	h, err := env.Router.Resolve(ctx, "acme")
	require.NoError(t, err)
	first := h.Stores()
	h.Release()
	env.Router.Invalidate("acme")

	h2, err := env.Router.Resolve(ctx, "acme")
	require.NoError(t, err)
	defer h2.Release()
	assert.NotSame(t, first, h2.Stores(), "expected a fresh bundle after invalidation")
}

func TestOpenFailureTimesOut(t *testing.T) {
	reg := registry.NewService(registry.NewInMemory())
	_, err := reg.Create(context.Background(), "acme", "Acme")
	require.NoError(t, err)

	opener := router.OpenerFunc(func(context.Context, string) (*store.Bundle, func() error, error) {
		return nil, nil, errors.New("connection refused")
	})
	// Real clock here: the retry backoff sleeps have to actually elapse.
	rt := router.New(reg, opener, config.Handles{
		MaxHandles:     4,
		IdleTTL:        time.Minute,
		AcquireTimeout: 100 * time.Millisecond,
		OpenRetries:    2,
		RetryBackoff:   5 * time.Millisecond,
	})

	_, err = rt.Resolve(context.Background(), "acme")
	require.True(t, dErrors.HasCode(err, dErrors.CodeConnectionTimeout), "expected connection_timeout, got %v", err)
	assert.Zero(t, rt.Len(), "failed opens must not leave a cached handle")
}

func TestOpenRecoversAfterTransientFailure(t *testing.T) {
	env := testutil.NewEnvWithConfig(t, testHandles())
	env.MustCreateTenant(t, "acme", "Acme")

	attempts := 0
	opener := router.OpenerFunc(func(context.Context, string) (*store.Bundle, func() error, error) {
		attempts++
		if attempts < 3 {
			return nil, nil, errors.New("connection refused")
		}
		return store.NewMemoryBundle(), nil, nil
	})
	rt := router.New(env.Registry, opener, config.Handles{
		MaxHandles:     4,
		IdleTTL:        time.Minute,
		AcquireTimeout: time.Second,
		OpenRetries:    3,
		RetryBackoff:   time.Millisecond,
	})

	h, err := rt.Resolve(context.Background(), "acme")
	require.NoError(t, err, "expected resolve to recover on retry")
	defer h.Release()
	assert.Equal(t, 3, attempts)
}

func TestHandlePoolBound(t *testing.T) {
	handles := testHandles()
	handles.MaxHandles = 1
	env := testutil.NewEnvWithConfig(t, handles)
	env.MustCreateTenant(t, "acme", "Acme")
	env.MustCreateTenant(t, "globex", "Globex")
	ctx := context.Background()

	acme, err := env.Router.Resolve(ctx, "acme")
	require.NoError(t, err)

	// The only slot is held by a referenced handle, so a second tenant cannot
	// enter the pool.
	_, err = env.Router.Resolve(ctx, "globex")
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable), "expected unavailable while pool is pinned, got %v", err)

	acme.Release()
	globex, err := env.Router.Resolve(ctx, "globex")
	require.NoError(t, err, "expected eviction to free the slot")
	defer globex.Release()
	assert.Equal(t, 1, env.Router.Len(), "pool must stay at its bound")
}

func TestRejectedBundleIsClosed(t *testing.T) {
	reg := registry.NewService(registry.NewInMemory())
	ctx := context.Background()
	for _, id := range []string{"acme", "globex"} {
		_, err := reg.Create(ctx, id, id)
		require.NoError(t, err)
	}

	var mu sync.Mutex
	closed := make(map[string]int)
	opener := router.OpenerFunc(func(_ context.Context, tenantID string) (*store.Bundle, func() error, error) {
		return store.NewMemoryBundle(), func() error {
			mu.Lock()
			defer mu.Unlock()
			closed[tenantID]++
			return nil
		}, nil
	})
	cfg := testHandles()
	cfg.MaxHandles = 1
	rt := router.New(reg, opener, cfg)

	acme, err := rt.Resolve(ctx, "acme")
	require.NoError(t, err)
	defer acme.Release()

	_, err = rt.Resolve(ctx, "globex")
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable), "expected unavailable, got %v", err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, closed["globex"], "the bundle opened for the rejected tenant must be closed")
	assert.Zero(t, closed["acme"], "the held tenant's bundle must stay open")
}

func TestSweeperEvictsInBackground(t *testing.T) {
	env := testutil.NewEnvWithConfig(t, testHandles())
	env.MustCreateTenant(t, "acme", "Acme")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h, err := env.Router.Resolve(ctx, "acme")
	require.NoError(t, err)
	h.Release()

	env.Router.StartSweeper(ctx)
	env.Advance(21 * time.Minute)

	deadline := time.After(2 * time.Second)
	for env.Router.Len() != 0 {
		select {
		case <-deadline:
			t.Fatalf("sweeper did not evict the idle handle")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
