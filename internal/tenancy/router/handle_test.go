package router

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bedrock/internal/store"
)

func TestTryAcquireFailsOnClosedHandle(t *testing.T) {
	h := newHandle("acme", store.NewMemoryBundle(), nil, clock.NewMock())

	require.True(t, h.markClosed())
	assert.False(t, h.tryAcquire(), "a closed handle must never hand out references")
	assert.Equal(t, 0, h.Refs())
}

func TestEvictClaimLosesToHeldReference(t *testing.T) {
	clk := clock.NewMock()
	h := newHandle("acme", store.NewMemoryBundle(), nil, clk)
	require.True(t, h.tryAcquire())

	cutoff := clk.Now().Add(time.Hour)
	assert.False(t, h.evictIfIdle(cutoff), "a referenced handle must never be claimed for eviction")
	assert.False(t, h.evictIfUnreferenced())
	assert.True(t, h.alive())
}

func TestEvictClaimWinsAgainstLaterAcquire(t *testing.T) {
	clk := clock.NewMock()
	h := newHandle("acme", store.NewMemoryBundle(), nil, clk)
	require.True(t, h.tryAcquire())
	h.Release()

	require.True(t, h.evictIfIdle(clk.Now().Add(time.Hour)))
	assert.False(t, h.tryAcquire(), "an acquire after the eviction claim must fail, not resurrect the handle")
	assert.False(t, h.alive())
}

func TestMarkClosedIsOneShot(t *testing.T) {
	closes := 0
	h := newHandle("acme", store.NewMemoryBundle(), func() error {
		closes++
		return nil
	}, clock.NewMock())

	require.True(t, h.markClosed())
	require.NoError(t, h.runCloseFn())
	assert.False(t, h.markClosed(), "a second claim must report the handle already closed")
	assert.Equal(t, 1, closes)
}
