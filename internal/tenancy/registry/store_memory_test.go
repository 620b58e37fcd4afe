package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bedrock/internal/sentinel"
	"bedrock/internal/tenancy/models"
)

func newTenant(t *testing.T, id, name string) *models.Tenant {
	t.Helper()
	tenant, err := models.NewTenant(id, name, time.Now())
	require.NoError(t, err)
	return tenant
}

func TestInMemoryCreateIfAvailable(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()

	require.NoError(t, store.CreateIfAvailable(ctx, newTenant(t, "acme", "Acme")))

	err := store.CreateIfAvailable(ctx, newTenant(t, "acme", "Other"))
	assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed)

	// Name uniqueness is case-insensitive.
	err = store.CreateIfAvailable(ctx, newTenant(t, "acme2", "ACME"))
	assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed)

	require.NoError(t, store.CreateIfAvailable(ctx, newTenant(t, "globex", "Globex")))
	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestInMemoryFindReturnsClones(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	require.NoError(t, store.CreateIfAvailable(ctx, newTenant(t, "acme", "Acme")))

	found, err := store.FindByID(ctx, "acme")
	require.NoError(t, err)
	found.Name = "mutated"

	again, err := store.FindByID(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme", again.Name, "store must not observe caller mutations")

	byName, err := store.FindByName(ctx, "ACME")
	require.NoError(t, err)
	assert.Equal(t, "acme", byName.ID)

	_, err = store.FindByID(ctx, "ghost")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	_, err = store.FindByName(ctx, "ghost")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryUpdateReindexesName(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	tenant := newTenant(t, "acme", "Acme")
	require.NoError(t, store.CreateIfAvailable(ctx, tenant))

	tenant.Name = "Acme Corporation"
	require.NoError(t, store.Update(ctx, tenant))

	_, err := store.FindByName(ctx, "Acme")
	assert.ErrorIs(t, err, sentinel.ErrNotFound, "old name must be released")

	found, err := store.FindByName(ctx, "acme corporation")
	require.NoError(t, err)
	assert.Equal(t, "acme", found.ID)

	err = store.Update(ctx, newTenant(t, "ghost", "Ghost"))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryList(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	require.NoError(t, store.CreateIfAvailable(ctx, newTenant(t, "acme", "Acme")))
	require.NoError(t, store.CreateIfAvailable(ctx, newTenant(t, "globex", "Globex")))

	tenants, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, tenants, 2)
}
