package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmaledger/internal/core/tenant"
)

type countingDirectory struct {
	tenant.Directory
	tenants map[string]tenant.Tenant
	gets    int
}

func (d *countingDirectory) Get(_ context.Context, tenantID string) (*tenant.Tenant, error) {
	d.gets++
	t, ok := d.tenants[tenantID]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	return &t, nil
}

func (d *countingDirectory) SetStatus(_ context.Context, tenantID string, status tenant.Status) error {
	t := d.tenants[tenantID]
	t.Status = status
	d.tenants[tenantID] = t
	return nil
}

func newCountingDirectory() *countingDirectory {
	return &countingDirectory{tenants: map[string]tenant.Tenant{
		"clinic-a": {ID: "clinic-a", Slug: "clinic-a", Status: tenant.StatusActive},
		"clinic-b": {ID: "clinic-b", Slug: "clinic-b", Status: tenant.StatusActive},
	}}
}

func TestTenantCache_ReadThrough(t *testing.T) {
	ctx := context.Background()
	src := newCountingDirectory()
	c := NewTenantCache(src, nil)

	for range 3 {
		got, err := c.Get(ctx, "clinic-a")
		require.NoError(t, err)
		assert.Equal(t, "clinic-a", got.Slug)
	}
	assert.Equal(t, 1, src.gets)

	_, err := c.Get(ctx, "clinic-x")
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
}

func TestTenantCache_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := NewTenantCache(newCountingDirectory(), nil)

	first, err := c.Get(ctx, "clinic-a")
	require.NoError(t, err)
	first.Status = tenant.StatusSuspended

	second, err := c.Get(ctx, "clinic-a")
	require.NoError(t, err)
	assert.True(t, second.IsActive())
}

func TestTenantCache_NotificationInvalidates(t *testing.T) {
	ctx := context.Background()
	src := newCountingDirectory()
	c := NewTenantCache(src, nil)

	_, err := c.Get(ctx, "clinic-a")
	require.NoError(t, err)
	_, err = c.Get(ctx, "clinic-b")
	require.NoError(t, err)

	src.tenants["clinic-a"] = tenant.Tenant{ID: "clinic-a", Slug: "clinic-a", Status: tenant.StatusSuspended}
	c.handleNotification(ctx, "other_channel", "clinic-a")
	got, err := c.Get(ctx, "clinic-a")
	require.NoError(t, err)
	assert.True(t, got.IsActive())

	c.handleNotification(ctx, TenantChangedChannel, " clinic-a ")
	got, err = c.Get(ctx, "clinic-a")
	require.NoError(t, err)
	assert.False(t, got.IsActive())
	assert.Equal(t, 3, src.gets)

	c.handleNotification(ctx, TenantChangedChannel, "")
	_, err = c.Get(ctx, "clinic-b")
	require.NoError(t, err)
	assert.Equal(t, 4, src.gets)
}

func TestTenantCache_LocalWriteInvalidates(t *testing.T) {
	ctx := context.Background()
	c := NewTenantCache(newCountingDirectory(), nil)

	_, err := c.Get(ctx, "clinic-a")
	require.NoError(t, err)
	require.NoError(t, c.SetStatus(ctx, "clinic-a", tenant.StatusSuspended))

	_, err = tenant.Resolve(ctx, c, "clinic-a")
	assert.ErrorIs(t, err, tenant.ErrTenantNotActive)
}

func TestTenantCache_StartWithoutPoolIsNoop(t *testing.T) {
	c := NewTenantCache(newCountingDirectory(), nil)
	c.Start(context.Background())
	c.Stop()
}
