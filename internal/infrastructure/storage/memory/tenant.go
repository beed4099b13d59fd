package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"pharmaledger/internal/core/id"
	"pharmaledger/internal/core/tenant"
)

// TenantDirectory implements tenant.Directory.
type TenantDirectory struct {
	store *Store
}

var _ tenant.Directory = (*TenantDirectory)(nil)

func (d *TenantDirectory) Get(ctx context.Context, tenantID string) (*tenant.Tenant, error) {
	var out *tenant.Tenant
	err := d.store.do(ctx, func(st *state) error {
		t, ok := st.tenants[tenantID]
		if !ok {
			return tenant.ErrTenantNotFound
		}
		out = &t
		return nil
	})
	return out, err
}

func (d *TenantDirectory) ListActive(ctx context.Context) ([]*tenant.Tenant, error) {
	all, err := d.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(t *tenant.Tenant) bool { return !t.IsActive() }), nil
}

func (d *TenantDirectory) ListAll(ctx context.Context) ([]*tenant.Tenant, error) {
	var out []*tenant.Tenant
	err := d.store.do(ctx, func(st *state) error {
		for _, t := range st.tenants {
			out = append(out, &t)
		}
		return nil
	})
	slices.SortFunc(out, func(a, b *tenant.Tenant) int { return cmp.Compare(a.Slug, b.Slug) })
	return out, err
}

func (d *TenantDirectory) Create(ctx context.Context, t *tenant.Tenant) error {
	if t.ID == "" {
		t.ID = id.New().String()
	}
	if t.Status == "" {
		t.Status = tenant.StatusActive
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	return d.store.do(ctx, func(st *state) error {
		st.tenants[t.ID] = *t
		return nil
	})
}

func (d *TenantDirectory) SetStatus(ctx context.Context, tenantID string, status tenant.Status) error {
	return d.update(ctx, tenantID, func(t *tenant.Tenant) { t.Status = status })
}

func (d *TenantDirectory) SetAPIKeyHash(ctx context.Context, tenantID, hash string) error {
	return d.update(ctx, tenantID, func(t *tenant.Tenant) { t.APIKeyHash = &hash })
}

func (d *TenantDirectory) update(ctx context.Context, tenantID string, fn func(t *tenant.Tenant)) error {
	return d.store.do(ctx, func(st *state) error {
		t, ok := st.tenants[tenantID]
		if !ok {
			return tenant.ErrTenantNotFound
		}
		fn(&t)
		t.UpdatedAt = time.Now().UTC()
		st.tenants[tenantID] = t
		return nil
	})
}
