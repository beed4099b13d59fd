package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmaledger/internal/app"
	"pharmaledger/internal/config"
	"pharmaledger/internal/core/tenant"
	"pharmaledger/internal/domain/catalog"
	"pharmaledger/pkg/logger"
)

func TestSeed_CreatesTenantAndCatalog(t *testing.T) {
	ctx := context.Background()
	a, err := app.Build(ctx, &config.Config{
		Env:               "development",
		Store:             config.StoreMemory,
		ImportCostRatio:   0.6,
		ExpiringSoonDays:  30,
		ReconcileInterval: time.Hour,
	}, logger.NewNop())
	require.NoError(t, err)
	defer a.Close()

	opts := Options{Slug: "demo-hospital", Name: "Demo General Hospital", Plan: "standard", IssueKey: true}
	first, err := Seed(ctx, a, opts)
	require.NoError(t, err)
	assert.Equal(t, len(demoRows), first.Created)
	assert.Equal(t, 4, first.Movements)
	require.NotEmpty(t, first.APIKey)

	tn, err := a.Tenants.Get(ctx, first.TenantID)
	require.NoError(t, err)
	assert.NoError(t, tenant.VerifyAPIKey(tn, first.APIKey))

	page, err := a.Catalog.List(ctx, first.TenantID, catalog.ListQuery{Search: "Paracetamol"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(450), page.Items[0].QuantityOnHand)

	second, err := Seed(ctx, a, Options{Slug: "demo-hospital", Name: "Demo General Hospital", Plan: "standard"})
	require.NoError(t, err)
	assert.Equal(t, first.TenantID, second.TenantID)
	assert.Zero(t, second.Created)
	assert.Equal(t, len(demoRows), second.Merged)

	all, err := a.Tenants.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSeed_RejectsBadSlug(t *testing.T) {
	a, err := app.Build(context.Background(), &config.Config{Env: "development", Store: config.StoreMemory, ImportCostRatio: 0.6}, logger.NewNop())
	require.NoError(t, err)
	defer a.Close()

	_, err = Seed(context.Background(), a, Options{Slug: "Bad Slug!", Name: "x"})
	assert.Error(t, err)
}
