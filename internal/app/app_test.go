package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmaledger/internal/config"
	"pharmaledger/internal/core/tenant"
	"pharmaledger/internal/domain/catalog"
	"pharmaledger/internal/domain/quota"
	"pharmaledger/pkg/logger"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Env:               "development",
		Store:             config.StoreMemory,
		JWTIssuer:         "pharmaledger",
		ImportCostRatio:   0.6,
		ExpiringSoonDays:  30,
		ReconcileInterval: time.Hour,
		DashboardCacheTTL: time.Minute,
	}
}

func TestBuild_MemoryStoreServesInventory(t *testing.T) {
	ctx := context.Background()
	a, err := Build(ctx, memoryConfig(), logger.NewNop())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Memory)
	assert.Nil(t, a.Pool)
	assert.Nil(t, a.IdempotencyCleaner)

	tn := &tenant.Tenant{Slug: "clinic-a", DisplayName: "Clinic A"}
	require.NoError(t, a.Tenants.Create(ctx, tn))
	_, err = a.Quota.ChangePlan(ctx, tn.ID, quota.PlanChange{PlanName: "basic", BillingCycle: quota.BillingMonthly})
	require.NoError(t, err)

	name := "Paracetamol 500mg"
	item, err := a.Catalog.Create(ctx, tn.ID, catalog.CreateInput{Fields: catalog.Fields{Name: &name}, OpeningQuantity: 12})
	require.NoError(t, err)
	assert.Equal(t, int64(12), item.QuantityOnHand)

	d, err := a.Reports.Dashboard(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), d.TotalActive)

	rc := a.RouterConfig()
	assert.Empty(t, rc.HealthChecks)
	assert.NotNil(t, rc.Idempotency)
}

func TestBuild_WithRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig()
	cfg.RedisURL = "redis://" + mr.Addr()

	a, err := Build(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Dashboards)
	checks := a.RouterConfig().HealthChecks
	require.Contains(t, checks, "redis")
	assert.NoError(t, checks["redis"].Ping(context.Background()))
}

func TestBuild_RejectsBadAlertRules(t *testing.T) {
	cfg := memoryConfig()
	cfg.AlertRules = "broken=item.quantity >"

	_, err := Build(context.Background(), cfg, logger.NewNop())
	assert.Error(t, err)
}
