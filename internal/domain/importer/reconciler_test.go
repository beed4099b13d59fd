package importer_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmaledger/internal/core/apperror"
	"pharmaledger/internal/core/numerator"
	"pharmaledger/internal/domain/catalog"
	"pharmaledger/internal/domain/importer"
	"pharmaledger/internal/domain/ledger"
	"pharmaledger/internal/domain/quota"
	"pharmaledger/internal/infrastructure/storage/memory"
)

const tenantA = "clinic-a"

type fixture struct {
	store    *memory.Store
	gate     *quota.Gate
	ledger   *ledger.Service
	catalog  *catalog.Service
	importer *importer.Reconciler
}

func newFixture(t *testing.T, plan quota.Plan) *fixture {
	t.Helper()
	ctx := context.Background()
	now := func() time.Time { return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC) }
	store := memory.New()

	f := &fixture{store: store}
	f.gate = quota.NewGate(store.Subscriptions(), store.Counter(), store, quota.Config{Now: now})
	_, err := f.gate.ChangePlanTo(ctx, tenantA, plan, quota.BillingMonthly)
	require.NoError(t, err)

	f.ledger = ledger.NewService(ledger.Config{
		Items: store.Catalog(), Movements: store.Movements(), TxManager: store, Audit: store.Audit(), Now: now,
	})
	f.catalog = catalog.NewService(catalog.Config{
		Repo: store.Catalog(), TxManager: store, Quota: f.gate, Stock: f.ledger, Audit: store.Audit(), Now: now,
	})
	f.importer = importer.NewReconciler(importer.Config{
		TxManager: store,
		Finder:    store.Catalog(),
		Catalog:   f.catalog,
		Ledger:    f.ledger,
		Now:       now,
	})
	return f
}

func unlimited() quota.Plan {
	p, _ := quota.DefaultPlans().Get("enterprise")
	return p
}

func (f *fixture) findActive(t *testing.T, name string) *catalog.Item {
	t.Helper()
	item, err := f.store.Catalog().FindActiveByName(context.Background(), tenantA, name)
	require.NoError(t, err)
	return item
}

func TestImport_SameNameInOneBatchMerges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, unlimited())

	result, err := f.importer.Import(ctx, tenantA, []importer.Row{
		{Name: "Amoxicillin 500mg", Quantity: "20"},
		{Name: "Amoxicillin 500mg", Quantity: "15"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Merged)
	assert.Equal(t, 0, result.Rejected)
	require.Len(t, result.CreatedItems, 1)
	assert.Equal(t, int64(20), result.CreatedItems[0].Quantity)
	require.Len(t, result.MergedItems, 1)
	assert.Equal(t, int64(35), result.MergedItems[0].Total)
	assert.Equal(t, 2, result.MergedItems[0].Row)

	item := f.findActive(t, "Amoxicillin 500mg")
	assert.Equal(t, int64(35), item.QuantityOnHand)
	n, _ := f.catalog.CountActive(ctx, tenantA)
	assert.Equal(t, int64(1), n)
}

func TestImport_TwiceIsOneItemWithTwoMovements(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, unlimited())
	rows := []importer.Row{{Name: "Azithromycin 250mg", Quantity: "12"}}

	_, err := f.importer.Import(ctx, tenantA, rows)
	require.NoError(t, err)
	second, err := f.importer.Import(ctx, tenantA, rows)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Merged)

	item := f.findActive(t, "Azithromycin 250mg")
	assert.Equal(t, int64(24), item.QuantityOnHand)

	history, err := f.ledger.History(ctx, tenantA, ledger.HistoryFilter{ItemID: &item.ID})
	require.NoError(t, err)
	require.Len(t, history.Items, 2)
	assert.Equal(t, ledger.RefImportMerge, history.Items[0].ReferenceType)
	assert.Equal(t, ledger.RefInitialStock, history.Items[1].ReferenceType)
	assert.Equal(t, int64(24), history.Items[0].Quantity+history.Items[1].Quantity)
}

func TestImport_RejectedRowsDoNotAbortBatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, unlimited())

	result, err := f.importer.Import(ctx, tenantA, []importer.Row{
		{Line: 2, Name: "", Quantity: "5"},
		{Line: 3, Name: "Cetirizine", Quantity: "-1"},
		{Line: 4, Name: "Cetirizine", Quantity: "many"},
		{Line: 5, Name: "Cetirizine", Quantity: "7"},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Rejected)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, []int{2, 3, 4}, []int{result.Errors[0].Row, result.Errors[1].Row, result.Errors[2].Row})
	assert.Equal(t, "Medicine name is required", result.Errors[0].Reason)
	assert.Equal(t, int64(7), f.findActive(t, "Cetirizine").QuantityOnHand)
}

func TestImport_RejectsOutOfRangeQuantities(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, unlimited())

	result, err := f.importer.Import(ctx, tenantA, []importer.Row{
		{Line: 2, Name: "Digoxin 0.25mg", Quantity: "20000000000000000000"},
		{Line: 3, Name: "Warfarin 5mg", Quantity: "10"},
		{Line: 4, Name: "Warfarin 5mg", Quantity: "9223372036854775807"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Rejected)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, []int{2, 4}, []int{result.Errors[0].Row, result.Errors[1].Row})
	assert.Contains(t, result.Errors[0].Reason, "exceeds")
	assert.Equal(t, int64(10), f.findActive(t, "Warfarin 5mg").QuantityOnHand)
	_, err = f.store.Catalog().FindActiveByName(ctx, tenantA, "Digoxin 0.25mg")
	assert.Error(t, err)
}

func TestImport_DerivesCostAndWarnsOnBadExpiry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, unlimited())

	result, err := f.importer.Import(ctx, tenantA, []importer.Row{
		{Name: "Pantoprazole 40mg", Quantity: "10", MRP: "30", ExpiryDate: "sometime"},
		{Name: "Ranitidine", Quantity: "10", MRP: "30", CostPrice: "12", SellingPrice: "-4", ExpiryDate: "31/12/2027"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	require.Len(t, result.Warnings, 2)
	assert.Equal(t, 1, result.Warnings[0].Row)
	assert.Contains(t, result.Warnings[0].Message, "expiry_date")
	assert.Contains(t, result.Warnings[1].Message, "selling_price")

	derived := f.findActive(t, "Pantoprazole 40mg")
	assert.Equal(t, "18", derived.CostPrice.String())
	assert.Nil(t, derived.ExpiryDate)

	explicit := f.findActive(t, "Ranitidine")
	assert.Equal(t, "12", explicit.CostPrice.String())
	assert.Nil(t, explicit.SellingPrice)
	assert.Equal(t, time.Date(2027, 12, 31, 0, 0, 0, 0, time.UTC), *explicit.ExpiryDate)
}

func TestImport_QuotaRejectsOnlyNewItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, quota.Plan{
		Name:   "tiny",
		Limits: map[quota.ResourceClass]quota.Limit{quota.ClassCatalogItem: quota.Limited(1)},
	})

	result, err := f.importer.Import(ctx, tenantA, []importer.Row{
		{Name: "Aspirin 75mg", Quantity: "10"},
		{Name: "Clopidogrel 75mg", Quantity: "10"},
		{Name: "Aspirin 75mg", Quantity: "5"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Merged)
	assert.Equal(t, 1, result.Rejected)
	assert.Equal(t, "Catalog item limit reached (1). Upgrade required.", result.Errors[0].Reason)

	_, err = f.store.Catalog().FindActiveByName(ctx, tenantA, "Clopidogrel 75mg")
	assert.True(t, apperror.IsNotFound(err))
}

func TestImport_ZeroQuantityMergeWritesNoMovement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, unlimited())

	_, err := f.importer.Import(ctx, tenantA, []importer.Row{
		{Name: "Bandage", Quantity: "3"},
		{Name: "Bandage", Quantity: "0"},
	})
	require.NoError(t, err)

	item := f.findActive(t, "Bandage")
	history, err := f.ledger.History(ctx, tenantA, ledger.HistoryFilter{ItemID: &item.ID})
	require.NoError(t, err)
	assert.Len(t, history.Items, 1)
	assert.Equal(t, int64(3), item.QuantityOnHand)
}

func TestImport_PreviewsAreBounded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, unlimited())

	var rows []importer.Row
	for i := range 12 {
		rows = append(rows, importer.Row{Name: fmt.Sprintf("Item %02d", i), Quantity: "1"})
	}
	for range 25 {
		rows = append(rows, importer.Row{Name: "", Quantity: "1"})
	}

	result, err := f.importer.Import(ctx, tenantA, rows)
	require.NoError(t, err)

	assert.Equal(t, 37, result.TotalRows)
	assert.Equal(t, 12, result.Created)
	assert.Len(t, result.CreatedItems, importer.MaxCreatedPreview)
	assert.Equal(t, 25, result.Rejected)
	assert.Len(t, result.Errors, importer.MaxErrorPreview)
}

func TestImport_StopsOnCancelledContext(t *testing.T) {
	f := newFixture(t, unlimited())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.importer.Import(ctx, tenantA, []importer.Row{{Name: "Zinc", Quantity: "1"}})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, result.Created)
}

func TestImport_StampsMovementsWithBatchNumber(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, unlimited())
	numbered := importer.NewReconciler(importer.Config{
		TxManager: f.store,
		Finder:    f.store.Catalog(),
		Catalog:   f.catalog,
		Ledger:    f.ledger,
		Numbers:   numerator.NewMemory(),
		Now:       func() time.Time { return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC) },
	})
	rows := []importer.Row{{Name: "Ceftriaxone 1g Injection", Quantity: "30"}}

	first, err := numbered.Import(ctx, tenantA, rows)
	require.NoError(t, err)
	second, err := numbered.Import(ctx, tenantA, rows)
	require.NoError(t, err)
	assert.Equal(t, "IMP-2026-00001", first.BatchNumber)
	assert.Equal(t, "IMP-2026-00002", second.BatchNumber)

	item := f.findActive(t, "Ceftriaxone 1g Injection")
	history, err := f.ledger.History(ctx, tenantA, ledger.HistoryFilter{ItemID: &item.ID})
	require.NoError(t, err)
	require.Len(t, history.Items, 2)
	require.NotNil(t, history.Items[0].ReferenceID)
	require.NotNil(t, history.Items[1].ReferenceID)
	assert.Equal(t, "IMP-2026-00002", *history.Items[0].ReferenceID)
	assert.Equal(t, "IMP-2026-00001", *history.Items[1].ReferenceID)
}
