package ledger_test

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmaledger/internal/core/apperror"
	"pharmaledger/internal/core/id"
	"pharmaledger/internal/core/types"
	"pharmaledger/internal/domain"
	"pharmaledger/internal/domain/audit"
	"pharmaledger/internal/domain/catalog"
	"pharmaledger/internal/domain/ledger"
	"pharmaledger/internal/domain/quota"
	"pharmaledger/internal/infrastructure/storage/memory"
)

const tenantA = "clinic-a"

type fixture struct {
	store   *memory.Store
	now     time.Time
	ledger  *ledger.Service
	catalog *catalog.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: memory.New(), now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }

	gate := quota.NewGate(f.store.Subscriptions(), f.store.Counter(), f.store, quota.Config{Now: clock})
	_, err := gate.ChangePlan(context.Background(), tenantA, quota.PlanChange{PlanName: "enterprise"})
	require.NoError(t, err)

	f.ledger = f.newLedger(f.store.Movements())
	f.catalog = catalog.NewService(catalog.Config{
		Repo: f.store.Catalog(), TxManager: f.store, Quota: gate, Stock: f.ledger, Audit: f.store.Audit(), Now: clock,
	})
	return f
}

func (f *fixture) newLedger(movements ledger.Repository) *ledger.Service {
	return ledger.NewService(ledger.Config{
		Items:     f.store.Catalog(),
		Movements: movements,
		TxManager: f.store,
		Audit:     f.store.Audit(),
		Now:       func() time.Time { return f.now },
	})
}

func (f *fixture) createItem(t *testing.T, name string, opening int64, cost string) *catalog.Item {
	t.Helper()
	in := catalog.CreateInput{Fields: catalog.Fields{Name: &name}, OpeningQuantity: opening}
	if cost != "" {
		in.CostPrice = types.MoneyPtr(types.MustMoney(cost))
	}
	item, err := f.catalog.Create(context.Background(), tenantA, in)
	require.NoError(t, err)
	return item
}

func (f *fixture) quantity(t *testing.T, itemID id.ID) int64 {
	t.Helper()
	item, err := f.store.Catalog().Get(context.Background(), tenantA, itemID)
	require.NoError(t, err)
	return item.QuantityOnHand
}

func TestRecord_SaleScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.createItem(t, "Paracetamol 500mg", 100, "15")

	res, err := f.ledger.Record(ctx, tenantA, ledger.RecordRequest{
		ItemID:        item.ID,
		Type:          ledger.MovementOut,
		Quantity:      30,
		ReferenceType: ledger.RefSale,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(70), res.Item.QuantityOnHand)
	assert.Equal(t, catalog.StatusInStock, res.Item.Status())
	assert.Equal(t, int64(-30), res.Movement.Delta)
	assert.Equal(t, "450", res.Movement.TotalCost.String())

	history, err := f.ledger.History(ctx, tenantA, ledger.HistoryFilter{ItemID: &item.ID})
	require.NoError(t, err)
	require.Len(t, history.Items, 2)
	assert.Equal(t, ledger.MovementOut, history.Items[0].Type)
	assert.Equal(t, int64(30), history.Items[0].Quantity)
	assert.Equal(t, ledger.MovementIn, history.Items[1].Type)
	assert.Equal(t, int64(100), history.Items[1].Quantity)
}

func TestRecord_InsufficientStockLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.createItem(t, "Atorvastatin 10mg", 5, "")

	_, err := f.ledger.Record(ctx, tenantA, ledger.RecordRequest{ItemID: item.ID, Type: ledger.MovementOut, Quantity: 8})

	require.True(t, apperror.IsInsufficientStock(err))
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, "Insufficient stock: requested 8, available 5", appErr.Message)
	assert.Equal(t, int64(5), f.quantity(t, item.ID))

	history, err := f.ledger.History(ctx, tenantA, ledger.HistoryFilter{ItemID: &item.ID})
	require.NoError(t, err)
	assert.Len(t, history.Items, 1)
}

func TestRecord_NoNegativeStockForAnyDecrease(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.createItem(t, "Omeprazole 20mg", 3, "")

	for _, typ := range []ledger.MovementType{ledger.MovementOut, ledger.MovementExpired, ledger.MovementDamaged} {
		_, err := f.ledger.Record(ctx, tenantA, ledger.RecordRequest{ItemID: item.ID, Type: typ, Quantity: 4})
		assert.True(t, apperror.IsInsufficientStock(err), typ)
	}
	_, err := f.ledger.Record(ctx, tenantA, ledger.RecordRequest{ItemID: item.ID, Type: ledger.MovementAdjustment, Delta: -4})
	assert.True(t, apperror.IsInsufficientStock(err))

	_, err = f.ledger.Record(ctx, tenantA, ledger.RecordRequest{ItemID: item.ID, Type: ledger.MovementExpired, Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.quantity(t, item.ID))
}

func TestRecord_Adjustment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.createItem(t, "Salbutamol inhaler", 10, "")

	res, err := f.ledger.Record(ctx, tenantA, ledger.RecordRequest{
		ItemID: item.ID, Type: ledger.MovementAdjustment, Delta: -4, Notes: "stock count",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Movement.Quantity)
	assert.Equal(t, int64(-4), res.Movement.Delta)
	assert.Equal(t, ledger.RefManualAdjustment, res.Movement.ReferenceType)
	assert.Equal(t, int64(6), res.Item.QuantityOnHand)

	_, err = f.ledger.Record(ctx, tenantA, ledger.RecordRequest{ItemID: item.ID, Type: ledger.MovementAdjustment, Quantity: 5})
	assert.True(t, apperror.IsValidation(err))
}

func TestRecord_LedgerSumInvariant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.createItem(t, "Amlodipine 5mg", 50, "")
	rng := rand.New(rand.NewPCG(7, 11))
	kinds := []ledger.MovementType{
		ledger.MovementIn, ledger.MovementOut, ledger.MovementAdjustment, ledger.MovementExpired, ledger.MovementDamaged,
	}

	for range 200 {
		req := ledger.RecordRequest{ItemID: item.ID, Type: kinds[rng.IntN(len(kinds))]}
		if req.Type == ledger.MovementAdjustment {
			req.Delta = rng.Int64N(41) - 20
			if req.Delta == 0 {
				req.Delta = 1
			}
		} else {
			req.Quantity = rng.Int64N(20) + 1
		}

		before := f.quantity(t, item.ID)
		_, err := f.ledger.Record(ctx, tenantA, req)
		if err != nil {
			require.True(t, apperror.IsInsufficientStock(err))
			assert.Equal(t, before, f.quantity(t, item.ID))
		}

		drift, err := f.ledger.Reconcile(ctx, tenantA, item.ID, false)
		require.NoError(t, err)
		require.True(t, drift.InSync(), "cached %d, ledger %d", drift.Cached, drift.Ledger)
		require.GreaterOrEqual(t, drift.Cached, int64(0))
	}
}

type failingAppend struct {
	ledger.Repository
}

func (failingAppend) Append(context.Context, *ledger.Movement) error {
	return errors.New("disk full")
}

func TestRecord_AppendFailureRollsBackQuantity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.createItem(t, "Losartan 50mg", 40, "")
	broken := f.newLedger(failingAppend{f.store.Movements()})

	_, err := broken.Record(ctx, tenantA, ledger.RecordRequest{ItemID: item.ID, Type: ledger.MovementIn, Quantity: 25})

	require.ErrorContains(t, err, "disk full")
	assert.Equal(t, int64(40), f.quantity(t, item.ID))
	drift, err := f.ledger.Reconcile(ctx, tenantA, item.ID, false)
	require.NoError(t, err)
	assert.True(t, drift.InSync())
}

type panickingAppend struct {
	ledger.Repository
}

func (panickingAppend) Append(context.Context, *ledger.Movement) error {
	panic("connection reset mid-write")
}

func TestRecord_PanicDuringAppendRollsBackQuantity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.createItem(t, "Metoprolol 25mg", 100, "")
	broken := f.newLedger(panickingAppend{f.store.Movements()})

	assert.Panics(t, func() {
		_, _ = broken.Record(ctx, tenantA, ledger.RecordRequest{ItemID: item.ID, Type: ledger.MovementOut, Quantity: 30})
	})

	assert.Equal(t, int64(100), f.quantity(t, item.ID))
	drift, err := f.ledger.Reconcile(ctx, tenantA, item.ID, false)
	require.NoError(t, err)
	assert.True(t, drift.InSync(), "cached %d, ledger %d", drift.Cached, drift.Ledger)

	// The store is usable again once the panicking unit of work is gone.
	_, err = f.ledger.Record(ctx, tenantA, ledger.RecordRequest{ItemID: item.ID, Type: ledger.MovementOut, Quantity: 30})
	require.NoError(t, err)
	assert.Equal(t, int64(70), f.quantity(t, item.ID))
}

func TestRecord_ConcurrentDispensesNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.createItem(t, "Heparin 5000IU", 100, "")

	const workers, each = 8, 30
	var (
		wg           sync.WaitGroup
		succeeded    atomic.Int64
		insufficient atomic.Int64
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.Record(ctx, tenantA, ledger.RecordRequest{ItemID: item.ID, Type: ledger.MovementOut, Quantity: each})
			switch {
			case err == nil:
				succeeded.Add(1)
			case apperror.IsInsufficientStock(err):
				insufficient.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100/each), succeeded.Load())
	assert.Equal(t, int64(workers-100/each), insufficient.Load())
	assert.Equal(t, int64(100-each*(100/each)), f.quantity(t, item.ID))
	drift, err := f.ledger.Reconcile(ctx, tenantA, item.ID, false)
	require.NoError(t, err)
	assert.True(t, drift.InSync(), "cached %d, ledger %d", drift.Cached, drift.Ledger)
}

func TestRecord_RejectsQuantityOverflow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.createItem(t, "Cetirizine 10mg", 10, "")

	_, err := f.ledger.Record(ctx, tenantA, ledger.RecordRequest{ItemID: item.ID, Type: ledger.MovementIn, Quantity: math.MaxInt64})
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	assert.False(t, apperror.IsInsufficientStock(err))

	_, err = f.ledger.Record(ctx, tenantA, ledger.RecordRequest{ItemID: item.ID, Type: ledger.MovementAdjustment, Delta: math.MinInt64})
	assert.True(t, apperror.IsValidation(err))
	assert.Equal(t, int64(10), f.quantity(t, item.ID))
}

func TestRecord_UnknownRetiredOrForeignItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.createItem(t, "Heparin", 10, "")
	retired := f.createItem(t, "Warfarin", 10, "")
	require.NoError(t, f.catalog.Retire(ctx, tenantA, retired.ID))

	in := func(tenantID string, itemID id.ID) error {
		_, err := f.ledger.Record(ctx, tenantID, ledger.RecordRequest{ItemID: itemID, Type: ledger.MovementIn, Quantity: 1})
		return err
	}

	assert.True(t, apperror.IsNotFound(in(tenantA, id.New())))
	assert.True(t, apperror.IsNotFound(in(tenantA, retired.ID)))
	assert.True(t, apperror.IsNotFound(in("clinic-b", item.ID)))
	assert.Equal(t, int64(10), f.quantity(t, item.ID))
}

func TestRecord_UnitCostDefaultsAndAudit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.createItem(t, "Ceftriaxone 1g", 0, "42.50")

	res, err := f.ledger.Record(ctx, tenantA, ledger.RecordRequest{
		ItemID: item.ID, Type: ledger.MovementIn, Quantity: 3, ReferenceType: ledger.RefPurchase, SupplierName: "MedSupply",
	})
	require.NoError(t, err)
	assert.Equal(t, "42.5", res.Movement.UnitCost.String())
	assert.Equal(t, "127.5", res.Movement.TotalCost.String())

	_, err = f.ledger.Record(ctx, tenantA, ledger.RecordRequest{
		ItemID: item.ID, Type: ledger.MovementIn, Quantity: 1, UnitCost: types.MoneyPtr(types.MustMoney("-1")),
	})
	assert.True(t, apperror.IsValidation(err))

	var movements int
	for _, e := range f.store.Audit().Entries(ctx, tenantA) {
		if e.Action == audit.ActionMovement {
			movements++
		}
	}
	assert.Equal(t, 1, movements)
}

func TestRecord_RunsAfterCreateHooks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.createItem(t, "Ondansetron 4mg", 0, "")

	var seen []id.ID
	f.ledger.Hooks().On(domain.AfterCreate, func(_ context.Context, m *ledger.Movement) error {
		seen = append(seen, m.ID)
		return errors.New("cache offline")
	})

	res, err := f.ledger.Record(ctx, tenantA, ledger.RecordRequest{ItemID: item.ID, Type: ledger.MovementIn, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, []id.ID{res.Movement.ID}, seen)
}

func TestHistory_Filters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.createItem(t, "Item A", 10, "")
	b := f.createItem(t, "Item B", 10, "")

	f.now = f.now.AddDate(0, 0, 1)
	_, err := f.ledger.Record(ctx, tenantA, ledger.RecordRequest{ItemID: a.ID, Type: ledger.MovementOut, Quantity: 1})
	require.NoError(t, err)
	f.now = f.now.AddDate(0, 0, 1)
	_, err = f.ledger.Record(ctx, tenantA, ledger.RecordRequest{ItemID: b.ID, Type: ledger.MovementDamaged, Quantity: 1})
	require.NoError(t, err)

	all, err := f.ledger.History(ctx, tenantA, ledger.HistoryFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), all.TotalCount)
	assert.Equal(t, ledger.MovementDamaged, all.Items[0].Type)

	outs, err := f.ledger.History(ctx, tenantA, ledger.HistoryFilter{Type: "out"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), outs.TotalCount)

	day := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
	onDay, err := f.ledger.History(ctx, tenantA, ledger.HistoryFilter{From: &day, To: &day})
	require.NoError(t, err)
	require.Len(t, onDay.Items, 1)
	assert.Equal(t, a.ID, onDay.Items[0].ItemID)

	earlier := day.AddDate(0, 0, -1)
	_, err = f.ledger.History(ctx, tenantA, ledger.HistoryFilter{From: &day, To: &earlier})
	assert.True(t, apperror.IsValidation(err))

	count, err := f.ledger.CountSince(ctx, tenantA, day)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestReconcile_DetectsAndRepairsDrift(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.createItem(t, "Diclofenac gel", 12, "")
	healthy := f.createItem(t, "Loratadine 10mg", 8, "")
	require.NoError(t, f.store.Catalog().SetQuantity(ctx, tenantA, item.ID, 99, f.now))

	report, err := f.ledger.ReconcileTenant(ctx, tenantA, false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	require.Len(t, report.Drifts, 1)
	assert.Equal(t, item.ID, report.Drifts[0].ItemID)
	assert.Equal(t, int64(99), report.Drifts[0].Cached)
	assert.Equal(t, int64(12), report.Drifts[0].Ledger)
	assert.Equal(t, int64(99), f.quantity(t, item.ID))

	report, err = f.ledger.ReconcileTenant(ctx, tenantA, true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Repaired)
	assert.Equal(t, int64(12), f.quantity(t, item.ID))
	assert.Equal(t, int64(8), f.quantity(t, healthy.ID))

	var repairs int
	for _, e := range f.store.Audit().Entries(ctx, tenantA) {
		if e.Action == audit.ActionRepair {
			repairs++
		}
	}
	assert.Equal(t, 1, repairs)
}
