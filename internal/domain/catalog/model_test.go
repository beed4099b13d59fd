package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pharmaledger/internal/core/apperror"
	"pharmaledger/internal/core/types"
)

func money(s string) *types.Money {
	return types.MoneyPtr(types.MustMoney(s))
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestItem_Status(t *testing.T) {
	tests := []struct {
		name     string
		qty      int64
		reorder  int64
		maxStock int64
		want     StockStatus
	}{
		{"out of stock wins over low stock", 0, 10, 1000, StatusOutOfStock},
		{"at reorder level", 10, 10, 1000, StatusLowStock},
		{"low stock wins over overstock", 5, 10, 4, StatusLowStock},
		{"at max", 1000, 10, 1000, StatusOverstock},
		{"between", 70, 10, 1000, StatusInStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := &Item{QuantityOnHand: tt.qty, ReorderLevel: tt.reorder, MaxStockLevel: tt.maxStock}
			assert.Equal(t, tt.want, item.Status())
		})
	}
}

func TestItem_LowStockScenario(t *testing.T) {
	item := &Item{QuantityOnHand: 5, ReorderLevel: 10, MaxStockLevel: 1000}

	assert.True(t, item.IsLowStock())
	assert.Equal(t, StatusLowStock, item.Status())
}

func TestItem_ProfitMargin(t *testing.T) {
	assert.Equal(t, "50", (&Item{CostPrice: money("10"), SellingPrice: money("15")}).ProfitMargin().String())
	assert.Equal(t, "33.33", (&Item{CostPrice: money("15"), SellingPrice: money("20")}).ProfitMargin().String())
	assert.True(t, (&Item{CostPrice: money("0"), SellingPrice: money("15")}).ProfitMargin().IsZero())
	assert.True(t, (&Item{SellingPrice: money("15")}).ProfitMargin().IsZero())
}

func TestItem_Expiry(t *testing.T) {
	today := time.Date(2026, 5, 1, 14, 0, 0, 0, time.UTC)

	expired := &Item{ExpiryDate: date(2026, 4, 30)}
	assert.True(t, expired.IsExpired(today))
	assert.Equal(t, -1, *expired.DaysToExpiry(today))

	sameDay := &Item{ExpiryDate: date(2026, 5, 1)}
	assert.False(t, sameDay.IsExpired(today))
	assert.Equal(t, 0, *sameDay.DaysToExpiry(today))

	none := &Item{}
	assert.False(t, none.IsExpired(today))
	assert.Nil(t, none.DaysToExpiry(today))
}

func TestItem_StockValue(t *testing.T) {
	item := &Item{QuantityOnHand: 70, CostPrice: money("15")}
	assert.Equal(t, "1050", item.StockValue().String())
	assert.True(t, (&Item{QuantityOnHand: 3}).StockValue().IsZero())
}

func TestItem_Validate(t *testing.T) {
	tests := []struct {
		name  string
		item  Item
		field string
	}{
		{"blank name", Item{Name: "   "}, "name"},
		{"negative cost", Item{Name: "A", CostPrice: money("-1")}, "cost_price"},
		{"negative mrp", Item{Name: "A", MRP: money("-0.01")}, "mrp"},
		{"discount above 100", Item{Name: "A", DiscountPercentage: money("100.5")}, "discount_percentage"},
		{"negative reorder", Item{Name: "A", ReorderLevel: -1}, "reorder_level"},
		{"expiry before manufacture", Item{Name: "A", ManufacturingDate: date(2026, 1, 1), ExpiryDate: date(2025, 1, 1)}, "expiry_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			appErr, ok := apperror.AsAppError(err)
			if assert.True(t, ok) {
				assert.Equal(t, apperror.CodeValidation, appErr.Code)
				assert.Equal(t, tt.field, appErr.Details["field"])
			}
		})
	}

	valid := Item{Name: "Paracetamol 500mg", CostPrice: money("0"), DiscountPercentage: money("100")}
	assert.NoError(t, valid.Validate())
}
