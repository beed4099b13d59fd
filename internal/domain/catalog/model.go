// Package catalog implements the tenant's inventory catalog of stock-keeping units.
package catalog

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pharmaledger/internal/core/apperror"
	"pharmaledger/internal/core/id"
	"pharmaledger/internal/core/types"
)

// Defaults applied to new items when the caller leaves the field empty.
const (
	DefaultUnit          = "pieces"
	DefaultReorderLevel  = 10
	DefaultMaxStockLevel = 1000
)

// StockStatus is the derived stock classification of an item.
type StockStatus string

const (
	StatusOutOfStock StockStatus = "Out of Stock"
	StatusLowStock   StockStatus = "Low Stock"
	StatusOverstock  StockStatus = "Overstock"
	StatusInStock    StockStatus = "In Stock"
)

// Item is one stockable medicine entry.
// QuantityOnHand is a cached projection of the stock ledger and is changed only by the ledger.
type Item struct {
	ID       id.ID  `db:"id"`
	TenantID string `db:"tenant_id"`

	Name             string `db:"name"`
	GenericName      string `db:"generic_name"`
	BrandName        string `db:"brand_name"`
	Manufacturer     string `db:"manufacturer"`
	Category         string `db:"category"`
	TherapeuticClass string `db:"therapeutic_class"`
	Composition      string `db:"composition"`
	Strength         string `db:"strength"`
	DosageForm       string `db:"dosage_form"`
	BatchNumber      string `db:"batch_number"`
	StorageLocation  string `db:"storage_location"`
	Schedule         string `db:"schedule"`

	QuantityOnHand    int64  `db:"quantity_on_hand"`
	UnitOfMeasurement string `db:"unit_of_measurement"`
	ReorderLevel      int64  `db:"reorder_level"`
	MaxStockLevel     int64  `db:"max_stock_level"`

	CostPrice          *types.Money `db:"cost_price"`
	SellingPrice       *types.Money `db:"selling_price"`
	MRP                *types.Money `db:"mrp"`
	DiscountPercentage *types.Money `db:"discount_percentage"`

	ManufacturingDate *time.Time `db:"manufacturing_date"`
	ExpiryDate        *time.Time `db:"expiry_date"`

	IsActive             bool       `db:"is_active"`
	IsBanned             bool       `db:"is_banned"`
	PrescriptionRequired bool       `db:"prescription_required"`
	RetiredAt            *time.Time `db:"retired_at"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// IsExpired reports whether the expiry date is before today.
func (i *Item) IsExpired(today time.Time) bool {
	return i.ExpiryDate != nil && types.Date(*i.ExpiryDate).Before(types.Date(today))
}

// DaysToExpiry returns days until expiry (negative once expired), or nil without an expiry date.
func (i *Item) DaysToExpiry(today time.Time) *int {
	if i.ExpiryDate == nil {
		return nil
	}
	d := types.DaysBetween(today, *i.ExpiryDate)
	return &d
}

// IsLowStock reports quantity at or below the reorder level.
func (i *Item) IsLowStock() bool {
	return i.QuantityOnHand <= i.ReorderLevel
}

// Status resolves the stock status; earlier rules win.
func (i *Item) Status() StockStatus {
	switch {
	case i.QuantityOnHand == 0:
		return StatusOutOfStock
	case i.IsLowStock():
		return StatusLowStock
	case i.QuantityOnHand >= i.MaxStockLevel:
		return StatusOverstock
	default:
		return StatusInStock
	}
}

var hundred = decimal.NewFromInt(100)

// ProfitMargin is (selling - cost) / cost * 100, or zero unless both prices are present and cost is positive.
func (i *Item) ProfitMargin() types.Money {
	if i.CostPrice == nil || i.SellingPrice == nil || !i.CostPrice.IsPositive() {
		return decimal.Zero
	}
	return types.Round2(i.SellingPrice.Sub(*i.CostPrice).Div(*i.CostPrice).Mul(hundred))
}

// StockValue is quantity on hand times cost price.
func (i *Item) StockValue() types.Money {
	return decimal.NewFromInt(i.QuantityOnHand).Mul(types.OrZero(i.CostPrice))
}

// Validate checks field invariants shared by create and update.
func (i *Item) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return apperror.NewFieldValidation("name", "name is required")
	}
	prices := []struct {
		field string
		value *types.Money
	}{
		{"cost_price", i.CostPrice},
		{"selling_price", i.SellingPrice},
		{"mrp", i.MRP},
		{"discount_percentage", i.DiscountPercentage},
	}
	for _, p := range prices {
		if types.IsNegative(p.value) {
			return apperror.NewFieldValidation(p.field, p.field+" must not be negative")
		}
	}
	if i.DiscountPercentage != nil && i.DiscountPercentage.GreaterThan(hundred) {
		return apperror.NewFieldValidation("discount_percentage", "discount_percentage must not exceed 100")
	}
	if i.ReorderLevel < 0 {
		return apperror.NewFieldValidation("reorder_level", "reorder_level must not be negative")
	}
	if i.MaxStockLevel < 0 {
		return apperror.NewFieldValidation("max_stock_level", "max_stock_level must not be negative")
	}
	if i.ManufacturingDate != nil && i.ExpiryDate != nil && i.ExpiryDate.Before(*i.ManufacturingDate) {
		return apperror.NewFieldValidation("expiry_date", "expiry_date must not be before manufacturing_date")
	}
	return nil
}

// Summary holds tenant-wide counters over all active items.
type Summary struct {
	TotalActive    int64       `json:"total_items"`
	LowStock       int64       `json:"low_stock"`
	OutOfStock     int64       `json:"out_of_stock"`
	Expired        int64       `json:"expired"`
	ExpiringSoon   int64       `json:"expiring_soon"`
	InventoryValue types.Money `json:"total_inventory_value"`
}

// CategoryCount is the number of active items in one category.
type CategoryCount struct {
	Name  string `db:"category" json:"name"`
	Count int64  `db:"count" json:"count"`
}
