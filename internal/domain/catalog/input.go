package catalog

import (
	"strings"
	"time"

	"pharmaledger/internal/core/types"
)

// Fields are the caller-editable attributes of an item.
// In an update, nil pointers leave the stored value unchanged.
type Fields struct {
	Name             *string
	GenericName      *string
	BrandName        *string
	Manufacturer     *string
	Category         *string
	TherapeuticClass *string
	Composition      *string
	Strength         *string
	DosageForm       *string
	BatchNumber      *string
	StorageLocation  *string
	Schedule         *string

	UnitOfMeasurement *string
	ReorderLevel      *int64
	MaxStockLevel     *int64

	CostPrice          *types.Money
	SellingPrice       *types.Money
	MRP                *types.Money
	DiscountPercentage *types.Money

	ManufacturingDate *time.Time
	ExpiryDate        *time.Time

	IsBanned             *bool
	PrescriptionRequired *bool
}

// CreateInput is the input of Create.
type CreateInput struct {
	Fields
	OpeningQuantity int64
	// OpeningReference is stored as the reference_id of the opening movement.
	OpeningReference *string
}

// apply copies every set field onto item.
func (f Fields) apply(item *Item) {
	setStr := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	setStr(&item.Name, f.Name)
	setStr(&item.GenericName, f.GenericName)
	setStr(&item.BrandName, f.BrandName)
	setStr(&item.Manufacturer, f.Manufacturer)
	setStr(&item.Category, f.Category)
	setStr(&item.TherapeuticClass, f.TherapeuticClass)
	setStr(&item.Composition, f.Composition)
	setStr(&item.Strength, f.Strength)
	setStr(&item.DosageForm, f.DosageForm)
	setStr(&item.BatchNumber, f.BatchNumber)
	setStr(&item.StorageLocation, f.StorageLocation)
	setStr(&item.Schedule, f.Schedule)
	setStr(&item.UnitOfMeasurement, f.UnitOfMeasurement)

	if f.ReorderLevel != nil {
		item.ReorderLevel = *f.ReorderLevel
	}
	if f.MaxStockLevel != nil {
		item.MaxStockLevel = *f.MaxStockLevel
	}
	if f.CostPrice != nil {
		item.CostPrice = types.MoneyPtr(*f.CostPrice)
	}
	if f.SellingPrice != nil {
		item.SellingPrice = types.MoneyPtr(*f.SellingPrice)
	}
	if f.MRP != nil {
		item.MRP = types.MoneyPtr(*f.MRP)
	}
	if f.DiscountPercentage != nil {
		item.DiscountPercentage = types.MoneyPtr(*f.DiscountPercentage)
	}
	if f.ManufacturingDate != nil {
		d := types.Date(*f.ManufacturingDate)
		item.ManufacturingDate = &d
	}
	if f.ExpiryDate != nil {
		d := types.Date(*f.ExpiryDate)
		item.ExpiryDate = &d
	}
	if f.IsBanned != nil {
		item.IsBanned = *f.IsBanned
	}
	if f.PrescriptionRequired != nil {
		item.PrescriptionRequired = *f.PrescriptionRequired
	}
}

// names lists the fields set in an update, for the audit trail.
func (f Fields) names() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(f.Name != nil, "name")
	add(f.GenericName != nil, "generic_name")
	add(f.BrandName != nil, "brand_name")
	add(f.Manufacturer != nil, "manufacturer")
	add(f.Category != nil, "category")
	add(f.TherapeuticClass != nil, "therapeutic_class")
	add(f.Composition != nil, "composition")
	add(f.Strength != nil, "strength")
	add(f.DosageForm != nil, "dosage_form")
	add(f.BatchNumber != nil, "batch_number")
	add(f.StorageLocation != nil, "storage_location")
	add(f.Schedule != nil, "schedule")
	add(f.UnitOfMeasurement != nil, "unit_of_measurement")
	add(f.ReorderLevel != nil, "reorder_level")
	add(f.MaxStockLevel != nil, "max_stock_level")
	add(f.CostPrice != nil, "cost_price")
	add(f.SellingPrice != nil, "selling_price")
	add(f.MRP != nil, "mrp")
	add(f.DiscountPercentage != nil, "discount_percentage")
	add(f.ManufacturingDate != nil, "manufacturing_date")
	add(f.ExpiryDate != nil, "expiry_date")
	add(f.IsBanned != nil, "is_banned")
	add(f.PrescriptionRequired != nil, "prescription_required")
	return out
}
