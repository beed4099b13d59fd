package dto

import (
	"time"

	"pharmaledger/internal/core/types"
	"pharmaledger/internal/domain/catalog"
)

// ItemFields are the editable attributes. Absent fields are left unchanged on update.
type ItemFields struct {
	Name             *string `json:"name"`
	GenericName      *string `json:"generic_name"`
	BrandName        *string `json:"brand_name"`
	Manufacturer     *string `json:"manufacturer"`
	Category         *string `json:"category"`
	TherapeuticClass *string `json:"therapeutic_class"`
	Composition      *string `json:"composition"`
	Strength         *string `json:"strength"`
	DosageForm       *string `json:"dosage_form"`
	BatchNumber      *string `json:"batch_number"`
	StorageLocation  *string `json:"storage_location"`
	Schedule         *string `json:"schedule"`

	UnitOfMeasurement *string `json:"unit_of_measurement"`
	ReorderLevel      *int64  `json:"reorder_level"`
	MaxStockLevel     *int64  `json:"max_stock_level"`

	CostPrice          *types.Money `json:"cost_price"`
	SellingPrice       *types.Money `json:"selling_price"`
	MRP                *types.Money `json:"mrp"`
	DiscountPercentage *types.Money `json:"discount_percentage"`

	ManufacturingDate *Date `json:"manufacturing_date"`
	ExpiryDate        *Date `json:"expiry_date"`

	IsBanned             *bool `json:"is_banned"`
	PrescriptionRequired *bool `json:"prescription_required"`
}

// ToFields converts the request into catalog fields.
func (r ItemFields) ToFields() catalog.Fields {
	return catalog.Fields{
		Name:                 r.Name,
		GenericName:          r.GenericName,
		BrandName:            r.BrandName,
		Manufacturer:         r.Manufacturer,
		Category:             r.Category,
		TherapeuticClass:     r.TherapeuticClass,
		Composition:          r.Composition,
		Strength:             r.Strength,
		DosageForm:           r.DosageForm,
		BatchNumber:          r.BatchNumber,
		StorageLocation:      r.StorageLocation,
		Schedule:             r.Schedule,
		UnitOfMeasurement:    r.UnitOfMeasurement,
		ReorderLevel:         r.ReorderLevel,
		MaxStockLevel:        r.MaxStockLevel,
		CostPrice:            r.CostPrice,
		SellingPrice:         r.SellingPrice,
		MRP:                  r.MRP,
		DiscountPercentage:   r.DiscountPercentage,
		ManufacturingDate:    r.ManufacturingDate.Ptr(),
		ExpiryDate:           r.ExpiryDate.Ptr(),
		IsBanned:             r.IsBanned,
		PrescriptionRequired: r.PrescriptionRequired,
	}
}

// CreateItemRequest creates an item with optional opening stock.
type CreateItemRequest struct {
	ItemFields
	Quantity int64 `json:"quantity_on_hand"`
}

// ToInput converts the request into a catalog create input.
func (r CreateItemRequest) ToInput() catalog.CreateInput {
	return catalog.CreateInput{Fields: r.ToFields(), OpeningQuantity: r.Quantity}
}

// ItemResponse is an item with its derived indicators.
type ItemResponse struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	GenericName      string `json:"generic_name"`
	BrandName        string `json:"brand_name"`
	Manufacturer     string `json:"manufacturer"`
	Category         string `json:"category"`
	TherapeuticClass string `json:"therapeutic_class"`
	Composition      string `json:"composition"`
	Strength         string `json:"strength"`
	DosageForm       string `json:"dosage_form"`
	BatchNumber      string `json:"batch_number"`
	StorageLocation  string `json:"storage_location"`
	Schedule         string `json:"schedule"`

	QuantityOnHand    int64  `json:"quantity_on_hand"`
	UnitOfMeasurement string `json:"unit_of_measurement"`
	ReorderLevel      int64  `json:"reorder_level"`
	MaxStockLevel     int64  `json:"max_stock_level"`

	CostPrice          *types.Money `json:"cost_price"`
	SellingPrice       *types.Money `json:"selling_price"`
	MRP                *types.Money `json:"mrp"`
	DiscountPercentage *types.Money `json:"discount_percentage"`

	ManufacturingDate *Date `json:"manufacturing_date"`
	ExpiryDate        *Date `json:"expiry_date"`

	IsActive             bool `json:"is_active"`
	IsBanned             bool `json:"is_banned"`
	PrescriptionRequired bool `json:"prescription_required"`

	IsExpired    bool                `json:"is_expired"`
	DaysToExpiry *int                `json:"days_to_expiry"`
	IsLowStock   bool                `json:"is_low_stock"`
	StockStatus  catalog.StockStatus `json:"stock_status"`
	ProfitMargin types.Money         `json:"profit_margin"`
	StockValue   types.Money         `json:"stock_value"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FromItem renders an item as of today.
func FromItem(item *catalog.Item, today time.Time) ItemResponse {
	return ItemResponse{
		ID:                   item.ID.String(),
		Name:                 item.Name,
		GenericName:          item.GenericName,
		BrandName:            item.BrandName,
		Manufacturer:         item.Manufacturer,
		Category:             item.Category,
		TherapeuticClass:     item.TherapeuticClass,
		Composition:          item.Composition,
		Strength:             item.Strength,
		DosageForm:           item.DosageForm,
		BatchNumber:          item.BatchNumber,
		StorageLocation:      item.StorageLocation,
		Schedule:             item.Schedule,
		QuantityOnHand:       item.QuantityOnHand,
		UnitOfMeasurement:    item.UnitOfMeasurement,
		ReorderLevel:         item.ReorderLevel,
		MaxStockLevel:        item.MaxStockLevel,
		CostPrice:            item.CostPrice,
		SellingPrice:         item.SellingPrice,
		MRP:                  item.MRP,
		DiscountPercentage:   item.DiscountPercentage,
		ManufacturingDate:    NewDate(item.ManufacturingDate),
		ExpiryDate:           NewDate(item.ExpiryDate),
		IsActive:             item.IsActive,
		IsBanned:             item.IsBanned,
		PrescriptionRequired: item.PrescriptionRequired,
		IsExpired:            item.IsExpired(today),
		DaysToExpiry:         item.DaysToExpiry(today),
		IsLowStock:           item.IsLowStock(),
		StockStatus:          item.Status(),
		ProfitMargin:         item.ProfitMargin(),
		StockValue:           item.StockValue(),
		CreatedAt:            item.CreatedAt,
		UpdatedAt:            item.UpdatedAt,
	}
}

// FromItems renders a slice of items.
func FromItems(items []*catalog.Item, today time.Time) []ItemResponse {
	out := make([]ItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, FromItem(item, today))
	}
	return out
}

// ItemListQuery is the query string of the item listing.
// sort takes a column with an optional "-" prefix; sort_by/sort_order are accepted as well.
type ItemListQuery struct {
	PageQuery
	Search    string `form:"search"`
	Category  string `form:"category"`
	Status    string `form:"status"`
	Sort      string `form:"sort"`
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order"`
}

// ToQuery converts the query string into a catalog listing query.
func (q ItemListQuery) ToQuery() catalog.ListQuery {
	sort := q.Sort
	if sort == "" && q.SortBy != "" {
		sort = q.SortBy
		if q.SortOrder == "desc" {
			sort = "-" + sort
		}
	}
	return catalog.ListQuery{
		Search:   q.Search,
		Category: q.Category,
		Status:   q.Status,
		Sort:     sort,
		Page:     q.Page,
		PerPage:  q.PerPage,
	}
}

// ItemListResponse is one page of items with facets over the whole tenant.
type ItemListResponse struct {
	Items      []ItemResponse  `json:"items"`
	Pagination Pagination      `json:"pagination"`
	Categories []string        `json:"categories"`
	Summary    catalog.Summary `json:"summary"`
}

// ItemDetailResponse is an item with its latest movements.
type ItemDetailResponse struct {
	Item            ItemResponse       `json:"item"`
	RecentMovements []MovementResponse `json:"recent_movements"`
}
