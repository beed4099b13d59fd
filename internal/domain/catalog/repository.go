package catalog

import (
	"context"
	"time"

	"pharmaledger/internal/core/id"
	"pharmaledger/internal/domain"
)

// StatusFilter restricts a listing by derived status.
type StatusFilter string

const (
	FilterLowStock     StatusFilter = "low_stock"
	FilterExpired      StatusFilter = "expired"
	FilterExpiringSoon StatusFilter = "expiring_soon"
)

// ListFilter contains listing options. Only active items are ever listed.
type ListFilter struct {
	// Search matches name, generic name, brand name and manufacturer (case-insensitive substring).
	Search   string
	Category string
	Status   StatusFilter

	// OrderBy is a column name, "-" prefix for descending. Empty means name ascending.
	OrderBy string

	Limit  int
	Offset int

	// Today and ExpiringWithinDays anchor the expiry filters.
	Today              time.Time
	ExpiringWithinDays int
}

// SortColumns are the accepted OrderBy columns.
var SortColumns = []string{
	"name", "category", "quantity_on_hand", "expiry_date", "selling_price", "cost_price", "created_at", "updated_at",
}

// Repository stores catalog items. Every method is scoped by tenantID; a row of
// another tenant behaves exactly like a missing row.
type Repository interface {
	Create(ctx context.Context, item *Item) error

	// Get returns the item whether active or retired, or NotFound.
	Get(ctx context.Context, tenantID string, itemID id.ID) (*Item, error)

	// GetForUpdate is Get with a row lock held until the transaction ends.
	GetForUpdate(ctx context.Context, tenantID string, itemID id.ID) (*Item, error)

	// FindActiveByName returns the oldest active item with exactly this name, locked, or NotFound.
	FindActiveByName(ctx context.Context, tenantID, name string) (*Item, error)

	// Update writes descriptive, pricing and lifecycle fields. It never writes quantity_on_hand.
	Update(ctx context.Context, item *Item) error

	// SetQuantity writes the cached quantity. Only the stock ledger calls it.
	SetQuantity(ctx context.Context, tenantID string, itemID id.ID, quantity int64, at time.Time) error

	Retire(ctx context.Context, tenantID string, itemID id.ID, at time.Time) error

	List(ctx context.Context, tenantID string, filter ListFilter) (domain.ListResult[*Item], error)

	// ListActive returns every active item, for sweeps such as alert evaluation.
	ListActive(ctx context.Context, tenantID string) ([]*Item, error)

	// ListIDs returns the IDs of all items including retired ones.
	ListIDs(ctx context.Context, tenantID string) ([]id.ID, error)

	Summary(ctx context.Context, tenantID string, today time.Time, expiringWithinDays int) (Summary, error)
	Categories(ctx context.Context, tenantID string) ([]string, error)
	TopCategories(ctx context.Context, tenantID string, limit int) ([]CategoryCount, error)
	CountActive(ctx context.Context, tenantID string) (int64, error)
}
