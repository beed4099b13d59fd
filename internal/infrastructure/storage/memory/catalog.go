package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pharmaledger/internal/core/apperror"
	"pharmaledger/internal/core/id"
	"pharmaledger/internal/core/types"
	"pharmaledger/internal/domain"
	"pharmaledger/internal/domain/catalog"
)

// CatalogRepo implements catalog.Repository.
type CatalogRepo struct {
	store *Store
}

var _ catalog.Repository = (*CatalogRepo)(nil)

func notFound(itemID id.ID) error {
	return apperror.NewNotFound("catalog item", itemID.String())
}

func (r *CatalogRepo) Create(ctx context.Context, item *catalog.Item) error {
	return r.store.do(ctx, func(st *state) error {
		if _, exists := st.items[item.ID]; exists {
			return apperror.NewConflict("catalog item already exists")
		}
		st.items[item.ID] = *item
		st.itemOrder = append(st.itemOrder, item.ID)
		return nil
	})
}

func (r *CatalogRepo) Get(ctx context.Context, tenantID string, itemID id.ID) (*catalog.Item, error) {
	var out *catalog.Item
	err := r.store.do(ctx, func(st *state) error {
		item, ok := st.items[itemID]
		if !ok || item.TenantID != tenantID {
			return notFound(itemID)
		}
		out = &item
		return nil
	})
	return out, err
}

// GetForUpdate is Get; the transaction already holds the store lock.
func (r *CatalogRepo) GetForUpdate(ctx context.Context, tenantID string, itemID id.ID) (*catalog.Item, error) {
	return r.Get(ctx, tenantID, itemID)
}

func (r *CatalogRepo) FindActiveByName(ctx context.Context, tenantID, name string) (*catalog.Item, error) {
	var out *catalog.Item
	err := r.store.do(ctx, func(st *state) error {
		for _, itemID := range st.itemOrder {
			item := st.items[itemID]
			if item.TenantID == tenantID && item.IsActive && item.Name == name {
				out = &item
				return nil
			}
		}
		return apperror.NewNotFound("catalog item", name)
	})
	return out, err
}

func (r *CatalogRepo) Update(ctx context.Context, item *catalog.Item) error {
	return r.store.do(ctx, func(st *state) error {
		stored, ok := st.items[item.ID]
		if !ok || stored.TenantID != item.TenantID {
			return notFound(item.ID)
		}
		updated := *item
		updated.QuantityOnHand = stored.QuantityOnHand
		updated.CreatedAt = stored.CreatedAt
		st.items[item.ID] = updated
		return nil
	})
}

func (r *CatalogRepo) SetQuantity(ctx context.Context, tenantID string, itemID id.ID, quantity int64, at time.Time) error {
	return r.store.do(ctx, func(st *state) error {
		item, ok := st.items[itemID]
		if !ok || item.TenantID != tenantID {
			return notFound(itemID)
		}
		item.QuantityOnHand = quantity
		item.UpdatedAt = at
		st.items[itemID] = item
		return nil
	})
}

func (r *CatalogRepo) Retire(ctx context.Context, tenantID string, itemID id.ID, at time.Time) error {
	return r.store.do(ctx, func(st *state) error {
		item, ok := st.items[itemID]
		if !ok || item.TenantID != tenantID || !item.IsActive {
			return notFound(itemID)
		}
		item.IsActive = false
		item.RetiredAt = &at
		item.UpdatedAt = at
		st.items[itemID] = item
		return nil
	})
}

func (r *CatalogRepo) List(ctx context.Context, tenantID string, filter catalog.ListFilter) (domain.ListResult[*catalog.Item], error) {
	result := domain.ListResult[*catalog.Item]{Items: []*catalog.Item{}, Limit: filter.Limit, Offset: filter.Offset}
	err := r.store.do(ctx, func(st *state) error {
		var matched []*catalog.Item
		for _, item := range st.active(tenantID) {
			if matches(item, filter) {
				matched = append(matched, item)
			}
		}
		sortItems(matched, filter.OrderBy)

		result.TotalCount = int64(len(matched))
		start := min(max(filter.Offset, 0), len(matched))
		end := len(matched)
		if filter.Limit > 0 {
			end = min(start+filter.Limit, len(matched))
		}
		result.Items = append(result.Items, matched[start:end]...)
		return nil
	})
	return result, err
}

func (r *CatalogRepo) ListActive(ctx context.Context, tenantID string) ([]*catalog.Item, error) {
	var out []*catalog.Item
	err := r.store.do(ctx, func(st *state) error {
		out = st.active(tenantID)
		return nil
	})
	return out, err
}

func (r *CatalogRepo) ListIDs(ctx context.Context, tenantID string) ([]id.ID, error) {
	var out []id.ID
	err := r.store.do(ctx, func(st *state) error {
		for _, itemID := range st.itemOrder {
			if st.items[itemID].TenantID == tenantID {
				out = append(out, itemID)
			}
		}
		return nil
	})
	return out, err
}

func (r *CatalogRepo) Summary(ctx context.Context, tenantID string, today time.Time, expiringWithinDays int) (catalog.Summary, error) {
	summary := catalog.Summary{InventoryValue: decimal.Zero}
	today = types.Date(today)
	soon := today.AddDate(0, 0, expiringWithinDays)
	err := r.store.do(ctx, func(st *state) error {
		for _, item := range st.active(tenantID) {
			summary.TotalActive++
			if item.IsLowStock() {
				summary.LowStock++
			}
			if item.QuantityOnHand == 0 {
				summary.OutOfStock++
			}
			if item.ExpiryDate != nil {
				exp := types.Date(*item.ExpiryDate)
				switch {
				case exp.Before(today):
					summary.Expired++
				case !exp.After(soon):
					summary.ExpiringSoon++
				}
			}
			summary.InventoryValue = summary.InventoryValue.Add(item.StockValue())
		}
		return nil
	})
	return summary, err
}

func (r *CatalogRepo) Categories(ctx context.Context, tenantID string) ([]string, error) {
	var out []string
	err := r.store.do(ctx, func(st *state) error {
		seen := make(map[string]bool)
		for _, item := range st.active(tenantID) {
			if item.Category != "" && !seen[item.Category] {
				seen[item.Category] = true
				out = append(out, item.Category)
			}
		}
		slices.Sort(out)
		return nil
	})
	return out, err
}

func (r *CatalogRepo) TopCategories(ctx context.Context, tenantID string, limit int) ([]catalog.CategoryCount, error) {
	var out []catalog.CategoryCount
	err := r.store.do(ctx, func(st *state) error {
		counts := make(map[string]int64)
		for _, item := range st.active(tenantID) {
			if item.Category != "" {
				counts[item.Category]++
			}
		}
		for name, n := range counts {
			out = append(out, catalog.CategoryCount{Name: name, Count: n})
		}
		slices.SortFunc(out, func(a, b catalog.CategoryCount) int {
			if c := cmp.Compare(b.Count, a.Count); c != 0 {
				return c
			}
			return cmp.Compare(a.Name, b.Name)
		})
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}

func (r *CatalogRepo) CountActive(ctx context.Context, tenantID string) (int64, error) {
	var n int64
	err := r.store.do(ctx, func(st *state) error {
		n = int64(len(st.active(tenantID)))
		return nil
	})
	return n, err
}

// active returns copies of the tenant's active items in insertion order.
func (st *state) active(tenantID string) []*catalog.Item {
	var out []*catalog.Item
	for _, itemID := range st.itemOrder {
		item := st.items[itemID]
		if item.TenantID == tenantID && item.IsActive {
			out = append(out, &item)
		}
	}
	return out
}

func matches(item *catalog.Item, f catalog.ListFilter) bool {
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		hit := false
		for _, field := range []string{item.Name, item.GenericName, item.BrandName, item.Manufacturer} {
			if strings.Contains(strings.ToLower(field), needle) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	if f.Category != "" && item.Category != f.Category {
		return false
	}

	today := types.Date(f.Today)
	switch f.Status {
	case catalog.FilterLowStock:
		return item.IsLowStock()
	case catalog.FilterExpired:
		return item.ExpiryDate != nil && types.Date(*item.ExpiryDate).Before(today)
	case catalog.FilterExpiringSoon:
		if item.ExpiryDate == nil {
			return false
		}
		exp := types.Date(*item.ExpiryDate)
		return !exp.Before(today) && !exp.After(today.AddDate(0, 0, f.ExpiringWithinDays))
	}
	return true
}

func sortItems(items []*catalog.Item, orderBy string) {
	desc := strings.HasPrefix(orderBy, "-")
	column := strings.TrimPrefix(orderBy, "-")
	if column == "" {
		column = "name"
	}

	compare := func(a, b *catalog.Item) int {
		switch column {
		case "category":
			return cmp.Compare(a.Category, b.Category)
		case "quantity_on_hand":
			return cmp.Compare(a.QuantityOnHand, b.QuantityOnHand)
		case "expiry_date":
			return compareTimes(a.ExpiryDate, b.ExpiryDate)
		case "selling_price":
			return compareMoney(a.SellingPrice, b.SellingPrice)
		case "cost_price":
			return compareMoney(a.CostPrice, b.CostPrice)
		case "created_at":
			return a.CreatedAt.Compare(b.CreatedAt)
		case "updated_at":
			return a.UpdatedAt.Compare(b.UpdatedAt)
		default:
			return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}
	}

	slices.SortStableFunc(items, func(a, b *catalog.Item) int {
		c := compare(a, b)
		if desc {
			return -c
		}
		return c
	})
}

// Missing values sort last in ascending order, as NULLs do in Postgres.
func compareTimes(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return a.Compare(*b)
}

func compareMoney(a, b *types.Money) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return a.Cmp(*b)
}
