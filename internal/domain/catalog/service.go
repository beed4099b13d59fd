package catalog

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"pharmaledger/internal/core/apperror"
	"pharmaledger/internal/core/id"
	"pharmaledger/internal/core/tx"
	"pharmaledger/internal/core/types"
	"pharmaledger/internal/domain"
	"pharmaledger/internal/domain/audit"
	"pharmaledger/internal/domain/quota"
	"pharmaledger/pkg/logger"
)

const entityName = "catalog item"

// DefaultExpiringSoonDays is the look-ahead window of the expiring_soon filter.
const DefaultExpiringSoonDays = 30

// Reserver is the quota check run inside the creating transaction.
type Reserver interface {
	CheckAndReserve(ctx context.Context, tenantID string, class quota.ResourceClass) error
}

// Opening describes the first stock movement of a new item.
type Opening struct {
	Quantity  int64
	UnitCost  *types.Money
	Reference *string
}

// StockRecorder records the opening movement of a freshly inserted item.
// It runs inside the creating transaction and updates item.QuantityOnHand.
type StockRecorder interface {
	RecordOpening(ctx context.Context, item *Item, opening Opening) error
}

// Config configures the catalog service.
type Config struct {
	Repo             Repository
	TxManager        tx.Manager
	Quota            Reserver
	Stock            StockRecorder
	Audit            audit.Recorder
	ExpiringSoonDays int
	Now              func() time.Time
}

// Service provides business logic for catalog items.
type Service struct {
	repo             Repository
	txm              tx.Manager
	quota            Reserver
	stock            StockRecorder
	audit            audit.Recorder
	hooks            *domain.HookRegistry[*Item]
	expiringSoonDays int
	now              func() time.Time
}

// NewService creates a new catalog service.
func NewService(cfg Config) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.ExpiringSoonDays <= 0 {
		cfg.ExpiringSoonDays = DefaultExpiringSoonDays
	}
	return &Service{
		repo:             cfg.Repo,
		txm:              cfg.TxManager,
		quota:            cfg.Quota,
		stock:            cfg.Stock,
		audit:            cfg.Audit,
		hooks:            domain.NewHookRegistry[*Item](),
		expiringSoonDays: cfg.ExpiringSoonDays,
		now:              cfg.Now,
	}
}

// Hooks returns the hook registry for external registration.
func (s *Service) Hooks() *domain.HookRegistry[*Item] {
	return s.hooks
}

// ExpiringSoonDays returns the configured expiring_soon window.
func (s *Service) ExpiringSoonDays() int {
	return s.expiringSoonDays
}

// Create validates the input, consults the quota gate, inserts the item and
// records its opening stock, all in one transaction.
// Called from inside another transaction it joins that transaction.
func (s *Service) Create(ctx context.Context, tenantID string, in CreateInput) (*Item, error) {
	if in.OpeningQuantity < 0 {
		return nil, apperror.NewFieldValidation("quantity", "quantity must not be negative")
	}

	now := s.now().UTC()
	item := &Item{
		ID:                   id.New(),
		TenantID:             tenantID,
		UnitOfMeasurement:    DefaultUnit,
		ReorderLevel:         DefaultReorderLevel,
		MaxStockLevel:        DefaultMaxStockLevel,
		IsActive:             true,
		PrescriptionRequired: true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	in.Fields.apply(item)
	if item.UnitOfMeasurement == "" {
		item.UnitOfMeasurement = DefaultUnit
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if s.quota != nil {
			if err := s.quota.CheckAndReserve(ctx, tenantID, quota.ClassCatalogItem); err != nil {
				return err
			}
		}
		if err := s.repo.Create(ctx, item); err != nil {
			return fmt.Errorf("create %s: %w", entityName, err)
		}
		if in.OpeningQuantity > 0 {
			if err := s.stock.RecordOpening(ctx, item, Opening{
				Quantity:  in.OpeningQuantity,
				UnitCost:  item.CostPrice,
				Reference: in.OpeningReference,
			}); err != nil {
				return fmt.Errorf("record opening stock: %w", err)
			}
		}
		return audit.Write(ctx, s.audit, audit.Entry{
			TenantID:   tenantID,
			EntityType: "catalog_item",
			EntityID:   item.ID.String(),
			Action:     audit.ActionCreate,
			Changes:    map[string]any{"name": item.Name, "opening_quantity": in.OpeningQuantity},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "created catalog item",
		"tenant_id", tenantID, "item_id", item.ID, "name", item.Name, "opening_quantity", in.OpeningQuantity)
	s.runAfter(ctx, domain.AfterCreate, item)
	return item, nil
}

// Get returns an active item of the tenant.
func (s *Service) Get(ctx context.Context, tenantID string, itemID id.ID) (*Item, error) {
	item, err := s.repo.Get(ctx, tenantID, itemID)
	if err != nil {
		return nil, s.normalizeGetErr(err, itemID)
	}
	if !item.IsActive {
		return nil, apperror.NewNotFound(entityName, itemID.String())
	}
	return item, nil
}

// Update changes descriptive, pricing and lifecycle fields. Quantity is never touched.
func (s *Service) Update(ctx context.Context, tenantID string, itemID id.ID, fields Fields) (*Item, error) {
	var item *Item
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		item, err = s.lockActive(ctx, tenantID, itemID)
		if err != nil {
			return err
		}
		fields.apply(item)
		if err := item.Validate(); err != nil {
			return err
		}
		item.UpdatedAt = s.now().UTC()
		if err := s.repo.Update(ctx, item); err != nil {
			return fmt.Errorf("update %s: %w", entityName, err)
		}
		return audit.Write(ctx, s.audit, audit.Entry{
			TenantID:   tenantID,
			EntityType: "catalog_item",
			EntityID:   item.ID.String(),
			Action:     audit.ActionUpdate,
			Changes:    map[string]any{"fields": fields.names()},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "updated catalog item", "tenant_id", tenantID, "item_id", itemID)
	s.runAfter(ctx, domain.AfterUpdate, item)
	return item, nil
}

// Retire soft-deletes an item. Its movement history is kept and the name stays
// free for a new active item.
func (s *Service) Retire(ctx context.Context, tenantID string, itemID id.ID) error {
	var item *Item
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		item, err = s.lockActive(ctx, tenantID, itemID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if err := s.repo.Retire(ctx, tenantID, itemID, now); err != nil {
			return fmt.Errorf("retire %s: %w", entityName, err)
		}
		item.IsActive = false
		item.RetiredAt = &now
		item.UpdatedAt = now
		return audit.Write(ctx, s.audit, audit.Entry{
			TenantID:   tenantID,
			EntityType: "catalog_item",
			EntityID:   itemID.String(),
			Action:     audit.ActionRetire,
			Changes:    map[string]any{"quantity_on_hand": item.QuantityOnHand},
		})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "retired catalog item", "tenant_id", tenantID, "item_id", itemID)
	s.runAfter(ctx, domain.AfterRetire, item)
	return nil
}

// ListQuery is the caller-facing listing request.
type ListQuery struct {
	Search   string
	Category string
	Status   string
	Sort     string
	Page     int
	PerPage  int
}

// ListPage is a page of items with tenant-wide facets.
type ListPage struct {
	domain.ListResult[*Item]
	Categories []string
	Summary    Summary
}

// List returns active items matching the query plus the category facet and
// summary counters over all active items.
func (s *Service) List(ctx context.Context, tenantID string, q ListQuery) (*ListPage, error) {
	filter, err := s.buildFilter(q)
	if err != nil {
		return nil, err
	}

	result, err := s.repo.List(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", entityName, err)
	}
	categories, err := s.repo.Categories(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	summary, err := s.repo.Summary(ctx, tenantID, filter.Today, s.expiringSoonDays)
	if err != nil {
		return nil, fmt.Errorf("catalog summary: %w", err)
	}

	return &ListPage{ListResult: result, Categories: categories, Summary: summary}, nil
}

func (s *Service) buildFilter(q ListQuery) (ListFilter, error) {
	limit, offset := domain.Page(q.Page, q.PerPage)
	filter := ListFilter{
		Search:             strings.TrimSpace(q.Search),
		Category:           strings.TrimSpace(q.Category),
		Status:             StatusFilter(q.Status),
		OrderBy:            strings.TrimSpace(q.Sort),
		Limit:              limit,
		Offset:             offset,
		Today:              types.Date(s.now()),
		ExpiringWithinDays: s.expiringSoonDays,
	}

	switch filter.Status {
	case "", FilterLowStock, FilterExpired, FilterExpiringSoon:
	default:
		return ListFilter{}, apperror.NewFieldValidation("status", fmt.Sprintf("unknown status filter %q", q.Status))
	}
	if filter.OrderBy != "" && !slices.Contains(SortColumns, strings.TrimPrefix(filter.OrderBy, "-")) {
		return ListFilter{}, apperror.NewFieldValidation("sort", fmt.Sprintf("unknown sort key %q", q.Sort))
	}
	return filter, nil
}

// Summary returns tenant-wide counters over all active items.
func (s *Service) Summary(ctx context.Context, tenantID string) (Summary, error) {
	return s.repo.Summary(ctx, tenantID, types.Date(s.now()), s.expiringSoonDays)
}

// ListActive returns every active item of the tenant.
func (s *Service) ListActive(ctx context.Context, tenantID string) ([]*Item, error) {
	return s.repo.ListActive(ctx, tenantID)
}

// TopCategories returns the largest categories by active item count.
func (s *Service) TopCategories(ctx context.Context, tenantID string, limit int) ([]CategoryCount, error) {
	return s.repo.TopCategories(ctx, tenantID, limit)
}

// CountActive counts active items; it backs the catalog_item quota class.
func (s *Service) CountActive(ctx context.Context, tenantID string) (int64, error) {
	return s.repo.CountActive(ctx, tenantID)
}

func (s *Service) lockActive(ctx context.Context, tenantID string, itemID id.ID) (*Item, error) {
	item, err := s.repo.GetForUpdate(ctx, tenantID, itemID)
	if err != nil {
		return nil, s.normalizeGetErr(err, itemID)
	}
	if !item.IsActive {
		return nil, apperror.NewNotFound(entityName, itemID.String())
	}
	return item, nil
}

func (s *Service) normalizeGetErr(err error, itemID id.ID) error {
	if apperror.IsNotFound(err) {
		return apperror.NewNotFound(entityName, itemID.String())
	}
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewInternal(err).WithDetail("id", itemID.String())
}

func (s *Service) runAfter(ctx context.Context, event domain.HookEvent, item *Item) {
	if err := s.hooks.Run(ctx, event, item); err != nil {
		logger.Warn(ctx, "catalog hook failed", "event", event, "item_id", item.ID, "error", err)
	}
}
