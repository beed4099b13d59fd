package reports

import (
	"context"
	"fmt"
	"time"

	"pharmaledger/internal/domain"
	"pharmaledger/internal/domain/catalog"
	"pharmaledger/internal/domain/ledger"
	"pharmaledger/pkg/logger"
)

// Config configures the reports service. Cache is optional.
type Config struct {
	Catalog   CatalogStats
	Movements MovementCounter
	Cache     Cache
	Now       func() time.Time
}

// Service provides dashboard generation.
type Service struct {
	catalog   CatalogStats
	movements MovementCounter
	cache     Cache
	now       func() time.Time
}

// NewService creates a new reports service.
func NewService(cfg Config) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		catalog:   cfg.Catalog,
		movements: cfg.Movements,
		cache:     cfg.Cache,
		now:       cfg.Now,
	}
}

// Dashboard returns the tenant's dashboard, from cache when available.
// Cache failures are logged and the dashboard is computed from the store.
func (s *Service) Dashboard(ctx context.Context, tenantID string) (*Dashboard, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, tenantID)
		if err != nil {
			logger.Warn(ctx, "dashboard cache read failed", "tenant_id", tenantID, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	d, err := s.build(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, tenantID, d); err != nil {
			logger.Warn(ctx, "dashboard cache write failed", "tenant_id", tenantID, "error", err)
		}
	}
	return d, nil
}

func (s *Service) build(ctx context.Context, tenantID string) (*Dashboard, error) {
	now := s.now()

	summary, err := s.catalog.Summary(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("catalog summary: %w", err)
	}

	recent, err := s.movements.CountSince(ctx, tenantID, now.Add(-RecentWindow))
	if err != nil {
		return nil, fmt.Errorf("count recent movements: %w", err)
	}

	top, err := s.catalog.TopCategories(ctx, tenantID, TopCategoryCount)
	if err != nil {
		return nil, fmt.Errorf("top categories: %w", err)
	}
	if top == nil {
		top = []catalog.CategoryCount{}
	}

	return &Dashboard{
		TenantID:        tenantID,
		Summary:         summary,
		RecentMovements: recent,
		TopCategories:   top,
		GeneratedAt:     now,
	}, nil
}

// Invalidate drops the cached dashboard of the tenant.
func (s *Service) Invalidate(ctx context.Context, tenantID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, tenantID)
}

// Bind registers cache invalidation on catalog and ledger writes.
func (s *Service) Bind(items *domain.HookRegistry[*catalog.Item], movements *domain.HookRegistry[*ledger.Movement]) {
	if s.cache == nil {
		return
	}
	onItem := func(ctx context.Context, item *catalog.Item) error {
		return s.Invalidate(ctx, item.TenantID)
	}
	items.On(domain.AfterCreate, onItem)
	items.On(domain.AfterUpdate, onItem)
	items.On(domain.AfterRetire, onItem)
	movements.On(domain.AfterCreate, func(ctx context.Context, m *ledger.Movement) error {
		return s.Invalidate(ctx, m.TenantID)
	})
}
