package alerts

import (
	"context"
	"fmt"
	"time"

	"pharmaledger/internal/domain/catalog"
)

// ItemSource lists a tenant's active items.
type ItemSource interface {
	ListActive(ctx context.Context, tenantID string) ([]*catalog.Item, error)
}

// Service evaluates the engine over a tenant's active catalog.
type Service struct {
	items  ItemSource
	engine *Engine
	now    func() time.Time
}

// NewService creates an alert service.
func NewService(items ItemSource, engine *Engine, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{items: items, engine: engine, now: now}
}

// Evaluate returns the alerts currently raised for the tenant.
func (s *Service) Evaluate(ctx context.Context, tenantID string) ([]Alert, error) {
	items, err := s.items.ListActive(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return s.engine.Evaluate(items, s.now())
}

// Rules returns the configured rules.
func (s *Service) Rules() []Rule {
	return s.engine.Rules()
}
