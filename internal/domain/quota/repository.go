package quota

import (
	"context"

	"pharmaledger/internal/core/id"
)

// Repository stores subscription records.
type Repository interface {
	// GetActive returns the tenant's active subscription or a NotFound error.
	GetActive(ctx context.Context, tenantID string) (*Subscription, error)

	// GetActiveForUpdate is GetActive with a row lock held until the transaction ends.
	GetActiveForUpdate(ctx context.Context, tenantID string) (*Subscription, error)

	// Deactivate clears is_active on one record.
	Deactivate(ctx context.Context, tenantID string, subscriptionID id.ID) error

	// Create inserts a new record.
	Create(ctx context.Context, sub *Subscription) error

	// History returns all records for a tenant, newest first.
	History(ctx context.Context, tenantID string, limit int) ([]*Subscription, error)
}

// Counter counts active resources of a class for a tenant.
type Counter interface {
	Count(ctx context.Context, tenantID string, class ResourceClass) (int64, error)
}

// CounterFunc adapts a function to Counter.
type CounterFunc func(ctx context.Context, tenantID string, class ResourceClass) (int64, error)

func (f CounterFunc) Count(ctx context.Context, tenantID string, class ResourceClass) (int64, error) {
	return f(ctx, tenantID, class)
}

// Counters routes each class to its own counter.
type Counters map[ResourceClass]Counter

func (c Counters) Count(ctx context.Context, tenantID string, class ResourceClass) (int64, error) {
	counter, ok := c[class]
	if !ok {
		return 0, errNoCounter(class)
	}
	return counter.Count(ctx, tenantID, class)
}
