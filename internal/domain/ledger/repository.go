package ledger

import (
	"context"
	"time"

	"pharmaledger/internal/core/id"
	"pharmaledger/internal/domain"
)

// HistoryFilter selects movements. From and To are calendar dates; To is inclusive.
type HistoryFilter struct {
	ItemID *id.ID
	Type   MovementType
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// Repository stores movements. Nothing in it updates or deletes a movement.
type Repository interface {
	Append(ctx context.Context, m *Movement) error

	// List returns matching movements newest first.
	List(ctx context.Context, tenantID string, filter HistoryFilter) (domain.ListResult[*Movement], error)

	// SumForItem returns the signed sum of the item's movements.
	SumForItem(ctx context.Context, tenantID string, itemID id.ID) (int64, error)

	// CountSince counts the tenant's movements created at or after since.
	CountSince(ctx context.Context, tenantID string, since time.Time) (int64, error)
}
