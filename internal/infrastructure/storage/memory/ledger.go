package memory

import (
	"context"
	"time"

	"pharmaledger/internal/core/id"
	"pharmaledger/internal/core/types"
	"pharmaledger/internal/domain"
	"pharmaledger/internal/domain/ledger"
)

// MovementRepo implements ledger.Repository.
type MovementRepo struct {
	store *Store
}

var _ ledger.Repository = (*MovementRepo)(nil)

func (r *MovementRepo) Append(ctx context.Context, m *ledger.Movement) error {
	return r.store.do(ctx, func(st *state) error {
		st.movements = append(st.movements, *m)
		return nil
	})
}

// List walks the log backwards so equal timestamps keep newest-first order.
func (r *MovementRepo) List(ctx context.Context, tenantID string, f ledger.HistoryFilter) (domain.ListResult[*ledger.Movement], error) {
	result := domain.ListResult[*ledger.Movement]{Items: []*ledger.Movement{}, Limit: f.Limit, Offset: f.Offset}

	var from, until time.Time
	if f.From != nil {
		from = types.Date(*f.From)
	}
	if f.To != nil {
		until = types.Date(*f.To).AddDate(0, 0, 1)
	}

	err := r.store.do(ctx, func(st *state) error {
		var matched []*ledger.Movement
		for i := len(st.movements) - 1; i >= 0; i-- {
			m := st.movements[i]
			switch {
			case m.TenantID != tenantID:
				continue
			case f.ItemID != nil && m.ItemID != *f.ItemID:
				continue
			case f.Type != "" && m.Type != f.Type:
				continue
			case f.From != nil && m.CreatedAt.Before(from):
				continue
			case f.To != nil && !m.CreatedAt.Before(until):
				continue
			}
			matched = append(matched, &m)
		}

		result.TotalCount = int64(len(matched))
		start := min(f.Offset, len(matched))
		end := len(matched)
		if f.Limit > 0 {
			end = min(start+f.Limit, len(matched))
		}
		result.Items = append(result.Items, matched[start:end]...)
		return nil
	})
	return result, err
}

func (r *MovementRepo) SumForItem(ctx context.Context, tenantID string, itemID id.ID) (int64, error) {
	var sum int64
	err := r.store.do(ctx, func(st *state) error {
		for i := range st.movements {
			m := &st.movements[i]
			if m.TenantID == tenantID && m.ItemID == itemID {
				sum += m.SignedQuantity()
			}
		}
		return nil
	})
	return sum, err
}

func (r *MovementRepo) CountSince(ctx context.Context, tenantID string, since time.Time) (int64, error) {
	var n int64
	err := r.store.do(ctx, func(st *state) error {
		for _, m := range st.movements {
			if m.TenantID == tenantID && !m.CreatedAt.Before(since) {
				n++
			}
		}
		return nil
	})
	return n, err
}
