package memory

import (
	"context"
	"slices"

	"pharmaledger/internal/core/apperror"
	"pharmaledger/internal/core/id"
	"pharmaledger/internal/domain/catalog"
	"pharmaledger/internal/domain/quota"
)

// SubscriptionRepo implements quota.Repository.
type SubscriptionRepo struct {
	store *Store
}

var _ quota.Repository = (*SubscriptionRepo)(nil)

func (r *SubscriptionRepo) GetActive(ctx context.Context, tenantID string) (*quota.Subscription, error) {
	var out *quota.Subscription
	err := r.store.do(ctx, func(st *state) error {
		for i := len(st.subs) - 1; i >= 0; i-- {
			if sub := st.subs[i]; sub.TenantID == tenantID && sub.IsActive {
				out = cloneSubscription(sub)
				return nil
			}
		}
		return apperror.NewNotFound("subscription", tenantID)
	})
	return out, err
}

// GetActiveForUpdate is GetActive; the transaction already holds the store lock.
func (r *SubscriptionRepo) GetActiveForUpdate(ctx context.Context, tenantID string) (*quota.Subscription, error) {
	return r.GetActive(ctx, tenantID)
}

func (r *SubscriptionRepo) Deactivate(ctx context.Context, tenantID string, subscriptionID id.ID) error {
	return r.store.do(ctx, func(st *state) error {
		for i := range st.subs {
			if st.subs[i].ID == subscriptionID && st.subs[i].TenantID == tenantID {
				st.subs[i].IsActive = false
				return nil
			}
		}
		return apperror.NewNotFound("subscription", subscriptionID.String())
	})
}

func (r *SubscriptionRepo) Create(ctx context.Context, sub *quota.Subscription) error {
	return r.store.do(ctx, func(st *state) error {
		st.subs = append(st.subs, *cloneSubscription(*sub))
		return nil
	})
}

func (r *SubscriptionRepo) History(ctx context.Context, tenantID string, limit int) ([]*quota.Subscription, error) {
	var out []*quota.Subscription
	err := r.store.do(ctx, func(st *state) error {
		for i := len(st.subs) - 1; i >= 0; i-- {
			if st.subs[i].TenantID == tenantID {
				out = append(out, cloneSubscription(st.subs[i]))
				if limit > 0 && len(out) == limit {
					break
				}
			}
		}
		return nil
	})
	return out, err
}

func cloneSubscription(sub quota.Subscription) *quota.Subscription {
	c := sub
	c.Limits = make(map[quota.ResourceClass]quota.Limit, len(sub.Limits))
	for class, l := range sub.Limits {
		c.Limits[class] = l
	}
	c.Features = slices.Clone(sub.Features)
	return &c
}

// Counter implements quota.Counter. Catalog items are counted from the store;
// the other classes are owned elsewhere and set with SetCount.
type Counter struct {
	store *Store
}

var _ quota.Counter = (*Counter)(nil)

func (c *Counter) Count(ctx context.Context, tenantID string, class quota.ResourceClass) (int64, error) {
	var n int64
	err := c.store.do(ctx, func(st *state) error {
		if class == quota.ClassCatalogItem {
			n = int64(len(st.active(tenantID)))
			return nil
		}
		n = st.external[class][tenantID]
		return nil
	})
	return n, err
}

// SetCount sets the number of active external resources of a class.
func (s *Store) SetCount(ctx context.Context, tenantID string, class quota.ResourceClass, n int64) {
	_ = s.do(ctx, func(st *state) error {
		if st.external[class] == nil {
			st.external[class] = make(map[string]int64)
		}
		st.external[class][tenantID] = n
		return nil
	})
}

// AddResource creates one external resource of a class after consulting the
// gate in the same transaction, the way the owning service would.
func (s *Store) AddResource(ctx context.Context, gate catalog.Reserver, tenantID string, class quota.ResourceClass) error {
	return s.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := gate.CheckAndReserve(ctx, tenantID, class); err != nil {
			return err
		}
		return s.do(ctx, func(st *state) error {
			if st.external[class] == nil {
				st.external[class] = make(map[string]int64)
			}
			st.external[class][tenantID]++
			return nil
		})
	})
}
