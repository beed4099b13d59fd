// Package memory is a transactional in-memory implementation of every
// repository. It backs the domain tests and the STORE=memory mode.
//
// A transaction holds the store-wide lock from begin to end, so writers are
// fully serialized. The state is snapshotted at begin and restored when the
// transaction function returns an error.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"pharmaledger/internal/core/id"
	"pharmaledger/internal/core/tenant"
	"pharmaledger/internal/core/tx"
	"pharmaledger/internal/domain/audit"
	"pharmaledger/internal/domain/catalog"
	"pharmaledger/internal/domain/ledger"
	"pharmaledger/internal/domain/quota"
)

var _ tx.Manager = (*Store)(nil)

type state struct {
	tenants   map[string]tenant.Tenant
	items     map[id.ID]catalog.Item
	itemOrder []id.ID
	movements []ledger.Movement
	subs      []quota.Subscription
	audit     []audit.Entry
	external  map[quota.ResourceClass]map[string]int64
}

func newState() *state {
	return &state{
		tenants:  make(map[string]tenant.Tenant),
		items:    make(map[id.ID]catalog.Item),
		external: make(map[quota.ResourceClass]map[string]int64),
	}
}

func (s *state) clone() *state {
	c := &state{
		tenants:   maps.Clone(s.tenants),
		items:     maps.Clone(s.items),
		itemOrder: slices.Clone(s.itemOrder),
		movements: slices.Clone(s.movements),
		subs:      slices.Clone(s.subs),
		audit:     slices.Clone(s.audit),
		external:  make(map[quota.ResourceClass]map[string]int64, len(s.external)),
	}
	for class, counts := range s.external {
		c.external[class] = maps.Clone(counts)
	}
	return c
}

// Store holds all data of all tenants.
type Store struct {
	mu   sync.Mutex
	data *state
}

// New creates an empty store.
func New() *Store {
	return &Store{data: newState()}
}

type txKey struct{}

// RunInTransaction implements tx.Manager. Nested calls join the outer transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	defer func() {
		if p := recover(); p != nil {
			s.data = snapshot
			panic(p)
		}
	}()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(txKey{}).(*Store)
	return ok && owner == s
}

// do runs fn against the current state, taking the lock unless ctx already
// carries this store's transaction.
func (s *Store) do(ctx context.Context, fn func(st *state) error) error {
	if s.inTx(ctx) {
		return fn(s.data)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

// Catalog returns the catalog repository view.
func (s *Store) Catalog() *CatalogRepo { return &CatalogRepo{store: s} }

// Movements returns the ledger repository view.
func (s *Store) Movements() *MovementRepo { return &MovementRepo{store: s} }

// Subscriptions returns the subscription repository view.
func (s *Store) Subscriptions() *SubscriptionRepo { return &SubscriptionRepo{store: s} }

// Tenants returns the tenant directory view.
func (s *Store) Tenants() *TenantDirectory { return &TenantDirectory{store: s} }

// Audit returns the audit recorder view.
func (s *Store) Audit() *AuditLog { return &AuditLog{store: s} }

// Counter returns the quota counter over this store.
func (s *Store) Counter() *Counter { return &Counter{store: s} }
