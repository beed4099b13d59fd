package ledger

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"pharmaledger/internal/core/apperror"
	appctx "pharmaledger/internal/core/context"
	"pharmaledger/internal/core/id"
	"pharmaledger/internal/core/tx"
	"pharmaledger/internal/core/types"
	"pharmaledger/internal/domain"
	"pharmaledger/internal/domain/audit"
	"pharmaledger/internal/domain/catalog"
	"pharmaledger/pkg/logger"
)

var tracer = otel.Tracer("pharmaledger/ledger")

const (
	itemEntity        = "catalog item"
	initialStockNotes = "Initial stock entry"
)

// Config configures the ledger service.
type Config struct {
	Items     catalog.Repository
	Movements Repository
	TxManager tx.Manager
	Audit     audit.Recorder
	Now       func() time.Time
}

// Service records stock movements. It is the only writer of quantity on hand.
type Service struct {
	items     catalog.Repository
	movements Repository
	txm       tx.Manager
	audit     audit.Recorder
	hooks     *domain.HookRegistry[*Movement]
	now       func() time.Time
}

// NewService creates a new ledger service.
func NewService(cfg Config) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		items:     cfg.Items,
		movements: cfg.Movements,
		txm:       cfg.TxManager,
		audit:     cfg.Audit,
		hooks:     domain.NewHookRegistry[*Movement](),
		now:       cfg.Now,
	}
}

// Hooks returns the hook registry for external registration.
// AfterCreate fires once per recorded movement.
func (s *Service) Hooks() *domain.HookRegistry[*Movement] {
	return s.hooks
}

// Result is the outcome of a recorded movement.
type Result struct {
	Item     *catalog.Item
	Movement *Movement
}

// Record applies one movement to an active item of the tenant.
// The item row is locked for the whole transaction, so concurrent movements on
// the same item serialize and never lose an update.
func (s *Service) Record(ctx context.Context, tenantID string, req RecordRequest) (*Result, error) {
	ctx, span := tracer.Start(ctx, "ledger.record", trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("item.id", req.ItemID.String()),
		attribute.String("movement.type", string(req.Type)),
	))
	defer span.End()

	delta, err := SignedDelta(req.Type, req.Quantity, req.Delta)
	if err != nil {
		return nil, err
	}
	if types.IsNegative(req.UnitCost) {
		return nil, apperror.NewFieldValidation("unit_cost", "unit_cost must not be negative")
	}

	var res Result
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		item, err := s.items.GetForUpdate(ctx, tenantID, req.ItemID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewNotFound(itemEntity, req.ItemID.String())
			}
			return fmt.Errorf("lock item: %w", err)
		}
		if !item.IsActive {
			return apperror.NewNotFound(itemEntity, req.ItemID.String())
		}

		m, err := s.apply(ctx, item, req, delta)
		if err != nil {
			return err
		}
		res = Result{Item: item, Movement: m}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Info(ctx, "recorded stock movement",
		"tenant_id", tenantID,
		"item_id", req.ItemID,
		"type", req.Type,
		"delta", delta,
		"quantity_on_hand", res.Item.QuantityOnHand,
	)
	if err := s.hooks.Run(ctx, domain.AfterCreate, res.Movement); err != nil {
		logger.Warn(ctx, "ledger hook failed", "movement_id", res.Movement.ID, "error", err)
	}
	return &res, nil
}

// RecordOpening records the INITIAL_STOCK movement of an item inserted in the
// current transaction. It satisfies catalog.StockRecorder.
func (s *Service) RecordOpening(ctx context.Context, item *catalog.Item, opening catalog.Opening) error {
	req := RecordRequest{
		ItemID:        item.ID,
		Type:          MovementIn,
		Quantity:      opening.Quantity,
		UnitCost:      opening.UnitCost,
		ReferenceType: RefInitialStock,
		ReferenceID:   opening.Reference,
		BatchNumber:   item.BatchNumber,
		ExpiryDate:    item.ExpiryDate,
		Notes:         initialStockNotes,
	}
	delta, err := SignedDelta(req.Type, req.Quantity, 0)
	if err != nil {
		return err
	}
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		_, err := s.apply(ctx, item, req, delta)
		return err
	})
}

// apply writes the new cached quantity and appends the movement that accounts for it.
// It must run inside a transaction holding the item row lock.
func (s *Service) apply(ctx context.Context, item *catalog.Item, req RecordRequest, delta int64) (*Movement, error) {
	if delta > 0 && item.QuantityOnHand > math.MaxInt64-delta {
		return nil, apperror.NewFieldValidation("quantity",
			fmt.Sprintf("quantity %d would overflow the stock on hand of %d", delta, item.QuantityOnHand))
	}
	next := item.QuantityOnHand + delta
	if next < 0 {
		return nil, apperror.NewInsufficientStock(item.ID.String(), -delta, item.QuantityOnHand)
	}

	now := s.now().UTC()
	quantity := delta
	if quantity < 0 {
		quantity = -quantity
	}

	m := &Movement{
		ID:            id.New(),
		TenantID:      item.TenantID,
		ItemID:        item.ID,
		Type:          req.Type,
		Quantity:      quantity,
		Delta:         delta,
		UnitCost:      req.UnitCost,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
		SupplierName:  req.SupplierName,
		BatchNumber:   req.BatchNumber,
		ExpiryDate:    req.ExpiryDate,
		Notes:         req.Notes,
		CreatedBy:     appctx.GetActorID(ctx),
		CreatedAt:     now,
	}
	if m.UnitCost == nil && item.CostPrice != nil {
		m.UnitCost = types.MoneyPtr(*item.CostPrice)
	}
	if m.UnitCost != nil {
		m.TotalCost = types.MoneyPtr(types.Round2(m.UnitCost.Mul(decimal.NewFromInt(quantity))))
	}
	if m.ReferenceType == "" {
		m.ReferenceType = RefManualAdjustment
	}
	if m.ExpiryDate != nil {
		d := types.Date(*m.ExpiryDate)
		m.ExpiryDate = &d
	}

	if err := s.items.SetQuantity(ctx, item.TenantID, item.ID, next, now); err != nil {
		return nil, fmt.Errorf("update quantity: %w", err)
	}
	if err := s.movements.Append(ctx, m); err != nil {
		return nil, fmt.Errorf("append movement: %w", err)
	}
	if err := audit.Write(ctx, s.audit, audit.Entry{
		TenantID:   item.TenantID,
		EntityType: "catalog_item",
		EntityID:   item.ID.String(),
		Action:     audit.ActionMovement,
		Changes: map[string]any{
			"movement_id":    m.ID.String(),
			"movement_type":  m.Type,
			"delta":          delta,
			"quantity":       quantity,
			"reference_type": m.ReferenceType,
			"before":         item.QuantityOnHand,
			"after":          next,
		},
	}); err != nil {
		return nil, err
	}

	item.QuantityOnHand = next
	item.UpdatedAt = now
	return m, nil
}

// History returns the tenant's movements, newest first.
func (s *Service) History(ctx context.Context, tenantID string, filter HistoryFilter) (domain.ListResult[*Movement], error) {
	if filter.Limit <= 0 {
		filter.Limit = domain.DefaultPageSize
	}
	if filter.Limit > domain.MaxPageSize {
		filter.Limit = domain.MaxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Type != "" {
		t, err := ParseMovementType(string(filter.Type))
		if err != nil {
			return domain.ListResult[*Movement]{}, err
		}
		filter.Type = t
	}
	if filter.From != nil && filter.To != nil && types.Date(*filter.To).Before(types.Date(*filter.From)) {
		return domain.ListResult[*Movement]{}, apperror.NewFieldValidation("end_date", "end_date must not be before start_date")
	}

	result, err := s.movements.List(ctx, tenantID, filter)
	if err != nil {
		return result, fmt.Errorf("list movements: %w", err)
	}
	return result, nil
}

// Recent returns the item's latest movements.
func (s *Service) Recent(ctx context.Context, tenantID string, itemID id.ID, limit int) ([]*Movement, error) {
	result, err := s.History(ctx, tenantID, HistoryFilter{ItemID: &itemID, Limit: limit})
	if err != nil {
		return nil, err
	}
	return result.Items, nil
}

// CountSince counts the tenant's movements since the given time.
func (s *Service) CountSince(ctx context.Context, tenantID string, since time.Time) (int64, error) {
	return s.movements.CountSince(ctx, tenantID, since)
}
