package ledger

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"pharmaledger/internal/core/apperror"
	"pharmaledger/internal/core/id"
	"pharmaledger/internal/domain/audit"
	"pharmaledger/pkg/logger"
)

// Drift compares the cached quantity of one item with its ledger sum.
type Drift struct {
	ItemID   id.ID  `json:"item_id"`
	Name     string `json:"name"`
	Cached   int64  `json:"cached_quantity"`
	Ledger   int64  `json:"ledger_quantity"`
	Repaired bool   `json:"repaired"`
}

// InSync reports whether cache and ledger agree.
func (d Drift) InSync() bool {
	return d.Cached == d.Ledger
}

// Report is the outcome of reconciling a tenant.
type Report struct {
	TenantID string  `json:"tenant_id"`
	Checked  int     `json:"checked"`
	Drifts   []Drift `json:"drifts"`
	Repaired int     `json:"repaired"`
}

// Reconcile recomputes one item's quantity from its movements. With repair set,
// a drifting cached quantity is overwritten with the ledger sum and the repair audited.
// Retired items are reconciled too.
func (s *Service) Reconcile(ctx context.Context, tenantID string, itemID id.ID, repair bool) (*Drift, error) {
	var drift Drift
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		item, err := s.items.GetForUpdate(ctx, tenantID, itemID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewNotFound(itemEntity, itemID.String())
			}
			return fmt.Errorf("lock item: %w", err)
		}
		sum, err := s.movements.SumForItem(ctx, tenantID, itemID)
		if err != nil {
			return fmt.Errorf("sum movements: %w", err)
		}

		drift = Drift{ItemID: item.ID, Name: item.Name, Cached: item.QuantityOnHand, Ledger: sum}
		if drift.InSync() || !repair {
			return nil
		}

		if err := s.items.SetQuantity(ctx, tenantID, itemID, sum, s.now().UTC()); err != nil {
			return fmt.Errorf("repair quantity: %w", err)
		}
		drift.Repaired = true
		return audit.Write(ctx, s.audit, audit.Entry{
			TenantID:   tenantID,
			EntityType: "catalog_item",
			EntityID:   itemID.String(),
			Action:     audit.ActionRepair,
			Changes:    map[string]any{"cached": drift.Cached, "ledger": drift.Ledger},
		})
	})
	if err != nil {
		return nil, err
	}

	if !drift.InSync() {
		logger.Warn(ctx, "stock ledger drift",
			"tenant_id", tenantID, "item_id", itemID,
			"cached", drift.Cached, "ledger", drift.Ledger, "repaired", drift.Repaired)
	}
	return &drift, nil
}

// ReconcileTenant reconciles every item of the tenant, each in its own transaction.
func (s *Service) ReconcileTenant(ctx context.Context, tenantID string, repair bool) (*Report, error) {
	ctx, span := tracer.Start(ctx, "ledger.reconcile_tenant", trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.Bool("reconcile.repair", repair),
	))
	defer span.End()

	ids, err := s.items.ListIDs(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	report := &Report{TenantID: tenantID, Drifts: []Drift{}}
	for _, itemID := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		drift, err := s.Reconcile(ctx, tenantID, itemID, repair)
		if err != nil {
			if apperror.IsNotFound(err) {
				continue
			}
			return report, err
		}
		report.Checked++
		if !drift.InSync() {
			report.Drifts = append(report.Drifts, *drift)
			if drift.Repaired {
				report.Repaired++
			}
		}
	}

	logger.Info(ctx, "reconciled stock ledger",
		"tenant_id", tenantID, "checked", report.Checked, "drifts", len(report.Drifts), "repaired", report.Repaired)
	return report, nil
}
