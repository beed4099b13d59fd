package importer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"pharmaledger/internal/core/apperror"
	"pharmaledger/internal/core/numerator"
	"pharmaledger/internal/core/tx"
	"pharmaledger/internal/core/types"
	"pharmaledger/internal/domain/catalog"
	"pharmaledger/internal/domain/ledger"
	"pharmaledger/pkg/logger"
)

var tracer = otel.Tracer("pharmaledger/importer")

// ItemFinder looks up the active item a row merges into. The returned row is locked.
type ItemFinder interface {
	FindActiveByName(ctx context.Context, tenantID, name string) (*catalog.Item, error)
}

// NameLocker serializes concurrent imports of the same name within a tenant
// until the current transaction ends. Stores without concurrent writers skip it.
type NameLocker interface {
	LockName(ctx context.Context, tenantID, name string) error
}

// ItemCreator creates a quota-gated item with its opening stock.
type ItemCreator interface {
	Create(ctx context.Context, tenantID string, in catalog.CreateInput) (*catalog.Item, error)
}

// MovementRecorder records a ledger movement.
type MovementRecorder interface {
	Record(ctx context.Context, tenantID string, req ledger.RecordRequest) (*ledger.Result, error)
}

// Config configures the Reconciler.
type Config struct {
	TxManager tx.Manager
	Finder    ItemFinder
	Locker    NameLocker
	Catalog   ItemCreator
	Ledger    MovementRecorder
	Cost      CostPolicy
	Now       func() time.Time

	// Numbers stamps each run with a batch number. Optional.
	Numbers numerator.Generator
}

// Reconciler imports rows one by one, each in its own transaction.
// It holds no state between calls.
type Reconciler struct {
	txm     tx.Manager
	finder  ItemFinder
	locker  NameLocker
	items   ItemCreator
	ledger  MovementRecorder
	numbers numerator.Generator
	cost    CostPolicy
	now     func() time.Time
}

// NewReconciler creates an import reconciler.
func NewReconciler(cfg Config) *Reconciler {
	if cfg.Cost.Ratio.IsZero() {
		cfg.Cost = DefaultCostPolicy()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Reconciler{
		txm:     cfg.TxManager,
		finder:  cfg.Finder,
		locker:  cfg.Locker,
		items:   cfg.Catalog,
		ledger:  cfg.Ledger,
		numbers: cfg.Numbers,
		cost:    cfg.Cost,
		now:     cfg.Now,
	}
}

// parsed is a validated row.
type parsed struct {
	line         int
	name         string
	quantity     int64
	mrp          *types.Money
	costPrice    *types.Money
	sellingPrice *types.Money
	expiry       *time.Time
	warnings     []string
}

// Import processes rows in order. A rejected row never aborts the others and
// a later row sees every row committed before it. The returned error is only
// set when ctx is cancelled; the partial result is still returned.
func (r *Reconciler) Import(ctx context.Context, tenantID string, rows []Row) (*Result, error) {
	ctx, span := tracer.Start(ctx, "importer.import", trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.Int("import.rows", len(rows)),
	))
	defer span.End()

	result := newResult(len(rows))
	batch := r.batchNumber(ctx, tenantID)
	if batch != nil {
		result.BatchNumber = *batch
		span.SetAttributes(attribute.String("import.batch", *batch))
	}
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if row.Line == 0 {
			row.Line = i + 1
		}

		p, rowErr := r.parse(row)
		if rowErr != nil {
			result.rejected(*rowErr)
			continue
		}
		for _, w := range p.warnings {
			result.warn(Warning{Row: p.line, Message: w})
		}

		if err := r.importRow(ctx, tenantID, p, batch, result); err != nil {
			if !apperror.IsAppError(err) {
				logger.Error(ctx, "import row failed", "tenant_id", tenantID, "row", p.line, "error", err)
			}
			result.rejected(RowError{Row: p.line, Reason: reason(err)})
		}
	}

	logger.Info(ctx, "imported catalog rows",
		"tenant_id", tenantID,
		"batch", result.BatchNumber,
		"rows", result.TotalRows,
		"created", result.Created,
		"merged", result.Merged,
		"rejected", result.Rejected,
	)
	return result, nil
}

// batchNumber allocates the run's reference number. Numbering failures only
// cost the reference, never the import.
func (r *Reconciler) batchNumber(ctx context.Context, tenantID string) *string {
	if r.numbers == nil {
		return nil
	}
	n, err := r.numbers.Next(ctx, tenantID, numerator.ImportBatch, r.now())
	if err != nil {
		logger.Warn(ctx, "import batch number unavailable", "tenant_id", tenantID, "error", err)
		return nil
	}
	return &n
}

func (r *Reconciler) parse(row Row) (*parsed, *RowError) {
	p := &parsed{line: row.Line, name: strings.TrimSpace(row.Name)}
	if p.name == "" || strings.EqualFold(p.name, "nan") {
		return nil, &RowError{Row: row.Line, Reason: "Medicine name is required"}
	}

	qty, err := parseQuantity(row.Quantity)
	if err != nil {
		return nil, &RowError{Row: row.Line, Reason: err.Error()}
	}
	p.quantity = qty

	var warning string
	if p.mrp, warning = parsePrice("mrp", row.MRP); warning != "" {
		p.warnings = append(p.warnings, warning)
	}
	if p.costPrice, warning = parsePrice("cost_price", row.CostPrice); warning != "" {
		p.warnings = append(p.warnings, warning)
	}
	if p.sellingPrice, warning = parsePrice("selling_price", row.SellingPrice); warning != "" {
		p.warnings = append(p.warnings, warning)
	}

	if raw := strings.TrimSpace(row.ExpiryDate); raw != "" {
		if expiry, ok := ParseExpiry(raw); ok {
			p.expiry = &expiry
		} else {
			p.warnings = append(p.warnings, fmt.Sprintf("expiry_date %q not recognized; item imported without expiry", raw))
		}
	}
	return p, nil
}

func (r *Reconciler) importRow(ctx context.Context, tenantID string, p *parsed, batch *string, result *Result) error {
	var (
		created *CreatedItem
		merged  *MergedItem
	)
	err := r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		created, merged = nil, nil
		if r.locker != nil {
			if err := r.locker.LockName(ctx, tenantID, p.name); err != nil {
				return fmt.Errorf("lock name: %w", err)
			}
		}

		existing, err := r.finder.FindActiveByName(ctx, tenantID, p.name)
		switch {
		case err == nil:
			merged, err = r.merge(ctx, tenantID, existing, p, batch)
			return err
		case apperror.IsNotFound(err):
			created, err = r.create(ctx, tenantID, p, batch)
			return err
		default:
			return fmt.Errorf("find item: %w", err)
		}
	})
	if err != nil {
		return err
	}

	if created != nil {
		result.created(*created)
	}
	if merged != nil {
		result.merged(*merged)
	}
	return nil
}

func (r *Reconciler) merge(ctx context.Context, tenantID string, item *catalog.Item, p *parsed, batch *string) (*MergedItem, error) {
	total := item.QuantityOnHand
	if p.quantity > 0 {
		res, err := r.ledger.Record(ctx, tenantID, ledger.RecordRequest{
			ItemID:        item.ID,
			Type:          ledger.MovementIn,
			Quantity:      p.quantity,
			UnitCost:      p.costPrice,
			ReferenceType: ledger.RefImportMerge,
			ReferenceID:   batch,
			ExpiryDate:    p.expiry,
			Notes:         "Bulk import",
		})
		if err != nil {
			return nil, err
		}
		total = res.Item.QuantityOnHand
	}
	return &MergedItem{
		Row:     p.line,
		ItemID:  item.ID,
		Name:    item.Name,
		Added:   p.quantity,
		Total:   total,
		Message: fmt.Sprintf("Medicine already exists. Quantity updated to: %d", total),
	}, nil
}

func (r *Reconciler) create(ctx context.Context, tenantID string, p *parsed, batch *string) (*CreatedItem, error) {
	cost := p.costPrice
	if cost == nil {
		cost = r.cost.Derive(p.mrp)
	}

	item, err := r.items.Create(ctx, tenantID, catalog.CreateInput{
		Fields: catalog.Fields{
			Name:         &p.name,
			MRP:          p.mrp,
			CostPrice:    cost,
			SellingPrice: p.sellingPrice,
			ExpiryDate:   p.expiry,
		},
		OpeningQuantity:  p.quantity,
		OpeningReference: batch,
	})
	if err != nil {
		return nil, err
	}
	return &CreatedItem{Row: p.line, ItemID: item.ID, Name: item.Name, Quantity: item.QuantityOnHand}, nil
}

func reason(err error) string {
	if appErr, ok := apperror.AsAppError(err); ok && appErr.Code != apperror.CodeInternal {
		return appErr.Message
	}
	return "Error processing row"
}
