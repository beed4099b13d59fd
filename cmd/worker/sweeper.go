package main

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"pharmaledger/internal/app"
	appctx "pharmaledger/internal/core/context"
	"pharmaledger/internal/core/tenant"
	"pharmaledger/internal/domain/alerts"
	"pharmaledger/internal/domain/ledger"
	"pharmaledger/pkg/logger"
)

// maxConcurrentTenants bounds how many tenants are swept in parallel.
const maxConcurrentTenants = 4

// SweeperConfig configures a Sweeper. Cleaner is optional.
type SweeperConfig struct {
	Tenants tenant.Directory
	Ledger  *ledger.Service
	Alerts  *alerts.Service
	Cleaner app.IdempotencyCleaner
	Repair  bool
	Log     *logger.Logger
}

// Sweeper runs the periodic per-tenant maintenance.
type Sweeper struct {
	tenants tenant.Directory
	ledger  *ledger.Service
	alerts  *alerts.Service
	cleaner app.IdempotencyCleaner
	repair  bool
	log     *logger.Logger
}

func NewSweeper(cfg SweeperConfig) *Sweeper {
	log := cfg.Log
	if log == nil {
		log = logger.Default()
	}
	return &Sweeper{
		tenants: cfg.Tenants,
		ledger:  cfg.Ledger,
		alerts:  cfg.Alerts,
		cleaner: cfg.Cleaner,
		repair:  cfg.Repair,
		log:     log.WithComponent("worker"),
	}
}

// TenantSweep is the outcome of one tenant's sweep.
type TenantSweep struct {
	TenantID string
	Checked  int
	Drifts   int
	Repaired int
	Alerts   map[alerts.Severity]int
	Err      error
}

// SweepResult summarizes one pass over all active tenants.
type SweepResult struct {
	Tenants      []TenantSweep
	ExpiredKeys  int64
	FailedTenant int
}

// Sweep reconciles and evaluates alerts for every active tenant. A failing
// tenant is logged and counted; it does not stop the others.
func (s *Sweeper) Sweep(ctx context.Context) (*SweepResult, error) {
	ctx = appctx.WithTrace(ctx, appctx.NewBackgroundTrace(appctx.OriginWorker))
	log := s.log.WithContext(ctx)

	active, err := s.tenants.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active tenants: %w", err)
	}

	result := &SweepResult{Tenants: make([]TenantSweep, len(active))}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentTenants)
	for i, t := range active {
		g.Go(func() error {
			sweep := s.sweepTenant(gctx, t.ID)
			mu.Lock()
			result.Tenants[i] = sweep
			if sweep.Err != nil {
				result.FailedTenant++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if s.cleaner != nil {
		n, err := s.cleaner.CleanupExpired(ctx)
		if err != nil {
			log.Warnw("idempotency cleanup failed", "error", err)
		} else {
			result.ExpiredKeys = n
			if n > 0 {
				log.Infow("cleaned up idempotency keys", "count", n)
			}
		}
	}
	return result, ctx.Err()
}

func (s *Sweeper) sweepTenant(ctx context.Context, tenantID string) TenantSweep {
	out := TenantSweep{TenantID: tenantID, Alerts: map[alerts.Severity]int{}}
	log := s.log.WithContext(ctx)

	report, err := s.ledger.ReconcileTenant(ctx, tenantID, s.repair)
	if err != nil {
		out.Err = err
		log.Errorw("reconcile failed", "tenant_id", tenantID, "error", err)
		return out
	}
	out.Checked, out.Drifts, out.Repaired = report.Checked, len(report.Drifts), report.Repaired
	for _, d := range report.Drifts {
		log.Warnw("stock drift",
			"tenant_id", tenantID,
			"item_id", d.ItemID,
			"cached", d.Cached,
			"ledger", d.Ledger,
			"repaired", d.Repaired,
		)
	}

	found, err := s.alerts.Evaluate(ctx, tenantID)
	if err != nil {
		out.Err = err
		log.Errorw("alert evaluation failed", "tenant_id", tenantID, "error", err)
		return out
	}
	for _, a := range found {
		out.Alerts[a.Severity]++
	}
	log.Infow("tenant swept",
		"tenant_id", tenantID,
		"items", out.Checked,
		"drifts", out.Drifts,
		"repaired", out.Repaired,
		"alerts", len(found),
	)
	return out
}
