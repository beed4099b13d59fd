// Package main is the entry point for the background worker. Every
// RECONCILE_INTERVAL it reconciles stock and evaluates alert rules for each
// active tenant, and removes expired idempotency keys.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pharmaledger/internal/app"
	"pharmaledger/internal/config"
	"pharmaledger/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(config.New())
	if err != nil {
		return err
	}
	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.IsDev()})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	logger.SetDefault(log)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	sweeper := NewSweeper(SweeperConfig{
		Tenants: a.Tenants,
		Ledger:  a.Ledger,
		Alerts:  a.Alerts,
		Cleaner: a.IdempotencyCleaner,
		Repair:  cfg.ReconcileRepair,
		Log:     log,
	})

	log.Infow("starting worker", "interval", cfg.ReconcileInterval, "repair", cfg.ReconcileRepair)
	sweeper.Run(ctx, cfg.ReconcileInterval)
	log.Info("worker stopped")
	return nil
}

// Run sweeps immediately and then on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.log.Errorw("sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
