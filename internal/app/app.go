// Package app wires configuration, storage and domain services into one
// application graph shared by the server, worker and command-line tools.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"pharmaledger/internal/config"
	"pharmaledger/internal/core/idempotency"
	"pharmaledger/internal/core/numerator"
	"pharmaledger/internal/core/tenant"
	"pharmaledger/internal/core/tx"
	"pharmaledger/internal/domain/alerts"
	"pharmaledger/internal/domain/audit"
	"pharmaledger/internal/domain/auth"
	"pharmaledger/internal/domain/catalog"
	"pharmaledger/internal/domain/importer"
	"pharmaledger/internal/domain/ledger"
	"pharmaledger/internal/domain/quota"
	"pharmaledger/internal/domain/reports"
	"pharmaledger/internal/infrastructure/cache"
	v1 "pharmaledger/internal/infrastructure/http/v1"
	"pharmaledger/internal/infrastructure/http/v1/handlers"
	infranumerator "pharmaledger/internal/infrastructure/numerator"
	"pharmaledger/internal/infrastructure/storage/memory"
	"pharmaledger/internal/infrastructure/storage/postgres"
	"pharmaledger/internal/infrastructure/storage/postgres/catalog_repo"
	"pharmaledger/internal/infrastructure/storage/postgres/ledger_repo"
	"pharmaledger/internal/infrastructure/storage/postgres/quota_repo"
	"pharmaledger/pkg/logger"
)

// IdempotencyCleaner deletes expired idempotency keys.
type IdempotencyCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// App holds the wired services. Close releases pools and background listeners.
type App struct {
	Config *config.Config
	Log    *logger.Logger

	// Pool is nil with the memory store.
	Pool   *pgxpool.Pool
	Memory *memory.Store
	// Dashboards is nil without REDIS_URL.
	Dashboards *cache.DashboardCache

	TxManager tx.Manager
	Tenants   tenant.Directory
	Tokens    *auth.JWTService

	Catalog  *catalog.Service
	Ledger   *ledger.Service
	Quota    *quota.Gate
	Importer *importer.Reconciler
	Reports  *reports.Service
	Alerts   *alerts.Service

	Idempotency        idempotency.Store
	IdempotencyCleaner IdempotencyCleaner

	closers []func()
}

// stores are the repositories a backend provides.
type stores struct {
	txm       tx.Manager
	tenants   tenant.Directory
	items     catalog.Repository
	finder    importer.ItemFinder
	locker    importer.NameLocker
	movements ledger.Repository
	subs      quota.Repository
	counter   quota.Counter
	audit     audit.Recorder
	numbers   numerator.Generator
}

// Build connects the configured backend and wires every service.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	var (
		s   *stores
		err error
	)
	switch cfg.Store {
	case config.StoreMemory:
		s = a.memoryStores()
	default:
		s, err = a.postgresStores(ctx)
	}
	if err != nil {
		a.Close()
		return nil, err
	}
	a.TxManager = s.txm
	a.Tenants = s.tenants

	a.Tokens = auth.NewJWTService(auth.JWTConfig{
		Secret:   cfg.Secret(),
		Issuer:   cfg.JWTIssuer,
		TokenTTL: auth.DefaultTokenTTL,
	})

	a.Quota = quota.NewGate(s.subs, s.counter, s.txm, quota.Config{Plans: quota.DefaultPlans(), Audit: s.audit})
	a.Ledger = ledger.NewService(ledger.Config{
		Items:     s.items,
		Movements: s.movements,
		TxManager: s.txm,
		Audit:     s.audit,
	})
	a.Catalog = catalog.NewService(catalog.Config{
		Repo:             s.items,
		TxManager:        s.txm,
		Quota:            a.Quota,
		Stock:            a.Ledger,
		Audit:            s.audit,
		ExpiringSoonDays: cfg.ExpiringSoonDays,
	})
	a.Importer = importer.NewReconciler(importer.Config{
		TxManager: s.txm,
		Finder:    s.finder,
		Locker:    s.locker,
		Catalog:   a.Catalog,
		Ledger:    a.Ledger,
		Numbers:   s.numbers,
		Cost:      importer.CostPolicy{Ratio: decimal.NewFromFloat(cfg.ImportCostRatio)},
	})

	var dashboards reports.Cache
	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		a.Dashboards = cache.NewDashboardCache(client, cfg.DashboardCacheTTL)
		dashboards = a.Dashboards
	}
	a.Reports = reports.NewService(reports.Config{Catalog: a.Catalog, Movements: a.Ledger, Cache: dashboards})
	a.Reports.Bind(a.Catalog.Hooks(), a.Ledger.Hooks())

	rules := alerts.DefaultRules()
	if cfg.AlertRules != "" {
		if rules, err = alerts.ParseRules(cfg.AlertRules); err != nil {
			a.Close()
			return nil, fmt.Errorf("parse ALERT_RULES: %w", err)
		}
	}
	engine, err := alerts.NewEngine(rules)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("compile alert rules: %w", err)
	}
	a.Alerts = alerts.NewService(a.Catalog, engine, nil)

	return a, nil
}

func (a *App) memoryStores() *stores {
	st := memory.New()
	a.Memory = st
	a.Idempotency = idempotency.NewMemoryStore(idempotency.DefaultTTL, nil)
	return &stores{
		txm:       st,
		tenants:   st.Tenants(),
		items:     st.Catalog(),
		finder:    st.Catalog(),
		movements: st.Movements(),
		subs:      st.Subscriptions(),
		counter:   st.Counter(),
		audit:     st.Audit(),
		numbers:   numerator.NewMemory(),
	}
}

func (a *App) postgresStores(ctx context.Context) (*stores, error) {
	cfg := a.Config
	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.MaxConns = cfg.DBMaxConns
	poolCfg.MinConns = cfg.DBMinConns
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.Pool = pool
	a.closers = append(a.closers, pool.Close)

	txm := postgres.NewTxManager(pool)
	auditLog, err := postgres.NewAuditLog(txm)
	if err != nil {
		return nil, fmt.Errorf("audit log: %w", err)
	}

	tenants := cache.NewTenantCache(tenant.NewPostgresDirectory(pool), pool)
	tenants.Start(ctx)
	a.closers = append(a.closers, tenants.Stop)

	items := catalog_repo.NewItemRepo(txm)
	tables, err := quota_repo.NewTableCounter(txm, map[quota.ResourceClass]string{
		quota.ClassStaff:   cfg.StaffTable,
		quota.ClassDoctor:  cfg.DoctorTable,
		quota.ClassPatient: cfg.PatientTable,
	})
	if err != nil {
		return nil, fmt.Errorf("quota counters: %w", err)
	}
	counters := quota.Counters{
		quota.ClassCatalogItem: quota.CounterFunc(func(ctx context.Context, tenantID string, _ quota.ResourceClass) (int64, error) {
			return items.CountActive(ctx, tenantID)
		}),
	}
	for _, class := range tables.Classes() {
		counters[class] = tables
	}

	store := postgres.NewIdempotencyStore(txm, idempotency.DefaultTTL)
	a.Idempotency = store
	a.IdempotencyCleaner = store

	return &stores{
		txm:       txm,
		tenants:   tenants,
		items:     items,
		finder:    items,
		locker:    items,
		movements: ledger_repo.NewMovementRepo(txm),
		subs:      quota_repo.NewSubscriptionRepo(txm),
		counter:   counters,
		audit:     auditLog,
		numbers:   infranumerator.New(pool),
	}, nil
}

// RouterConfig returns the HTTP router configuration for this graph.
func (a *App) RouterConfig() v1.RouterConfig {
	checks := map[string]handlers.Pinger{}
	if a.Pool != nil {
		checks["database"] = a.Pool
	}
	if a.Dashboards != nil {
		checks["redis"] = handlers.PingFunc(a.Dashboards.Health)
	}
	return v1.RouterConfig{
		Logger:       a.Log,
		Tenants:      a.Tenants,
		Tokens:       a.Tokens,
		Idempotency:  a.Idempotency,
		Catalog:      a.Catalog,
		Ledger:       a.Ledger,
		Quota:        a.Quota,
		Importer:     a.Importer,
		Reports:      a.Reports,
		Alerts:       a.Alerts,
		HealthChecks: checks,
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
