// Package v1 provides HTTP API version 1.
package v1

import (
	"time"

	"github.com/gin-gonic/gin"

	"pharmaledger/internal/core/idempotency"
	"pharmaledger/internal/core/tenant"
	"pharmaledger/internal/domain/alerts"
	"pharmaledger/internal/domain/catalog"
	"pharmaledger/internal/domain/importer"
	"pharmaledger/internal/domain/ledger"
	"pharmaledger/internal/domain/quota"
	"pharmaledger/internal/domain/reports"
	"pharmaledger/internal/infrastructure/http/v1/handlers"
	"pharmaledger/internal/infrastructure/http/v1/middleware"
	"pharmaledger/pkg/logger"
)

// RoleAdmin may change plans and reconcile a whole tenant.
const RoleAdmin = "admin"

// RouterConfig holds the router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// Tenants resolves X-Tenant-ID
	Tenants tenant.Directory

	// Tokens validates bearer tokens
	Tokens middleware.TokenValidator

	// Idempotency enables X-Idempotency-Key replay when set
	Idempotency idempotency.Store

	Catalog  *catalog.Service
	Ledger   *ledger.Service
	Quota    *quota.Gate
	Importer *importer.Reconciler
	Reports  *reports.Service
	Alerts   *alerts.Service

	// HealthChecks are probed by /health/ready
	HealthChecks map[string]handlers.Pinger

	// Now overrides the clock used for derived item fields
	Now func() time.Time
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery()) // inside ErrorHandler so a panic still renders a 500

	// Health endpoints (no auth, no tenant required)
	healthHandler := handlers.NewHealthHandler(cfg.HealthChecks)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.TenantScope(cfg.Tenants)) // 1. Resolve and check the tenant
	v1.Use(middleware.Auth(cfg.Tokens))         // 2. Authenticate, reject foreign-tenant tokens
	if cfg.Idempotency != nil {
		v1.Use(middleware.Idempotency(cfg.Idempotency)) // 3. Replay repeated writes
	}

	base := handlers.NewBaseHandler()
	registerInventoryRoutes(v1.Group("/inventory"), base, cfg)
	registerQuotaRoutes(v1.Group("/quota"), base, cfg)

	return router
}

func registerInventoryRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	inventory := handlers.NewInventoryHandler(base, cfg.Catalog, cfg.Ledger, cfg.Now)
	imports := handlers.NewImportHandler(base, cfg.Importer)
	reportsHandler := handlers.NewReportsHandler(base, cfg.Reports, cfg.Alerts)

	items := rg.Group("/items")
	{
		items.GET("", inventory.List)
		items.POST("", inventory.Create)
		items.GET("/:id", inventory.Get)
		items.PUT("/:id", inventory.Update)
		items.DELETE("/:id", inventory.Retire)
		items.POST("/:id/movements", inventory.RecordMovement)
		items.GET("/:id/movements", inventory.ItemMovements)
		items.POST("/:id/reconcile", inventory.ReconcileItem)
	}
	rg.GET("/movements", inventory.Movements)
	rg.POST("/reconcile", middleware.RequireRole(RoleAdmin, middleware.RoleService), inventory.ReconcileAll)

	rg.GET("/dashboard", reportsHandler.Dashboard)
	rg.GET("/alerts", reportsHandler.Alerts)

	rg.POST("/import", imports.ImportJSON)
	rg.POST("/import/csv", imports.ImportCSV)
	rg.GET("/import/template", imports.Template)
}

func registerQuotaRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	q := handlers.NewQuotaHandler(base, cfg.Quota)

	rg.GET("/usage", q.Usage)
	rg.POST("/check/:class", q.Check)
	rg.GET("/plans", q.Plans)
	rg.GET("/history", q.History)
	rg.POST("/plan", middleware.RequireRole(RoleAdmin, middleware.RoleService), q.ChangePlan)
}
