// Package reports builds the per-tenant inventory dashboard.
package reports

import (
	"context"
	"time"

	"pharmaledger/internal/domain/catalog"
)

const (
	// RecentWindow is the period counted as recent movement activity.
	RecentWindow = 7 * 24 * time.Hour

	// TopCategoryCount is the number of categories shown on the dashboard.
	TopCategoryCount = 5
)

// Dashboard is a snapshot of a tenant's inventory statistics.
type Dashboard struct {
	TenantID string `json:"tenant_id"`
	catalog.Summary
	RecentMovements int64                   `json:"recent_movements"`
	TopCategories   []catalog.CategoryCount `json:"top_categories"`
	GeneratedAt     time.Time               `json:"generated_at"`
}

// CatalogStats provides the catalog counters a dashboard is made of.
type CatalogStats interface {
	Summary(ctx context.Context, tenantID string) (catalog.Summary, error)
	TopCategories(ctx context.Context, tenantID string, limit int) ([]catalog.CategoryCount, error)
}

// MovementCounter counts ledger activity.
type MovementCounter interface {
	CountSince(ctx context.Context, tenantID string, since time.Time) (int64, error)
}

// Cache stores computed dashboards.
// Get returns nil without error on a miss.
type Cache interface {
	Get(ctx context.Context, tenantID string) (*Dashboard, error)
	Set(ctx context.Context, tenantID string, d *Dashboard) error
	Invalidate(ctx context.Context, tenantID string) error
}
