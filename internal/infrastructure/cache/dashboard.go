// Package cache provides caching infrastructure.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pharmaledger/internal/domain/reports"
)

const (
	// DashboardKeyPrefix namespaces dashboard entries in a shared Redis.
	DashboardKeyPrefix = "pharmaledger:dashboard:"

	// DefaultDashboardTTL bounds staleness when an invalidation is lost.
	DefaultDashboardTTL = 5 * time.Minute
)

// DashboardCache stores tenant dashboards in Redis as JSON.
type DashboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ reports.Cache = (*DashboardCache)(nil)

// NewDashboardCache creates a cache on an existing client.
func NewDashboardCache(client *redis.Client, ttl time.Duration) *DashboardCache {
	if ttl <= 0 {
		ttl = DefaultDashboardTTL
	}
	return &DashboardCache{client: client, ttl: ttl}
}

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func dashboardKey(tenantID string) string {
	return DashboardKeyPrefix + tenantID
}

// Get returns the cached dashboard or nil on a miss.
func (c *DashboardCache) Get(ctx context.Context, tenantID string) (*reports.Dashboard, error) {
	val, err := c.client.Get(ctx, dashboardKey(tenantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get dashboard: %w", err)
	}

	var d reports.Dashboard
	if err := json.Unmarshal(val, &d); err != nil {
		// Unreadable entries are treated as a miss and overwritten by the next Set.
		return nil, nil
	}
	return &d, nil
}

// Set stores the dashboard with the configured TTL.
func (c *DashboardCache) Set(ctx context.Context, tenantID string, d *reports.Dashboard) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal dashboard: %w", err)
	}
	if err := c.client.Set(ctx, dashboardKey(tenantID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set dashboard: %w", err)
	}
	return nil
}

// Invalidate removes the tenant's entry.
func (c *DashboardCache) Invalidate(ctx context.Context, tenantID string) error {
	if err := c.client.Del(ctx, dashboardKey(tenantID)).Err(); err != nil {
		return fmt.Errorf("invalidate dashboard: %w", err)
	}
	return nil
}

// Health pings the Redis server.
func (c *DashboardCache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
