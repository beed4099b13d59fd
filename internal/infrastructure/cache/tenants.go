package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"pharmaledger/internal/core/tenant"
	"pharmaledger/pkg/logger"
)

// TenantChangedChannel is the NOTIFY channel fired by the tenants table trigger.
// The payload is the tenant id; an empty payload flushes the whole cache.
const TenantChangedChannel = "tenants_changed"

// TenantCache is a read-through tenant.Directory in front of the database.
// Tenant rows are edited by the tenant CLI in another process, so entries are
// dropped on PostgreSQL NOTIFY rather than on a TTL.
type TenantCache struct {
	source tenant.Directory
	pool   *pgxpool.Pool

	mu      sync.RWMutex
	tenants map[string]tenant.Tenant

	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

var _ tenant.Directory = (*TenantCache)(nil)

// NewTenantCache wraps source. pool is used only for LISTEN and may be nil.
func NewTenantCache(source tenant.Directory, pool *pgxpool.Pool) *TenantCache {
	return &TenantCache{
		source:  source,
		pool:    pool,
		tenants: make(map[string]tenant.Tenant),
	}
}

// Start begins listening for invalidation notifications.
func (c *TenantCache) Start(ctx context.Context) {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.started || c.pool == nil {
		return
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.started = true

	c.wg.Add(1)
	go c.listenLoop()
	logger.Info(c.ctx, "tenant cache started")
}

// Stop stops the listener and waits for it to exit.
func (c *TenantCache) Stop() {
	c.lifecycleMu.Lock()
	if !c.started {
		c.lifecycleMu.Unlock()
		return
	}
	cancel := c.cancel
	c.started = false
	c.cancel = nil
	c.lifecycleMu.Unlock()

	cancel()
	c.wg.Wait()
	logger.Info(context.Background(), "tenant cache stopped")
}

func (c *TenantCache) listenLoop() {
	defer c.wg.Done()

	for c.ctx.Err() == nil {
		conn, err := c.pool.Acquire(c.ctx)
		if err != nil {
			logger.Error(c.ctx, "failed to acquire connection for LISTEN", "error", err)
			c.sleep(time.Second)
			continue
		}

		if _, err := conn.Exec(c.ctx, "LISTEN "+TenantChangedChannel); err != nil {
			logger.Error(c.ctx, "failed to LISTEN", "channel", TenantChangedChannel, "error", err)
			conn.Release()
			c.sleep(time.Second)
			continue
		}

		// Notifications may have been missed while disconnected.
		c.Flush()
		c.waitForNotifications(conn)
		conn.Release()
	}
}

func (c *TenantCache) waitForNotifications(conn *pgxpool.Conn) {
	for {
		ctx, cancel := context.WithTimeout(c.ctx, 30*time.Second)
		n, err := conn.Conn().WaitForNotification(ctx)
		cancel()

		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			if ctx.Err() != nil {
				continue
			}
			logger.Warn(c.ctx, "tenant notification wait failed", "error", err)
			return
		}
		c.handleNotification(c.ctx, n.Channel, n.Payload)
	}
}

func (c *TenantCache) sleep(d time.Duration) {
	select {
	case <-c.ctx.Done():
	case <-time.After(d):
	}
}

func (c *TenantCache) handleNotification(ctx context.Context, channel, payload string) {
	if channel != TenantChangedChannel {
		return
	}
	tenantID := strings.TrimSpace(payload)
	if tenantID == "" {
		c.Flush()
		return
	}
	logger.Debug(ctx, "tenant changed", "tenant_id", tenantID)
	c.Invalidate(tenantID)
}

// Invalidate drops one tenant.
func (c *TenantCache) Invalidate(tenantID string) {
	c.mu.Lock()
	delete(c.tenants, tenantID)
	c.mu.Unlock()
}

// Flush drops every entry.
func (c *TenantCache) Flush() {
	c.mu.Lock()
	c.tenants = make(map[string]tenant.Tenant)
	c.mu.Unlock()
}

// Get returns a copy of the cached tenant, loading it on a miss.
func (c *TenantCache) Get(ctx context.Context, tenantID string) (*tenant.Tenant, error) {
	c.mu.RLock()
	t, ok := c.tenants[tenantID]
	c.mu.RUnlock()
	if ok {
		return &t, nil
	}

	loaded, err := c.source.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.tenants[tenantID] = *loaded
	c.mu.Unlock()

	out := *loaded
	return &out, nil
}

func (c *TenantCache) ListActive(ctx context.Context) ([]*tenant.Tenant, error) {
	return c.source.ListActive(ctx)
}

func (c *TenantCache) ListAll(ctx context.Context) ([]*tenant.Tenant, error) {
	return c.source.ListAll(ctx)
}

func (c *TenantCache) Create(ctx context.Context, t *tenant.Tenant) error {
	return c.source.Create(ctx, t)
}

func (c *TenantCache) SetStatus(ctx context.Context, tenantID string, status tenant.Status) error {
	defer c.Invalidate(tenantID)
	return c.source.SetStatus(ctx, tenantID, status)
}

func (c *TenantCache) SetAPIKeyHash(ctx context.Context, tenantID, hash string) error {
	defer c.Invalidate(tenantID)
	return c.source.SetAPIKeyHash(ctx, tenantID, hash)
}
