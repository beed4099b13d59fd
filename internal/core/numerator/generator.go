package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Generator hands out sequential numbers, independently per tenant and key.
// Calls run outside the caller's transaction, so a rolled back
// operation leaves a gap.
type Generator interface {
	// Next returns the next formatted number for the tenant.
	Next(ctx context.Context, tenantID string, cfg Config, period time.Time) (string, error)

	// SetLast sets the last issued value; the next call returns last+1.
	SetLast(ctx context.Context, tenantID string, cfg Config, period time.Time, last int64) error
}

// Memory is an in-process Generator. Strategy is ignored.
type Memory struct {
	mu  sync.Mutex
	seq map[string]int64
}

// NewMemory creates an empty in-process generator.
func NewMemory() *Memory {
	return &Memory{seq: make(map[string]int64)}
}

func (m *Memory) Next(ctx context.Context, tenantID string, cfg Config, period time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := tenantID + ":" + cfg.Key(period)

	m.mu.Lock()
	m.seq[key]++
	n := m.seq[key]
	m.mu.Unlock()

	return cfg.Format(period, n), nil
}

func (m *Memory) SetLast(ctx context.Context, tenantID string, cfg Config, period time.Time, last int64) error {
	if last < 0 {
		return fmt.Errorf("last number must not be negative, got %d", last)
	}
	m.mu.Lock()
	m.seq[tenantID+":"+cfg.Key(period)] = last
	m.mu.Unlock()
	return nil
}

var _ Generator = (*Memory)(nil)
