// Package numerator is the PostgreSQL implementation of core/numerator.Generator.
package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	corenumerator "pharmaledger/internal/core/numerator"
)

// Querier is satisfied by *pgxpool.Pool. Numbers are allocated on their own
// connection, never inside the caller's transaction.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type cachedRange struct {
	current int64
	max     int64
}

// Service allocates numbers from the reference_sequences table.
type Service struct {
	q Querier

	// cacheMu protects ranges, keyed by tenant and sequence key
	cacheMu sync.Mutex
	ranges  map[string]*cachedRange
}

var _ corenumerator.Generator = (*Service)(nil)

// New creates a numerator backed by q.
func New(q Querier) *Service {
	return &Service{q: q, ranges: make(map[string]*cachedRange)}
}

// Next returns the next number, e.g. IMP-2026-00001.
func (s *Service) Next(ctx context.Context, tenantID string, cfg corenumerator.Config, period time.Time) (string, error) {
	key := cfg.Key(period)

	var (
		num int64
		err error
	)
	switch cfg.Strategy {
	case corenumerator.StrategyCached:
		num, err = s.nextCached(ctx, tenantID, key, cfg.BatchSize())
	default:
		num, err = s.nextStrict(ctx, tenantID, key)
	}
	if err != nil {
		return "", err
	}
	return cfg.Format(period, num), nil
}

// nextStrict increments the sequence row with UPSERT + RETURNING.
func (s *Service) nextStrict(ctx context.Context, tenantID, key string) (int64, error) {
	var num int64
	err := s.q.QueryRow(ctx, `
		INSERT INTO reference_sequences (tenant_id, key, current_val)
		VALUES ($1, $2, 1)
		ON CONFLICT (tenant_id, key) DO UPDATE SET current_val = reference_sequences.current_val + 1
		RETURNING current_val
	`, tenantID, key).Scan(&num)
	if err != nil {
		return 0, fmt.Errorf("next %s: %w", key, err)
	}
	return num, nil
}

// nextCached serves from the reserved range, reserving a new one when it runs out.
func (s *Service) nextCached(ctx context.Context, tenantID, key string, size int64) (int64, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	cacheKey := tenantID + ":" + key
	rng, ok := s.ranges[cacheKey]
	if !ok {
		rng = &cachedRange{}
		s.ranges[cacheKey] = rng
	}

	if rng.current >= rng.max {
		var newMax int64
		err := s.q.QueryRow(ctx, `
			INSERT INTO reference_sequences (tenant_id, key, current_val)
			VALUES ($1, $2, $3)
			ON CONFLICT (tenant_id, key) DO UPDATE SET current_val = reference_sequences.current_val + $3
			RETURNING current_val
		`, tenantID, key, size).Scan(&newMax)
		if err != nil {
			return 0, fmt.Errorf("reserve range %s: %w", key, err)
		}
		// The reserved range is (newMax-size, newMax].
		rng.current = newMax - size
		rng.max = newMax
	}

	rng.current++
	return rng.current, nil
}

// SetLast overwrites the sequence and drops any cached range for it.
func (s *Service) SetLast(ctx context.Context, tenantID string, cfg corenumerator.Config, period time.Time, last int64) error {
	if last < 0 {
		return fmt.Errorf("last number must not be negative, got %d", last)
	}
	key := cfg.Key(period)

	var stored int64
	err := s.q.QueryRow(ctx, `
		INSERT INTO reference_sequences (tenant_id, key, current_val)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, key) DO UPDATE SET current_val = $3
		RETURNING current_val
	`, tenantID, key, last).Scan(&stored)

	s.cacheMu.Lock()
	delete(s.ranges, tenantID+":"+key)
	s.cacheMu.Unlock()

	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
