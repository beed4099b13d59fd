// Package idempotency makes retried mutating requests replay their first response
// instead of applying twice. Keys are scoped by tenant.
package idempotency

import (
	"context"
	"net/http"
	"sync"
	"time"

	"pharmaledger/internal/core/apperror"
)

// Status represents the state of an idempotent operation.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// DefaultTTL is how long a completed key keeps replaying.
const DefaultTTL = 24 * time.Hour

// StaleAfter is the age after which a pending key is assumed abandoned and may be reclaimed.
const StaleAfter = time.Minute

// Request identifies one attempt.
type Request struct {
	TenantID    string
	Key         string
	Operation   string
	RequestHash string
}

// Replay is a cached HTTP response.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Store manages idempotency keys.
type Store interface {
	// Acquire returns (nil, nil) when the caller now owns the key, a Replay when the
	// operation already finished, or an error when the key is busy or was used for another request.
	Acquire(ctx context.Context, req Request) (*Replay, error)

	// Complete stores the final response under the key.
	Complete(ctx context.Context, tenantID, key string, status Status, resp Replay) error

	// Release forgets a pending key so the request can be retried.
	Release(ctx context.Context, tenantID, key string) error
}

// NormalizeReplay fills defaults for records stored without status or content type.
func NormalizeReplay(r Replay) *Replay {
	if r.StatusCode == 0 {
		r.StatusCode = http.StatusOK
	}
	if r.ContentType == "" && r.StatusCode != http.StatusNoContent {
		r.ContentType = "application/json"
	}
	return &r
}

type record struct {
	Request
	status    Status
	replay    Replay
	updatedAt time.Time
	expiresAt time.Time
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	records map[[2]string]*record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store; ttl <= 0 means DefaultTTL.
func NewMemoryStore(ttl time.Duration, now func() time.Time) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{ttl: ttl, now: now, records: make(map[[2]string]*record)}
}

func (s *MemoryStore) Acquire(_ context.Context, req Request) (*Replay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	k := [2]string{req.TenantID, req.Key}
	rec, ok := s.records[k]
	if !ok || now.After(rec.expiresAt) {
		s.records[k] = &record{Request: req, status: StatusPending, updatedAt: now, expiresAt: now.Add(s.ttl)}
		return nil, nil
	}

	if rec.Operation != req.Operation || rec.RequestHash != req.RequestHash {
		return nil, apperror.NewIdempotencyMismatch(req.Key)
	}
	switch rec.status {
	case StatusSuccess, StatusFailed:
		return NormalizeReplay(rec.replay), nil
	default:
		if now.Sub(rec.updatedAt) > StaleAfter {
			rec.updatedAt = now
			return nil, nil
		}
		return nil, apperror.NewIdempotencyConflict(req.Key)
	}
}

func (s *MemoryStore) Complete(_ context.Context, tenantID, key string, status Status, resp Replay) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[[2]string{tenantID, key}]; ok {
		rec.status = status
		rec.replay = resp
		rec.updatedAt = s.now()
	}
	return nil
}

func (s *MemoryStore) Release(_ context.Context, tenantID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := [2]string{tenantID, key}
	if rec, ok := s.records[k]; ok && rec.status == StatusPending {
		delete(s.records, k)
	}
	return nil
}
