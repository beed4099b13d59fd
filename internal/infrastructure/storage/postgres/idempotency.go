package postgres

import (
	"context"
	"fmt"
	"time"

	"pharmaledger/internal/core/apperror"
	"pharmaledger/internal/core/idempotency"
)

// IdempotencyStore keeps idempotency keys in sys_idempotency, keyed by (tenant_id, idempotency_key).
type IdempotencyStore struct {
	txm *TxManager
	ttl time.Duration
}

var _ idempotency.Store = (*IdempotencyStore)(nil)

// NewIdempotencyStore creates a new idempotency store; ttl <= 0 means idempotency.DefaultTTL.
func NewIdempotencyStore(txm *TxManager, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = idempotency.DefaultTTL
	}
	return &IdempotencyStore{txm: txm, ttl: ttl}
}

type idempotencyRecord struct {
	operation   string
	requestHash string
	status      idempotency.Status
	response    []byte
	statusCode  int
	contentType string
	updatedAt   time.Time
	inserted    bool
}

// Acquire inserts the key or returns the existing record. An expired record is overwritten.
// xmax = 0 distinguishes a fresh insert from the ON CONFLICT update path.
func (s *IdempotencyStore) Acquire(ctx context.Context, req idempotency.Request) (*idempotency.Replay, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(s.ttl)

	var rec idempotencyRecord
	err := s.txm.GetQuerier(ctx).QueryRow(ctx, `
		INSERT INTO sys_idempotency (tenant_id, idempotency_key, operation, request_hash, status, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
		ON CONFLICT (tenant_id, idempotency_key) DO UPDATE SET
			operation    = CASE WHEN sys_idempotency.expires_at < $6 THEN EXCLUDED.operation ELSE sys_idempotency.operation END,
			request_hash = CASE WHEN sys_idempotency.expires_at < $6 THEN EXCLUDED.request_hash ELSE sys_idempotency.request_hash END,
			status       = CASE WHEN sys_idempotency.expires_at < $6 THEN EXCLUDED.status ELSE sys_idempotency.status END,
			response     = CASE WHEN sys_idempotency.expires_at < $6 THEN NULL ELSE sys_idempotency.response END,
			updated_at   = CASE WHEN sys_idempotency.expires_at < $6 THEN $6 ELSE sys_idempotency.updated_at END,
			expires_at   = GREATEST(sys_idempotency.expires_at, $7)
		RETURNING operation, request_hash, status, COALESCE(response, ''::bytea), response_status,
			response_content_type, updated_at, (xmax = 0 OR updated_at = $6)
	`, req.TenantID, req.Key, req.Operation, req.RequestHash, idempotency.StatusPending, now, expiresAt).Scan(
		&rec.operation, &rec.requestHash, &rec.status, &rec.response, &rec.statusCode,
		&rec.contentType, &rec.updatedAt, &rec.inserted,
	)
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if rec.inserted {
		return nil, nil
	}

	if rec.operation != req.Operation || rec.requestHash != req.RequestHash {
		return nil, apperror.NewIdempotencyMismatch(req.Key)
	}

	switch rec.status {
	case idempotency.StatusSuccess, idempotency.StatusFailed:
		return idempotency.NormalizeReplay(idempotency.Replay{
			StatusCode:  rec.statusCode,
			ContentType: rec.contentType,
			Body:        rec.response,
		}), nil
	default:
		if now.Sub(rec.updatedAt) <= idempotency.StaleAfter {
			return nil, apperror.NewIdempotencyConflict(req.Key)
		}
		tag, err := s.txm.GetQuerier(ctx).Exec(ctx, `
			UPDATE sys_idempotency SET updated_at = $1
			WHERE tenant_id = $2 AND idempotency_key = $3 AND status = $4 AND updated_at = $5
		`, now, req.TenantID, req.Key, idempotency.StatusPending, rec.updatedAt)
		if err != nil {
			return nil, fmt.Errorf("reclaim stale key: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, apperror.NewIdempotencyConflict(req.Key)
		}
		return nil, nil
	}
}

func (s *IdempotencyStore) Complete(ctx context.Context, tenantID, key string, status idempotency.Status, resp idempotency.Replay) error {
	_, err := s.txm.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_idempotency
		SET status = $1,
		    response = $2,
		    response_status = $3,
		    response_content_type = $4,
		    updated_at = $5
		WHERE tenant_id = $6 AND idempotency_key = $7
	`, status, resp.Body, resp.StatusCode, resp.ContentType, time.Now().UTC(), tenantID, key)
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

func (s *IdempotencyStore) Release(ctx context.Context, tenantID, key string) error {
	_, err := s.txm.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM sys_idempotency WHERE tenant_id = $1 AND idempotency_key = $2 AND status = $3
	`, tenantID, key, idempotency.StatusPending)
	if err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// CleanupExpired removes expired idempotency records.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := s.txm.GetQuerier(ctx).Exec(ctx, `DELETE FROM sys_idempotency WHERE expires_at < $1`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	return result.RowsAffected(), nil
}
