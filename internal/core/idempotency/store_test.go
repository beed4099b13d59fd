package idempotency

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmaledger/internal/core/apperror"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestMemoryStore_ReplayAfterComplete(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(time.Hour, clk.now)
	req := Request{TenantID: "t1", Key: "k1", Operation: "POST /movements", RequestHash: "h1"}

	replay, err := store.Acquire(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, replay)

	_, err = store.Acquire(ctx, req)
	assert.True(t, apperror.HasCode(err, apperror.CodeIdempotencyConflict))

	require.NoError(t, store.Complete(ctx, "t1", "k1", StatusSuccess, Replay{StatusCode: http.StatusCreated, Body: []byte(`{"ok":true}`)}))

	replay, err = store.Acquire(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, replay)
	assert.Equal(t, http.StatusCreated, replay.StatusCode)
	assert.Equal(t, "application/json", replay.ContentType)
	assert.JSONEq(t, `{"ok":true}`, string(replay.Body))
}

func TestMemoryStore_KeysScopedByTenant(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0, nil)

	_, err := store.Acquire(ctx, Request{TenantID: "t1", Key: "k", Operation: "op", RequestHash: "h"})
	require.NoError(t, err)

	replay, err := store.Acquire(ctx, Request{TenantID: "t2", Key: "k", Operation: "op", RequestHash: "other"})
	require.NoError(t, err)
	assert.Nil(t, replay)
}

func TestMemoryStore_MismatchedRequest(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0, nil)

	_, err := store.Acquire(ctx, Request{TenantID: "t1", Key: "k", Operation: "op", RequestHash: "h1"})
	require.NoError(t, err)

	_, err = store.Acquire(ctx, Request{TenantID: "t1", Key: "k", Operation: "op", RequestHash: "h2"})
	assert.True(t, apperror.HasCode(err, apperror.CodeIdempotencyMismatch))
}

func TestMemoryStore_StaleAndReleasedKeys(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(time.Hour, clk.now)
	req := Request{TenantID: "t1", Key: "k", Operation: "op", RequestHash: "h"}

	_, err := store.Acquire(ctx, req)
	require.NoError(t, err)

	clk.t = clk.t.Add(2 * StaleAfter)
	replay, err := store.Acquire(ctx, req)
	require.NoError(t, err, "stale pending key is reclaimed")
	assert.Nil(t, replay)

	require.NoError(t, store.Release(ctx, "t1", "k"))
	_, err = store.Acquire(ctx, Request{TenantID: "t1", Key: "k", Operation: "op", RequestHash: "different"})
	assert.NoError(t, err, "released key is free")
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(time.Hour, clk.now)
	req := Request{TenantID: "t1", Key: "k", Operation: "op", RequestHash: "h"}

	_, err := store.Acquire(ctx, req)
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, "t1", "k", StatusSuccess, Replay{StatusCode: http.StatusOK}))

	clk.t = clk.t.Add(2 * time.Hour)
	replay, err := store.Acquire(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, replay)
}

func TestNormalizeReplay(t *testing.T) {
	r := NormalizeReplay(Replay{})
	assert.Equal(t, http.StatusOK, r.StatusCode)
	assert.Equal(t, "application/json", r.ContentType)

	r = NormalizeReplay(Replay{StatusCode: http.StatusNoContent})
	assert.Empty(t, r.ContentType)
}
