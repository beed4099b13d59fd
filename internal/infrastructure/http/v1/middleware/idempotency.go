package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"pharmaledger/internal/core/apperror"
	"pharmaledger/internal/core/idempotency"
	"pharmaledger/pkg/logger"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"

const (
	maxIdempotencyBodyBytes = 10 << 20
	keyIdempotencyStore     = "idempotency_store"
)

// Idempotency replays the stored response of a repeated POST/PUT/PATCH carrying
// X-Idempotency-Key. Keys are scoped by tenant, so it runs after TenantScope.
func Idempotency(store idempotency.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch {
			c.Next()
			return
		}
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1))
		if err != nil {
			_ = c.Error(apperror.NewValidation("unreadable request body"))
			c.Abort()
			return
		}
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		// The content type is part of the fingerprint: multipart boundaries differ per request.
		sum := sha256.Sum256(append([]byte(c.ContentType()+"\n"), body...))
		replay, err := store.Acquire(c.Request.Context(), idempotency.Request{
			TenantID:    c.GetString(keyTenantID),
			Key:         key,
			Operation:   method + " " + c.FullPath() + " " + c.Request.URL.Path,
			RequestHash: hex.EncodeToString(sum[:]),
		})
		if err != nil {
			if _, ok := apperror.AsAppError(err); !ok {
				err = apperror.NewInternal(err).WithDetail("component", "idempotency")
			}
			_ = c.Error(err)
			c.Abort()
			return
		}
		if replay != nil {
			c.Header("Idempotent-Replayed", "true")
			c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			c.Abort()
			return
		}

		c.Set(keyIdempotencyKey, key)
		c.Set(keyIdempotencyStore, store)
		c.Next()
	}
}

func idempotencyFrom(c *gin.Context) (idempotency.Store, string, bool) {
	key := c.GetString(keyIdempotencyKey)
	if key == "" {
		return nil, "", false
	}
	v, ok := c.Get(keyIdempotencyStore)
	if !ok {
		return nil, "", false
	}
	store, ok := v.(idempotency.Store)
	return store, key, ok
}

func completeIdempotency(c *gin.Context, store idempotency.Store, key string, status int, contentType string, body []byte, failed bool) {
	st := idempotency.StatusSuccess
	if failed {
		st = idempotency.StatusFailed
	}
	err := store.Complete(c.Request.Context(), c.GetString(keyTenantID), key, st, idempotency.Replay{
		StatusCode:  status,
		ContentType: contentType,
		Body:        body,
	})
	if err != nil {
		logger.Warn(c.Request.Context(), "complete idempotency key", "error", err)
	}
}

// CompleteIdempotency records a successful response for replay. Handlers call it
// through their response helpers; it is a no-op when the request carried no key.
func CompleteIdempotency(c *gin.Context, status int, contentType string, body []byte) {
	if store, key, ok := idempotencyFrom(c); ok {
		completeIdempotency(c, store, key, status, contentType, body, false)
	}
}
