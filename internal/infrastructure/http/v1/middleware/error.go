package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"pharmaledger/internal/core/apperror"
	"pharmaledger/pkg/logger"
)

// ErrorHandler renders the last error of a request as {code, message, details}.
// Internal causes are logged, never returned.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		ctx := c.Request.Context()

		appErr, ok := apperror.AsAppError(err)
		if !ok {
			logger.Error(ctx, "unhandled error", "error", err)
			appErr = apperror.NewInternal(err)
		} else if appErr.Err != nil {
			logger.Error(ctx, "request error", "code", appErr.Code, "cause", appErr.Err)
		}

		details := appErr.Details
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			details = map[string]any{"request_id": c.GetString(keyRequestID)}
		}
		body := gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
			"details": details,
		}

		finishIdempotency(c, appErr.HTTPStatus, body)
		c.JSON(appErr.HTTPStatus, body)
	}
}

// finishIdempotency stores a client error for replay and releases the key after a
// server error so the request may be retried. Best-effort.
func finishIdempotency(c *gin.Context, status int, body any) {
	store, key, ok := idempotencyFrom(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	tenantID := c.GetString(keyTenantID)

	if status >= http.StatusInternalServerError {
		if err := store.Release(ctx, tenantID, key); err != nil {
			logger.Warn(ctx, "release idempotency key", "error", err)
		}
		return
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return
	}
	completeIdempotency(c, store, key, status, "application/json", raw, true)
}
