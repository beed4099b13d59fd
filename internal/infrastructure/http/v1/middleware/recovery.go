// Package middleware provides HTTP middleware components.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"pharmaledger/internal/core/apperror"
	"pharmaledger/internal/core/tenant"
	"pharmaledger/pkg/logger"
)

// Recovery turns a panic in a handler into a 500 for the ErrorHandler to render,
// so it must be registered after ErrorHandler.
// The stack is logged; the client only sees the request ID.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			ctx := c.Request.Context()
			logger.Error(ctx, "panic recovered",
				"error", rec,
				"method", c.Request.Method,
				"route", c.FullPath(),
				"tenant_id", tenant.GetTenantID(ctx),
				"stack", string(debug.Stack()),
			)

			appErr := apperror.NewInternal(fmt.Errorf("panic in %s %s: %v", c.Request.Method, c.FullPath(), rec))
			_ = c.Error(appErr.WithDetail("request_id", c.GetString(keyRequestID)))
			c.Abort()
		}()
		c.Next()
	}
}
