package middleware

import (
	"errors"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"pharmaledger/internal/core/apperror"
	appctx "pharmaledger/internal/core/context"
	"pharmaledger/internal/core/tenant"
	"pharmaledger/pkg/logger"
)

// HeaderAPIKey carries a tenant service key as an alternative to a bearer token.
const HeaderAPIKey = "X-API-Key"

// RoleService is granted to callers authenticated with a tenant API key.
const RoleService = "service"

// TokenValidator validates actor tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*appctx.Actor, error)
}

// Auth accepts either a bearer token or the tenant's API key and puts the actor into
// the request context. Runs after TenantScope: a token issued for another tenant is rejected.
func Auth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		t := tenant.GetTenant(ctx)

		var actor *appctx.Actor
		if key := c.GetHeader(HeaderAPIKey); key != "" {
			if err := tenant.VerifyAPIKey(t, key); err != nil {
				if !errors.Is(err, tenant.ErrInvalidAPIKey) {
					logger.Warn(ctx, "api key verification failed", "error", err)
				}
				abortUnauthorized(c, "invalid api key")
				return
			}
			actor = &appctx.Actor{ActorID: "service:" + t.Slug, TenantID: t.ID, Roles: []string{RoleService}, Service: true}
		} else {
			header := c.GetHeader("Authorization")
			if header == "" {
				abortUnauthorized(c, "missing authorization header")
				return
			}
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				abortUnauthorized(c, "invalid authorization header format")
				return
			}
			var err error
			actor, err = validator.ValidateToken(strings.TrimSpace(parts[1]))
			if err != nil {
				abortUnauthorized(c, "invalid token")
				return
			}
		}

		if t != nil && actor.TenantID != t.ID {
			_ = c.Error(
				apperror.NewForbidden("tenant mismatch").
					WithDetail("header_tenant_id", t.ID).
					WithDetail("token_tenant_id", actor.TenantID),
			)
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(appctx.WithActor(ctx, actor))
		c.Set("actor_id", actor.ActorID)
		c.Next()
	}
}

// RequireRole lets the request through when the actor holds any of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := appctx.GetActor(c.Request.Context())
		if actor == nil {
			abortUnauthorized(c, "authentication required")
			return
		}
		for _, r := range roles {
			if slices.Contains(actor.Roles, r) {
				c.Next()
				return
			}
		}
		_ = c.Error(apperror.NewForbidden("insufficient permissions").WithDetail("required_roles", roles))
		c.Abort()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
