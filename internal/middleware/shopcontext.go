package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopdesk/shopdesk/internal/access"
)

// ScopeKey is the gin.Context key holding the resolved *access.TenantScope.
const ScopeKey = "tenant_scope"

// ShopContextMiddleware resolves the :shopID path parameter against the shops the authenticated
// principal may access. Unknown and inaccessible shops both answer 403 so shop ids cannot be probed.
// Must run after AuthMiddleware.
func ShopContextMiddleware(resolver *access.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		if !ok {
			unauthenticated(c, "Authentication required")
			return
		}

		shopID, err := uuid.Parse(c.Param("shopID"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "Invalid shop id",
				"code":  "INVALID_INPUT",
			})
			return
		}

		scope, err := resolver.Resolve(c.Request.Context(), p, &shopID)
		switch {
		case err == nil:
		case errors.Is(err, access.ErrAccessDenied), errors.Is(err, access.ErrNoAccessibleShop):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Access to this shop is denied",
				"code":  "ACCESS_DENIED",
			})
			return
		default:
			slog.ErrorContext(c.Request.Context(), "failed to resolve shop context",
				"shop_id", shopID, "user_id", p.ID, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to resolve shop",
				"code":  "INTERNAL",
			})
			return
		}

		c.Set(ScopeKey, scope)
		c.Next()
	}
}

// GetScope returns the scope stored by ShopContextMiddleware
func GetScope(c *gin.Context) (*access.TenantScope, bool) {
	v, ok := c.Get(ScopeKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*access.TenantScope)
	return s, ok && s != nil
}
