package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/shopdesk/shopdesk/internal/auth"
)

// RequireRole rejects principals whose role is not one of roles. It is a coarse route guard only;
// the access services still decide authority per target.
func RequireRole(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		if !ok {
			unauthenticated(c, "Authentication required")
			return
		}

		if !slices.Contains(roles, p.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Insufficient role",
				"code":  "ACCESS_DENIED",
			})
			return
		}

		c.Next()
	}
}
