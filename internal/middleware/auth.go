// Package middleware provides Gin HTTP middleware for authentication, tenant scoping,
// rate limiting, security headers, request correlation and metrics.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Recovery → RequestID → Metrics → Security → Auth → RateLimit → ShopContext → Handler
//
// Security headers run before auth so they appear on 401 responses too.
// Rate limiting keys on the authenticated principal, so it runs after Auth.
// ShopContext resolves the :shopID path parameter into an authorized access.TenantScope;
// handlers never re-derive shop access.
package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopdesk/shopdesk/internal/auth"
)

const (
	// PrincipalKey is the gin.Context key holding the authenticated auth.Principal.
	PrincipalKey = "principal"
	// UserIDKey holds the principal id as a string, used for rate limiting and logging.
	UserIDKey = "user_id"
)

// AuthMiddleware requires a valid bearer token belonging to an ACTIVE principal
func AuthMiddleware(authn *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, msg := bearerToken(c.GetHeader("Authorization"))
		if msg != "" {
			unauthenticated(c, msg)
			return
		}

		p, err := authn.Authenticate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthenticated) {
				unauthenticated(c, "Invalid or expired credentials")
				return
			}
			slog.ErrorContext(c.Request.Context(), "failed to authenticate request", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to authenticate request",
				"code":  "INTERNAL",
			})
			return
		}

		c.Set(PrincipalKey, p)
		c.Set(UserIDKey, p.ID.String())
		c.Next()
	}
}

// GetPrincipal returns the principal stored by AuthMiddleware
func GetPrincipal(c *gin.Context) (auth.Principal, bool) {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		return auth.Principal{}, false
	}
	p, ok := v.(auth.Principal)
	return p, ok
}

func bearerToken(header string) (string, string) {
	if header == "" {
		return "", "Missing authorization header"
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", "Authorization header must start with 'Bearer '"
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", "Authorization token is empty"
	}
	return token, ""
}

func unauthenticated(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": msg,
		"code":  "UNAUTHENTICATED",
	})
}
