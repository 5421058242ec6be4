// Package handlers implements the shopdesk HTTP endpoints. Handlers are thin: they bind and
// validate request input, read the principal and tenant scope placed in the gin.Context by the
// middleware chain, call into internal/access and translate its error taxonomy into HTTP status
// codes in one place (respondError).
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopdesk/shopdesk/internal/access"
	"github.com/shopdesk/shopdesk/internal/auth"
	"github.com/shopdesk/shopdesk/internal/db/models"
	"github.com/shopdesk/shopdesk/internal/middleware"
)

// Credentials finds users by login email
type Credentials interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Handlers serves every authenticated and login endpoint
type Handlers struct {
	engine *access.Engine
	users  Credentials
	tokens *auth.TokenIssuer
}

// New creates the handler set
func New(engine *access.Engine, users Credentials, tokens *auth.TokenIssuer) *Handlers {
	return &Handlers{engine: engine, users: users, tokens: tokens}
}

// errorCodes maps each access failure to its status code and stable machine-readable code.
// Order matters: a stale approval wraps the underlying cause, which may itself be in the list.
var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{access.ErrStaleApprovalTarget, http.StatusConflict, "STALE_APPROVAL_TARGET"},
	{access.ErrUnauthenticated, http.StatusUnauthorized, "UNAUTHENTICATED"},
	{access.ErrNoAccessibleShop, http.StatusForbidden, "NO_ACCESSIBLE_SHOP"},
	{access.ErrNotEligibleForApproval, http.StatusForbidden, "NOT_ELIGIBLE_FOR_APPROVAL"},
	{access.ErrInsufficientPermission, http.StatusForbidden, "INSUFFICIENT_PERMISSION"},
	{access.ErrAccessDenied, http.StatusForbidden, "ACCESS_DENIED"},
	{access.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{access.ErrInvalidStateTransition, http.StatusConflict, "INVALID_STATE_TRANSITION"},
	{access.ErrTransactionConflict, http.StatusConflict, "TRANSACTION_CONFLICT"},
	{access.ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT"},
}

// respondError writes the JSON error body for err. Unclassified errors are logged and answered
// with a generic 500 so driver messages never leak.
func respondError(c *gin.Context, err error) {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			c.JSON(e.status, gin.H{"error": err.Error(), "code": e.code})
			return
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Request timed out", "code": "TIMEOUT"})
		return
	}
	slog.ErrorContext(c.Request.Context(), "request failed",
		"request_id", c.GetString(middleware.RequestIDKey), "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "code": "INTERNAL"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": "INVALID_INPUT"})
}

// principal returns the authenticated principal or answers 401
func principal(c *gin.Context) (auth.Principal, bool) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required", "code": "UNAUTHENTICATED"})
	}
	return p, ok
}

// scoped returns the principal and the resolved shop scope or answers 401/403
func scoped(c *gin.Context) (auth.Principal, *access.TenantScope, bool) {
	p, ok := principal(c)
	if !ok {
		return p, nil, false
	}
	scope, ok := middleware.GetScope(c)
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "No shop scope", "code": "ACCESS_DENIED"})
		return p, nil, false
	}
	return p, scope, true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func optionalUUIDQuery(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		badRequest(c, "Invalid "+name)
		return nil, false
	}
	return &id, true
}

func intQuery(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		badRequest(c, "Invalid "+name)
		return 0, false
	}
	return n, true
}
