package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopdesk/shopdesk/internal/auth"
)

// LoginRequest is the body of POST /api/v1/auth/login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// dummyHash keeps the response time of unknown emails close to that of wrong passwords
const dummyHash = "$2a$12$C6UzMDM.H6dfI/f/IKcEe.3Pd4Ohc3ErD2CFSZ3qIkBeYBtnTVx4W"

// Login verifies a password and issues a bearer token.
// POST /api/v1/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	user, err := h.users.GetUserByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		respondError(c, err)
		return
	}

	hash := dummyHash
	if user != nil {
		hash = user.PasswordHash
	}
	if !auth.CheckPassword(hash, req.Password) || user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password", "code": "UNAUTHENTICATED"})
		return
	}

	p := user.Principal()
	if !p.IsActive() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Account is " + string(p.Status), "code": "UNAUTHENTICATED"})
		return
	}

	token, expiresAt, err := h.tokens.Issue(p)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.engine.RecordLogin(c.Request.Context(), p, c.ClientIP()); err != nil {
		slog.WarnContext(c.Request.Context(), "failed to record login", "user_id", p.ID, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expiresAt,
		"user":       user,
	})
}
