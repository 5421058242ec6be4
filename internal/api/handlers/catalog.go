package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopdesk/shopdesk/internal/auth"
)

// PermissionCatalog lists every module with its grantable permissions and the tables the approval
// workflow accepts.
// GET /api/v1/catalog/permissions
func (h *Handlers) PermissionCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"modules": auth.Catalog(),
		"roles":   auth.AllRoles(),
		"tables":  h.engine.Gate.Tables(),
	})
}

// MyShops lists the shops the caller may access, oldest first.
// GET /api/v1/me/shops
func (h *Handlers) MyShops(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	shops, err := h.engine.Resolver.Accessible(c.Request.Context(), p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"principal": p, "shops": shops})
}
