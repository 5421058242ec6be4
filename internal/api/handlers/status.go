package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopdesk/shopdesk/internal/auth"
	"github.com/shopdesk/shopdesk/internal/db/models"
)

// StatusRequest is the body of the status endpoints
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason" binding:"max=500"`
}

// SetShopStatus activates or deactivates a shop. Deactivation cascades to the shop's active
// worker assignments. The route bypasses ShopContext so inactive shops can be reactivated;
// the cascade checks ownership itself.
// PUT /api/v1/shops/:shopID/status
func (h *Handlers) SetShopStatus(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	shopID, ok := uuidParam(c, "shopID")
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	status := models.ShopStatus(strings.ToUpper(req.Status))
	if !status.Valid() {
		badRequest(c, "Invalid shop status")
		return
	}

	res, err := h.engine.Cascade.SetShopStatus(c.Request.Context(), p, shopID, status, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shop_id": shopID, "status": status, "cascade": res})
}

// SetUserStatus changes a principal's status. Deactivating a shop owner cascades to the owner's
// shops and their worker assignments.
// PUT /api/v1/users/:userID/status
func (h *Handlers) SetUserStatus(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	target, ok := uuidParam(c, "userID")
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	status, err := auth.ParseStatus(strings.ToUpper(req.Status))
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := h.engine.Cascade.SetPrincipalStatus(c.Request.Context(), p, target, status, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": target, "status": status, "cascade": res})
}
