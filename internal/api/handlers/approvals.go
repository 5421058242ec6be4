package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopdesk/shopdesk/internal/access"
	"github.com/shopdesk/shopdesk/internal/db/models"
)

// DecisionRequest is the body of POST .../approvals/:id/decision
type DecisionRequest struct {
	Decision string `json:"decision" binding:"required,oneof=APPROVE REJECT approve reject"`
	Note     string `json:"note" binding:"max=1000"`
}

// ListApprovals pages through the scoped shop's approval requests, newest first. Workers only
// see their own.
// GET /api/v1/shops/:shopID/approvals?status=PENDING&requested_by=<uuid>&page=1&per_page=20
func (h *Handlers) ListApprovals(c *gin.Context) {
	p, scope, ok := scoped(c)
	if !ok {
		return
	}

	f := access.ListFilter{}
	if raw := c.Query("status"); raw != "" {
		s := models.ApprovalStatus(strings.ToUpper(raw))
		if !s.Valid() {
			badRequest(c, "Invalid status")
			return
		}
		f.Status = &s
	}
	if f.RequesterID, ok = optionalUUIDQuery(c, "requested_by"); !ok {
		return
	}
	if f.Page, ok = intQuery(c, "page"); !ok {
		return
	}
	if f.PerPage, ok = intQuery(c, "per_page"); !ok {
		return
	}

	page, err := h.engine.Approvals.List(c.Request.Context(), scope, p, f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetApproval returns one approval request of the scoped shop.
// GET /api/v1/shops/:shopID/approvals/:id
func (h *Handlers) GetApproval(c *gin.Context) {
	p, scope, ok := scoped(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	req, err := h.engine.Approvals.Get(c.Request.Context(), scope, p, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// DecideApproval approves or rejects a pending request. Approval applies the mutation in the
// same transaction.
// POST /api/v1/shops/:shopID/approvals/:id/decision
func (h *Handlers) DecideApproval(c *gin.Context) {
	p, scope, ok := scoped(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var body DecisionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}

	req, err := h.engine.Approvals.Decide(c.Request.Context(), scope, p, id,
		access.Decision(strings.ToUpper(body.Decision)), body.Note)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}
