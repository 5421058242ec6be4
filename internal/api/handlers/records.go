package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopdesk/shopdesk/internal/access"
	"github.com/shopdesk/shopdesk/internal/db/models"
)

// MutationRequest is the body of record create and update calls
type MutationRequest struct {
	Data   json.RawMessage `json:"data" binding:"required"`
	Reason string          `json:"reason" binding:"max=500"`
}

// CreateRecord creates a record directly or submits it for approval.
// POST /api/v1/shops/:shopID/records/:table
func (h *Handlers) CreateRecord(c *gin.Context) {
	var req MutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.mutate(c, access.SubmitInput{
		Type:      models.ApprovalTypeCreate,
		TableName: c.Param("table"),
		Data:      req.Data,
		Reason:    req.Reason,
	})
}

// UpdateRecord updates a record directly or submits the change for approval.
// PUT /api/v1/shops/:shopID/records/:table/:id
func (h *Handlers) UpdateRecord(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req MutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.mutate(c, access.SubmitInput{
		Type:      models.ApprovalTypeUpdate,
		TableName: c.Param("table"),
		RecordID:  &id,
		Data:      req.Data,
		Reason:    req.Reason,
	})
}

// DeleteRecord deletes a record directly or submits the deletion for approval. The optional
// reason is read from the query string.
// DELETE /api/v1/shops/:shopID/records/:table/:id?reason=...
func (h *Handlers) DeleteRecord(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	h.mutate(c, access.SubmitInput{
		Type:      models.ApprovalTypeDelete,
		TableName: c.Param("table"),
		RecordID:  &id,
		Reason:    c.Query("reason"),
	})
}

// GetRecord returns one live record.
// GET /api/v1/shops/:shopID/records/:table/:id
func (h *Handlers) GetRecord(c *gin.Context) {
	p, scope, ok := scoped(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	rec, err := h.engine.Gate.Read(c.Request.Context(), scope, p, c.Param("table"), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handlers) mutate(c *gin.Context, in access.SubmitInput) {
	p, scope, ok := scoped(c)
	if !ok {
		return
	}

	out, err := h.engine.Gate.Execute(c.Request.Context(), scope, p, in)
	if err != nil {
		respondError(c, err)
		return
	}

	if !out.Applied {
		c.JSON(http.StatusAccepted, gin.H{
			"status":   "submitted_for_approval",
			"approval": out.Request,
		})
		return
	}

	status := http.StatusOK
	if in.Type == models.ApprovalTypeCreate {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"status":    "applied",
		"record_id": recordID(out.RecordID),
		"changes":   out.Changes,
	})
}

func recordID(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
