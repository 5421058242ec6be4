package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopdesk/shopdesk/internal/db/models"
)

// ListAuditLogs pages through the scoped shop's audit trail, newest first. Pass next_cursor
// from the previous page as cursor to continue.
// GET /api/v1/shops/:shopID/audit-logs?actor_id=&table=&record_id=&action=&from=&to=&cursor=&limit=
func (h *Handlers) ListAuditLogs(c *gin.Context) {
	p, scope, ok := scoped(c)
	if !ok {
		return
	}
	f, ok := auditFilter(c)
	if !ok {
		return
	}
	limit, ok := intQuery(c, "limit")
	if !ok {
		return
	}

	page, err := h.engine.AuditLogs(c.Request.Context(), scope, p, f, c.Query("cursor"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// ExportAuditLogs streams every matching entry as newline-delimited JSON.
// GET /api/v1/shops/:shopID/audit-logs/export
func (h *Handlers) ExportAuditLogs(c *gin.Context) {
	p, scope, ok := scoped(c)
	if !ok {
		return
	}
	f, ok := auditFilter(c)
	if !ok {
		return
	}

	entries, err := h.engine.ExportAuditLogs(c.Request.Context(), scope, p, f)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Type", "application/x-ndjson")
	c.Status(http.StatusOK)
	enc := json.NewEncoder(c.Writer)
	for entry, err := range entries {
		if err != nil {
			// Headers are gone; the truncated stream is the only signal left.
			_ = c.Error(err)
			return
		}
		if err := enc.Encode(entry); err != nil {
			return
		}
	}
}

func auditFilter(c *gin.Context) (models.AuditFilter, bool) {
	var f models.AuditFilter
	var ok bool
	if f.ActorID, ok = optionalUUIDQuery(c, "actor_id"); !ok {
		return f, false
	}
	f.TableName = c.Query("table")
	f.RecordID = c.Query("record_id")
	f.Action = models.AuditAction(strings.ToUpper(c.Query("action")))

	for name, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(c, "Invalid "+name+": expected RFC3339")
			return f, false
		}
		*dst = &t
	}
	return f, true
}
