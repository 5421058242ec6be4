package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopdesk/shopdesk/internal/auth"
)

// GrantRequest is the body of POST .../workers/:userID/permissions
type GrantRequest struct {
	Module     string `json:"module" binding:"required"`
	Permission string `json:"permission" binding:"required"`
}

// ListWorkerPermissions lists a worker's grants.
// GET /api/v1/shops/:shopID/workers/:userID/permissions
func (h *Handlers) ListWorkerPermissions(c *gin.Context) {
	p, scope, ok := scoped(c)
	if !ok {
		return
	}
	workerID, ok := uuidParam(c, "userID")
	if !ok {
		return
	}
	grants, err := h.engine.Staff.ListGrants(c.Request.Context(), scope, p, workerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"grants": grants})
}

// GrantWorkerPermission grants a module permission to a worker of the scoped shop.
// POST /api/v1/shops/:shopID/workers/:userID/permissions
func (h *Handlers) GrantWorkerPermission(c *gin.Context) {
	p, scope, ok := scoped(c)
	if !ok {
		return
	}
	workerID, ok := uuidParam(c, "userID")
	if !ok {
		return
	}
	var req GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	module, perm, ok := parseGrant(c, req.Module, req.Permission)
	if !ok {
		return
	}

	grant, err := h.engine.Staff.GrantPermission(c.Request.Context(), scope, p, workerID, module, perm)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, grant)
}

// RevokeWorkerPermission deactivates a worker's grant.
// DELETE /api/v1/shops/:shopID/workers/:userID/permissions/:module/:permission
func (h *Handlers) RevokeWorkerPermission(c *gin.Context) {
	p, scope, ok := scoped(c)
	if !ok {
		return
	}
	workerID, ok := uuidParam(c, "userID")
	if !ok {
		return
	}
	module, perm, ok := parseGrant(c, c.Param("module"), c.Param("permission"))
	if !ok {
		return
	}

	if err := h.engine.Staff.RevokePermission(c.Request.Context(), scope, p, workerID, module, perm); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AssignWorker assigns a worker to the scoped shop.
// POST /api/v1/shops/:shopID/workers/:userID
func (h *Handlers) AssignWorker(c *gin.Context) {
	p, scope, ok := scoped(c)
	if !ok {
		return
	}
	workerID, ok := uuidParam(c, "userID")
	if !ok {
		return
	}
	a, err := h.engine.Staff.AssignWorker(c.Request.Context(), scope, p, workerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// RemoveWorker deactivates a worker's assignment to the scoped shop.
// DELETE /api/v1/shops/:shopID/workers/:userID
func (h *Handlers) RemoveWorker(c *gin.Context) {
	p, scope, ok := scoped(c)
	if !ok {
		return
	}
	workerID, ok := uuidParam(c, "userID")
	if !ok {
		return
	}
	if err := h.engine.Staff.RemoveWorker(c.Request.Context(), scope, p, workerID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func parseGrant(c *gin.Context, rawModule, rawPerm string) (auth.Module, auth.Permission, bool) {
	module, err := auth.ParseModule(strings.ToUpper(rawModule))
	if err != nil {
		badRequest(c, err.Error())
		return "", "", false
	}
	perm, err := auth.ParsePermission(strings.ToUpper(rawPerm))
	if err != nil {
		badRequest(c, err.Error())
		return "", "", false
	}
	return module, perm, true
}
