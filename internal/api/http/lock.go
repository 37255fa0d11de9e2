package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type lockRequest struct {
	CallerUID int `json:"caller_uid"`
}

// StartLock pins a group into lock-task mode. While any group is
// locked, launches outside the lock chain are rejected.
func (h *Handlers) StartLock(c *gin.Context) {
	taskID, ok := intParam(c, "task")
	if !ok {
		return
	}
	var req lockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.orch.StartLock(req.CallerUID, taskID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "lock refused"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"task_id": taskID, "locked": true})
}

// StopLock releases a group from the lock chain.
func (h *Handlers) StopLock(c *gin.Context) {
	taskID, ok := intParam(c, "task")
	if !ok {
		return
	}
	var req lockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.orch.StopLock(req.CallerUID, taskID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "unlock refused"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"task_id": taskID, "locked": false})
}

// LockChain lists the currently locked groups in pin order.
func (h *Handlers) LockChain(c *gin.Context) {
	chain := h.orch.LockChain()
	c.JSON(http.StatusOK, gin.H{"chain": chain, "active": len(chain) > 0})
}
