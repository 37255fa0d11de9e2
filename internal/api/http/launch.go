package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/luminos-ui/shellhost/internal/shared/types"
)

// Launch resolves and starts a component. The response status follows
// the launch result: reuse outcomes are still 2xx, failures map to the
// closest HTTP class.
func (h *Handlers) Launch(c *gin.Context) {
	var req types.LaunchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.orch.ResolveAndLaunch(&req)
	c.JSON(launchStatus(result), gin.H{"result": result})
}

func launchStatus(r types.LaunchResult) int {
	switch r {
	case types.ResultSuccess, types.ResultTaskToFront, types.ResultDeliveredToTop:
		return http.StatusOK
	case types.ResultPermissionDenied, types.ResultLockTaskViolation:
		return http.StatusForbidden
	case types.ResultClassNotFound:
		return http.StatusNotFound
	case types.ResultTaskIDExhausted:
		return http.StatusInsufficientStorage
	default:
		return http.StatusConflict
	}
}

// NotifyIdle is the client callback after a resumed item settles.
func (h *Handlers) NotifyIdle(c *gin.Context) {
	item, ok := itemParam(c)
	if !ok {
		return
	}
	h.orch.NotifyIdle(item)
	c.JSON(http.StatusAccepted, gin.H{"item": item.String()})
}

// LaunchBehindComplete is the client callback ending a launch-behind
// window, letting the item drop back to its computed visibility.
func (h *Handlers) LaunchBehindComplete(c *gin.Context) {
	item, ok := itemParam(c)
	if !ok {
		return
	}
	h.orch.NotifyLaunchTaskBehindComplete(item)
	c.JSON(http.StatusAccepted, gin.H{"item": item.String()})
}

// FinishItem requests teardown of one work item.
func (h *Handlers) FinishItem(c *gin.Context) {
	item, ok := itemParam(c)
	if !ok {
		return
	}
	h.orch.FinishItem(item)
	c.JSON(http.StatusAccepted, gin.H{"item": item.String()})
}

// FinishGroup removes a whole group and forgets its recency entry.
func (h *Handlers) FinishGroup(c *gin.Context) {
	taskID, ok := intParam(c, "task")
	if !ok {
		return
	}
	if !h.orch.FinishGroup(taskID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown task"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task_id": taskID})
}

// Recents lists stored groups, most recent first. The store is safe
// for direct reads; only restores go through the orchestrator.
func (h *Handlers) Recents(c *gin.Context) {
	list := h.recents.List()
	c.JSON(http.StatusOK, gin.H{"groups": list, "count": len(list)})
}

type switchRequest struct {
	CallerUID int `json:"caller_uid"`
}

// DisableAppSwitches parks subsequent background switches until a
// matching enable or the five second failsafe.
func (h *Handlers) DisableAppSwitches(c *gin.Context) {
	var req switchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.orch.DisableAppSwitches(req.CallerUID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "caller may not stop app switches"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"app_switches": "disabled"})
}

// EnableAppSwitches lifts the pause and replays parked launches.
func (h *Handlers) EnableAppSwitches(c *gin.Context) {
	var req switchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.orch.EnableAppSwitches(req.CallerUID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "caller may not resume app switches"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"app_switches": "enabled"})
}
