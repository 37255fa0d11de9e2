package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Sleep pushes every unprotected surface toward its sleep state.
func (h *Handlers) Sleep(c *gin.Context) {
	h.orch.RequestSleep()
	c.JSON(http.StatusAccepted, gin.H{"power": "sleeping"})
}

// Wake lifts the global sleep and resumes per-surface fronts.
func (h *Handlers) Wake(c *gin.Context) {
	h.orch.RequestWake()
	c.JSON(http.StatusAccepted, gin.H{"power": "awake"})
}

// CreateSleepToken puts a single surface to sleep independent of the
// global power state. The returned token releases it.
func (h *Handlers) CreateSleepToken(c *gin.Context) {
	var req struct {
		SurfaceID int `json:"surface_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	token, ok := h.orch.CreateSleepToken(req.SurfaceID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown surface"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token, "surface_id": req.SurfaceID})
}

// ReleaseSleepToken removes one token; the surface wakes when its last
// token is gone.
func (h *Handlers) ReleaseSleepToken(c *gin.Context) {
	token := c.Param("token")
	if !h.orch.ReleaseSleepToken(token) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// SetKeyguard toggles the per-surface keyguard override that keeps a
// surface interactive through a global sleep.
func (h *Handlers) SetKeyguard(c *gin.Context) {
	surfaceID, ok := intParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Override bool `json:"override"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.orch.SetKeyguardOverride(surfaceID, req.Override) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown surface"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"surface_id": surfaceID, "override": req.Override})
}

// Shutdown sleeps the world and waits, bounded, for every item to
// reach a quiescent state. It reports whether the wait timed out.
func (h *Handlers) Shutdown(c *gin.Context) {
	var req struct {
		TimeoutMillis int `json:"timeout_ms"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	timeout := time.Duration(req.TimeoutMillis) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	timedOut := h.orch.RequestShutdown(timeout)
	if timedOut {
		h.log.Warn("shutdown quiesce timed out", zap.Duration("timeout", timeout))
	}
	c.JSON(http.StatusOK, gin.H{"timed_out": timedOut})
}
