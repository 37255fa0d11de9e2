package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/luminos-ui/shellhost/internal/domain/model"
	"github.com/luminos-ui/shellhost/internal/domain/orchestrator"
	"github.com/luminos-ui/shellhost/internal/shared/types"
)

type surfaceRequest struct {
	SurfaceID int          `json:"surface_id"`
	Bounds    types.Bounds `json:"bounds"`
}

// AddSurface registers a new output surface with the world.
func (h *Handlers) AddSurface(c *gin.Context) {
	var req surfaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.orch.NotifyDisplayAdded(req.SurfaceID, req.Bounds); err != nil {
		c.JSON(surfaceStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"surface_id": req.SurfaceID})
}

// UpdateSurface applies new geometry to a surface; every container on
// it resizes in one compositor transaction.
func (h *Handlers) UpdateSurface(c *gin.Context) {
	surfaceID, ok := intParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Bounds types.Bounds `json:"bounds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.orch.NotifyDisplayChanged(surfaceID, req.Bounds); err != nil {
		c.JSON(surfaceStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"surface_id": surfaceID})
}

// RemoveSurface drops a surface and relocates its containers to the
// default surface. The default surface itself cannot be removed.
func (h *Handlers) RemoveSurface(c *gin.Context) {
	surfaceID, ok := intParam(c, "id")
	if !ok {
		return
	}
	if err := h.orch.NotifyDisplayRemoved(surfaceID); err != nil {
		c.JSON(surfaceStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"surface_id": surfaceID})
}

func surfaceStatus(err error) int {
	switch {
	case errors.Is(err, model.ErrNoSurface), errors.Is(err, orchestrator.ErrNoSuchGroup):
		return http.StatusNotFound
	default:
		return http.StatusConflict
	}
}

// MoveGroup reparents one group to a surface and windowing mode.
func (h *Handlers) MoveGroup(c *gin.Context) {
	var move orchestrator.GroupMove
	if err := c.ShouldBindJSON(&move); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.orch.MoveGroup(move); err != nil {
		c.JSON(surfaceStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"task_id": move.TaskID})
}

// BatchMove applies several structural moves with exactly one resume
// pass after the compositor acknowledges the whole transaction.
func (h *Handlers) BatchMove(c *gin.Context) {
	var req struct {
		Moves []orchestrator.GroupMove `json:"moves"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Moves) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty batch"})
		return
	}
	if err := h.orch.ApplyBatch(req.Moves); err != nil {
		c.JSON(surfaceStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"moved": len(req.Moves)})
}
