package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/luminos-ui/shellhost/internal/domain/catalog"
	"github.com/luminos-ui/shellhost/internal/shared/types"
)

// ListComponents returns every registered launchable component.
func (h *Handlers) ListComponents(c *gin.Context) {
	specs := h.catalog.List()
	c.JSON(http.StatusOK, gin.H{"components": specs, "count": len(specs)})
}

// RegisterComponent installs or replaces a component spec. Launches
// resolve against the catalog, so registration takes effect for the
// next request.
func (h *Handlers) RegisterComponent(c *gin.Context) {
	var spec catalog.Spec
	if err := c.ShouldBindJSON(&spec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if spec.Component.Package == "" || spec.Component.Class == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "component package and class are required"})
		return
	}
	h.catalog.Register(spec)
	c.JSON(http.StatusCreated, gin.H{"component": spec.Component})
}

// UnregisterComponent removes a component spec. Live work items keep
// running; only future resolution is affected.
func (h *Handlers) UnregisterComponent(c *gin.Context) {
	name := types.ComponentName{
		Package: c.Param("pkg"),
		Class:   c.Param("class"),
	}
	if !h.catalog.Unregister(name) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown component"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"component": name})
}
