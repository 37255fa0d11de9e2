// Package http exposes the shell host control surface over REST.
//
// Every mutating route forwards to the orchestrator, which serializes
// the request onto its command loop; handlers never touch world state
// directly. Responses follow one shape: 2xx with the requested data,
// or an error status with {"error": "..."}.
package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/luminos-ui/shellhost/internal/domain/catalog"
	"github.com/luminos-ui/shellhost/internal/domain/orchestrator"
	"github.com/luminos-ui/shellhost/internal/domain/recents"
	"github.com/luminos-ui/shellhost/internal/infrastructure/logging"
	"github.com/luminos-ui/shellhost/internal/infrastructure/monitoring"
	"github.com/luminos-ui/shellhost/internal/shared/id"
)

// Handlers holds the dependencies the REST routes need.
type Handlers struct {
	orch    *orchestrator.Orchestrator
	catalog *catalog.Catalog
	recents *recents.Memory
	metrics *monitoring.Metrics
	log     *logging.Logger
}

// NewHandlers wires the route handlers to their collaborators.
func NewHandlers(
	orch *orchestrator.Orchestrator,
	cat *catalog.Catalog,
	store *recents.Memory,
	metrics *monitoring.Metrics,
	log *logging.Logger,
) *Handlers {
	return &Handlers{
		orch:    orch,
		catalog: cat,
		recents: store,
		metrics: metrics,
		log:     log,
	}
}

// Health reports liveness plus a coarse world summary.
func (h *Handlers) Health(c *gin.Context) {
	counts := h.orch.Counts()
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"service":    "shellhost",
		"booted":     h.orch.Booted(),
		"surfaces":   counts.Surfaces,
		"containers": counts.Containers,
		"groups":     counts.Groups,
		"items":      counts.Items,
	})
}

// Dump returns the full hierarchy the way the debug CLI prints it.
func (h *Handlers) Dump(c *gin.Context) {
	c.JSON(http.StatusOK, h.orch.Dump())
}

// Snapshot returns the flat world snapshot for tooling.
func (h *Handlers) Snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.orch.Snapshot())
}

// ReleaseCandidates lists stopped, invisible items whose processes the
// host may reclaim under memory pressure.
func (h *Handlers) ReleaseCandidates(c *gin.Context) {
	handles := h.orch.ReleaseCandidates()
	out := make([]string, len(handles))
	for i, hnd := range handles {
		out[i] = strconv.FormatUint(uint64(hnd), 10)
	}
	c.JSON(http.StatusOK, gin.H{"items": out, "count": len(out)})
}

// MetricsSummary returns current metric values as JSON. The Prometheus
// exposition lives at /metrics on the same router.
func (h *Handlers) MetricsSummary(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}

// itemParam parses a work item handle from the :id path segment.
func itemParam(c *gin.Context) (id.Handle, bool) {
	raw, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || !id.Handle(raw).Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item handle"})
		return 0, false
	}
	return id.Handle(raw), true
}

// intParam parses an integer path segment, responding 400 on failure.
func intParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return v, true
}
