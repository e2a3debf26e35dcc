package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/narratex/narratex"
)

// Build information - can be set at build time using ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// HealthHandler handles health check requests
type HealthHandler struct {
	engine *narratex.Engine
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(engine *narratex.Engine) *HealthHandler {
	return &HealthHandler{
		engine: engine,
	}
}

// HealthCheck handles GET /health - basic liveness check
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "narratex",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   Version,
	})
}

// ReadinessCheck handles GET /ready - the service is ready once the
// knowledge base snapshot is loadable.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	response := gin.H{
		"status":    "ready",
		"service":   "narratex",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if h.engine == nil {
		response["status"] = "not ready"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	md, err := h.engine.Metadata()
	if err != nil {
		response["status"] = "not ready"
		response["error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	response["video_id"] = md.VideoID
	response["atoms"] = md.AtomCount
	c.JSON(http.StatusOK, response)
}
