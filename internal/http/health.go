package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookshelf/internal/logger"
)

// Pinger is a dependency the health check probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks"`
}

type HealthController struct {
	checks  map[string]Pinger
	version string
	timeout time.Duration
	log     *logger.Logger
}

// NewHealthController probes every non-nil entry of checks. A nil entry is
// reported as "not configured". Failure details go to the log only.
func NewHealthController(checks map[string]Pinger, version string, log *logger.Logger) *HealthController {
	return &HealthController{
		checks:  checks,
		version: version,
		timeout: 2 * time.Second,
		log:     logger.OrNop(log),
	}
}

func (h *HealthController) Status(c *gin.Context) {
	checks := make(map[string]string, len(h.checks))
	status := "healthy"

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	for name, pinger := range h.checks {
		if pinger == nil {
			checks[name] = "not configured"
			continue
		}
		if err := pinger.Ping(ctx); err != nil {
			h.log.Warn("health check failed", "check", name, "error", err)
			checks[name] = "error"
			status = "unhealthy"
			continue
		}
		checks[name] = "ok"
	}

	health := HealthResponse{
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Checks:  checks,
	}

	statusCode := http.StatusOK
	if status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.IndentedJSON(statusCode, health)
}
