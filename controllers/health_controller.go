package controllers

import (
	"context"
	"net/http"
	"time"

	"schoolfee/utils"

	"github.com/gin-gonic/gin"
)

// HealthCheckFunc reports an error when a dependency is unreachable.
type HealthCheckFunc func(ctx context.Context) error

type HealthController struct {
	checks    map[string]HealthCheckFunc
	startedAt time.Time
}

func NewHealthController(checks map[string]HealthCheckFunc) *HealthController {
	return &HealthController{
		checks:    checks,
		startedAt: time.Now(),
	}
}

// HealthCheck reports the status of every registered dependency
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Failure 503 {object} models.HealthResponse
// @Router /health [get]
func (hc *HealthController) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	statuses := make(map[string]string, len(hc.checks))
	for name, check := range hc.checks {
		if err := check(ctx); err != nil {
			statuses[name] = err.Error()
			continue
		}
		statuses[name] = "healthy"
	}

	response := utils.HealthCheckResponse(statuses, utils.FormatDuration(time.Since(hc.startedAt)))
	code := http.StatusOK
	if response.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, response)
}
