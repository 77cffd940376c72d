package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"minimalapi/school/internal/bootstrap"
)

// bootstrapService is the subset of *bootstrap.Bootstrapper the ops handlers
// use.
type bootstrapService interface {
	Start(timeout time.Duration) error
	RunDeepHealth(ctx context.Context) map[string]bootstrap.ProbeResult
	LastResult() *bootstrap.Result
	IsInProgress() bool
}

// Handler holds the dependencies shared across all HTTP handlers.
type Handler struct {
	bootstrapper     bootstrapService
	students         studentService
	serviceName      string
	bootstrapTimeout time.Duration
}

// Bootstrap handles POST /admin/bootstrap. The run is claimed before the
// response is written, so concurrent callers get exactly one 202.
//
//	@Summary	Re-run the bootstrap
//	@Tags		ops
//	@Produce	json
//	@Success	202	{object}	map[string]string
//	@Failure	409	{object}	map[string]string
//	@Router		/admin/bootstrap [post]
func (h *Handler) Bootstrap(c *gin.Context) {
	err := h.bootstrapper.Start(h.bootstrapTimeout)
	switch {
	case errors.Is(err, bootstrap.ErrInProgress):
		c.JSON(http.StatusConflict, gin.H{"status": bootstrap.StatusInProgress})
	case err != nil:
		writeError(c, err)
	default:
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
	}
}

// Health handles GET /health. It never touches a dependency.
//
//	@Summary	Liveness probe
//	@Tags		ops
//	@Produce	json
//	@Success	200	{object}	healthResponse
//	@Router		/health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{Status: "alive", Service: h.serviceName})
}

// DeepHealth handles GET /health/deep. A failing database makes the service
// unhealthy; any other failing dependency makes it degraded. Both are 503.
//
//	@Summary	Probe all dependencies
//	@Tags		ops
//	@Produce	json
//	@Success	200	{object}	deepHealthResponse
//	@Failure	503	{object}	deepHealthResponse
//	@Router		/health/deep [get]
func (h *Handler) DeepHealth(c *gin.Context) {
	probes := h.bootstrapper.RunDeepHealth(c.Request.Context())

	var failed []string
	for name, p := range probes {
		if !p.OK {
			failed = append(failed, name)
		}
	}
	sort.Strings(failed)

	resp := deepHealthResponse{Status: "healthy", Failed: failed, Dependencies: probes}
	code := http.StatusOK
	if len(failed) > 0 {
		code = http.StatusServiceUnavailable
		resp.Status = "degraded"
		if p, ok := probes[bootstrap.PhaseDatabase]; ok && !p.OK {
			resp.Status = "unhealthy"
		}
	}
	c.JSON(code, resp)
}

// Ready handles GET /ready. It reports the last completed bootstrap: 200 when
// it ended ok or degraded, 503 when it failed or none has completed yet.
//
//	@Summary	Readiness probe
//	@Tags		ops
//	@Produce	json
//	@Success	200	{object}	readinessResponse
//	@Failure	503	{object}	readinessResponse
//	@Router		/ready [get]
func (h *Handler) Ready(c *gin.Context) {
	last := h.bootstrapper.LastResult()
	resp := readinessResponse{
		Ready:      last.Ready(),
		Status:     "pending",
		InProgress: h.bootstrapper.IsInProgress(),
	}
	if last != nil {
		resp.Status = last.Status
		resp.Failed = last.Failed()
	}

	code := http.StatusOK
	if !resp.Ready {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}
