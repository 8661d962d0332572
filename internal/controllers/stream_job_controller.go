package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/osvaldoandrade/agentq/internal/services"
	"github.com/osvaldoandrade/agentq/internal/stream"
	"github.com/osvaldoandrade/agentq/pkg/store"

	"github.com/gin-gonic/gin"
)

type streamJobController struct {
	svc                services.StreamsService
	defaultFailureRate float64
}

func NewStreamJobController(svc services.StreamsService, defaultFailureRate float64) *streamJobController {
	return &streamJobController{svc: svc, defaultFailureRate: defaultFailureRate}
}

// Handle opens the SSE channel for a job. The `failureRate` query parameter
// overrides the configured default, clamped to [0,1].
func (h *streamJobController) Handle(c *gin.Context) {
	jobID := c.Param("id")

	failureRate := h.defaultFailureRate
	if raw := c.Query("failureRate"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'failureRate' (must be a number)"})
			return
		}
		failureRate = clamp01(v)
	}

	sink, err := stream.NewSSESink(c.Writer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	err = h.svc.Attach(c.Request.Context(), jobID, failureRate, sink)
	if err == nil {
		return
	}

	// Attach fails before any event is written, so the response can still
	// switch back to a JSON error.
	c.Writer.Header().Del("X-Accel-Buffering")
	c.Writer.Header().Set("Content-Type", "application/json")
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, services.ErrStreamConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "job is running or failed; stream not available"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not open stream"})
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
