package controllers

import (
	"errors"
	"net/http"

	"github.com/osvaldoandrade/agentq/internal/services"

	"github.com/gin-gonic/gin"
)

type submitJobController struct{ svc services.JobsService }

func NewSubmitJobController(svc services.JobsService) *submitJobController {
	return &submitJobController{svc}
}

type submitReq struct {
	Request string `json:"request" binding:"required"`
}

func (h *submitJobController) Handle(c *gin.Context) {
	var req submitReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "field 'request' must be a non-empty string"})
		return
	}

	job, err := h.svc.SubmitJob(c.Request.Context(), req.Request)
	if err != nil {
		if errors.Is(err, services.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not register job"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"jobId": job.ID})
}
