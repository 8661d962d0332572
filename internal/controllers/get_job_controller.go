package controllers

import (
	"net/http"

	"github.com/osvaldoandrade/agentq/internal/services"

	"github.com/gin-gonic/gin"
)

type getJobController struct{ svc services.JobsService }

func NewGetJobController(svc services.JobsService) *getJobController {
	return &getJobController{svc}
}

func (h *getJobController) Handle(c *gin.Context) {
	jobID := c.Param("id")
	job, err := h.svc.GetJob(c.Request.Context(), jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}
