package controllers

import (
	"net/http"

	"github.com/osvaldoandrade/agentq/internal/services"

	"github.com/gin-gonic/gin"
)

type getResultController struct{ svc services.JobsService }

func NewGetResultController(svc services.JobsService) *getResultController {
	return &getResultController{svc}
}

func (h *getResultController) Handle(c *gin.Context) {
	jobID := c.Param("id")
	result, err := h.svc.GetResult(c.Request.Context(), jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, result)
}
