package controllers

import (
	"net/http"

	"github.com/osvaldoandrade/agentq/pkg/store"

	"github.com/gin-gonic/gin"
)

type healthController struct{ store store.JobStore }

func NewHealthController(st store.JobStore) *healthController {
	return &healthController{st}
}

func (h *healthController) Handle(c *gin.Context) {
	if err := h.store.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
