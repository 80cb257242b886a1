package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parking-status-backend/internal/apperror"
)

// StartSimulator handles POST /api/simulator/start.
func (h *Handler) StartSimulator(c *gin.Context) {
	if h.simulator == nil {
		h.writeError(c, apperror.Unavailable("simulator is not configured"))
		return
	}
	h.simulator.Start(h.baseCtx)
	c.JSON(http.StatusOK, gin.H{"message": "Simulador iniciado", "running": h.simulator.Running()})
}

// StopSimulator handles POST /api/simulator/stop.
func (h *Handler) StopSimulator(c *gin.Context) {
	if h.simulator == nil {
		h.writeError(c, apperror.Unavailable("simulator is not configured"))
		return
	}
	h.simulator.Stop()
	c.JSON(http.StatusOK, gin.H{"message": "Simulador parado", "running": h.simulator.Running()})
}
