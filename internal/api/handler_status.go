package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetStatus handles GET /api/status.
func (h *Handler) GetStatus(c *gin.Context) {
	st, err := h.query.Stats(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_spots":    st.Total,
		"occupied_spots": st.Occupied,
		"free_spots":     st.Free,
		"occupancy_rate": st.OccupancyRate,
		"timestamp":      st.ComputedAt,
	})
}

// GetInfo handles GET /, a self-description of the service.
func (h *Handler) GetInfo(c *gin.Context) {
	connected := h.mqtt != nil && h.mqtt.IsConnected()

	c.JSON(http.StatusOK, gin.H{
		"message": "Smart Parking System API",
		"version": h.info.Version,
		"endpoints": gin.H{
			"GET /api/spots":                     "Lista todas as vagas",
			"GET /api/vagas":                     "Vagas indexadas pelo nome",
			"POST /api/spots/:id/toggle":         "Alterna status de uma vaga",
			"GET /api/status":                    "Estatísticas gerais",
			"POST /api/client/occupy":            "Cliente ocupa uma vaga",
			"POST /api/client/pay":               "Cliente paga e libera a vaga",
			"GET /api/client/session/:client_id": "Sessão atual do cliente",
			"POST /api/simulator/start":          "Inicia simulador",
			"POST /api/simulator/stop":           "Para simulador",
			"GET /metrics":                       "Métricas Prometheus",
		},
		"mqtt": gin.H{
			"broker":    h.info.Broker,
			"topics":    h.info.Topics,
			"available": connected,
		},
		"total_spots": h.info.TotalSpots,
	})
}
