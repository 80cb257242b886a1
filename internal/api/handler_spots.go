package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"parking-status-backend/internal/occupancy"
	"parking-status-backend/internal/parse"
)

type spotResponse struct {
	ID              int64      `json:"id"`
	Nome            string     `json:"nome"`
	Status          string     `json:"status"`
	LastUpdate      time.Time  `json:"lastUpdate"`
	Distancia       *float64   `json:"distancia"`
	ESP32Controlled bool       `json:"esp32_controlled"`
	OccupiedSince   *time.Time `json:"occupiedSince"`
}

type vagaResponse struct {
	Status     string    `json:"status"`
	LastUpdate time.Time `json:"lastUpdate"`
	Distancia  *float64  `json:"distancia"`
}

func statusText(occupied bool) string {
	if occupied {
		return "occupied"
	}
	return "free"
}

// ListSpots handles GET /api/spots.
func (h *Handler) ListSpots(c *gin.Context) {
	views, err := h.query.ListSpots(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	response := make([]spotResponse, 0, len(views))
	for _, v := range views {
		response = append(response, spotResponse{
			ID:              v.ID,
			Nome:            v.Name,
			Status:          statusText(v.Occupied),
			LastUpdate:      v.UpdatedAt,
			Distancia:       v.Distance,
			ESP32Controlled: v.SensorControlled,
			OccupiedSince:   v.OccupiedSince,
		})
	}
	c.JSON(http.StatusOK, response)
}

// ListVagas handles GET /api/vagas, the dashboard's name-keyed view.
func (h *Handler) ListVagas(c *gin.Context) {
	views, err := h.query.ListSpots(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	response := make(map[string]vagaResponse, len(views))
	for _, v := range views {
		response[v.Name] = vagaResponse{
			Status:     statusText(v.Occupied),
			LastUpdate: v.UpdatedAt,
			Distancia:  v.Distance,
		}
	}
	c.JSON(http.StatusOK, response)
}

// ToggleSpot handles POST /api/spots/:id/toggle.
func (h *Handler) ToggleSpot(c *gin.Context) {
	id, err := parse.ParseSpotRef(c.Param("id"))
	if err != nil {
		h.writeError(c, occupancy.ErrUnknownSpot)
		return
	}

	occupied, err := h.engine.Toggle(c.Request.Context(), id, h.now())
	if err != nil {
		h.writeError(c, err)
		return
	}

	verb := "liberada"
	if occupied {
		verb = "ocupada"
	}
	c.JSON(http.StatusOK, gin.H{
		"spot":     id,
		"occupied": occupied,
		"message":  fmt.Sprintf("Vaga %d %s", id, verb),
	})
}
