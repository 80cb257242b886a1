package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"parking-status-backend/internal/mw"
)

// RouterConfig holds the per-IP request budget for /api.
type RouterConfig struct {
	RateLimit rate.Limit
	Burst     int
}

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg RouterConfig, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(mw.RequestLogger(log), gin.Recovery())

	rateLimiter := mw.RateLimiter(cfg.RateLimit, cfg.Burst)

	r.GET("/", h.GetInfo)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API group
	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/spots", h.ListSpots)
		api.GET("/vagas", h.ListVagas)
		api.POST("/spots/:id/toggle", h.ToggleSpot)
		api.GET("/status", h.GetStatus)

		api.POST("/client/occupy", h.ClientOccupy)
		api.POST("/client/pay", h.ClientPay)
		api.GET("/client/session/:client_id", h.ClientSession)

		api.POST("/simulator/start", h.StartSimulator)
		api.POST("/simulator/stop", h.StopSimulator)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
