package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	limiter := NewIPRateLimiter(0, 2)
	router := gin.New()
	router.Use(limiter.Middleware())
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	request := func(ip string) int {
		req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = ip + ":12345"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	// A burst of two with no refill.
	assert.Equal(t, http.StatusOK, request("10.0.0.1"))
	assert.Equal(t, http.StatusOK, request("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, request("10.0.0.1"))

	// Other clients have their own budget.
	assert.Equal(t, http.StatusOK, request("10.0.0.2"))
	assert.Equal(t, 2, limiter.Visitors())
}

func TestIPRateLimiter_ReusesLimiter(t *testing.T) {
	limiter := NewIPRateLimiter(1, 1)
	assert.Same(t, limiter.GetLimiter("10.0.0.1"), limiter.GetLimiter("10.0.0.1"))
	assert.NotSame(t, limiter.GetLimiter("10.0.0.1"), limiter.GetLimiter("10.0.0.2"))
}
