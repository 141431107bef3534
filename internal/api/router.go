package api

import (
	"github.com/gin-gonic/gin"

	"github.com/awssidogiri-web/AWS-Sidogiri/internal/service/engine"
)

// NewRouter builds the gin engine with all HTTP routes registered.
func NewRouter(e *engine.Engine) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware())

	h := NewHandler(e)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/readings", h.PostReading)
		v1.POST("/trigger", h.PostTrigger)
		v1.POST("/alarm", h.PostAlarm)
		v1.GET("/status", h.GetStatus)
		v1.GET("/history", h.GetHistory)
	}

	r.GET("/healthz", h.Healthz)

	return r
}
