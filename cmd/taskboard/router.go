package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kandev/taskboard/internal/common/config"
	"github.com/kandev/taskboard/internal/common/httpmw"
	"github.com/kandev/taskboard/internal/common/logger"
	"github.com/kandev/taskboard/internal/events/bus"
)

func newRouter(cfg *config.Config, log *logger.Logger, registry *prometheus.Registry, eventBus bus.EventBus) *gin.Engine {
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(httpmw.RequestID())
	router.Use(httpmw.OtelTracing(serverName))
	router.Use(httpmw.NewHTTPMetrics(registry).Middleware())
	router.Use(httpmw.RequestLogger(log, serverName))

	router.GET("/health", func(c *gin.Context) {
		status, code, events := "ok", http.StatusOK, "connected"
		if !eventBus.IsConnected() {
			// mutations still work, but viewers stop receiving pushes
			status, code, events = "degraded", http.StatusServiceUnavailable, "disconnected"
		}
		c.JSON(code, gin.H{
			"status":  status,
			"service": serverName,
			"storage": cfg.Database.Driver,
			"events":  events,
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return router
}
