package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Rapid-Works/RapidWorks-sub002/internal/config"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/services"
)

// NewRouter builds the gin engine with every route.
func NewRouter(cfg *config.Config, h *Handler, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog())

	health := gin.WrapF(services.HealthCheckHandler(h.deps.Metrics, cfg.WorkerID))
	r.GET("/health", health)
	r.GET("/healthz", health)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/api")
	{
		v1.POST("/validate-email", h.ValidateEmail)
		v1.POST("/forms/:kind", h.SubmitForm)
		v1.POST("/ai/chat", h.Chat)
		v1.POST("/ai/extract", h.Extract)
		v1.POST("/notifications/test", h.TestNotification)
	}
	return r
}

func NewServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * time.Minute,
	}
}
