package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/kmankuan/ChiPiLink-sub010/internal/api/handlers"
	"github.com/kmankuan/ChiPiLink-sub010/internal/api/middleware"
)

// NewRouter assembles the operator-facing HTTP surface. Everything under
// /api/v1 except login requires a valid operator token.
func NewRouter(auth *middleware.AuthMiddleware, jobs *handlers.JobHandler, printers *handlers.PrinterHandler, log zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/auth/login", auth.LoginHandler)
		v1.POST("/auth/logout", auth.LogoutHandler)
		v1.GET("/auth/status", auth.StatusHandler)

		protected := v1.Group("")
		protected.Use(auth.RequireAuth())
		{
			protected.GET("/jobs/pending", jobs.ListPending)
			protected.POST("/jobs/:id/print", jobs.TriggerPrint)
			protected.GET("/history", jobs.ListHistory)
			protected.GET("/printer", printers.Status)
		}
	}

	return r
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	}
}
