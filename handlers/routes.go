package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// NewRouter registers every route on a fresh gin engine
func NewRouter(h *APIHandler, gatherer prometheus.Gatherer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(h.log))

	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")
	{
		api.GET("/ping", PingHandler)
		api.GET("/status", h.GetStatus)

		// Classroom routes
		api.GET("/classrooms", h.GetAllClassrooms)
		api.POST("/classrooms", h.CreateClassroom)
		api.POST("/classrooms/:classroomId/roster", h.ImportRoster)
		api.GET("/classrooms/:classroomId/report", h.GetReport)

		// Child routes within a classroom
		api.POST("/classrooms/:classroomId/children", h.AddChild)
		api.GET("/classrooms/:classroomId/children/:childId", h.GetChild)
		api.PATCH("/classrooms/:classroomId/children/:childId", h.RenameChild)
		api.DELETE("/classrooms/:classroomId/children/:childId", h.DeleteChild)
		api.PUT("/classrooms/:classroomId/children/:childId/history", h.ReplaceHistory)
		api.POST("/classrooms/:classroomId/children/:childId/houses", h.AddHouse)

		// Storage maintenance
		api.GET("/migration", h.GetMigration)
		api.POST("/migration", h.Migrate)
		api.GET("/export", h.Export)
		api.POST("/import", h.Import)
		api.POST("/reset", h.Reset)

		if h.EnableDebugAPI {
			api.POST("/debug/legacy", h.SeedLegacy)
		}
	}
	return router
}

// RequestLogger logs one line per request through zerolog
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		ev := log.Info()
		if c.Writer.Status() >= 500 {
			ev = log.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
