package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"alliance-observatory/internal/config"
	"alliance-observatory/internal/pipeline"
	"alliance-observatory/internal/redis"
	"alliance-observatory/internal/resolver"
	"alliance-observatory/internal/store"
)

type Server struct {
	log       *slog.Logger
	store     *store.Store
	redis     *redis.Client
	processor *pipeline.Processor
	resolver  *resolver.Resolver
	cfg       config.Config
	router    *gin.Engine
}

func NewServer(log *slog.Logger, st *store.Store, redisClient *redis.Client, proc *pipeline.Processor, res *resolver.Resolver, cfg config.Config) *Server {
	s := &Server{
		log:       log,
		store:     st,
		redis:     redisClient,
		processor: proc,
		resolver:  res,
		cfg:       cfg,
		router:    gin.New(),
	}

	gin.SetMode(gin.ReleaseMode)
	r := s.router
	r.Use(gin.Recovery())
	r.Use(s.corsMiddleware())
	r.Use(s.loggingMiddleware())
	r.Use(s.inputValidationMiddleware())
	r.Use(s.rateLimitMiddleware())

	v1 := r.Group("/api/v1")
	{
		v1.POST("/screenshots", s.uploadScreenshot)
		v1.GET("/screenshots/:id", s.getScreenshot)
		v1.GET("/jobs/stream", s.streamJobs)

		v1.GET("/players", s.listPlayers)
		v1.GET("/players/:id", s.getPlayer)
		v1.GET("/players/:id/history", s.playerHistory)
		v1.GET("/events", s.listEvents)
		v1.GET("/events/:id/records", s.eventRecords)
		v1.GET("/reports/foundry/:event_id/no-shows", s.foundryNoShows)
		v1.GET("/reports/alliance-power", s.alliancePower)

		v1.GET("/health", s.health)

		admin := v1.Group("/admin")
		admin.Use(s.adminAuthMiddleware())
		{
			admin.POST("/players/merge", s.mergePlayers)
		}
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), 10*time.Second)
}
