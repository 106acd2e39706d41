package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"aidSentinel/internal/model"
	"aidSentinel/internal/pipeline"
)

// Server exposes the pipeline to the dashboard/CLI layer. Handlers are
// thin; all behavior lives in the coordinator so displayed numbers
// always match actual payout behavior.
type Server struct {
	coordinator *pipeline.Coordinator
	poller      *pipeline.Poller
	registry    *prometheus.Registry
	logger      *zap.Logger
	router      *gin.Engine
}

func NewServer(coordinator *pipeline.Coordinator, poller *pipeline.Poller, registry *prometheus.Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		coordinator: coordinator,
		poller:      poller,
		registry:    registry,
		logger:      logger,
		router:      gin.New(),
	}
	s.router.Use(gin.Recovery())
	s.registerRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run blocks serving HTTP until the context is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.health)
	s.router.GET("/status", s.status)
	s.router.GET("/statistics", s.statistics)
	s.router.GET("/history", s.history)
	s.router.GET("/recipients", s.recipients)
	s.router.GET("/sources/status", s.sourceStatus)
	s.router.GET("/policy", s.policy)
	s.router.POST("/simulate", s.simulate)
	s.router.POST("/analyze", s.analyze)
	if s.registry != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) status(c *gin.Context) {
	stats, err := s.coordinator.Statistics(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"vault_balance":    stats.CurrentBalance,
		"events_processed": stats.EventsProcessed,
		"payouts":          stats.PayoutsCount,
	})
}

func (s *Server) statistics(c *gin.Context) {
	stats, err := s.coordinator.Statistics(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) history(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	entries, err := s.coordinator.History(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": entries})
}

func (s *Server) recipients(c *gin.Context) {
	dt := model.BucketDisasterType(c.Query("type"))

	lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
	lon, err2 := strconv.ParseFloat(c.Query("lon"), 64)
	if err1 != nil || err2 != nil || !model.ValidCoordinates(lat, lon) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "valid lat and lon are required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"disaster_type": dt,
		"candidates":    s.coordinator.ListEligibleRecipients(dt, lat, lon),
	})
}

func (s *Server) sourceStatus(c *gin.Context) {
	if s.poller == nil {
		c.JSON(http.StatusOK, gin.H{"sources": gin.H{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sources": s.poller.SourceStatus()})
}

func (s *Server) policy(c *gin.Context) {
	c.JSON(http.StatusOK, s.coordinator.Policy())
}

type simulateRequest struct {
	ScenarioID string `json:"scenario_id" binding:"required"`
}

func (s *Server) simulate(c *gin.Context) {
	var req simulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.coordinator.Simulate(c.Request.Context(), req.ScenarioID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

type analyzeRequest struct {
	EventID string `json:"event_id" binding:"required"`
}

func (s *Server) analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.coordinator.TriggerAnalysis(c.Request.Context(), req.EventID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, model.ErrUnknownEvent) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}
