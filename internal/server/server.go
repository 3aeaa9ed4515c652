package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	httperr "github.com/aevon-lab/stats-indexer/internal/core/errors"
	"github.com/aevon-lab/stats-indexer/internal/indexer"
	"github.com/gin-gonic/gin"
)

type Server struct {
	Engine *gin.Engine
	Addr   string
	health HealthChecker
	status StatusSource
}

// HealthChecker is an interface for components that can report their health status.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// StatusSource exposes the outcome of the most recent pipeline run.
type StatusSource interface {
	LastReport() (*indexer.Report, error)
	Running() bool
}

// New builds the operational surface used in scheduled mode: /health,
// /metrics and /v1/status. metrics may be nil.
func New(addr string, health HealthChecker, status StatusSource, metrics http.Handler, mode string) *Server {
	if mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		Engine: r,
		Addr:   addr,
		health: health,
		status: status,
	}

	r.GET("/health", s.healthHandler)
	r.GET("/v1/status", s.statusHandler)
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	return s
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.health != nil {
		if err := s.health.Ping(ctx); err != nil {
			slog.Error("Health check failed: database unreachable", "error", err)
			c.JSON(http.StatusServiceUnavailable, httperr.ErrorResponse{
				ErrorType: httperr.HttpStoreUnreachable,
				Message:   "database unreachable",
				Details:   err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "connected",
	})
}

type statusResponse struct {
	Running bool            `json:"running"`
	Last    *indexer.Report `json:"last_run"`
}

// statusHandler reports the last run. A failed run answers 500 with the report
// in details so monitoring can alert on it without parsing logs.
func (s *Server) statusHandler(c *gin.Context) {
	if s.status == nil {
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "status source not configured",
		})
		return
	}

	report, err := s.status.LastReport()
	running := s.status.Running()

	if report == nil {
		c.JSON(http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpNoRunYet,
			Message:   "no pipeline run has finished yet",
			Details:   gin.H{"running": running},
		})
		return
	}

	if err != nil {
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpRunFailed,
			Message:   err.Error(),
			Details:   statusResponse{Running: running, Last: report},
		})
		return
	}

	c.JSON(http.StatusOK, statusResponse{Running: running, Last: report})
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.Addr,
		Handler: s.Engine,
	}

	slog.Info("Starting HTTP Server...", "address", s.Addr)

	go func() {
		<-ctx.Done()
		slog.Info("Stopping HTTP Server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP Server forced to shutdown", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
