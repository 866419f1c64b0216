// Package httpapi serves the ingestion control API.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/PruthvirajGire18/scholarlink-backend/internal/db"
	"github.com/PruthvirajGire18/scholarlink-backend/internal/globaltime"
	"github.com/PruthvirajGire18/scholarlink-backend/internal/ingest"
)

const maxRunHistoryLimit = 100

// IngestionService is the slice of the orchestrator the API needs.
// *ingest.Service satisfies it; tests use a fake.
type IngestionService interface {
	StartRun(ctx context.Context, trigger, initiatedBy string) (ingest.RunResult, error)
	Status(ctx context.Context) (ingest.StatusReport, error)
	ListRuns(ctx context.Context, limit int) ([]db.IngestionRun, error)
}

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type Server struct {
	svc        IngestionService
	ping       func(context.Context) error
	cronSecret string
	logger     zerolog.Logger
	opts       Options
}

// NewServer builds the API server. ping reports database liveness for the
// health endpoint; a nil ping always reports healthy. cronSecret guards the
// external scheduler endpoint; empty disables it.
func NewServer(svc IngestionService, ping func(context.Context) error, cronSecret string, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8080
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	return &Server{
		svc:        svc,
		ping:       ping,
		cronSecret: strings.TrimSpace(cronSecret),
		logger:     logger,
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
		},
	}
}

func (s *Server) buildEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       3600,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.POST("/ingestion/run", s.handleTriggerRun)
	api.GET("/ingestion/status", s.handleStatus)
	api.GET("/ingestion/runs", s.handleRunHistory)
	api.GET("/ingestion/cron", s.handleCron)

	return e
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.svc == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.buildEcho()

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("scholarlink api started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("scholarlink api stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) handleHealth(c echo.Context) error {
	dbStatus := "up"
	if s.ping != nil {
		if err := s.ping(c.Request().Context()); err != nil {
			s.logger.Error().Err(err).Msg("health ping failed")
			dbStatus = "down"
		}
	}
	return success(c, map[string]any{
		"service":  "scholarlink",
		"database": dbStatus,
		"time":     globaltime.UTC(),
	})
}

func (s *Server) handleTriggerRun(c echo.Context) error {
	var body struct {
		InitiatedBy string `json:"initiatedBy"`
	}
	// Body is optional; anything unreadable just falls back to the default.
	_ = c.Bind(&body)
	initiatedBy := strings.TrimSpace(body.InitiatedBy)
	if initiatedBy == "" {
		initiatedBy = "api"
	}

	result, err := s.svc.StartRun(c.Request().Context(), db.TriggerManual, initiatedBy)
	if err != nil {
		s.logger.Error().Err(err).Msg("trigger ingestion failed")
		return internalError(c, "Failed to start ingestion run")
	}
	if !result.Accepted {
		return fail(c, http.StatusConflict, result.Message, map[string]any{
			"activeRunId": result.RunID,
		})
	}
	return successWithStatus(c, http.StatusAccepted, map[string]any{
		"runId":  result.RunID,
		"status": result.Status,
	})
}

func (s *Server) handleStatus(c echo.Context) error {
	report, err := s.svc.Status(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("ingestion status failed")
		return internalError(c, "Failed to load ingestion status")
	}
	return success(c, map[string]any{
		"isRunning": report.IsRunning,
		"running":   report.Running,
		"latestRun": report.LatestRun,
	})
}

func (s *Server) handleRunHistory(c echo.Context) error {
	// Garbage or out-of-range limits degrade to the defaults rather than 400;
	// the store clamps to 1..100 either way.
	limit := 0
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}
	if limit > maxRunHistoryLimit {
		limit = maxRunHistoryLimit
	}

	runs, err := s.svc.ListRuns(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("run history failed")
		return internalError(c, "Failed to load run history")
	}
	return success(c, map[string]any{
		"runs": runs,
	})
}

// handleCron is the endpoint an external scheduler hits on serverless
// deployments where the in-process scheduler cannot run. Guarded by a shared
// bearer secret.
func (s *Server) handleCron(c echo.Context) error {
	if s.cronSecret == "" {
		return fail(c, http.StatusNotFound, "Not found", nil)
	}
	auth := strings.TrimSpace(c.Request().Header.Get("Authorization"))
	if auth != "Bearer "+s.cronSecret {
		return fail(c, http.StatusUnauthorized, "Unauthorized", nil)
	}

	result, err := s.svc.StartRun(c.Request().Context(), db.TriggerCron, "cron")
	if err != nil {
		s.logger.Error().Err(err).Msg("cron ingestion failed")
		return internalError(c, "Failed to start ingestion run")
	}
	if !result.Accepted {
		return fail(c, http.StatusConflict, result.Message, map[string]any{
			"activeRunId": result.RunID,
		})
	}
	return successWithStatus(c, http.StatusAccepted, map[string]any{
		"runId":  result.RunID,
		"status": result.Status,
	})
}
