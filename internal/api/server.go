package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/config"
	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/crawler"
	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/metrics"
)

// Runner starts one pipeline run.
type Runner interface {
	RunOnce(ctx context.Context) (crawler.RunSummary, error)
	Running() bool
}

// Server wires HTTP handlers to the pipeline and run history.
type Server struct {
	router  chi.Router
	runner  Runner
	runs    *RunsHandler
	baseCtx context.Context
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes. Runs started via
// the API inherit baseCtx, so they stop when the process shuts down rather
// than when the triggering request ends.
func NewServer(
	baseCtx context.Context,
	runner Runner,
	runs crawler.RunStore,
	auth config.AuthConfig,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	s := &Server{
		runner:  runner,
		runs:    NewRunsHandler(runs, logger),
		baseCtx: baseCtx,
		logger:  logger,
	}
	metrics.Init()

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/runs", s.runs.ListRuns)
		r.Group(func(r chi.Router) {
			if auth.Enabled {
				r.Use(apiKeyMiddleware(auth.APIKey))
			}
			r.Post("/crawl", s.startCrawl)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "running": s.runner.Running()})
}

func (s *Server) startCrawl(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not configured")
		return
	}
	if s.runner.Running() {
		writeError(w, http.StatusConflict, crawler.ErrRunInProgress.Error())
		return
	}
	requestID, _ := r.Context().Value(requestIDKey{}).(string)
	go s.runInBackground(requestID)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started", "request_id": requestID})
}

func (s *Server) runInBackground(requestID string) {
	logger := s.logger.With(zap.String("request_id", requestID))
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("api-triggered run panicked", zap.Any("panic", rec))
		}
	}()
	summary, err := s.runner.RunOnce(s.baseCtx)
	switch {
	case errors.Is(err, crawler.ErrRunInProgress):
		logger.Info("api-triggered run skipped, another run is active")
	case err != nil:
		logger.Error("api-triggered run failed", zap.String("run_id", summary.RunID), zap.Error(err))
	default:
		logger.Info("api-triggered run finished", zap.String("run_id", summary.RunID))
	}
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			reqID, _ := r.Context().Value(requestIDKey{}).(string)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.String("request_id", reqID),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec), zap.String("path", r.URL.Path))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
