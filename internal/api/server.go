package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/job-skills-crawler/internal/crawler"
	"github.com/JakeFAU/job-skills-crawler/internal/cursor"
	"github.com/JakeFAU/job-skills-crawler/internal/metrics"
	"github.com/JakeFAU/job-skills-crawler/internal/pipeline"
)

const dateLayout = "2006-01-02"

// Runner is the crawl run capability the server drives.
type Runner interface {
	Run(ctx context.Context) (pipeline.Report, error)
	Running() bool
	Latest() (pipeline.Report, bool)
}

// Config controls the server.
type Config struct {
	AuthEnabled bool
	APIKey      string
	// RunTimeout bounds runs started over HTTP. Zero means no bound.
	RunTimeout     time.Duration
	RequestTimeout time.Duration
}

// Server wires HTTP handlers to the runner and the snapshot catalog.
type Server struct {
	router  chi.Router
	runner  Runner
	catalog crawler.Catalog
	cfg     Config
	logger  *zap.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	active  bool
	wg      sync.WaitGroup
}

// NewServer constructs a Server with middleware and routes.
func NewServer(runner Runner, catalog crawler.Catalog, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	metrics.Init()
	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		runner:  runner,
		catalog: catalog,
		cfg:     cfg,
		logger:  logger.Named("api"),
		baseCtx: baseCtx,
		cancel:  cancel,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.AuthEnabled {
			r.Use(apiKeyMiddleware(cfg.APIKey))
		}
		// Inline runs outlive the request timeout.
		r.Post("/runs", s.startRun)
		r.Group(func(r chi.Router) {
			r.Use(timeoutMiddleware(cfg.RequestTimeout))
			r.Get("/runs/latest", s.latestRun)
			r.Get("/snapshots", s.listSnapshots)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close cancels background runs and waits for them to return.
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.catalog.ListSnapshots(r.Context(), crawler.SnapshotFilter{Limit: 1}); err != nil {
		writeError(w, http.StatusServiceUnavailable, "catalog unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("wait") == "true" {
		report, err := s.runner.Run(r.Context())
		switch {
		case errors.Is(err, pipeline.ErrRunInProgress):
			writeError(w, http.StatusConflict, err.Error())
		case err == nil, errors.Is(err, cursor.ErrCursorCommit):
			writeJSON(w, http.StatusOK, report)
		default:
			writeJSON(w, http.StatusInternalServerError, report)
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active || s.runner.Running() {
		writeError(w, http.StatusConflict, pipeline.ErrRunInProgress.Error())
		return
	}
	if s.baseCtx.Err() != nil {
		writeError(w, http.StatusServiceUnavailable, "server shutting down")
		return
	}
	s.active = true
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.active = false
			s.mu.Unlock()
		}()
		ctx, cancel := s.runContext()
		defer cancel()
		if _, err := s.runner.Run(ctx); err != nil && !errors.Is(err, pipeline.ErrRunInProgress) {
			s.logger.Warn("background run ended with error", zap.Error(err))
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) runContext() (context.Context, context.CancelFunc) {
	if s.cfg.RunTimeout > 0 {
		return context.WithTimeout(s.baseCtx, s.cfg.RunTimeout)
	}
	return context.WithCancel(s.baseCtx)
}

func (s *Server) latestRun(w http.ResponseWriter, _ *http.Request) {
	report, ok := s.runner.Latest()
	if !ok {
		writeError(w, http.StatusNotFound, "no run finished yet")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) listSnapshots(w http.ResponseWriter, r *http.Request) {
	filter, err := parseSnapshotFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := s.catalog.ListSnapshots(r.Context(), filter)
	if err != nil {
		s.logger.Error("list snapshots failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list snapshots failed")
		return
	}
	if rows == nil {
		rows = []crawler.SnapshotMeta{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": rows})
}

func parseSnapshotFilter(r *http.Request) (crawler.SnapshotFilter, error) {
	q := r.URL.Query()
	var (
		filter crawler.SnapshotFilter
		err    error
	)
	if v := q.Get("from"); v != "" {
		if filter.From, err = parseTime(v, false); err != nil {
			return filter, fmt.Errorf("invalid from: %w", err)
		}
	}
	if v := q.Get("to"); v != "" {
		if filter.To, err = parseTime(v, true); err != nil {
			return filter, fmt.Errorf("invalid to: %w", err)
		}
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return filter, errors.New("to is before from")
	}
	filter.FileNames = q["file"]
	if v := q.Get("limit"); v != "" {
		n, convErr := strconv.Atoi(v)
		if convErr != nil || n < 0 {
			return filter, errors.New("invalid limit")
		}
		filter.Limit = n
	}
	return filter, nil
}

// parseTime accepts RFC 3339 or a bare date. A bare upper bound covers the
// whole day.
func parseTime(v string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("want RFC 3339 or %s: %w", dateLayout, err)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
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

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		reqID, _ := r.Context().Value(requestIDKey{}).(string)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.String("request_id", reqID),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if expected == "" || key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
