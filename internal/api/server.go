package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HsienYu/BreakingNewsEffects/internal/archiver"
	"github.com/HsienYu/BreakingNewsEffects/internal/news"
	"github.com/HsienYu/BreakingNewsEffects/internal/telemetry"
)

// Archiver is the slice of the pass manager the HTTP surface needs.
type Archiver interface {
	RunPass(ctx context.Context, opts archiver.Options) (news.PassResult, error)
	Ready() bool
	NewsFeed() ([]news.FeedItem, error)
}

// Server wires HTTP handlers to the archiver and the cache directory.
type Server struct {
	router   chi.Router
	archiver Archiver
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes. cacheRoot is
// served as static files so the archive is browsable offline.
func NewServer(arc Archiver, cacheRoot string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		archiver: arc,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(telemetry.Middleware)

	r.Group(func(r chi.Router) {
		r.Use(timeoutMiddleware(10 * time.Second))
		r.Get("/healthz", s.healthz)
		r.Get("/readyz", s.readyz)
		r.Handle("/metrics", telemetry.Handler())
		r.Get("/api/feed", s.feed)
	})

	// A refresh runs a whole pass synchronously, so it stays outside the
	// timeout group. Closing the connection cancels the pass.
	r.Post("/api/refresh", s.refresh)

	// Everything else maps onto the cache directory: /html/<slug>/index.html,
	// /assets/..., and the mirrored homepage under /html/index.html.
	r.Handle("/*", http.FileServer(http.Dir(cacheRoot)))

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
	if !s.archiver.Ready() {
		writeError(w, http.StatusServiceUnavailable, "no manifest committed yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) feed(w http.ResponseWriter, _ *http.Request) {
	items, err := s.archiver.NewsFeed()
	if err != nil {
		s.logger.Error("feed load failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load feed")
		return
	}
	if items == nil {
		items = []news.FeedItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(items), "items": items})
}

type refreshRequest struct {
	Mode     string `json:"mode"`
	NoImages bool   `json:"no_images"`
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	mode, err := parseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.archiver.RunPass(r.Context(), archiver.Options{Mode: mode, NoImages: req.NoImages})
	if err != nil {
		var fatal *news.FatalFetchError
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, archiver.ErrPassInProgress):
			status = http.StatusConflict
		case errors.As(err, &fatal):
			status = http.StatusBadGateway
		case errors.Is(err, context.DeadlineExceeded):
			status = http.StatusRequestTimeout
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func parseMode(s string) (news.PassMode, error) {
	switch s {
	case "", string(news.ModeQuick):
		return news.ModeQuick, nil
	case string(news.ModeArticles):
		return news.ModeArticles, nil
	case string(news.ModeFull):
		return news.ModeFull, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
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
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
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

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
