// Package server exposes the saver over a loopback HTTP API so that a
// browser extension or userscript can trigger saves.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"notionx/pkg/archive"
	errs "notionx/pkg/errors"
	"notionx/pkg/extractor"
	"notionx/pkg/logger"
	"notionx/pkg/saver"
)

// DefaultAddr is the listen address when none is configured
const DefaultAddr = "127.0.0.1:8765"

// Saver saves one URL
type Saver interface {
	Save(ctx context.Context, url string, force bool) (*saver.Outcome, error)
}

// History lists journal entries
type History interface {
	List(ctx context.Context, limit int) ([]archive.Entry, error)
}

// Server holds the HTTP handlers and their dependencies. History is optional.
type Server struct {
	saver   Saver
	history History
	logger  logger.Logger
	version string
}

// New creates a Server
func New(s Saver, history History, version string, log logger.Logger) *Server {
	return &Server{saver: s, history: history, version: version, logger: logger.OrGlobal(log)}
}

// SaveRequest is the body of POST /save
type SaveRequest struct {
	URL   string `json:"url"`
	Force bool   `json:"force,omitempty"`
}

// SaveResponse is returned by POST /save
type SaveResponse struct {
	OK      bool           `json:"ok"`
	Error   string         `json:"error,omitempty"`
	Kind    string         `json:"kind,omitempty"`
	Outcome *saver.Outcome `json:"outcome,omitempty"`
}

// SetupRoutes configures HTTP routes
func (s *Server) SetupRoutes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.corsMiddleware)
	r.Use(s.loggingMiddleware)

	r.HandleFunc("/healthz", s.healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/save", s.saveHandler).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/history", s.historyHandler).Methods(http.MethodGet)
	return r
}

// ListenAndServe serves on addr until ctx ends
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	logger.LogComponentStart("server", map[string]interface{}{"addr": addr})
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		logger.LogComponentStop("server", "context done")
		return err
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"version":   s.version,
	})
}

func (s *Server) saveHandler(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, SaveResponse{Error: "invalid request body"})
		return
	}
	if u, err := url.Parse(req.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		writeJSON(w, http.StatusBadRequest, SaveResponse{Error: "url must be an absolute http(s) URL"})
		return
	}

	outcome, err := s.saver.Save(r.Context(), req.URL, req.Force)
	if err != nil {
		writeJSON(w, statusFor(err), SaveResponse{
			Error:   saver.Describe(err),
			Kind:    string(errs.KindOf(err)),
			Outcome: outcome,
		})
		return
	}
	writeJSON(w, http.StatusOK, SaveResponse{OK: true, Outcome: outcome})
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "history is disabled"})
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	entries, err := s.history.List(r.Context(), limit)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list history")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if entries == nil {
		entries = []archive.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

func statusFor(err error) int {
	var ee *saver.ExtractionError
	if errors.As(err, &ee) {
		if errors.Is(err, extractor.ErrUnsupported) || errors.Is(err, extractor.ErrNoContent) {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadGateway
	}
	if errors.Is(err, errs.ErrThrottleExhausted) {
		return http.StatusTooManyRequests
	}
	switch errs.KindOf(err) {
	case errs.KindUnauthorized:
		return http.StatusUnauthorized
	case errs.KindPermission:
		return http.StatusForbidden
	case errs.KindRateLimited:
		return http.StatusTooManyRequests
	}
	return http.StatusBadGateway
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		s.logger.DebugWithFields("HTTP request", map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   wrapped.statusCode,
			"duration": time.Since(start),
		})
	})
}

// responseWriter captures the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
