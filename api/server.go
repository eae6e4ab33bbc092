package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"failsight/analysis"
	"failsight/failure"
	"failsight/gate"
	"failsight/logger"
)

const maxBodySize = 1 << 20

// Analyzer is the part of *analysis.Analyzer the admin API drives.
type Analyzer interface {
	Analyze(ctx context.Context, f failure.Failure) *analysis.Analysis
	Fingerprint(f failure.Failure) string
	Forget(ctx context.Context, fingerprint string) error
}

// Server implements the admin API for failsight.
type Server struct {
	analyzer  Analyzer
	gate      *gate.Gate
	gatherer  prometheus.Gatherer
	log       logger.Logger
	authToken string
}

// NewServer creates a new admin API server. Every route is served behind
// the gate's middleware, so the server explains its own failures too.
func NewServer(
	an Analyzer,
	g *gate.Gate,
	gatherer prometheus.Gatherer,
	log logger.Logger,
	authToken string,
) *Server {
	return &Server{
		analyzer:  an,
		gate:      g,
		gatherer:  gatherer,
		log:       log,
		authToken: authToken,
	}
}

// Handler returns an http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/admin/v1/health", s.handleHealth)
	mux.HandleFunc("/admin/v1/analyze", s.handleAnalyze)
	mux.HandleFunc("/admin/v1/cache/", s.handleCache)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	// Demo routes fail on purpose to exercise the gate end to end.
	mux.Handle("/demo/error", s.gate.Handle(s.handleDemoError))
	mux.HandleFunc("/demo/panic", func(w http.ResponseWriter, r *http.Request) {
		var m map[string]int
		m[r.URL.Query().Get("key")]++
	})

	var h http.Handler = mux
	if s.authToken != "" {
		h = s.authMiddleware(h)
	}
	return s.gate.Middleware(h)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Health, metrics and demo routes are always public
		if !strings.HasPrefix(r.URL.Path, "/admin/") || r.URL.Path == "/admin/v1/health" {
			next.ServeHTTP(w, r)
			return
		}
		token := r.Header.Get("Authorization")
		if token != "Bearer "+s.authToken {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type analyzeResponse struct {
	Fingerprint string             `json:"fingerprint"`
	Analysis    *analysis.Analysis `json:"analysis"`
}

// handleAnalyze explains a failure posted as JSON. It answers 204 when no
// analysis could be produced.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var f failure.Failure
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, "invalid failure JSON")
		return
	}
	if strings.TrimSpace(f.Type) == "" || strings.TrimSpace(f.Message) == "" {
		writeError(w, http.StatusBadRequest, "type and message are required")
		return
	}

	fingerprint := s.analyzer.Fingerprint(f)
	w.Header().Set("X-Failsight-Fingerprint", fingerprint)

	a := s.analyzer.Analyze(r.Context(), f)
	if a == nil {
		s.log.Info("admin.analyze_absent", logger.String("fingerprint", fingerprint))
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, analyzeResponse{Fingerprint: fingerprint, Analysis: a})
}

// handleCache serves DELETE /admin/v1/cache/{fingerprint}.
func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	fingerprint := strings.TrimPrefix(r.URL.Path, "/admin/v1/cache/")
	if fingerprint == "" {
		writeError(w, http.StatusBadRequest, "fingerprint required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := s.analyzer.Forget(ctx, fingerprint); err != nil {
		s.log.Error("admin.forget_failed", logger.String("fingerprint", fingerprint), logger.Err(err))
		writeError(w, http.StatusInternalServerError, "failed to invalidate cache entry")
		return
	}
	s.log.Info("admin.forgotten", logger.String("fingerprint", fingerprint))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDemoError(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	status := parseIntParam(q.Get("status"), http.StatusInternalServerError)
	msg := q.Get("message")
	if msg == "" {
		msg = "demo failure"
	}
	return failure.Wrap(failure.NewHTTPError(status, msg))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseIntParam(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	return v
}
