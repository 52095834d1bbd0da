// Package server exposes composition analysis over HTTP.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/tamirms/fqcomp"
	"github.com/tamirms/fqcomp/internal/history"
)

type JSON map[string]any

// Config carries the dependencies and limits of a Server.
type Config struct {
	// DataDir is the only directory POST /analyze may read local files from.
	// Empty disables local paths; URLs are always accepted.
	DataDir string

	// DefaultReads is used when a request does not set "reads".
	DefaultReads int

	// MaxReads caps "reads" in a request. Zero means no cap.
	MaxReads int

	// History, when set, records every analysis and backs GET /history.
	History *history.Store

	// AnalyzeTimeout bounds one analysis. Zero means no timeout.
	AnalyzeTimeout time.Duration

	// Options are passed to every fqcomp.Analyze call (workers, logger).
	Options []fqcomp.Option

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Handler serves the API against one shared reference library.
type Handler struct {
	lib *fqcomp.Library
	cfg Config
	log *slog.Logger
}

// NewHandler returns a Handler for lib.
func NewHandler(lib *fqcomp.Library, cfg Config) *Handler {
	if cfg.DefaultReads == 0 {
		cfg.DefaultReads = fqcomp.DefaultReadLimit
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Handler{lib: lib, cfg: cfg, log: log}
}

// RegisterRoutes mounts the API on r.
func RegisterRoutes(r *mux.Router, h *Handler) {
	r.Use(h.logRequests)

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/references", h.ListReferences).Methods(http.MethodGet)
	r.HandleFunc("/analyze", h.PostAnalyze).Methods(http.MethodPost)
	r.HandleFunc("/history", h.GetHistory).Methods(http.MethodGet)
}

// NewRouter returns a router with every route registered.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	RegisterRoutes(r, h)
	return r
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
