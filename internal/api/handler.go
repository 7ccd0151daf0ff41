package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/scapslice/internal/config"
	"github.com/gyaneshwarpardhi/scapslice/internal/engine"
)

// Handler serves the operational endpoints: health, metrics, the latest
// batch report and config reload.
type Handler struct {
	eng    *engine.Engine
	loader *config.Loader
	mux    *http.ServeMux

	mu     sync.RWMutex
	report *engine.Report
}

// New creates an HTTP handler and registers all routes.
func New(eng *engine.Engine, loader *config.Loader) *Handler {
	h := &Handler{eng: eng, loader: loader, mux: http.NewServeMux()}

	h.mux.HandleFunc("GET /v1/report", h.latestReport)
	h.mux.HandleFunc("GET /v1/config", h.showConfig)
	h.mux.HandleFunc("POST /v1/config/reload", h.reloadConfig)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	h.mux.ServeHTTP(rec, r)
	slog.Debug("http request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
}

// SetReport publishes the report served by GET /v1/report.
func (h *Handler) SetReport(rep *engine.Report) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.report = rep
}

// GET /v1/report: the most recent batch report.
func (h *Handler) latestReport(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	rep := h.report
	h.mu.RUnlock()
	if rep == nil {
		writeError(w, http.StatusNotFound, "no batch has completed yet")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// GET /v1/config: the configuration new batches use.
func (h *Handler) showConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.eng.Config())
}

// POST /v1/config/reload: re-read the config file and swap it in.
func (h *Handler) reloadConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.loader.Reload()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.eng.SwapConfig(cfg)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded": true,
		"version":  cfg.Version,
	})
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
