package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sanjaynair/amlscope/internal/engine"
	"github.com/sanjaynair/amlscope/internal/llm"
	"github.com/sanjaynair/amlscope/internal/metrics"
	"github.com/sanjaynair/amlscope/internal/model"
	"github.com/sanjaynair/amlscope/internal/refdata"
)

// Reloader re-reads reference data from its source.
type Reloader interface {
	refdata.Provider
	Reload() error
}

// Handler holds all HTTP handler dependencies.
type Handler struct {
	ctrl    *engine.Controller
	refdata refdata.Provider
	mux     *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(ctrl *engine.Controller, provider refdata.Provider) http.Handler {
	h := &Handler{ctrl: ctrl, refdata: provider, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/investigations", h.startInvestigation)
	h.mux.HandleFunc("POST /v1/investigations/stream", h.streamInvestigation)
	h.mux.HandleFunc("GET /v1/investigations/{id}", h.getInvestigation)
	h.mux.HandleFunc("GET /v1/investigations/{id}/trace", h.getTrace)
	h.mux.HandleFunc("GET /v1/refdata", h.getRefData)
	h.mux.HandleFunc("POST /v1/refdata/reload", h.reloadRefData)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

// POST /v1/investigations — run the sequential pipeline to completion.
func (h *Handler) startInvestigation(w http.ResponseWriter, r *http.Request) {
	var tx model.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}

	snap, err := h.ctrl.Start(r.Context(), tx)
	if err != nil {
		if snap.ID == "" {
			// Rejected before an investigation was created.
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, statusForCode(snap.ErrorCode), snap)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// POST /v1/investigations/stream — run the enrichment fan-out, streaming
// progress as newline-delimited JSON.
func (h *Handler) streamInvestigation(w http.ResponseWriter, r *http.Request) {
	var tx model.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}

	stream, err := h.ctrl.StartStreaming(r.Context(), tx)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	for ev := range stream {
		if err := enc.Encode(ev); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// GET /v1/investigations/{id} — current snapshot.
func (h *Handler) getInvestigation(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.ctrl.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "investigation not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GET /v1/investigations/{id}/trace — repaired, noise-filtered event log.
func (h *Handler) getTrace(w http.ResponseWriter, r *http.Request) {
	events, ok := h.ctrl.Trace(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "investigation not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":     r.PathValue("id"),
		"events": events,
	})
}

// GET /v1/refdata — resolved reference data currently in effect.
func (h *Handler) getRefData(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.refdata.Snapshot())
}

// POST /v1/refdata/reload — re-read reference data from disk.
func (h *Handler) reloadRefData(w http.ResponseWriter, r *http.Request) {
	rel, ok := h.refdata.(Reloader)
	if !ok {
		writeError(w, http.StatusNotImplemented, "reference data source does not support reload")
		return
	}
	if err := rel.Reload(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	snap := h.refdata.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded": true,
		"version":  snap.Version,
	})
}

// GET /healthz — always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz — 503 if enrichment queue >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.ctrl.QueueUtilization()
	metrics.EnrichmentQueueUtilization.Set(util)
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "overloaded",
			"queue_utilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ready",
		"queue_utilization": util,
	})
}

// statusForCode maps a failed investigation's error code to an HTTP status.
func statusForCode(code string) int {
	switch llm.ErrorCode(code) {
	case llm.CodeRateLimited:
		return http.StatusTooManyRequests
	case llm.CodeAuthenticationFailed:
		return http.StatusBadGateway
	case llm.CodeTokenLimitExceeded:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
