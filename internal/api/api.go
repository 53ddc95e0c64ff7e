// Package api serves feature extraction over HTTP.
package api

import (
	"NetSentry/internal/engine/features"
	"NetSentry/internal/engine/manager"
	"NetSentry/internal/extractor"
	"NetSentry/internal/model"
	"NetSentry/pkg/pcap"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// APIHandler holds the dependencies for API handlers.
type APIHandler struct {
	manager     *manager.Manager
	captureRoot string
}

// NewAPIHandler creates a handler. Requested capture paths are resolved under captureRoot.
func NewAPIHandler(m *manager.Manager, captureRoot string) *APIHandler {
	return &APIHandler{manager: m, captureRoot: captureRoot}
}

// NewRouter wires the API routes and the metrics endpoint.
func NewRouter(h *APIHandler, gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.healthHandler).Methods("GET")
	r.HandleFunc("/api/v1/schema", h.schemaHandler).Methods("GET")
	r.HandleFunc("/api/v1/extract", h.extractHandler).Methods("POST")
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")
	return r
}

// ExtractRequest names a capture relative to the capture root.
type ExtractRequest struct {
	Path string `json:"path"`
}

// ExtractResponse is the extraction result plus the records handed to the writers.
type ExtractResponse struct {
	*extractor.Result
	Records []model.Record `json:"records,omitempty"`
	// Warning carries classifier or writer failures; the features are still valid.
	Warning string `json:"warning,omitempty"`
}

// SchemaResponse lists the feature vector layout.
type SchemaResponse struct {
	Keys  []string `json:"keys"`
	Names []string `json:"names"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *APIHandler) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *APIHandler) schemaHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SchemaResponse{
		Keys:  features.FeatureKeys[:],
		Names: features.FeatureNames[:],
	})
}

// extractHandler extracts the features of one capture.
func (h *APIHandler) extractHandler(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to decode request: %v", err))
		return
	}
	if req.Path == "" || !filepath.IsLocal(req.Path) {
		writeError(w, http.StatusBadRequest, "path must be relative to the capture root")
		return
	}

	out := h.manager.Process(r.Context(), filepath.Join(h.captureRoot, req.Path))
	if out.Result == nil {
		writeError(w, statusFor(out.Err), out.Err.Error())
		return
	}

	resp := ExtractResponse{Result: out.Result, Records: out.Records}
	if out.Err != nil {
		resp.Warning = out.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pcap.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pcap.ErrCorruptCapture):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("Failed to write response: %v", err)
	}
}
