package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"iotdetect/detection"
	"iotdetect/flow"
	"iotdetect/ml"
	"iotdetect/monitoring"
)

var (
	stateMu  sync.RWMutex
	pipeline detection.Pipeline
	hub      *monitoring.Hub
	metrics  *monitoring.Metrics
	logger   = zap.NewNop()
	policy   flow.FallbackPolicy
)

// SetPipeline sets the models behind the detection page and API.
func SetPipeline(p detection.Pipeline, fallback flow.FallbackPolicy) {
	stateMu.Lock()
	defer stateMu.Unlock()
	pipeline = p
	policy = fallback
}

func SetHub(h *monitoring.Hub) {
	stateMu.Lock()
	defer stateMu.Unlock()
	hub = h
}

func SetMetrics(m *monitoring.Metrics) {
	stateMu.Lock()
	defer stateMu.Unlock()
	metrics = m
}

func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	stateMu.Lock()
	defer stateMu.Unlock()
	logger = l
}

func currentPipeline() detection.Pipeline {
	stateMu.RLock()
	defer stateMu.RUnlock()
	return pipeline
}

func serverLogger() *zap.Logger {
	stateMu.RLock()
	defer stateMu.RUnlock()
	return logger
}

func RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/ws/detections", handleWebSocket)
	mux.HandleFunc("GET /metrics", handleMetrics)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func handleWebSocket(w http.ResponseWriter, r *http.Request) {
	stateMu.RLock()
	h := hub
	stateMu.RUnlock()
	if h == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("live feed not enabled"))
		return
	}
	h.HandleWebSocket(w, r)
}

func handleMetrics(w http.ResponseWriter, r *http.Request) {
	stateMu.RLock()
	m := metrics
	stateMu.RUnlock()
	if m == nil {
		http.NotFound(w, r)
		return
	}
	m.Handler().ServeHTTP(w, r)
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, flow.ErrInvalidSelection),
		errors.Is(err, flow.ErrInvalidFeature),
		errors.Is(err, flow.ErrSchemaMismatch):
		return http.StatusBadRequest
	case errors.Is(err, ml.ErrModelNotLoaded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondJSON 统一JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		serverLogger().Warn("failed to encode JSON", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]string{"error": err.Error()})
}
