package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"iotdetect/db"
	"iotdetect/detection"
	"iotdetect/flow"
	"iotdetect/ml"
	"iotdetect/monitoring"
)

func TestHealthHandler(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/health", nil)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(handleHealth)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}

	expected := `{"status":"ok"}`
	if rr.Body.String() != expected+"\n" && rr.Body.String() != expected {
		t.Errorf("handler returned unexpected body: got %v want %v", rr.Body.String(), expected)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("psh: %w", flow.ErrInvalidSelection), http.StatusBadRequest},
		{fmt.Errorf("ack_count: %w", flow.ErrInvalidFeature), http.StatusBadRequest},
		{fmt.Errorf("detector: %w", flow.ErrSchemaMismatch), http.StatusBadRequest},
		{ml.ErrModelNotLoaded, http.StatusServiceUnavailable},
		{fmt.Errorf("detector: %w", detection.ErrUnexpectedOutput), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := statusFor(c.err); got != c.want {
			t.Fatalf("statusFor(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestWebSocketWithoutHub(t *testing.T) {
	SetHub(nil)
	w := httptest.NewRecorder()
	handleWebSocket(w, httptest.NewRequest(http.MethodGet, "/api/ws/detections", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mux := http.NewServeMux()
	RegisterHandlers(mux)

	SetMetrics(nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without metrics, got %d", w.Code)
	}

	m := monitoring.NewMetrics(func() int { return 0 })
	m.Observe(detection.Result{Mode: detection.ModeTwoStage, Stage: detection.StageDetect, Latency: time.Millisecond})
	SetMetrics(m)
	defer SetMetrics(nil)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "iotdetect_predictions_total") {
		t.Fatalf("predictions counter missing from exposition")
	}
}

func TestHistoryHandler(t *testing.T) {
	if _, err := db.SavePrediction(db.Prediction{
		Mode:           detection.ModeTwoStage,
		Stage:          detection.StageClassify,
		Vector:         make([]float64, flow.NumFeatures),
		AttackDetected: true,
		Classified:     true,
		Class:          int(flow.DDoS),
		Category:       flow.DDoS.Name(),
		Label:          flow.LabelOf(int(flow.DDoS), flow.FallbackUnknown),
		CreatedAt:      time.Now(),
	}); err != nil {
		t.Fatalf("save prediction: %v", err)
	}

	mux := http.NewServeMux()
	RegisterAPIHandlers(mux)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/history?limit=5", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var payload struct {
		Data  []db.Prediction `json:"data"`
		Count int             `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if payload.Count == 0 || payload.Data[0].Category != "DDoS" {
		t.Fatalf("unexpected history: %+v", payload)
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/history/summary", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var summary struct {
		Categories map[string]int `json:"categories"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if summary.Categories["DDoS"] == 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestMain(m *testing.M) {
	// Setup
	dir, err := os.MkdirTemp("", "iotdetect-http")
	if err != nil {
		panic(err)
	}
	if err := db.InitDB(filepath.Join(dir, "test.db")); err != nil {
		panic(err)
	}

	code := m.Run()

	// Teardown
	db.Close()
	os.RemoveAll(dir)
	os.Exit(code)
}
