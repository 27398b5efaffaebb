// Package http 提供API处理器
package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"iotdetect/db"
	"iotdetect/detection"
	"iotdetect/flow"
	"iotdetect/ml"
)

// RegisterAPIHandlers 注册所有API处理器
func RegisterAPIHandlers(mux *http.ServeMux) {
	// 检测与分类
	mux.HandleFunc("POST /api/detect", handleDetect)
	mux.HandleFunc("POST /api/classify", handleClassify)

	// 元数据
	mux.HandleFunc("GET /api/labels", handleLabels)
	mux.HandleFunc("GET /api/schema", handleSchema)
	mux.HandleFunc("GET /api/model", handleModel)

	// 历史记录
	mux.HandleFunc("GET /api/history", handleHistory)
	mux.HandleFunc("GET /api/history/summary", handleHistorySummary)
}

// predictRequest carries either named features or a raw 12-value vector.
type predictRequest struct {
	Features json.RawMessage `json:"features,omitempty"`
	Vector   []float64       `json:"vector,omitempty"`
}

func (req predictRequest) vector() (flow.Vector, error) {
	switch {
	case req.Vector != nil && req.Features != nil:
		return flow.Vector{}, fmt.Errorf("%w: send either features or vector, not both", flow.ErrInvalidFeature)
	case req.Vector != nil:
		return flow.VectorFromSlice(req.Vector)
	case req.Features != nil:
		in := flow.DefaultInput()
		dec := json.NewDecoder(bytes.NewReader(req.Features))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&in); err != nil {
			return flow.Vector{}, fmt.Errorf("%w: %v", flow.ErrInvalidFeature, err)
		}
		f, err := in.Features()
		if err != nil {
			return flow.Vector{}, err
		}
		return flow.BuildVector(f), nil
	default:
		return flow.Vector{}, fmt.Errorf("%w: features or vector is required", flow.ErrSchemaMismatch)
	}
}

func handleDetect(w http.ResponseWriter, r *http.Request) {
	runPipeline(w, r, detection.StageDetect)
}

func handleClassify(w http.ResponseWriter, r *http.Request) {
	runPipeline(w, r, detection.StageClassify)
}

func runPipeline(w http.ResponseWriter, r *http.Request, stage string) {
	p := currentPipeline()
	if p == nil {
		writeError(w, http.StatusServiceUnavailable, ml.ErrModelNotLoaded)
		return
	}

	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	v, err := req.vector()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	var result detection.Result
	if stage == detection.StageDetect {
		result, err = p.Detect(r.Context(), v)
	} else {
		result, err = p.Classify(r.Context(), v)
	}
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			serverLogger().Error("prediction failed",
				zap.String("request_id", GetRequestID(r.Context())),
				zap.String("stage", stage),
				zap.Error(err))
		}
		writeError(w, status, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func handleLabels(w http.ResponseWriter, r *http.Request) {
	stateMu.RLock()
	fallback := policy
	stateMu.RUnlock()

	labels := make(map[string]string)
	for class, label := range flow.LabelMap() {
		labels[strconv.Itoa(class)] = label
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"labels":          labels,
		"fallback_policy": fallback.String(),
		"fallback_label":  flow.LabelOf(-1, fallback),
	})
}

func handleSchema(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"features":     flow.FeatureNames(),
		"n_features":   flow.NumFeatures,
		"psh_flag":     flow.YesNo.Keys(),
		"integer_only": []string{"protocol_type", "ack_count", "syn_count", "fin_count", "urg_count", "rst_count"},
	})
}

func handleModel(w http.ResponseWriter, r *http.Request) {
	p := currentPipeline()
	if p == nil {
		writeError(w, http.StatusServiceUnavailable, ml.ErrModelNotLoaded)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"mode":   p.Mode(),
		"models": p.Models(),
	})
}

func handleHistory(w http.ResponseWriter, r *http.Request) {
	if !db.Enabled() {
		writeError(w, http.StatusServiceUnavailable, errors.New("prediction history is disabled"))
		return
	}
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if l, err := strconv.Atoi(s); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}
	predictions, err := db.QueryPredictions(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"data":  predictions,
		"count": len(predictions),
	})
}

func handleHistorySummary(w http.ResponseWriter, r *http.Request) {
	if !db.Enabled() {
		writeError(w, http.StatusServiceUnavailable, errors.New("prediction history is disabled"))
		return
	}
	counts, err := db.CountByCategory()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"categories": counts})
}
