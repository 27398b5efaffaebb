// Package detection runs feature vectors through the traffic models and turns
// their outputs into detection and classification results.
package detection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"iotdetect/flow"
	"iotdetect/ml"
)

var ErrUnexpectedOutput = errors.New("unexpected model output")

const (
	StageDetect   = "detect"
	StageClassify = "classify"

	ModeTwoStage    = "two_stage"
	ModeSingleStage = "single_stage"
)

// Result is the outcome of one pipeline call.
type Result struct {
	Mode           string        `json:"mode"`
	Stage          string        `json:"stage"`
	Vector         flow.Vector   `json:"vector"`
	AttackDetected bool          `json:"attack_detected"`
	Banner         string        `json:"banner"`
	Classified     bool          `json:"classified"`
	Class          int           `json:"class"`
	Category       string        `json:"category,omitempty"`
	Label          string        `json:"label,omitempty"`
	Confidence     float64       `json:"confidence"`
	ModelVersion   string        `json:"model_version,omitempty"`
	Latency        time.Duration `json:"latency_ns"`
	Timestamp      time.Time     `json:"timestamp"`
}

// Pipeline detects and classifies attacks in a single flow sample.
type Pipeline interface {
	// Detect answers attack or benign.
	Detect(ctx context.Context, v flow.Vector) (Result, error)
	// Classify names the attack family. Results with Classified false carry
	// no category.
	Classify(ctx context.Context, v flow.Vector) (Result, error)
	Mode() string
	// Models describes the artifacts behind the pipeline.
	Models() []ml.Info
}

// Options are shared by both pipeline variants.
type Options struct {
	Policy flow.FallbackPolicy
	Logger *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func newResult(mode, stage string, v flow.Vector) Result {
	return Result{Mode: mode, Stage: stage, Vector: v, Timestamp: time.Now()}
}

// setDetected fills the detection banner.
func (r *Result) setDetected(attack bool) {
	r.AttackDetected = attack
	if attack {
		r.Banner = flow.DetectedBanner
	} else {
		r.Banner = flow.NotDetectedBanner
	}
}

// setClass maps a multi-class output through the label map.
func (r *Result) setClass(class int, confidence float64, policy flow.FallbackPolicy, logger *zap.Logger) {
	r.Classified = true
	r.Class = class
	r.Confidence = confidence
	r.Category = flow.Category(class).Name()
	r.Label = flow.LabelOf(class, policy)
	if !flow.Category(class).Known() {
		logger.Warn("classifier returned unmapped class",
			zap.Int("class", class),
			zap.String("fallback", policy.String()),
			zap.String("label", r.Label))
	}
}

// isAttack treats unmapped classes as attacks unless the policy says to
// display them as benign.
func isAttack(class int, policy flow.FallbackPolicy) bool {
	c := flow.Category(class)
	switch {
	case c == flow.Benign:
		return false
	case c.Known():
		return true
	default:
		return policy == flow.FallbackUnknown
	}
}

func modelVersion(m ml.Model) string {
	if d, ok := m.(ml.Describer); ok {
		return d.Info().Version
	}
	return ""
}

func modelInfo(name string, m ml.Model) ml.Info {
	if d, ok := m.(ml.Describer); ok {
		return d.Info()
	}
	return ml.Info{Name: name}
}

func predict(ctx context.Context, m ml.Model, v flow.Vector) (int, float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	if m == nil {
		return 0, 0, ml.ErrModelNotLoaded
	}
	label, confidence, err := m.Predict(v.Slice())
	if err != nil {
		return 0, 0, fmt.Errorf("predict: %w", err)
	}
	return label, confidence, nil
}
