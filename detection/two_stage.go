package detection

import (
	"context"
	"fmt"
	"time"

	"iotdetect/flow"
	"iotdetect/ml"
)

// TwoStage gates on a binary detector (1 attack, 0 benign) and only asks the
// multi-class classifier which attack it is once the gate has fired.
type TwoStage struct {
	Detector   ml.Model
	Classifier ml.Model
	Options
}

func NewTwoStage(detector, classifier ml.Model, opts Options) *TwoStage {
	return &TwoStage{Detector: detector, Classifier: classifier, Options: opts}
}

func (p *TwoStage) Mode() string { return ModeTwoStage }

func (p *TwoStage) Models() []ml.Info {
	return []ml.Info{modelInfo("detector", p.Detector), modelInfo("classifier", p.Classifier)}
}

func (p *TwoStage) Detect(ctx context.Context, v flow.Vector) (Result, error) {
	start := time.Now()
	result := newResult(ModeTwoStage, StageDetect, v)
	if err := p.detect(ctx, v, &result); err != nil {
		return Result{}, err
	}
	result.Latency = time.Since(start)
	return result, nil
}

func (p *TwoStage) Classify(ctx context.Context, v flow.Vector) (Result, error) {
	start := time.Now()
	result := newResult(ModeTwoStage, StageClassify, v)
	if err := p.detect(ctx, v, &result); err != nil {
		return Result{}, err
	}
	if result.AttackDetected {
		class, confidence, err := predict(ctx, p.Classifier, v)
		if err != nil {
			return Result{}, fmt.Errorf("classifier: %w", err)
		}
		result.setClass(class, confidence, p.Policy, p.logger())
		result.ModelVersion = modelVersion(p.Classifier)
	}
	result.Latency = time.Since(start)
	return result, nil
}

func (p *TwoStage) detect(ctx context.Context, v flow.Vector, result *Result) error {
	label, confidence, err := predict(ctx, p.Detector, v)
	if err != nil {
		return fmt.Errorf("detector: %w", err)
	}
	switch label {
	case 0, 1:
		result.setDetected(label == 1)
	default:
		return fmt.Errorf("%w: detector returned %d", ErrUnexpectedOutput, label)
	}
	result.Confidence = confidence
	result.ModelVersion = modelVersion(p.Detector)
	return nil
}
