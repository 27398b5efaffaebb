package detection

import (
	"context"
	"fmt"
	"time"

	"iotdetect/flow"
	"iotdetect/ml"
)

// SingleStage uses one multi-class model whose class 0 is benign traffic.
type SingleStage struct {
	Classifier ml.Model
	Options
}

func NewSingleStage(classifier ml.Model, opts Options) *SingleStage {
	return &SingleStage{Classifier: classifier, Options: opts}
}

func (p *SingleStage) Mode() string { return ModeSingleStage }

func (p *SingleStage) Models() []ml.Info {
	return []ml.Info{modelInfo("classifier", p.Classifier)}
}

func (p *SingleStage) Detect(ctx context.Context, v flow.Vector) (Result, error) {
	return p.run(ctx, StageDetect, v)
}

func (p *SingleStage) Classify(ctx context.Context, v flow.Vector) (Result, error) {
	return p.run(ctx, StageClassify, v)
}

func (p *SingleStage) run(ctx context.Context, stage string, v flow.Vector) (Result, error) {
	start := time.Now()
	result := newResult(ModeSingleStage, stage, v)
	class, confidence, err := predict(ctx, p.Classifier, v)
	if err != nil {
		return Result{}, fmt.Errorf("classifier: %w", err)
	}
	result.setDetected(isAttack(class, p.Policy))
	if stage == StageClassify {
		result.setClass(class, confidence, p.Policy, p.logger())
	} else {
		result.Confidence = confidence
	}
	result.ModelVersion = modelVersion(p.Classifier)
	result.Latency = time.Since(start)
	return result, nil
}
