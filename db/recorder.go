package db

import (
	"go.uber.org/zap"

	"iotdetect/detection"
)

// Recorder persists pipeline results as they happen.
type Recorder struct {
	logger *zap.Logger
}

func NewRecorder(logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{logger: logger}
}

func (r *Recorder) Observe(result detection.Result) {
	_, err := SavePrediction(Prediction{
		Mode:           result.Mode,
		Stage:          result.Stage,
		Vector:         result.Vector.Slice(),
		AttackDetected: result.AttackDetected,
		Classified:     result.Classified,
		Class:          result.Class,
		Category:       result.Category,
		Label:          result.Label,
		Confidence:     result.Confidence,
		ModelVersion:   result.ModelVersion,
		CreatedAt:      result.Timestamp,
	})
	if err != nil {
		r.logger.Warn("failed to save prediction", zap.Error(err))
	}
}

func (r *Recorder) ObserveError(mode, stage string, err error) {}
