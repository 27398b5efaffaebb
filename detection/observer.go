package detection

import (
	"context"

	"iotdetect/flow"
)

// Observer is notified of every pipeline outcome.
type Observer interface {
	Observe(Result)
	ObserveError(mode, stage string, err error)
}

type observed struct {
	Pipeline
	observers []Observer
}

// WithObservers wraps p so each call is reported to observers.
func WithObservers(p Pipeline, observers ...Observer) Pipeline {
	if len(observers) == 0 {
		return p
	}
	return &observed{Pipeline: p, observers: observers}
}

func (o *observed) Detect(ctx context.Context, v flow.Vector) (Result, error) {
	result, err := o.Pipeline.Detect(ctx, v)
	o.notify(StageDetect, result, err)
	return result, err
}

func (o *observed) Classify(ctx context.Context, v flow.Vector) (Result, error) {
	result, err := o.Pipeline.Classify(ctx, v)
	o.notify(StageClassify, result, err)
	return result, err
}

func (o *observed) notify(stage string, result Result, err error) {
	for _, obs := range o.observers {
		if err != nil {
			obs.ObserveError(o.Mode(), stage, err)
			continue
		}
		obs.Observe(result)
	}
}
