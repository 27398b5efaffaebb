package ml

import (
	"errors"
	"time"
)

var (
	ErrArtifactLoad   = errors.New("model artifact load failed")
	ErrModelNotLoaded = errors.New("model not loaded")
)

// Model is an opaque trained classifier. Predict returns the class label and
// a confidence in [0, 1].
type Model interface {
	Predict(features []float64) (int, float64, error)
}

// Info describes a loaded artifact.
type Info struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Format    string    `json:"format"`
	Version   string    `json:"version"`
	NFeatures int       `json:"n_features"`
	Classes   []int     `json:"classes,omitempty"`
	LoadedAt  time.Time `json:"loaded_at"`
}

// Describer is implemented by models that know where they came from.
type Describer interface {
	Info() Info
}
