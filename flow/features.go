// Package flow maps user-entered network-flow fields onto the fixed feature
// schema the traffic models were trained against, and maps model class
// labels back to display strings.
package flow

import (
	"errors"
	"fmt"
	"math"
)

// NumFeatures is the length of every feature vector handed to a model.
const NumFeatures = 12

var (
	ErrInvalidFeature = errors.New("invalid feature value")
	ErrSchemaMismatch = errors.New("feature vector does not match schema")
)

// Features holds one network-flow sample in schema order.
type Features struct {
	FlowDuration float64 `json:"flow_duration"`
	HeaderLength float64 `json:"header_length"`
	ProtocolType int     `json:"protocol_type"`
	Rate         float64 `json:"rate"`
	PSHFlag      bool    `json:"psh_flag"`
	ACKCount     int     `json:"ack_count"`
	SYNCount     int     `json:"syn_count"`
	FINCount     int     `json:"fin_count"`
	URGCount     int     `json:"urg_count"`
	RSTCount     int     `json:"rst_count"`
	TotalSize    float64 `json:"tot_size"`
	IAT          float64 `json:"iat"`
}

// Vector is the model-facing encoding of Features. Order is fixed; see FeatureNames.
type Vector [NumFeatures]float64

// Slice returns a copy of the vector as a slice.
func (v Vector) Slice() []float64 {
	out := make([]float64, NumFeatures)
	copy(out, v[:])
	return out
}

// FeatureNames returns the schema column names in vector order.
func FeatureNames() []string {
	return []string{
		"flow_duration",
		"header_length",
		"protocol_type",
		"rate",
		"psh_flag_number",
		"ack_count",
		"syn_count",
		"fin_count",
		"urg_count",
		"rst_count",
		"tot_size",
		"iat",
	}
}

// BuildVector encodes f in schema order. The PSH flag is the only field that
// is transformed (Yes/No -> 1/0).
func BuildVector(f Features) Vector {
	psh := YesNo["No"]
	if f.PSHFlag {
		psh = YesNo["Yes"]
	}
	return Vector{
		f.FlowDuration,
		f.HeaderLength,
		float64(f.ProtocolType),
		f.Rate,
		float64(psh),
		float64(f.ACKCount),
		float64(f.SYNCount),
		float64(f.FINCount),
		float64(f.URGCount),
		float64(f.RSTCount),
		f.TotalSize,
		f.IAT,
	}
}

// VectorFromSlice accepts a raw vector, e.g. from the JSON API.
func VectorFromSlice(values []float64) (Vector, error) {
	var v Vector
	if len(values) != NumFeatures {
		return v, fmt.Errorf("%w: got %d values, want %d", ErrSchemaMismatch, len(values), NumFeatures)
	}
	for i, x := range values {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return v, fmt.Errorf("%w: %s is not finite", ErrInvalidFeature, FeatureNames()[i])
		}
	}
	copy(v[:], values)
	return v, nil
}

// Validate rejects negative counts and non-finite values. Zero is valid for
// every field.
func (f Features) Validate() error {
	counts := []struct {
		name  string
		value int
	}{
		{"protocol_type", f.ProtocolType},
		{"ack_count", f.ACKCount},
		{"syn_count", f.SYNCount},
		{"fin_count", f.FINCount},
		{"urg_count", f.URGCount},
		{"rst_count", f.RSTCount},
	}
	for _, c := range counts {
		if c.value < 0 {
			return fmt.Errorf("%w: %s must be >= 0, got %d", ErrInvalidFeature, c.name, c.value)
		}
	}

	floats := []struct {
		name  string
		value float64
	}{
		{"flow_duration", f.FlowDuration},
		{"header_length", f.HeaderLength},
		{"rate", f.Rate},
		{"tot_size", f.TotalSize},
		{"iat", f.IAT},
	}
	for _, c := range floats {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidFeature, c.name)
		}
	}
	return nil
}
