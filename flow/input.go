package flow

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Input is a flow sample as a user enters it: the PSH flag is still the
// selector text rather than a bool.
type Input struct {
	FlowDuration float64 `json:"flow_duration"`
	HeaderLength float64 `json:"header_length"`
	ProtocolType int     `json:"protocol_type"`
	Rate         float64 `json:"rate"`
	PSHFlag      string  `json:"psh_flag"`
	ACKCount     int     `json:"ack_count"`
	SYNCount     int     `json:"syn_count"`
	FINCount     int     `json:"fin_count"`
	URGCount     int     `json:"urg_count"`
	RSTCount     int     `json:"rst_count"`
	TotalSize    float64 `json:"tot_size"`
	IAT          float64 `json:"iat"`
}

// DefaultInput is the untouched form: every number 0 and PSH "No".
func DefaultInput() Input {
	return Input{PSHFlag: "No"}
}

// Features encodes the selector and validates the result.
func (in Input) Features() (Features, error) {
	psh, err := EncodeSelection(in.PSHFlag, YesNo)
	if err != nil {
		return Features{}, err
	}
	f := Features{
		FlowDuration: in.FlowDuration,
		HeaderLength: in.HeaderLength,
		ProtocolType: in.ProtocolType,
		Rate:         in.Rate,
		PSHFlag:      psh == 1,
		ACKCount:     in.ACKCount,
		SYNCount:     in.SYNCount,
		FINCount:     in.FINCount,
		URGCount:     in.URGCount,
		RSTCount:     in.RSTCount,
		TotalSize:    in.TotalSize,
		IAT:          in.IAT,
	}
	if err := f.Validate(); err != nil {
		return Features{}, err
	}
	return f, nil
}

// ParseInput decodes the detection form. Blank numeric fields are 0 and a
// missing PSH selection is "No", matching the form defaults. The returned
// Input is filled as far as parsing got, so the form can be re-rendered.
func ParseInput(values url.Values) (Input, error) {
	in := DefaultInput()
	if v := strings.TrimSpace(values.Get("psh_flag")); v != "" {
		in.PSHFlag = v
	}

	floats := []struct {
		name string
		dst  *float64
	}{
		{"flow_duration", &in.FlowDuration},
		{"header_length", &in.HeaderLength},
		{"rate", &in.Rate},
		{"tot_size", &in.TotalSize},
		{"iat", &in.IAT},
	}
	for _, f := range floats {
		v, err := parseFloatField(values, f.name)
		if err != nil {
			return in, err
		}
		*f.dst = v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"protocol_type", &in.ProtocolType},
		{"ack_count", &in.ACKCount},
		{"syn_count", &in.SYNCount},
		{"fin_count", &in.FINCount},
		{"urg_count", &in.URGCount},
		{"rst_count", &in.RSTCount},
	}
	for _, f := range ints {
		v, err := parseIntField(values, f.name)
		if err != nil {
			return in, err
		}
		*f.dst = v
	}
	return in, nil
}

func parseFloatField(values url.Values, name string) (float64, error) {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %q is not a number", ErrInvalidFeature, name, raw)
	}
	return v, nil
}

// parseIntField accepts integral floats ("3.0") since number inputs may
// submit them that way.
func parseIntField(values url.Values, name string) (int, error) {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return 0, nil
	}
	if v, err := strconv.Atoi(raw); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s: %q is not a whole number", ErrInvalidFeature, name, raw)
	}
	return int(f), nil
}
