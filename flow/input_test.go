package flow

import (
	"errors"
	"net/url"
	"testing"
)

func TestParseInputDefaults(t *testing.T) {
	in, err := ParseInput(url.Values{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in != DefaultInput() {
		t.Fatalf("expected defaults, got %+v", in)
	}
	f, err := in.Features()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.PSHFlag {
		t.Fatal("expected PSH flag unset")
	}
}

func TestParseInputValues(t *testing.T) {
	values := url.Values{
		"flow_duration": {"0.25"},
		"protocol_type": {"6"},
		"rate":          {"1200.5"},
		"psh_flag":      {"Yes"},
		"syn_count":     {"3.0"},
		"iat":           {"83"},
	}
	in, err := ParseInput(values)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, err := in.Features()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.FlowDuration != 0.25 || f.ProtocolType != 6 || f.Rate != 1200.5 || f.SYNCount != 3 || f.IAT != 83 {
		t.Fatalf("unexpected features: %+v", f)
	}
	if !f.PSHFlag {
		t.Fatal("expected PSH flag set")
	}
}

func TestParseInputRejectsGarbage(t *testing.T) {
	if _, err := ParseInput(url.Values{"rate": {"fast"}}); !errors.Is(err, ErrInvalidFeature) {
		t.Fatalf("expected ErrInvalidFeature, got %v", err)
	}
	if _, err := ParseInput(url.Values{"ack_count": {"1.5"}}); !errors.Is(err, ErrInvalidFeature) {
		t.Fatalf("expected ErrInvalidFeature, got %v", err)
	}
}

func TestInputFeaturesRejectsSelection(t *testing.T) {
	in := DefaultInput()
	in.PSHFlag = "Sometimes"
	if _, err := in.Features(); !errors.Is(err, ErrInvalidSelection) {
		t.Fatalf("expected ErrInvalidSelection, got %v", err)
	}
}

func TestInputFeaturesRejectsNegative(t *testing.T) {
	in := DefaultInput()
	in.RSTCount = -2
	if _, err := in.Features(); !errors.Is(err, ErrInvalidFeature) {
		t.Fatalf("expected ErrInvalidFeature, got %v", err)
	}
}
