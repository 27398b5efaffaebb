package flow

import (
	"fmt"
	"strings"
)

// Category is a class label in the multi-class model's output space.
type Category int

const (
	Benign Category = iota
	BruteForce
	DDoS
	DoS
	Mirai
	Recon
	Spoofing
	WebBased
)

const (
	BenignLabel  = "Traffic is benign ✅"
	UnknownLabel = "Unknown Traffic Type"

	DetectedBanner    = "Cyberattack Detected! 🔴"
	NotDetectedBanner = "No Cyberattack Detected. 🟢"
)

var categoryNames = map[Category]string{
	Benign:     "Benign",
	BruteForce: "BruteForce",
	DDoS:       "DDoS",
	DoS:        "DoS",
	Mirai:      "Mirai",
	Recon:      "Recon",
	Spoofing:   "Spoofing",
	WebBased:   "Web-Based",
}

// Name returns the short family name, or "Unknown" for unmapped labels.
func (c Category) Name() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "Unknown"
}

// Known reports whether c is in the label map.
func (c Category) Known() bool {
	_, ok := categoryNames[c]
	return ok
}

// FallbackPolicy decides what an unmapped class label is displayed as.
type FallbackPolicy int

const (
	// FallbackUnknown surfaces unmapped labels as UnknownLabel.
	FallbackUnknown FallbackPolicy = iota
	// FallbackBenign displays unmapped labels as benign traffic. It can hide a
	// real attack class.
	FallbackBenign
)

func (p FallbackPolicy) String() string {
	switch p {
	case FallbackBenign:
		return "benign"
	default:
		return "unknown"
	}
}

// ParseFallbackPolicy parses "unknown" or "benign". Empty means unknown.
func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unknown":
		return FallbackUnknown, nil
	case "benign":
		return FallbackBenign, nil
	default:
		return FallbackUnknown, fmt.Errorf("unknown fallback policy %q", s)
	}
}

// LabelOf maps a model class label to its display string.
func LabelOf(class int, policy FallbackPolicy) string {
	c := Category(class)
	switch {
	case c == Benign:
		return BenignLabel
	case c.Known():
		return "Cyber-Attack: " + c.Name() + " ❌"
	case policy == FallbackBenign:
		return BenignLabel
	default:
		return UnknownLabel
	}
}

// LabelMap returns every mapped class with its display string.
func LabelMap() map[int]string {
	m := make(map[int]string, len(categoryNames))
	for c := range categoryNames {
		m[int(c)] = LabelOf(int(c), FallbackUnknown)
	}
	return m
}
