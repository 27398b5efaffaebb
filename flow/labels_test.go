package flow

import "testing"

func TestLabelOfMapped(t *testing.T) {
	want := map[int]string{
		0: "Traffic is benign ✅",
		1: "Cyber-Attack: BruteForce ❌",
		2: "Cyber-Attack: DDoS ❌",
		3: "Cyber-Attack: DoS ❌",
		4: "Cyber-Attack: Mirai ❌",
		5: "Cyber-Attack: Recon ❌",
		6: "Cyber-Attack: Spoofing ❌",
		7: "Cyber-Attack: Web-Based ❌",
	}
	for class, label := range want {
		for _, policy := range []FallbackPolicy{FallbackUnknown, FallbackBenign} {
			if got := LabelOf(class, policy); got != label {
				t.Fatalf("class %d (%s): expected %q, got %q", class, policy, label, got)
			}
		}
	}
	if len(LabelMap()) != len(want) {
		t.Fatalf("expected %d entries in label map, got %d", len(want), len(LabelMap()))
	}
}

func TestLabelOfUnmapped(t *testing.T) {
	for _, class := range []int{-1, 8, 42} {
		if got := LabelOf(class, FallbackUnknown); got != UnknownLabel {
			t.Fatalf("class %d: expected %q, got %q", class, UnknownLabel, got)
		}
		if got := LabelOf(class, FallbackBenign); got != BenignLabel {
			t.Fatalf("class %d: expected %q, got %q", class, BenignLabel, got)
		}
	}
}

func TestParseFallbackPolicy(t *testing.T) {
	cases := map[string]FallbackPolicy{
		"":        FallbackUnknown,
		"unknown": FallbackUnknown,
		"Benign":  FallbackBenign,
	}
	for in, want := range cases {
		got, err := ParseFallbackPolicy(in)
		if err != nil || got != want {
			t.Fatalf("%q: expected %v, got %v (%v)", in, want, got, err)
		}
	}
	if _, err := ParseFallbackPolicy("drop"); err == nil {
		t.Fatal("expected error for unsupported policy")
	}
}

func TestCategoryName(t *testing.T) {
	if WebBased.Name() != "Web-Based" {
		t.Fatalf("unexpected name: %s", WebBased.Name())
	}
	if Category(9).Name() != "Unknown" {
		t.Fatalf("unexpected name: %s", Category(9).Name())
	}
}
