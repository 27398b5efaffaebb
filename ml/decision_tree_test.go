package ml

import (
	"errors"
	"testing"

	"iotdetect/flow"
)

// synFloodTree sends syn_count > 50 to DDoS and everything else to benign.
func synFloodTree() []TreeNode {
	return []TreeNode{
		{FeatureIdx: 6, Threshold: 50, LeftChild: 1, RightChild: 2},
		{FeatureIdx: -1, LeftChild: -1, RightChild: -1, ClassLabel: 0, IsLeaf: true, Confidence: 0.9},
		{FeatureIdx: -1, LeftChild: -1, RightChild: -1, ClassLabel: 2, IsLeaf: true},
	}
}

func TestDecisionTreePredict(t *testing.T) {
	model, err := NewDecisionTree(synFloodTree(), flow.NumFeatures)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	label, confidence, err := model.Predict(make([]float64, flow.NumFeatures))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 0 || confidence != 0.9 {
		t.Fatalf("expected benign with 0.9, got %d %v", label, confidence)
	}

	v := flow.BuildVector(flow.Features{SYNCount: 500, Rate: 9000})
	label, confidence, err = model.Predict(v.Slice())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 2 || confidence != 1 {
		t.Fatalf("expected DDoS with 1.0, got %d %v", label, confidence)
	}
}

func TestDecisionTreeSchemaMismatch(t *testing.T) {
	model, err := NewDecisionTree(synFloodTree(), flow.NumFeatures)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := model.Predict([]float64{1, 2, 3}); !errors.Is(err, flow.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestDecisionTreeRejectsBadNodes(t *testing.T) {
	cases := map[string][]TreeNode{
		"empty":          nil,
		"feature range":  {{FeatureIdx: 12, LeftChild: 1, RightChild: 2}, {IsLeaf: true}, {IsLeaf: true}},
		"child range":    {{FeatureIdx: 0, LeftChild: 1, RightChild: 5}, {IsLeaf: true}},
		"backward child": {{FeatureIdx: 0, LeftChild: 0, RightChild: 1}, {IsLeaf: true}},
	}
	for name, nodes := range cases {
		if _, err := NewDecisionTree(nodes, flow.NumFeatures); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestRandomForestVote(t *testing.T) {
	alwaysDoS := []TreeNode{{IsLeaf: true, ClassLabel: 3}}
	forest, err := NewRandomForest([][]TreeNode{synFloodTree(), alwaysDoS, synFloodTree()}, flow.NumFeatures)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v := flow.BuildVector(flow.Features{SYNCount: 500})
	label, confidence, err := forest.Predict(v.Slice())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 2 {
		t.Fatalf("expected majority label 2, got %d", label)
	}
	if confidence < 0.66 || confidence > 0.67 {
		t.Fatalf("expected vote share 2/3, got %v", confidence)
	}
}

func TestRandomForestTieBreak(t *testing.T) {
	forest, err := NewRandomForest([][]TreeNode{
		{{IsLeaf: true, ClassLabel: 5}},
		{{IsLeaf: true, ClassLabel: 4}},
	}, flow.NumFeatures)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		label, _, err := forest.Predict(make([]float64, flow.NumFeatures))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if label != 4 {
			t.Fatalf("expected lowest label on tie, got %d", label)
		}
	}
}
