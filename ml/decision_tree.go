package ml

import (
	"errors"
	"fmt"

	"iotdetect/flow"
)

// DecisionTree is a trained tree stored as a flat node array; node 0 is the root.
type DecisionTree struct {
	nodes     []TreeNode
	nFeatures int
}

type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	ClassLabel int     `json:"class_label"`
	IsLeaf     bool    `json:"is_leaf"`
	Confidence float64 `json:"confidence,omitempty"`
}

func NewDecisionTree(nodes []TreeNode, nFeatures int) (*DecisionTree, error) {
	if err := validateNodes(nodes, nFeatures); err != nil {
		return nil, err
	}
	return &DecisionTree{nodes: nodes, nFeatures: nFeatures}, nil
}

func (dt *DecisionTree) Predict(features []float64) (int, float64, error) {
	if len(dt.nodes) == 0 {
		return 0, 0, ErrModelNotLoaded
	}
	if len(features) != dt.nFeatures {
		return 0, 0, fmt.Errorf("%w: got %d features, model expects %d", flow.ErrSchemaMismatch, len(features), dt.nFeatures)
	}
	idx := 0
	// validateNodes only allows forward edges, so this terminates.
	for {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return node.ClassLabel, leafConfidence(node), nil
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
	}
}

func validateNodes(nodes []TreeNode, nFeatures int) error {
	if len(nodes) == 0 {
		return errors.New("tree has no nodes")
	}
	for i, node := range nodes {
		if node.IsLeaf {
			continue
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= nFeatures {
			return fmt.Errorf("node %d: feature index %d out of range", i, node.FeatureIdx)
		}
		for _, child := range []int{node.LeftChild, node.RightChild} {
			if child <= i || child >= len(nodes) {
				return fmt.Errorf("node %d: invalid child %d", i, child)
			}
		}
	}
	return nil
}

func leafConfidence(node TreeNode) float64 {
	if node.Confidence <= 0 || node.Confidence > 1 {
		return 1
	}
	return node.Confidence
}
