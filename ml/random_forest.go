package ml

import (
	"errors"
	"fmt"
)

// RandomForest predicts by majority vote over its trees. Ties go to the
// lowest class label so repeated calls agree.
type RandomForest struct {
	trees []*DecisionTree
}

func NewRandomForest(trees [][]TreeNode, nFeatures int) (*RandomForest, error) {
	if len(trees) == 0 {
		return nil, errors.New("forest has no trees")
	}
	forest := &RandomForest{trees: make([]*DecisionTree, 0, len(trees))}
	for i, nodes := range trees {
		tree, err := NewDecisionTree(nodes, nFeatures)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		forest.trees = append(forest.trees, tree)
	}
	return forest, nil
}

func (rf *RandomForest) Predict(features []float64) (int, float64, error) {
	if len(rf.trees) == 0 {
		return 0, 0, ErrModelNotLoaded
	}
	votes := make(map[int]int)
	for _, tree := range rf.trees {
		label, _, err := tree.Predict(features)
		if err != nil {
			return 0, 0, err
		}
		votes[label]++
	}

	best, bestVotes := 0, -1
	for label, n := range votes {
		if n > bestVotes || (n == bestVotes && label < best) {
			best, bestVotes = label, n
		}
	}
	return best, float64(bestVotes) / float64(len(rf.trees)), nil
}
