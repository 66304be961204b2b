package ml

import (
	"errors"
	"fmt"
)

// DecisionTree is a flattened binary tree artifact. It only exposes
// hard labels, no probability output, which exercises the raw-decision
// fallback in the batch predictor.
type DecisionTree struct {
	Nodes []TreeNode `json:"nodes"`
}

type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	ClassLabel int     `json:"class_label"`
	IsLeaf     bool    `json:"is_leaf"`
}

func (t *DecisionTree) validate() error {
	if len(t.Nodes) == 0 {
		return errors.New("decision tree has no nodes")
	}
	return nil
}

// Predict walks the tree for every row and returns the leaf label.
func (t *DecisionTree) Predict(features [][]float64) ([]float64, error) {
	labels := make([]float64, len(features))
	for i, row := range features {
		label, err := t.predictRow(row)
		if err != nil {
			return nil, err
		}
		labels[i] = float64(label)
	}
	return labels, nil
}

func (t *DecisionTree) predictRow(row []float64) (int, error) {
	idx := 0
	for {
		node := t.Nodes[idx]
		if node.IsLeaf {
			return node.ClassLabel, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(row) {
			return 0, fmt.Errorf("feature index %d out of range", node.FeatureIdx)
		}
		if row[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(t.Nodes) {
			return 0, errors.New("invalid tree state")
		}
	}
}
