package ml

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/goccy/go-json"
)

type DecisionTree struct {
	maxDepth   int
	inputDim   int
	numClasses int
	nodes      []TreeNode
}

type TreeNode struct {
	FeatureIdx int       `json:"feature_idx"`
	Threshold  float64   `json:"threshold"`
	LeftChild  int       `json:"left_child"`
	RightChild int       `json:"right_child"`
	Probs      []float64 `json:"probs,omitempty"`
	IsLeaf     bool      `json:"is_leaf"`
}

type treeFile struct {
	Type       string     `json:"type"`
	MaxDepth   int        `json:"max_depth"`
	InputDim   int        `json:"input_dim"`
	NumClasses int        `json:"num_classes"`
	Nodes      []TreeNode `json:"nodes"`
}

func NewDecisionTree(maxDepth, numClasses int) *DecisionTree {
	if maxDepth <= 0 {
		maxDepth = 10
	}
	return &DecisionTree{maxDepth: maxDepth, numClasses: numClasses}
}

func (dt *DecisionTree) Name() string    { return ModelTypeDecisionTree }
func (dt *DecisionTree) InputDim() int   { return dt.inputDim }
func (dt *DecisionTree) NumClasses() int { return dt.numClasses }

func (dt *DecisionTree) Train(features [][]float64, labels []int) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	if dt.numClasses <= 0 {
		return errors.New("number of classes must be positive")
	}
	for _, label := range labels {
		if label < 0 || label >= dt.numClasses {
			return fmt.Errorf("label %d outside [0,%d)", label, dt.numClasses)
		}
	}

	dt.inputDim = len(features[0])
	dt.nodes = dt.buildNode(features, labels, 0)
	return nil
}

func (dt *DecisionTree) PredictProba(features []float64) ([]float64, error) {
	if len(dt.nodes) == 0 {
		return nil, errors.New("model not trained")
	}
	if len(features) != dt.inputDim {
		return nil, mismatch("classifier", "tree expects %d features, got %d", dt.inputDim, len(features))
	}
	idx := 0
	for {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return append([]float64(nil), node.Probs...), nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return nil, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.nodes) {
			return nil, errors.New("invalid tree state")
		}
	}
}

func (dt *DecisionTree) Save(path string) error {
	if len(dt.nodes) == 0 {
		return errors.New("model not trained")
	}
	payload, err := json.Marshal(treeFile{
		Type:       ModelTypeDecisionTree,
		MaxDepth:   dt.maxDepth,
		InputDim:   dt.inputDim,
		NumClasses: dt.numClasses,
		Nodes:      dt.nodes,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

func (dt *DecisionTree) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var file treeFile
	if err := json.Unmarshal(payload, &file); err != nil {
		return err
	}
	if file.Type != ModelTypeDecisionTree {
		return mismatch("classifier", "model file holds %q, expected %q", file.Type, ModelTypeDecisionTree)
	}
	if len(file.Nodes) == 0 {
		return mismatch("classifier", "decision tree has no nodes")
	}
	for i, node := range file.Nodes {
		if node.IsLeaf && len(node.Probs) != file.NumClasses {
			return mismatch("classifier", "leaf %d has %d probabilities, expected %d", i, len(node.Probs), file.NumClasses)
		}
	}
	dt.maxDepth = file.MaxDepth
	dt.inputDim = file.InputDim
	dt.numClasses = file.NumClasses
	dt.nodes = file.Nodes
	return nil
}

func (dt *DecisionTree) leaf(labels []int) []TreeNode {
	return []TreeNode{{
		FeatureIdx: -1,
		LeftChild:  -1,
		RightChild: -1,
		Probs:      classDistribution(labels, dt.numClasses),
		IsLeaf:     true,
	}}
}

func (dt *DecisionTree) buildNode(features [][]float64, labels []int, depth int) []TreeNode {
	if depth >= dt.maxDepth || isPure(labels) {
		return dt.leaf(labels)
	}

	bestFeature, threshold, ok := findBestSplit(features, labels)
	if !ok {
		return dt.leaf(labels)
	}

	leftFeatures, leftLabels, rightFeatures, rightLabels := splitData(features, labels, bestFeature, threshold)
	if len(leftLabels) == 0 || len(rightLabels) == 0 {
		return dt.leaf(labels)
	}

	leftNodes := dt.buildNode(leftFeatures, leftLabels, depth+1)
	rightNodes := dt.buildNode(rightFeatures, rightLabels, depth+1)

	root := TreeNode{
		FeatureIdx: bestFeature,
		Threshold:  threshold,
		LeftChild:  1,
		RightChild: 1 + len(leftNodes),
	}

	nodes := make([]TreeNode, 0, 1+len(leftNodes)+len(rightNodes))
	nodes = append(nodes, root)
	nodes = append(nodes, offsetChildren(leftNodes, 1)...)
	nodes = append(nodes, offsetChildren(rightNodes, 1+len(leftNodes))...)
	return nodes
}

// offsetChildren rebases child indices of a subtree placed at offset.
func offsetChildren(nodes []TreeNode, offset int) []TreeNode {
	for i := range nodes {
		if nodes[i].IsLeaf {
			continue
		}
		nodes[i].LeftChild += offset
		nodes[i].RightChild += offset
	}
	return nodes
}

func findBestSplit(features [][]float64, labels []int) (int, float64, bool) {
	featureCount := len(features[0])
	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := math.MaxFloat64

	for featureIdx := 0; featureIdx < featureCount; featureIdx++ {
		values := make([]float64, len(features))
		for i := range features {
			values[i] = features[i][featureIdx]
		}
		threshold := median(values)
		leftLabels, rightLabels := splitLabels(features, labels, featureIdx, threshold)
		if len(leftLabels) == 0 || len(rightLabels) == 0 {
			continue
		}
		impurity := weightedGini(leftLabels, rightLabels)
		if impurity < bestImpurity {
			bestImpurity = impurity
			bestFeature = featureIdx
			bestThreshold = threshold
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func splitData(features [][]float64, labels []int, featureIdx int, threshold float64) ([][]float64, []int, [][]float64, []int) {
	leftFeatures := make([][]float64, 0)
	leftLabels := make([]int, 0)
	rightFeatures := make([][]float64, 0)
	rightLabels := make([]int, 0)
	for i, feature := range features {
		if feature[featureIdx] <= threshold {
			leftFeatures = append(leftFeatures, feature)
			leftLabels = append(leftLabels, labels[i])
		} else {
			rightFeatures = append(rightFeatures, feature)
			rightLabels = append(rightLabels, labels[i])
		}
	}
	return leftFeatures, leftLabels, rightFeatures, rightLabels
}

func splitLabels(features [][]float64, labels []int, featureIdx int, threshold float64) ([]int, []int) {
	leftLabels := make([]int, 0)
	rightLabels := make([]int, 0)
	for i, feature := range features {
		if feature[featureIdx] <= threshold {
			leftLabels = append(leftLabels, labels[i])
		} else {
			rightLabels = append(rightLabels, labels[i])
		}
	}
	return leftLabels, rightLabels
}

func weightedGini(leftLabels, rightLabels []int) float64 {
	leftWeight := float64(len(leftLabels))
	rightWeight := float64(len(rightLabels))
	total := leftWeight + rightWeight
	return (leftWeight/total)*gini(leftLabels) + (rightWeight/total)*gini(rightLabels)
}

func gini(labels []int) float64 {
	if len(labels) == 0 {
		return 0
	}
	counts := make(map[int]int)
	for _, label := range labels {
		counts[label]++
	}
	impurity := 1.0
	for _, count := range counts {
		prob := float64(count) / float64(len(labels))
		impurity -= prob * prob
	}
	return impurity
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func classDistribution(labels []int, numClasses int) []float64 {
	probs := make([]float64, numClasses)
	if len(labels) == 0 {
		return probs
	}
	for _, label := range labels {
		probs[label]++
	}
	for i := range probs {
		probs[i] /= float64(len(labels))
	}
	return probs
}

func isPure(labels []int) bool {
	if len(labels) == 0 {
		return true
	}
	first := labels[0]
	for _, label := range labels[1:] {
		if label != first {
			return false
		}
	}
	return true
}
