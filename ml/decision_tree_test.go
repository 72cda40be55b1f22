package ml

import (
	"path/filepath"
	"testing"
)

func TestDecisionTreeTrainPredict(t *testing.T) {
	features := [][]float64{
		{0.1, 0.2},
		{0.2, 0.1},
		{0.9, 0.8},
		{0.8, 0.9},
	}
	labels := []int{0, 0, 2, 2}

	model := NewDecisionTree(4, 3)
	if err := model.Train(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	probs, err := model.PredictProba([]float64{0.15, 0.15})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(probs) != 3 {
		t.Fatalf("expected 3 probabilities, got %d", len(probs))
	}
	label, ok := ArgMax(probs)
	if !ok || label != 0 {
		t.Fatalf("expected label 0, got %d", label)
	}
	if probs[label] <= 0 {
		t.Fatalf("expected confidence > 0")
	}
}

func TestDecisionTreeDeepSubtreesRouteCorrectly(t *testing.T) {
	features := [][]float64{{1}, {2}, {3}, {4}, {5}, {6}, {7}, {8}}
	labels := []int{0, 0, 1, 1, 2, 2, 3, 3}

	model := NewDecisionTree(5, 4)
	if err := model.Train(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, x := range features {
		probs, err := model.PredictProba(x)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got, _ := ArgMax(probs); got != labels[i] {
			t.Fatalf("x=%v: expected %d, got %d", x, labels[i], got)
		}
	}
}

func TestDecisionTreeSaveLoad(t *testing.T) {
	model := NewDecisionTree(3, 2)
	if err := model.Train([][]float64{{0}, {1}, {2}, {3}}, []int{0, 0, 1, 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "model.json")
	if err := model.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadModel(ModelTypeDecisionTree, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.InputDim() != 1 || loaded.NumClasses() != 2 {
		t.Fatalf("unexpected shape %d -> %d", loaded.InputDim(), loaded.NumClasses())
	}
	probs, err := loaded.PredictProba([]float64{3})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if got, _ := ArgMax(probs); got != 1 {
		t.Fatalf("expected class 1, got %d", got)
	}

	if _, err := LoadModel(ModelTypeMLP, path); Kind(err) != KindArtifactMismatch {
		t.Fatalf("expected artifact mismatch loading a tree as mlp, got %v", err)
	}
}

func TestDecisionTreeRejectsWrongDimension(t *testing.T) {
	model := NewDecisionTree(2, 2)
	if err := model.Train([][]float64{{0, 0}, {1, 1}}, []int{0, 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := model.PredictProba([]float64{1}); Kind(err) != KindArtifactMismatch {
		t.Fatalf("expected artifact mismatch, got %v", err)
	}
}
