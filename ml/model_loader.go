package ml

import (
	"fmt"
)

func LoadModel(modelType, path string) (Classifier, error) {
	switch modelType {
	case ModelTypeMLP:
		model := &MLP{}
		if err := model.Load(path); err != nil {
			return nil, err
		}
		return model, nil
	case ModelTypeDecisionTree:
		model := &DecisionTree{}
		if err := model.Load(path); err != nil {
			return nil, err
		}
		return model, nil
	case ModelTypeONNX:
		return LoadONNXClassifier(path)
	default:
		return nil, fmt.Errorf("unsupported model type %q", modelType)
	}
}

// NewTrainable returns an untrained classifier of the given type.
func NewTrainable(modelType string, numClasses int, mlp MLPConfig, maxDepth int) (TrainableClassifier, error) {
	switch modelType {
	case ModelTypeMLP, "":
		return NewMLP(mlp, numClasses), nil
	case ModelTypeDecisionTree:
		return NewDecisionTree(maxDepth, numClasses), nil
	case ModelTypeONNX:
		return nil, fmt.Errorf("%s models are trained outside this tool", ModelTypeONNX)
	default:
		return nil, fmt.Errorf("unsupported model type %q", modelType)
	}
}
