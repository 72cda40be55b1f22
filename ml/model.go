package ml

const (
	ModelTypeMLP          = "mlp"
	ModelTypeDecisionTree = "decision_tree"
	ModelTypeONNX         = "onnx"
)

// Classifier maps a scaled feature vector to a probability distribution over
// the fertilizer vocabulary. Implementations must be safe for concurrent use
// once loaded.
type Classifier interface {
	PredictProba(features []float64) ([]float64, error)
	InputDim() int
	NumClasses() int
}

// TrainableClassifier is a Classifier the offline trainer can fit and persist.
type TrainableClassifier interface {
	Classifier
	Name() string
	Train(features [][]float64, labels []int) error
	Save(path string) error
}

// ValidatingTrainer is implemented by classifiers that use a held-out split
// while fitting, e.g. for early stopping.
type ValidatingTrainer interface {
	TrainValidated(trainX [][]float64, trainY []int, valX [][]float64, valY []int) error
}

// ArgMax returns the index of the largest probability. Ties go to the lowest
// index and NaN entries are never selected.
func ArgMax(probs []float64) (int, bool) {
	best := -1
	for i, p := range probs {
		if p != p {
			continue
		}
		if best == -1 || p > probs[best] {
			best = i
		}
	}
	return best, best >= 0
}

func modelFileName(modelType string) string {
	if modelType == ModelTypeONNX {
		return "model.onnx"
	}
	return "model.json"
}
