package ml

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// LibraryPathEnv overrides where the ONNX Runtime shared library is loaded from.
const LibraryPathEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

var ortEnv struct {
	once sync.Once
	err  error
}

func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// ONNXClassifier serves a network exported to ONNX with one float32 input of
// shape [batch, features] and one probability output of shape [batch, classes].
// It cannot be trained here.
type ONNXClassifier struct {
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
	inputDim   int
	numClasses int
}

// LoadONNXClassifier opens modelPath. The runtime library is taken from
// LibraryPathEnv, falling back to libonnxruntime.so next to the model.
func LoadONNXClassifier(modelPath string) (*ONNXClassifier, error) {
	libPath := os.Getenv(LibraryPathEnv)
	if libPath == "" {
		libPath = filepath.Join(filepath.Dir(modelPath), "libonnxruntime.so")
	}
	if err := initORT(libPath); err != nil {
		return nil, fmt.Errorf("onnx: failed to initialize runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) == 0 {
		return nil, mismatch("classifier", "onnx model has %d inputs and %d outputs, expected 1 and at least 1", len(inputs), len(outputs))
	}
	inDims := inputs[0].Dimensions
	outDims := outputs[0].Dimensions
	if len(inDims) != 2 || len(outDims) != 2 {
		return nil, mismatch("classifier", "onnx tensors must be 2D, got input %v output %v", inDims, outDims)
	}
	if inDims[1] <= 0 || outDims[1] <= 0 {
		return nil, mismatch("classifier", "onnx feature/class dimensions must be fixed, got input %v output %v", inDims, outDims)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session options: %w", err)
	}
	defer opts.Destroy()
	opts.SetIntraOpNumThreads(1)
	opts.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session: %w", err)
	}

	return &ONNXClassifier{
		session:    session,
		inputName:  inputs[0].Name,
		outputName: outputs[0].Name,
		inputDim:   int(inDims[1]),
		numClasses: int(outDims[1]),
	}, nil
}

func (c *ONNXClassifier) InputDim() int   { return c.inputDim }
func (c *ONNXClassifier) NumClasses() int { return c.numClasses }

func (c *ONNXClassifier) PredictProba(features []float64) ([]float64, error) {
	if len(features) != c.inputDim {
		return nil, mismatch("classifier", "onnx model expects %d features, got %d", c.inputDim, len(features))
	}
	data := make([]float32, len(features))
	for i, v := range features {
		data[i] = float32(v)
	}

	in, err := ort.NewTensor(ort.NewShape(1, int64(c.inputDim)), data)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create input tensor: %w", err)
	}
	defer in.Destroy()

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(c.numClasses)))
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create output tensor: %w", err)
	}
	defer out.Destroy()

	if err := c.session.Run([]ort.Value{in}, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("onnx: inference failed: %w", err)
	}

	src := out.GetData()
	probs := make([]float64, len(src))
	for i, v := range src {
		probs[i] = float64(v)
	}
	return probs, nil
}

func (c *ONNXClassifier) Close() error {
	return c.session.Destroy()
}
