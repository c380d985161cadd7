package model

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Options describes the exported graph the service loads.
type Options struct {
	// Path to the .onnx file.
	Path string
	// LibraryPath points at libonnxruntime; empty uses the platform default.
	LibraryPath string
	InputName   string
	OutputName  string
	// InputShape is e.g. [1, 224, 224, 3] for a Keras export.
	InputShape []int64
	// OutputShape is [1, numClasses].
	OutputShape []int64
}

// ONNXModel wraps an ONNX Runtime session for single-image classification.
// The session is bound to one input and one output tensor, so Predict
// serializes callers.
type ONNXModel struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputShape   []int64
	outputShape  []int64
}

// NewONNXModel initializes the runtime and loads the model.
//
// Parameters:
//   - opts: graph location, node names and tensor shapes
//
// Returns:
//   - *ONNXModel: the ready session
//   - error: error if the runtime, tensors or session cannot be created
func NewONNXModel(opts Options) (*ONNXModel, error) {
	if len(opts.InputShape) == 0 || len(opts.OutputShape) == 0 {
		return nil, fmt.Errorf("input and output shapes are required")
	}

	if opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(opts.LibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	inputTensor, err := ort.NewTensor(ort.NewShape(opts.InputShape...), make([]float32, ShapeSize(opts.InputShape)))
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(opts.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		opts.Path,
		[]string{opts.InputName},
		[]string{opts.OutputName},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf(
			"failed to create session (check input/output node names %q/%q): %w",
			opts.InputName, opts.OutputName, err,
		)
	}

	return &ONNXModel{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputShape:   opts.InputShape,
		outputShape:  opts.OutputShape,
	}, nil
}

// Predict runs one inference.
//
// Parameters:
//   - input: preprocessed image, len must equal the product of the input shape
//
// Returns:
//   - []float32: class probabilities, a copy owned by the caller
//   - error: size mismatch or runtime failure
func (m *ONNXModel) Predict(input []float32) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inputData := m.inputTensor.GetData()
	if len(input) != len(inputData) {
		return nil, fmt.Errorf("input size mismatch: expected %d, got %d", len(inputData), len(input))
	}
	copy(inputData, input)

	if err := m.session.Run(); err != nil {
		return nil, fmt.Errorf("failed to run inference: %w", err)
	}

	outputData := m.outputTensor.GetData()
	result := make([]float32, len(outputData))
	copy(result, outputData)

	return result, nil
}

// Close releases the session, the tensors and the runtime environment.
func (m *ONNXModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inputTensor != nil {
		m.inputTensor.Destroy()
	}
	if m.outputTensor != nil {
		m.outputTensor.Destroy()
	}
	if m.session != nil {
		m.session.Destroy()
	}

	return ort.DestroyEnvironment()
}

// InputShape returns the shape of the input tensor.
func (m *ONNXModel) InputShape() []int64 {
	return m.inputShape
}

// NumClasses returns the width of the output tensor.
func (m *ONNXModel) NumClasses() int {
	return int(m.outputShape[len(m.outputShape)-1])
}
