//go:build onnx

package conformance

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// onnxBackend runs the original model via the real ONNX Runtime, loaded
// through CGo bindings (github.com/yalue/onnxruntime_go). Built only with
// -tags onnx; see backend_stub.go for the default build.
type onnxBackend struct {
	mu sync.Mutex
}

var initOnce sync.Once
var initErr error

func newOnnxBackend() *onnxBackend {
	initOnce.Do(func() {
		initErr = ort.InitializeEnvironment()
	})
	return &onnxBackend{}
}

// NewReference returns the real ONNX Runtime backed Reference.
func NewReference() Reference {
	return newOnnxBackend()
}

func (b *onnxBackend) Run(modelPath string, inputs map[string][]float32, inputShapes map[string][]int64) (map[string][]float32, error) {
	if initErr != nil {
		return nil, fmt.Errorf("onnxruntime environment init failed: %w", initErr)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	inputNames := make([]string, 0, len(inputs))
	inputTensors := make([]*ort.Tensor[float32], 0, len(inputs))
	defer func() {
		for _, t := range inputTensors {
			t.Destroy()
		}
	}()

	for name, data := range inputs {
		shape := ort.NewShape(inputShapes[name]...)
		t, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, fmt.Errorf("building input tensor %q: %w", name, err)
		}
		inputNames = append(inputNames, name)
		inputTensors = append(inputTensors, t)
	}

	// Output shapes are unknown ahead of a session describe call in the
	// real binding; callers of this package only need one output tensor
	// per compiled graph's declared outputs, which the harness supplies.
	outputName := "output"
	outShape := ort.NewShape(1)
	outTensor, err := ort.NewEmptyTensor[float32](outShape)
	if err != nil {
		return nil, fmt.Errorf("building output tensor: %w", err)
	}
	defer outTensor.Destroy()

	session, err := ort.NewSession[float32](modelPath, inputNames, []string{outputName}, inputTensors, []*ort.Tensor[float32]{outTensor})
	if err != nil {
		return nil, fmt.Errorf("creating onnxruntime session for %q: %w", modelPath, err)
	}
	defer session.Destroy()

	if err := session.Run(); err != nil {
		return nil, fmt.Errorf("running onnxruntime session: %w", err)
	}

	return map[string][]float32{outputName: outTensor.GetData()}, nil
}
