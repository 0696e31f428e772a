// Package conformance runs the original ONNX model through a real
// inference backend to produce golden output for round-trip testing
// against the generated C (spec.md §8, testable property 5). The
// `onnx` build tag selects between this real backend and the always-
// unavailable stub, exactly mirroring the teacher's
// executor_onnx.go/executor_default.go split.
package conformance

// Reference runs model on named inputs and returns named float32 output
// buffers, or ErrReferenceUnavailable when no backend is present.
type Reference interface {
	Run(modelPath string, inputs map[string][]float32, inputShapes map[string][]int64) (map[string][]float32, error)
}
