//go:build !onnx

package conformance

import "errors"

// ErrReferenceUnavailable is returned by the default build's Reference: no
// onnxruntime shared library is assumed present, so round-trip conformance
// checks skip rather than fail (spec.md's "downstream toolchain" is an
// external, not-always-present collaborator).
var ErrReferenceUnavailable = errors.New("conformance: reference backend unavailable (build with -tags onnx)")

type stubBackend struct{}

// NewReference returns a Reference that always reports unavailability.
func NewReference() Reference {
	return stubBackend{}
}

func (stubBackend) Run(modelPath string, inputs map[string][]float32, inputShapes map[string][]int64) (map[string][]float32, error) {
	return nil, ErrReferenceUnavailable
}
