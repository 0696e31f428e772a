package conformance

import "testing"

// TestDefaultBuildReportsUnavailable exercises the !onnx build's stub
// directly; the real onnxruntime-backed build is only exercised with
// -tags onnx, on a machine with the shared library installed.
func TestDefaultBuildReportsUnavailable(t *testing.T) {
	ref := NewReference()
	_, err := ref.Run("model.onnx", nil, nil)
	if err == nil {
		t.Fatal("expected an error from the default build's reference backend")
	}
}
