package pipeline

import (
	"testing"

	"github.com/onnx2c/onnx2c/internal/config"
	"github.com/stretchr/testify/require"
)

func TestCompileRejectsModelWithoutGraph(t *testing.T) {
	_, err := Compile(nil, config.Defaults(), nil)
	require.Error(t, err, "an empty model has no graph to compile")
}

func TestCompileRejectsGarbageBytes(t *testing.T) {
	_, err := Compile([]byte{0xff, 0xff, 0xff}, config.Defaults(), nil)
	require.Error(t, err)
}
