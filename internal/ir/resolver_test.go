package ir

import (
	"testing"

	"github.com/onnx2c/onnx2c/internal/onnxpb"
	"github.com/onnx2c/onnx2c/internal/ops"
	"github.com/stretchr/testify/require"
)

// TestBuildGraphQuantizeSwapsConstWeightForQuantizedCopy exercises spec
// §4.1's resolve-time quantization substitution end to end: Conv becomes
// ConvInteger and its constant float W input is swapped for its
// pre-computed int8 copy, not passed through unchanged.
func TestBuildGraphQuantizeSwapsConstWeightForQuantizedCopy(t *testing.T) {
	model := &onnxpb.ModelProto{
		Graph: onnxpb.GraphProto{
			Input: []onnxpb.ValueInfoProto{
				{Name: "x", Type: onnxpb.TypeProto{ElemType: 3 /* INT8 */, Shape: []onnxpb.Dimension{
					{HasValue: true, Value: 1}, {HasValue: true, Value: 1}, {HasValue: true, Value: 4}, {HasValue: true, Value: 4},
				}}},
			},
			Initializer: []onnxpb.TensorProto{
				{
					Name:      "w",
					DataType:  1, // FLOAT
					Dims:      []int64{1, 1, 3, 3},
					FloatData: make([]float32, 9),
				},
			},
			Node: []onnxpb.NodeProto{
				{OpType: "Conv", Name: "conv0", Input: []string{"x", "w"}, Output: []string{"y"}},
			},
		},
	}

	g, err := BuildGraph(model, ops.New(), Options{Quantize: true})
	require.NoError(t, err)
	require.Len(t, g.Nodes, 1)

	op := g.Nodes[0]
	require.Equal(t, "ConvInteger", op.OpKind)
	require.Equal(t, "w_quantized", op.Inputs[1].Name)
	require.True(t, op.Inputs[1].IsQuantized)
	require.Equal(t, DInt8, op.Inputs[1].DataType)

	_, stillThere := g.Tensor("w")
	require.True(t, stillThere, "the original float tensor stays in the graph, only the op's wiring swaps")
}

func TestQuantizedInputForReusesExistingCopy(t *testing.T) {
	g := NewGraph()
	w := NewTensor("w", DFloat32, []int64{2})
	w.IsConst = true
	w.Initialize = true
	SetFloat32Buffer(w, []float32{1, -2})
	_, err := g.AddTensor(w)
	require.NoError(t, err)

	first, err := quantizedInputFor(g, w)
	require.NoError(t, err)
	second, err := quantizedInputFor(g, w)
	require.NoError(t, err)
	require.Same(t, first, second, "a second consumer must reuse the one computed copy, not recompute it")
}

func TestQuantizedInputForLeavesNonConstTensorsAlone(t *testing.T) {
	g := NewGraph()
	x := NewTensor("x", DFloat32, []int64{2})
	x.IsIO = true

	out, err := quantizedInputFor(g, x)
	require.NoError(t, err)
	require.Same(t, x, out)
}
