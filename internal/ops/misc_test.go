package ops

import (
	"bytes"
	"testing"

	"github.com/onnx2c/onnx2c/internal/ir"
	"github.com/onnx2c/onnx2c/internal/onnxpb"
	"github.com/stretchr/testify/require"
)

func constTensorAttr(t *testing.T, dtype ir.DType, dims []int64, vals []float32) *onnxpb.AttributeProto {
	t.Helper()
	return &onnxpb.AttributeProto{
		Name: "value",
		Type: onnxpb.AttrTensor,
		T: &onnxpb.TensorProto{
			Dims:      dims,
			DataType:  1, // onnx.TensorProto.DataType.FLOAT
			FloatData: vals,
		},
	}
}

func TestIdentityResolveCopiesShapeAndDtype(t *testing.T) {
	x := ir.NewTensor("x", ir.DFloat32, []int64{2, 3})
	op := ir.NewOperator("Identity", "id0", &Identity{}, []*ir.Tensor{x})
	op.WireInputParam(0, "in0")

	require.NoError(t, op.Resolve())
	require.Len(t, op.Outputs, 1)
	require.Equal(t, ir.DFloat32, op.Outputs[0].DataType)
	require.Equal(t, []int64{2, 3}, op.Outputs[0].Shape)
}

func TestIdentityEmitBodyUsesMemcpy(t *testing.T) {
	x := ir.NewTensor("x", ir.DFloat32, []int64{2, 3})
	op := ir.NewOperator("Identity", "id0", &Identity{}, []*ir.Tensor{x})
	op.WireInputParam(0, "in0")
	require.NoError(t, op.Resolve())
	op.OutputParams[0].Local = "out0"

	var buf bytes.Buffer
	op.Behavior.EmitBody(op, &buf)
	require.Contains(t, buf.String(), "memcpy(out0, in0, 6 * sizeof(float));")
}

func TestIdentityEmitSignatureCallSiteUsesTensorCName(t *testing.T) {
	x := ir.NewTensor("x", ir.DFloat32, []int64{2, 3})
	op := ir.NewOperator("Identity", "id0", &Identity{}, []*ir.Tensor{x})
	op.WireInputParam(0, "in0")
	require.NoError(t, op.Resolve())

	var buf bytes.Buffer
	op.Behavior.EmitSignature(op, &buf, false)
	require.Equal(t, "tensor_x, tensor_id0_out0", buf.String())
}

func TestClipResolveRejectsMissingInput(t *testing.T) {
	op := ir.NewOperator("Clip", "c0", &Clip{}, nil)
	err := op.Resolve()
	require.Error(t, err)
	kind, ok := ir.KindOf(err)
	require.True(t, ok)
	require.Equal(t, ir.BadInput, kind)
}

func TestClipEmitBodyClampsBothBounds(t *testing.T) {
	x := ir.NewTensor("x", ir.DFloat32, []int64{4})
	lo := ir.NewTensor("lo", ir.DFloat32, nil)
	lo.Initialize = true
	ir.SetFloat32Buffer(lo, []float32{0})
	hi := ir.NewTensor("hi", ir.DFloat32, nil)
	hi.Initialize = true
	ir.SetFloat32Buffer(hi, []float32{6})

	op := ir.NewOperator("Clip", "c0", &Clip{}, []*ir.Tensor{x, lo, hi})
	op.WireInputParam(0, "in0")
	require.NoError(t, op.Resolve())
	op.OutputParams[0].Local = "out0"

	var buf bytes.Buffer
	op.Behavior.EmitBody(op, &buf)
	src := buf.String()
	require.Contains(t, src, "if (v < 0) v = 0;")
	require.Contains(t, src, "if (v > 6) v = 6;")
}

func TestConstantResolveMaterializesBufferAsConstGlobal(t *testing.T) {
	op := ir.NewOperator("Constant", "c1", &Constant{}, nil)
	op.Attrs = ir.AttrMap{"value": constTensorAttr(t, ir.DFloat32, []int64{2}, []float32{1, 2})}

	require.NoError(t, op.Resolve())
	require.True(t, op.Outputs[0].IsConst)
	require.True(t, op.Outputs[0].Initialize)
}
