package ops

import (
	"bytes"
	"testing"

	"github.com/onnx2c/onnx2c/internal/ir"
	"github.com/stretchr/testify/require"
)

func TestQuantizeLinearResolveDefaultsToUint8(t *testing.T) {
	x := ir.NewTensor("x", ir.DFloat32, []int64{4})
	scale := ir.NewTensor("scale", ir.DFloat32, nil)
	op := ir.NewOperator("QuantizeLinear", "q0", &QuantizeLinear{}, []*ir.Tensor{x, scale})

	require.NoError(t, op.Resolve())
	require.Equal(t, ir.DUint8, op.Outputs[0].DataType)
}

func TestQuantizeLinearEmitBodyClampsToRange(t *testing.T) {
	x := ir.NewTensor("x", ir.DFloat32, []int64{2})
	scale := ir.NewTensor("scale", ir.DFloat32, nil)
	op := ir.NewOperator("QuantizeLinear", "q0", &QuantizeLinear{}, []*ir.Tensor{x, scale})
	op.WireInputParam(0, "in0")
	op.WireInputParam(1, "in1")
	require.NoError(t, op.Resolve())
	op.OutputParams[0].Local = "out0"

	var buf bytes.Buffer
	op.Behavior.EmitBody(op, &buf)
	src := buf.String()
	require.Contains(t, src, "if (q < 0) q = 0;")
	require.Contains(t, src, "if (q > 255) q = 255;")
}

func TestDequantizeLinearEmitBodyAppliesZeroPoint(t *testing.T) {
	x := ir.NewTensor("x", ir.DUint8, []int64{2})
	scale := ir.NewTensor("scale", ir.DFloat32, nil)
	zp := ir.NewTensor("zp", ir.DUint8, nil)
	op := ir.NewOperator("DequantizeLinear", "dq0", &DequantizeLinear{}, []*ir.Tensor{x, scale, zp})
	op.WireInputParam(0, "in0")
	op.WireInputParam(1, "in1")
	op.WireInputParam(2, "in2")
	require.NoError(t, op.Resolve())
	op.OutputParams[0].Local = "out0"

	var buf bytes.Buffer
	op.Behavior.EmitBody(op, &buf)
	require.Contains(t, buf.String(), "- in2) * in1;")
}

func TestDynamicQuantizeLinearResolveProducesThreeOutputs(t *testing.T) {
	x := ir.NewTensor("x", ir.DFloat32, []int64{4})
	op := ir.NewOperator("DynamicQuantizeLinear", "dyq0", &DynamicQuantizeLinear{}, []*ir.Tensor{x})

	require.NoError(t, op.Resolve())
	require.Len(t, op.Outputs, 3)
	require.Equal(t, ir.DUint8, op.Outputs[0].DataType)
	require.Equal(t, ir.DFloat32, op.Outputs[1].DataType)
	require.Equal(t, ir.DUint8, op.Outputs[2].DataType)
}

func TestDynamicQuantizeLinearEmitSignatureCallSiteUsesCName(t *testing.T) {
	x := ir.NewTensor("x", ir.DFloat32, []int64{4})
	op := ir.NewOperator("DynamicQuantizeLinear", "dyq0", &DynamicQuantizeLinear{}, []*ir.Tensor{x})
	op.WireInputParam(0, "in0")
	require.NoError(t, op.Resolve())

	var buf bytes.Buffer
	op.Behavior.EmitSignature(op, &buf, false)
	require.Equal(t, "tensor_x, tensor_dyq0_out0, tensor_dyq0_recursive_y_scale, tensor_dyq0_recursive_y_zero_point", buf.String())
}
