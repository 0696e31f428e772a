package ops

import (
	"bytes"
	"testing"

	"github.com/onnx2c/onnx2c/internal/ir"
	"github.com/onnx2c/onnx2c/internal/onnxpb"
	"github.com/stretchr/testify/require"
)

func TestCastResolveUsesToAttribute(t *testing.T) {
	x := ir.NewTensor("x", ir.DFloat32, []int64{4})
	op := ir.NewOperator("Cast", "cast0", &Cast{}, []*ir.Tensor{x})
	op.WireInputParam(0, "in0")
	op.Attrs = ir.AttrMap{"to": &onnxpb.AttributeProto{Name: "to", I: 7}} // INT64

	require.NoError(t, op.Behavior.ParseAttributes(op, op.Attrs))
	require.NoError(t, op.Resolve())
	require.Equal(t, ir.DInt64, op.Outputs[0].DataType)
}

func TestCastParseAttributesRequiresTo(t *testing.T) {
	op := ir.NewOperator("Cast", "cast0", &Cast{}, nil)
	err := op.Behavior.ParseAttributes(op, ir.AttrMap{})
	require.Error(t, err)
	kind, ok := ir.KindOf(err)
	require.True(t, ok)
	require.Equal(t, ir.BadInput, kind)
}

func TestCastEmitBodyCastsEachElement(t *testing.T) {
	x := ir.NewTensor("x", ir.DFloat32, []int64{4})
	op := ir.NewOperator("Cast", "cast0", &Cast{to: ir.DInt32}, []*ir.Tensor{x})
	op.WireInputParam(0, "in0")
	require.NoError(t, op.Resolve())
	op.OutputParams[0].Local = "out0"

	var buf bytes.Buffer
	op.Behavior.EmitBody(op, &buf)
	require.Contains(t, buf.String(), "((int32_t*)out0)[i] = (int32_t)((float*)in0)[i];")
}
