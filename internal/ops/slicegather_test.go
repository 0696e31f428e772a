package ops

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/onnx2c/onnx2c/internal/ir"
	"github.com/onnx2c/onnx2c/internal/onnxpb"
	"github.com/stretchr/testify/require"
)

func attrStr(t *testing.T, s string) *onnxpb.AttributeProto {
	t.Helper()
	return &onnxpb.AttributeProto{Type: onnxpb.AttrString, S: []byte(s)}
}

func int64Tensor(name string, vals []int64) *ir.Tensor {
	t := ir.NewTensor(name, ir.DInt64, []int64{int64(len(vals))})
	t.Initialize = true
	buf := make([]byte, 0, len(vals)*8)
	for _, v := range vals {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(v))
	}
	t.Buffer = buf
	return t
}

func TestSliceResolveComputesOutputShape(t *testing.T) {
	data := ir.NewTensor("x", ir.DFloat32, []int64{10})
	starts := int64Tensor("starts", []int64{2})
	ends := int64Tensor("ends", []int64{8})
	op := ir.NewOperator("Slice", "s0", &Slice{}, []*ir.Tensor{data, starts, ends})

	require.NoError(t, op.Resolve())
	require.Equal(t, []int64{6}, op.Outputs[0].Shape)
}

func TestSliceResolveRejectsNonConstantBounds(t *testing.T) {
	data := ir.NewTensor("x", ir.DFloat32, []int64{10})
	starts := ir.NewTensor("starts", ir.DInt64, []int64{1}) // not Initialize
	ends := int64Tensor("ends", []int64{8})
	op := ir.NewOperator("Slice", "s0", &Slice{}, []*ir.Tensor{data, starts, ends})

	err := op.Resolve()
	require.Error(t, err)
	kind, ok := ir.KindOf(err)
	require.True(t, ok)
	require.Equal(t, ir.UnsupportedDynamicShape, kind)
}

func TestSliceEmitBodyOffsetsByStart(t *testing.T) {
	data := ir.NewTensor("x", ir.DFloat32, []int64{10})
	starts := int64Tensor("starts", []int64{2})
	ends := int64Tensor("ends", []int64{8})
	op := ir.NewOperator("Slice", "s0", &Slice{}, []*ir.Tensor{data, starts, ends})
	op.WireInputParam(0, "in0")
	require.NoError(t, op.Resolve())
	op.OutputParams[0].Local = "out0"

	var buf bytes.Buffer
	op.Behavior.EmitBody(op, &buf)
	require.Contains(t, buf.String(), "in0[2 + i0*1]")
}

func TestGatherResolveInsertsIndicesShapeAtAxis(t *testing.T) {
	data := ir.NewTensor("data", ir.DFloat32, []int64{3, 4})
	indices := int64Tensor("idx", []int64{0, 2})
	op := ir.NewOperator("Gather", "g0", &Gather{}, []*ir.Tensor{data, indices})
	op.Attrs = ir.AttrMap{}
	require.NoError(t, op.Behavior.ParseAttributes(op, op.Attrs))

	require.NoError(t, op.Resolve())
	require.Equal(t, []int64{2, 4}, op.Outputs[0].Shape)
}

func TestGatherResolveRejectsNonConstantIndices(t *testing.T) {
	data := ir.NewTensor("data", ir.DFloat32, []int64{3, 4})
	indices := ir.NewTensor("idx", ir.DInt64, []int64{2})
	op := ir.NewOperator("Gather", "g0", &Gather{}, []*ir.Tensor{data, indices})

	err := op.Resolve()
	require.Error(t, err)
	kind, ok := ir.KindOf(err)
	require.True(t, ok)
	require.Equal(t, ir.UnsupportedDynamicShape, kind)
}

func TestPadConstantModeEmitsBoundsCheck(t *testing.T) {
	data := ir.NewTensor("x", ir.DFloat32, []int64{4})
	pads := int64Tensor("pads", []int64{1, 1})
	op := ir.NewOperator("Pad", "p0", &Pad{}, []*ir.Tensor{data, pads})
	op.Attrs = ir.AttrMap{}
	require.NoError(t, op.Behavior.ParseAttributes(op, op.Attrs))
	op.WireInputParam(0, "in0")
	require.NoError(t, op.Resolve())
	op.OutputParams[0].Local = "out0"
	require.Equal(t, []int64{6}, op.Outputs[0].Shape)

	var buf bytes.Buffer
	op.Behavior.EmitBody(op, &buf)
	src := buf.String()
	require.Contains(t, src, "if (")
	require.Contains(t, src, "out0[i0] = 0;")
}

func TestPadRejectsUnsupportedMode(t *testing.T) {
	op := ir.NewOperator("Pad", "p0", &Pad{}, nil)
	err := op.Behavior.ParseAttributes(op, ir.AttrMap{"mode": attrStr(t, "cubic_bogus")})
	require.Error(t, err)
	kind, ok := ir.KindOf(err)
	require.True(t, ok)
	require.Equal(t, ir.UnimplementedFeature, kind)
}
