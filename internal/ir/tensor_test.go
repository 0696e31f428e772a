package ir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTensorMergeOrsFlags(t *testing.T) {
	base := NewTensor("x", DFloat32, []int64{2, 3})
	base.IsIO = true

	update := NewTensor("x", DFloat32, []int64{2, 3})
	update.Initialize = true
	update.Buffer = []byte{1, 2, 3, 4}

	require.NoError(t, base.Merge(update))
	require.True(t, base.IsIO)
	require.True(t, base.Initialize)
	require.Equal(t, []byte{1, 2, 3, 4}, base.Buffer)
}

func TestTensorMergeRejectsDtypeConflict(t *testing.T) {
	base := NewTensor("x", DFloat32, []int64{2})
	update := NewTensor("x", DInt64, []int64{2})
	err := base.Merge(update)
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, BadInput, kind)
}

func TestAllConsumersResolved(t *testing.T) {
	tensor := NewTensor("x", DFloat32, []int64{1})
	op1 := &Operator{}
	op2 := &Operator{}
	tensor.AddConsumer(op1)
	tensor.AddConsumer(op2)
	require.False(t, tensor.AllConsumersResolved())
	op1.IsResolved = true
	require.False(t, tensor.AllConsumersResolved())
	op2.IsResolved = true
	require.True(t, tensor.AllConsumersResolved())
}

func TestMakeQuantizedCopyFloat(t *testing.T) {
	tensor := NewTensor("w", DFloat32, []int64{4})
	SetFloat32Buffer(tensor, []float32{-2, -1, 0, 2})
	q, err := MakeQuantizedCopy(tensor)
	require.NoError(t, err)
	require.Equal(t, DInt8, q.DataType)
	require.Equal(t, "w_quantized", q.Name)
	require.Equal(t, []byte{byte(int8(-127)), byte(int8(-64)), 0, byte(int8(127))}, q.Buffer)
}
