package optimize

import (
	"testing"

	"github.com/onnx2c/onnx2c/internal/ir"
	"github.com/stretchr/testify/require"
)

// TestFoldCastsMergesIntoProducer exercises the core spec §4.6 transform:
// when a Cast's input has no other consumer, the fold retypes the
// producer's tensor in place rather than emitting a conversion node.
func TestFoldCastsMergesIntoProducer(t *testing.T) {
	g := ir.NewGraph()
	in, err := g.AddTensor(ir.NewTensor("x", ir.DFloat32, []int64{2}))
	require.NoError(t, err)

	out, err := g.AddTensor(ir.NewTensor("x_cast", ir.DInt32, []int64{2}))
	require.NoError(t, err)

	cast := ir.NewOperator("Cast", "cast1", nil, []*ir.Tensor{in})
	cast.Outputs = []*ir.Tensor{out}
	in.AddConsumer(cast)
	g.AddNode(cast)

	down := ir.NewOperator("Identity", "id1", nil, []*ir.Tensor{out})
	down.WireInputParam(0, "in0")
	out.AddConsumer(down)
	g.AddNode(down)

	FoldCasts(g)

	require.Len(t, g.Nodes, 1)
	require.Equal(t, "id1", g.Nodes[0].ONNXName)
	require.Same(t, in, g.Nodes[0].Inputs[0])
	require.Same(t, in, g.Nodes[0].InputParams[0].Tensor)
	require.Equal(t, ir.DInt32, in.DataType, "producer's tensor takes on the cast's target dtype")
	require.Len(t, in.Consumers, 1)
	require.Same(t, down, in.Consumers[0])
}

func TestFoldCastsKeepsWhenInputHasOtherConsumers(t *testing.T) {
	g := ir.NewGraph()
	in, _ := g.AddTensor(ir.NewTensor("x", ir.DFloat32, []int64{2}))
	out, _ := g.AddTensor(ir.NewTensor("x_cast", ir.DInt32, []int64{2}))

	cast := ir.NewOperator("Cast", "cast1", nil, []*ir.Tensor{in})
	cast.Outputs = []*ir.Tensor{out}
	in.AddConsumer(cast)
	g.AddNode(cast)

	other := ir.NewOperator("Identity", "id_other", nil, []*ir.Tensor{in})
	in.AddConsumer(other)
	g.AddNode(other)

	FoldCasts(g)

	require.Len(t, g.Nodes, 2, "T has a consumer besides the cast, so folding would force the producer to emit two dtypes")
	require.Equal(t, ir.DFloat32, in.DataType)
}

func TestFoldCastsKeepsWhenBothIO(t *testing.T) {
	g := ir.NewGraph()
	in, _ := g.AddTensor(ir.NewTensor("x", ir.DFloat32, []int64{2}))
	in.IsIO = true
	out, _ := g.AddTensor(ir.NewTensor("y", ir.DFloat32, []int64{2}))
	out.IsIO = true

	cast := ir.NewOperator("Cast", "cast1", nil, []*ir.Tensor{in})
	cast.Outputs = []*ir.Tensor{out}
	in.AddConsumer(cast)
	g.AddNode(cast)

	FoldCasts(g)

	require.Len(t, g.Nodes, 1, "a cast between two declared graph IO tensors must survive")
}
