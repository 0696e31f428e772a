package optimize

import (
	"testing"

	"github.com/onnx2c/onnx2c/internal/ir"
	"github.com/stretchr/testify/require"
)

// buildChain builds x -> op0 -> a -> op1 -> b -> op2 -> y, a linear chain
// where a and b are each used only by their immediate successor. a and b
// are still live simultaneously at op1 (which reads a to produce b), so
// they are not slot-share candidates with each other; a's slot only frees
// up for a later tensor whose live range starts strictly after op1.
func buildChain(t *testing.T) *ir.Graph {
	g := ir.NewGraph()
	x, _ := g.AddTensor(ir.NewTensor("x", ir.DFloat32, []int64{4}))
	x.IsIO = true
	a, _ := g.AddTensor(ir.NewTensor("a", ir.DFloat32, []int64{4}))
	b, _ := g.AddTensor(ir.NewTensor("b", ir.DFloat32, []int64{4}))
	y, _ := g.AddTensor(ir.NewTensor("y", ir.DFloat32, []int64{4}))
	y.IsIO = true

	op0 := ir.NewOperator("Relu", "op0", nil, []*ir.Tensor{x})
	op0.Outputs = []*ir.Tensor{a}
	x.AddConsumer(op0)
	g.AddNode(op0)

	op1 := ir.NewOperator("Relu", "op1", nil, []*ir.Tensor{a})
	op1.Outputs = []*ir.Tensor{b}
	a.AddConsumer(op1)
	g.AddNode(op1)

	op2 := ir.NewOperator("Relu", "op2", nil, []*ir.Tensor{b})
	op2.Outputs = []*ir.Tensor{y}
	b.AddConsumer(op2)
	g.AddNode(op2)

	return g
}

func TestUnionizeKeepsSimultaneouslyLiveTensorsApart(t *testing.T) {
	g := buildChain(t)
	Unionize(g)

	a, _ := g.Tensor("a")
	b, _ := g.Tensor("b")
	require.GreaterOrEqual(t, a.UnionIndex, 0)
	require.GreaterOrEqual(t, b.UnionIndex, 0)
	require.NotEqual(t, a.UnionIndex, b.UnionIndex, "op1 reads a to produce b, so both must have distinct storage")
}

// TestUnionizeReusesSlotOnceFreed extends the chain with a fourth tensor
// whose live range starts only after a's last use, which must reuse a's
// freed slot.
func TestUnionizeReusesSlotOnceFreed(t *testing.T) {
	g := buildChain(t)
	b, _ := g.Tensor("b")

	// op3 runs after the whole a/b/y chain, consuming only b; its output c
	// is never live at the same time as a, so c may reuse a's freed slot.
	c, _ := g.AddTensor(ir.NewTensor("c", ir.DFloat32, []int64{4}))
	op3 := ir.NewOperator("Relu", "op3", nil, []*ir.Tensor{b})
	op3.Outputs = []*ir.Tensor{c}
	b.AddConsumer(op3)
	g.AddNode(op3)

	Unionize(g)
	a, _ := g.Tensor("a")
	require.Equal(t, a.UnionIndex, c.UnionIndex, "c's live range starts strictly after a's last use and may reuse its slot")
}

func TestUnionizeExcludesIOAndConst(t *testing.T) {
	g := buildChain(t)
	w, _ := g.AddTensor(ir.NewTensor("w", ir.DFloat32, []int64{4}))
	w.IsConst = true
	w.Initialize = true

	Unionize(g)

	x, _ := g.Tensor("x")
	y, _ := g.Tensor("y")
	require.Equal(t, -1, x.UnionIndex)
	require.Equal(t, -1, y.UnionIndex)
	require.Equal(t, -1, w.UnionIndex)
}
