package emit

import (
	"strings"
	"testing"

	"github.com/onnx2c/onnx2c/internal/ir"
	"github.com/onnx2c/onnx2c/internal/ops"
	"github.com/stretchr/testify/require"
)

// buildIdentityGraph builds a single-node x -> Identity -> y graph, the
// smallest shape that exercises all four emission steps.
func buildIdentityGraph(t *testing.T) *ir.Graph {
	g := ir.NewGraph()
	x, err := g.AddTensor(ir.NewTensor("x", ir.DFloat32, []int64{2, 3}))
	require.NoError(t, err)
	x.IsIO = true
	x.Generate = true

	y, err := g.AddTensor(ir.NewTensor("y", ir.DFloat32, []int64{2, 3}))
	require.NoError(t, err)
	y.IsIO = true
	y.Generate = true

	op := ir.NewOperator("Identity", "id0", &ops.Identity{}, []*ir.Tensor{x})
	op.Outputs = []*ir.Tensor{y}
	op.WireInputParam(0, "in0")
	op.RegisterOutput(y, "out0")
	x.AddConsumer(op)
	g.AddNode(op)

	return g
}

func TestGenerateEmitsAllFourSections(t *testing.T) {
	g := buildIdentityGraph(t)
	out, err := Generate(g, Options{})
	require.NoError(t, err)
	src := string(out)

	require.Contains(t, src, "#include <stdint.h>")
	require.Contains(t, src, "static float tensor_x[2][3]")
	require.Contains(t, src, "static void node_id0(")
	require.Contains(t, src, "void entry(")
	require.Contains(t, src, "node_id0(")
}

func TestGenerateTargetAVRAddsPgmspace(t *testing.T) {
	g := buildIdentityGraph(t)
	out, err := Generate(g, Options{TargetAVR: true})
	require.NoError(t, err)
	require.Contains(t, string(out), "avr/pgmspace.h")
}

func TestGenerateOnlyInitStopsAfterGlobals(t *testing.T) {
	g := buildIdentityGraph(t)
	out, err := Generate(g, Options{OnlyInit: true})
	require.NoError(t, err)
	src := string(out)
	require.Contains(t, src, "static float tensor_x[2][3]")
	require.NotContains(t, src, "void entry(")
}

func TestGenerateNoGlobalsSkipsStorage(t *testing.T) {
	g := buildIdentityGraph(t)
	out, err := Generate(g, Options{NoGlobals: true})
	require.NoError(t, err)
	require.NotContains(t, string(out), "static float tensor_x")
}

func TestGenerateUnionSlotEmitsDefineNotStatic(t *testing.T) {
	g := buildIdentityGraph(t)
	y, ok := g.Tensor("y")
	require.True(t, ok)
	y.IsIO = false
	y.UnionIndex = 0

	out, err := Generate(g, Options{})
	require.NoError(t, err)
	src := string(out)
	require.Contains(t, src, "static uint8_t union_slot_0[24];")
	require.Contains(t, src, "#define tensor_y (*(float(*)[2][3])union_slot_0)")
}

func TestGenerateInitializerPrintsConstValues(t *testing.T) {
	g := ir.NewGraph()
	w, _ := g.AddTensor(ir.NewTensor("w", ir.DFloat32, []int64{2}))
	w.IsConst = true
	w.Initialize = true
	w.Generate = true
	ir.SetFloat32Buffer(w, []float32{1, -2})

	out, err := Generate(g, Options{OnlyInit: true})
	require.NoError(t, err)
	src := string(out)
	require.True(t, strings.Contains(src, "const float tensor_w[2] = {1.0f, -2.0f};"))
}
