package ops

import (
	"fmt"

	"github.com/onnx2c/onnx2c/internal/ir"
)

// Transpose permutes axes; unlike the rest of the Reshape family, element
// order genuinely changes, so it needs real index arithmetic rather than
// a flat copy (spec §4.3: "Transpose permutation defaults to reversed
// axis order").
type Transpose struct {
	perm []int64
}

func (t *Transpose) ParseAttributes(op *ir.Operator, attrs ir.AttrMap) error {
	if err := requireKnownAttrs("Transpose.ParseAttributes", attrs, "perm"); err != nil {
		return err
	}
	t.perm = attrInts(attrs, "perm", nil)
	return nil
}

func (t *Transpose) Resolve(op *ir.Operator) error {
	if len(op.Inputs) == 0 || op.Inputs[0] == nil {
		return ir.Fail(ir.BadInput, "Transpose.Resolve", "missing required input")
	}
	in := op.Inputs[0]
	rank := len(in.Shape)
	if t.perm == nil {
		t.perm = make([]int64, rank)
		for i := 0; i < rank; i++ {
			t.perm[i] = int64(rank - 1 - i)
		}
	}
	if len(t.perm) != rank {
		return ir.Fail(ir.IncorrectInput, "Transpose.Resolve", "perm length %d does not match input rank %d", len(t.perm), rank)
	}
	outShape := make([]int64, rank)
	for i, p := range t.perm {
		outShape[i] = in.Shape[p]
	}
	out := ir.NewTensor(op.OutputName(0, ""), in.DataType, outShape)
	out.Generate = true
	op.RegisterOutput(out, "out0")
	return nil
}

func (t *Transpose) EmitSignature(op *ir.Operator, w writer, decorate bool) {
	emitStandardSignature(op, w, decorate)
}

func (t *Transpose) EmitBody(op *ir.Operator, w writer) {
	in := op.InputParams[0]
	out := op.OutputParams[0]
	outShape := op.Outputs[0].Shape
	rank := len(outShape)
	indent := emitNestedLoopsOpen(w, outShape, "  ")

	// inIndex[a] is the output-axis loop variable that indexes input axis
	// a: perm[o] names the input axis whose extent output axis o holds, so
	// the inverse mapping drives the input index string.
	inIndex := make([]string, rank)
	for outAxis, inAxis := range t.perm {
		inIndex[inAxis] = loopVar(outAxis)
	}
	inExpr := ""
	for _, v := range inIndex {
		inExpr += "[" + v + "]"
	}
	fmt.Fprintf(w, "%s%s%s = %s%s;\n", indent, out.Local, flatIndexExpr(rank), in.Local, inExpr)
	emitNestedLoopsClose(w, rank, "  ")
}
