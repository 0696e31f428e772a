package ops

import (
	"fmt"

	"github.com/onnx2c/onnx2c/internal/ir"
)

// Cast converts its input to the dtype named by the "to" attribute (an
// ONNX TensorProto.DataType enum value). The fold_casts optimization pass
// (internal/optimize) removes a Cast whose input has no other consumer by
// giving that input the Cast's target dtype; EmitBody below is what
// survives for the rest.
type Cast struct {
	to ir.DType
}

func (c *Cast) ParseAttributes(op *ir.Operator, attrs ir.AttrMap) error {
	if err := requireKnownAttrs("Cast.ParseAttributes", attrs, "to", "saturate"); err != nil {
		return err
	}
	a, ok := attrs["to"]
	if !ok {
		return ir.Fail(ir.BadInput, "Cast.ParseAttributes", "'to' attribute is required")
	}
	c.to = ir.DTypeFromONNX(int32(a.I))
	return nil
}

func (c *Cast) Resolve(op *ir.Operator) error {
	if len(op.Inputs) == 0 || op.Inputs[0] == nil {
		return ir.Fail(ir.BadInput, "Cast.Resolve", "missing required input")
	}
	out := ir.NewTensor(op.OutputName(0, ""), c.to, op.Inputs[0].Shape)
	out.Generate = true
	op.RegisterOutput(out, "y")
	return nil
}

func (c *Cast) EmitSignature(op *ir.Operator, w writer, decorate bool) {
	emitStandardSignature(op, w, decorate)
}

func (c *Cast) EmitBody(op *ir.Operator, w writer) {
	in := op.InputParams[0]
	out := op.OutputParams[0]
	n := product(op.Inputs[0].Shape)
	inType := op.Inputs[0].DataType.CType()
	outType := op.Outputs[0].DataType.CType()
	fmt.Fprintf(w, "  for (int i = 0; i < %d; i++) ((%s*)%s)[i] = (%s)((%s*)%s)[i];\n",
		n, outType, out.Local, outType, inType, in.Local)
}
