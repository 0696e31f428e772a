package ops

import (
	"fmt"

	"github.com/onnx2c/onnx2c/internal/ir"
)

// Softmax implements spec §4.3's three-pass contract: flatten all axes >=
// axis into one group; per group, find max, compute exp(x-max) with a
// running sum, then divide.
type Softmax struct {
	axis int64
}

func (s *Softmax) ParseAttributes(op *ir.Operator, attrs ir.AttrMap) error {
	if err := requireKnownAttrs("Softmax.ParseAttributes", attrs, "axis"); err != nil {
		return err
	}
	s.axis = attrInt(attrs, "axis", -1)
	return nil
}

func (s *Softmax) Resolve(op *ir.Operator) error {
	if len(op.Inputs) == 0 || op.Inputs[0] == nil {
		return ir.Fail(ir.BadInput, "Softmax.Resolve", "missing required input")
	}
	in := op.Inputs[0]
	if err := checkConstraint("Softmax.Resolve", "input", in.DataType, isAllFloatingPoints(in.DataType)); err != nil {
		return err
	}
	axis := normalizeAxis(s.axis, len(in.Shape))
	if axis < 0 || axis >= len(in.Shape) {
		return ir.Fail(ir.IncorrectInput, "Softmax.Resolve", "axis %d out of range for rank %d", s.axis, len(in.Shape))
	}
	s.axis = int64(axis)

	out := ir.NewTensor(op.OutputName(0, ""), in.DataType, in.Shape)
	out.Generate = true
	op.RegisterOutput(out, "y")
	return nil
}

func (s *Softmax) EmitSignature(op *ir.Operator, w writer, decorate bool) {
	emitStandardSignature(op, w, decorate)
}

func (s *Softmax) EmitBody(op *ir.Operator, w writer) {
	in := op.InputParams[0]
	out := op.OutputParams[0]
	shape := op.Outputs[0].Shape
	axis := int(s.axis)

	outerVars := make([]string, axis)
	indent := "  "
	for i := 0; i < axis; i++ {
		outerVars[i] = loopVar(i)
		fmt.Fprintf(w, "%sfor (int %s = 0; %s < %d; %s++) {\n", indent, outerVars[i], outerVars[i], shape[i], outerVars[i])
		indent += "  "
	}

	groupVars := make([]string, len(shape)-axis)
	groupIndent := indent
	for i := axis; i < len(shape); i++ {
		groupVars[i-axis] = loopVar(i)
	}

	idxExpr := func() string {
		e := ""
		for _, v := range outerVars {
			e += "[" + v + "]"
		}
		for _, v := range groupVars {
			e += "[" + v + "]"
		}
		return e
	}

	ctype := op.Outputs[0].DataType.CType()
	fmt.Fprintf(w, "%s%s max_val = -INFINITY;\n", indent, ctype)
	cur := groupIndent
	for i, v := range groupVars {
		fmt.Fprintf(w, "%sfor (int %s = 0; %s < %d; %s++) {\n", cur, v, v, shape[axis+i], v)
		cur += "  "
	}
	fmt.Fprintf(w, "%sif (%s%s > max_val) max_val = %s%s;\n", cur, in.Local, idxExpr(), in.Local, idxExpr())
	for range groupVars {
		cur = cur[:len(cur)-2]
		fmt.Fprintf(w, "%s}\n", cur)
	}

	fmt.Fprintf(w, "%s%s sum = 0;\n", indent, ctype)
	cur = groupIndent
	for i, v := range groupVars {
		fmt.Fprintf(w, "%sfor (int %s = 0; %s < %d; %s++) {\n", cur, v, v, shape[axis+i], v)
		cur += "  "
	}
	fmt.Fprintf(w, "%s%s%s = expf(%s%s - max_val);\n", cur, out.Local, idxExpr(), in.Local, idxExpr())
	fmt.Fprintf(w, "%ssum += %s%s;\n", cur, out.Local, idxExpr())
	for range groupVars {
		cur = cur[:len(cur)-2]
		fmt.Fprintf(w, "%s}\n", cur)
	}

	cur = groupIndent
	for i, v := range groupVars {
		fmt.Fprintf(w, "%sfor (int %s = 0; %s < %d; %s++) {\n", cur, v, v, shape[axis+i], v)
		cur += "  "
	}
	fmt.Fprintf(w, "%s%s%s /= sum;\n", cur, out.Local, idxExpr())
	for range groupVars {
		cur = cur[:len(cur)-2]
		fmt.Fprintf(w, "%s}\n", cur)
	}

	for range outerVars {
		indent = indent[:len(indent)-2]
		fmt.Fprintf(w, "%s}\n", indent)
	}
}
