package ops

import (
	"fmt"

	"github.com/onnx2c/onnx2c/internal/ir"
)

// ElementwiseTag parameterizes the single shared Elementwise class across
// every ONNX elementwise op kind (spec §4.4: "space-saving collapse, not a
// capability change").
type ElementwiseTag int

const (
	tagAbs ElementwiseTag = iota
	tagNeg
	tagRelu
	tagSigmoid
	tagTanh
	tagSqrt
	tagExp
	tagLog
	tagCeil
	tagFloor
	tagNot
	tagAdd
	tagSub
	tagMul
	tagDiv
	tagPow
	tagAnd
	tagOr
	tagXor
	tagEqual
	tagGreater
	tagLess
	tagSum
	tagMin
	tagMax
)

type arity int

const (
	arityUnary arity = iota
	arityBinary
	arityVariadic
)

var elementwiseTags = map[string]ElementwiseTag{
	"Abs": tagAbs, "Neg": tagNeg, "Relu": tagRelu, "Sigmoid": tagSigmoid,
	"Tanh": tagTanh, "Sqrt": tagSqrt, "Exp": tagExp, "Log": tagLog,
	"Ceil": tagCeil, "Floor": tagFloor, "Not": tagNot,
	"Add": tagAdd, "Sub": tagSub, "Mul": tagMul, "Div": tagDiv, "Pow": tagPow,
	"And": tagAnd, "Or": tagOr, "Xor": tagXor,
	"Equal": tagEqual, "Greater": tagGreater, "Less": tagLess,
	"Sum": tagSum, "Min": tagMin, "Max": tagMax,
}

func (t ElementwiseTag) arity() arity {
	switch t {
	case tagAbs, tagNeg, tagRelu, tagSigmoid, tagTanh, tagSqrt, tagExp, tagLog, tagCeil, tagFloor, tagNot:
		return arityUnary
	case tagSum, tagMin, tagMax:
		return arityVariadic
	default:
		return arityBinary
	}
}

// cExpr returns the C expression computing this tag's result from operand
// expression strings (already bracket-indexed).
func (t ElementwiseTag) cExpr(operands ...string) string {
	a := operands[0]
	switch t {
	case tagAbs:
		return fmt.Sprintf("fabsf(%s)", a)
	case tagNeg:
		return fmt.Sprintf("-(%s)", a)
	case tagRelu:
		return fmt.Sprintf("(%s) > 0 ? (%s) : 0", a, a)
	case tagSigmoid:
		return fmt.Sprintf("1.0f / (1.0f + expf(-(%s)))", a)
	case tagTanh:
		return fmt.Sprintf("tanhf(%s)", a)
	case tagSqrt:
		return fmt.Sprintf("sqrtf(%s)", a)
	case tagExp:
		return fmt.Sprintf("expf(%s)", a)
	case tagLog:
		return fmt.Sprintf("logf(%s)", a)
	case tagCeil:
		return fmt.Sprintf("ceilf(%s)", a)
	case tagFloor:
		return fmt.Sprintf("floorf(%s)", a)
	case tagNot:
		return fmt.Sprintf("!(%s)", a)
	case tagAdd, tagSum:
		return joinBinary(operands, "+")
	case tagSub:
		return fmt.Sprintf("(%s) - (%s)", a, operands[1])
	case tagMul:
		return joinBinary(operands, "*")
	case tagDiv:
		return fmt.Sprintf("(%s) / (%s)", a, operands[1])
	case tagPow:
		return fmt.Sprintf("powf(%s, %s)", a, operands[1])
	case tagAnd:
		return fmt.Sprintf("(%s) && (%s)", a, operands[1])
	case tagOr:
		return fmt.Sprintf("(%s) || (%s)", a, operands[1])
	case tagXor:
		return fmt.Sprintf("(!(%s)) != (!(%s))", a, operands[1])
	case tagEqual:
		return fmt.Sprintf("(%s) == (%s)", a, operands[1])
	case tagGreater:
		return fmt.Sprintf("(%s) > (%s)", a, operands[1])
	case tagLess:
		return fmt.Sprintf("(%s) < (%s)", a, operands[1])
	case tagMin:
		return foldBinary(operands, "<")
	case tagMax:
		return foldBinary(operands, ">")
	default:
		return a
	}
}

func joinBinary(operands []string, op string) string {
	out := "(" + operands[0] + ")"
	for _, o := range operands[1:] {
		out += " " + op + " (" + o + ")"
	}
	return out
}

// foldBinary builds a nested ternary min/max fold over N>=2 operands using
// the comparison operator cmp ("<" for min, ">" for max).
func foldBinary(operands []string, cmp string) string {
	expr := operands[len(operands)-1]
	for i := len(operands) - 2; i >= 0; i-- {
		expr = fmt.Sprintf("(%s) %s (%s) ? (%s) : (%s)", operands[i], cmp, expr, operands[i], expr)
	}
	return expr
}

// Elementwise implements every unary/binary/variadic ONNX elementwise
// operator, sharing resolve/emit logic parameterized by Op (spec §4.3,
// §4.4, §8 property 7: the broadcast shape law).
type Elementwise struct {
	Op ElementwiseTag
}

func (e *Elementwise) ParseAttributes(op *ir.Operator, attrs ir.AttrMap) error {
	return requireKnownAttrs("Elementwise.ParseAttributes", attrs)
}

func (e *Elementwise) Resolve(op *ir.Operator) error {
	if len(op.Inputs) == 0 || op.Inputs[0] == nil {
		return ir.Fail(ir.BadInput, "Elementwise.Resolve", "missing required input 0")
	}
	dtype := op.Inputs[0].DataType
	shape := op.Inputs[0].Shape

	switch e.Op.arity() {
	case arityUnary:
		// shape/dtype pass through.
	default: // binary and variadic both fold broadcastShape pairwise.
		for _, in := range op.Inputs[1:] {
			if in == nil {
				return ir.Fail(ir.BadInput, "Elementwise.Resolve", "missing required input")
			}
			s, err := broadcastShape("Elementwise.Resolve", shape, in.Shape)
			if err != nil {
				return err
			}
			shape = s
		}
	}

	out := ir.NewTensor(op.OutputName(0, ""), dtype, shape)
	out.Generate = true
	op.RegisterOutput(out, "out0")
	return nil
}

func (e *Elementwise) EmitSignature(op *ir.Operator, w writer, decorate bool) {
	emitStandardSignature(op, w, decorate)
}

func (e *Elementwise) EmitBody(op *ir.Operator, w writer) {
	out := op.Outputs[0]
	depth := len(out.Shape)
	indent := emitNestedLoopsOpen(w, out.Shape, "  ")

	operands := make([]string, len(op.InputParams))
	for i, p := range op.InputParams {
		operands[i] = p.Local + broadcastIndexExpr(p.Tensor.Shape, depth)
	}
	expr := e.Op.cExpr(operands...)
	fmt.Fprintf(w, "%s%s%s = %s;\n", indent, op.OutputParams[0].Local, flatIndexExpr(depth), expr)

	emitNestedLoopsClose(w, depth, "  ")
}

// emitStandardSignature prints "<ctype> <local><dims>, ..." (decorate) or
// the comma-separated tensor C names (call site) for every non-nil
// InputParam then OutputParam, the shared shape used by most
// Behaviors' EmitSignature (spec §4.7: "params derived from input_params/
// output_params").
func emitStandardSignature(op *ir.Operator, w writer, decorate bool) {
	first := true
	write := func(p ir.Param) {
		if p.Tensor == nil {
			return
		}
		if !first {
			fmt.Fprint(w, ", ")
		}
		first = false
		if decorate {
			fmt.Fprintf(w, "%s %s%s", p.Tensor.DataType.CType(), p.Local, arrayDims(p.Tensor.Shape))
		} else {
			fmt.Fprint(w, p.Tensor.CName())
		}
	}
	for _, p := range op.InputParams {
		write(p)
	}
	for _, p := range op.OutputParams {
		write(p)
	}
}

func arrayDims(shape []int64) string {
	s := ""
	for _, d := range shape {
		s += fmt.Sprintf("[%d]", d)
	}
	return s
}
