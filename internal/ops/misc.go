package ops

import (
	"fmt"
	"math"

	"github.com/onnx2c/onnx2c/internal/ir"
)

// Identity implements Identity and, when SecondOutputMask is set, Dropout
// in inference mode (spec §4.2 supplement): training-time dropout has no
// meaning for a fixed AOT target, so the pack-through behavior ONNX itself
// specifies for eval mode is all that's built.
type Identity struct {
	SecondOutputMask bool
}

func (i *Identity) ParseAttributes(op *ir.Operator, attrs ir.AttrMap) error {
	return requireKnownAttrs("Identity.ParseAttributes", attrs, "seed")
}

func (i *Identity) Resolve(op *ir.Operator) error {
	if len(op.Inputs) == 0 || op.Inputs[0] == nil {
		return ir.Fail(ir.BadInput, "Identity.Resolve", "missing required input")
	}
	in := op.Inputs[0]
	out := ir.NewTensor(op.OutputName(0, ""), in.DataType, in.Shape)
	out.Generate = true
	op.RegisterOutput(out, "y")
	if i.SecondOutputMask && len(op.OutputUsed) > 1 && op.OutputUsed[1] {
		mask := ir.NewTensor(op.OutputName(1, "mask"), ir.DBool, in.Shape)
		mask.Generate = true
		op.RegisterOutput(mask, "mask")
	}
	return nil
}

func (i *Identity) EmitSignature(op *ir.Operator, w writer, decorate bool) {
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
	write(op.InputParams[0])
	for _, p := range op.OutputParams {
		write(p)
	}
}

func (i *Identity) EmitBody(op *ir.Operator, w writer) {
	in := op.InputParams[0]
	out := op.OutputParams[0]
	n := product(op.Inputs[0].Shape)
	ctype := op.Inputs[0].DataType.CType()
	fmt.Fprintf(w, "  memcpy(%s, %s, %d * sizeof(%s));\n", out.Local, in.Local, n, ctype)
	if len(op.OutputParams) > 1 && op.OutputParams[1].Tensor != nil {
		mask := op.OutputParams[1]
		fmt.Fprintf(w, "  memset(%s, 0, %d * sizeof(uint8_t));\n", mask.Local, n)
	}
}

// Clip implements y = min(max(x, min), max) with optional min/max inputs
// (ONNX opset >= 11 moved these from attributes to inputs; this compiler
// accepts only the input form since that is what the resolver's constant
// folding already requires elsewhere).
type Clip struct{}

func (c *Clip) ParseAttributes(op *ir.Operator, attrs ir.AttrMap) error {
	return requireKnownAttrs("Clip.ParseAttributes", attrs)
}

func (c *Clip) Resolve(op *ir.Operator) error {
	if len(op.Inputs) == 0 || op.Inputs[0] == nil {
		return ir.Fail(ir.BadInput, "Clip.Resolve", "missing required input")
	}
	in := op.Inputs[0]
	out := ir.NewTensor(op.OutputName(0, ""), in.DataType, in.Shape)
	out.Generate = true
	op.RegisterOutput(out, "y")
	return nil
}

func (c *Clip) EmitSignature(op *ir.Operator, w writer, decorate bool) {
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
	write(op.InputParams[0])
	write(op.OutputParams[0])
}

func (c *Clip) EmitBody(op *ir.Operator, w writer) {
	in := op.InputParams[0]
	out := op.OutputParams[0]
	n := product(op.Inputs[0].Shape)
	ctype := op.Inputs[0].DataType.CType()

	var minExpr, maxExpr string
	if len(op.Inputs) > 1 && op.Inputs[1] != nil && op.Inputs[1].Initialize {
		minExpr = fmt.Sprintf("%g", op.Inputs[1].Float32At(0))
	}
	if len(op.Inputs) > 2 && op.Inputs[2] != nil && op.Inputs[2].Initialize {
		maxExpr = fmt.Sprintf("%g", op.Inputs[2].Float32At(0))
	}

	fmt.Fprintf(w, "  for (int i = 0; i < %d; i++) {\n", n)
	fmt.Fprintf(w, "    %s v = ((%s*)%s)[i];\n", ctype, ctype, in.Local)
	if minExpr != "" {
		fmt.Fprintf(w, "    if (v < %s) v = %s;\n", minExpr, minExpr)
	}
	if maxExpr != "" {
		fmt.Fprintf(w, "    if (v > %s) v = %s;\n", maxExpr, maxExpr)
	}
	fmt.Fprintf(w, "    ((%s*)%s)[i] = v;\n", ctype, out.Local)
	fmt.Fprintf(w, "  }\n")
}

// Constant materializes its value attribute as a compile-time tensor; it
// consumes no runtime inputs and emits no body (the value becomes global
// initialized storage, same as any other constant tensor).
type Constant struct{}

func (c *Constant) ParseAttributes(op *ir.Operator, attrs ir.AttrMap) error {
	return nil
}

func (c *Constant) Resolve(op *ir.Operator) error {
	a, ok := op.Attrs["value"]
	if !ok {
		return ir.Fail(ir.UnimplementedFeature, "Constant.Resolve", "only the tensor-valued 'value' attribute form is supported")
	}
	t := a.T
	if t == nil {
		return ir.Fail(ir.BadInput, "Constant.Resolve", "value attribute missing its tensor payload")
	}
	shape := make([]int64, len(t.Dims))
	copy(shape, t.Dims)
	out := ir.NewTensor(op.OutputName(0, ""), ir.DTypeFromONNX(t.DataType), shape)
	out.IsConst = true
	out.Initialize = true
	out.Generate = true
	out.Buffer = ir.BufferFromProto(t, out.DataType)
	op.RegisterOutput(out, "y")
	return nil
}

func (c *Constant) EmitSignature(op *ir.Operator, w writer, decorate bool) {}
func (c *Constant) EmitBody(op *ir.Operator, w writer)                    {}

// ConstantOfShape fills a tensor of the given (compile-time constant)
// shape with a single repeated value.
type ConstantOfShape struct {
	fill []byte
}

func (c *ConstantOfShape) ParseAttributes(op *ir.Operator, attrs ir.AttrMap) error {
	return requireKnownAttrs("ConstantOfShape.ParseAttributes", attrs, "value")
}

func (c *ConstantOfShape) Resolve(op *ir.Operator) error {
	if len(op.Inputs) == 0 || op.Inputs[0] == nil {
		return ir.Fail(ir.BadInput, "ConstantOfShape.Resolve", "missing required shape input")
	}
	shapeT := op.Inputs[0]
	shape, err := constantInts("ConstantOfShape.Resolve", "input", shapeT)
	if err != nil {
		return err
	}
	dtype := ir.DFloat32
	var fillBytes []byte
	if a, ok := op.Attrs["value"]; ok && a.T != nil {
		dtype = ir.DTypeFromONNX(a.T.DataType)
		fillBytes = ir.BufferFromProto(a.T, dtype)
	} else {
		fillBytes = make([]byte, dtype.Size())
	}

	out := ir.NewTensor(op.OutputName(0, ""), dtype, shape)
	out.Generate = true
	op.RegisterOutput(out, "y")
	c.fill = fillBytes
	return nil
}

func (c *ConstantOfShape) EmitSignature(op *ir.Operator, w writer, decorate bool) {
	emitStandardSignature(op, w, decorate)
}

func (c *ConstantOfShape) EmitBody(op *ir.Operator, w writer) {
	out := op.OutputParams[0]
	n := product(op.Outputs[0].Shape)
	dtype := op.Outputs[0].DataType
	fillVal := "0"
	if len(c.fill) > 0 {
		fillVal = literalFromBytes(dtype, c.fill)
	}
	fmt.Fprintf(w, "  for (int i = 0; i < %d; i++) ((%s*)%s)[i] = %s;\n", n, dtype.CType(), out.Local, fillVal)
}

func literalFromBytes(dtype ir.DType, b []byte) string {
	if dtype.IsFloat() {
		return fmt.Sprintf("%g", float32FromLE(b))
	}
	var v int64
	for i, by := range b {
		if i >= 8 {
			break
		}
		v |= int64(by) << (8 * uint(i))
	}
	return fmt.Sprintf("%d", v)
}

func float32FromLE(b []byte) float32 {
	var bits uint32
	for i := 0; i < 4 && i < len(b); i++ {
		bits |= uint32(b[i]) << (8 * uint(i))
	}
	return math.Float32frombits(bits)
}

// Shape materializes the input tensor's shape as an int64 tensor,
// computable entirely at compile time.
type Shape struct{}

func (s *Shape) ParseAttributes(op *ir.Operator, attrs ir.AttrMap) error {
	return requireKnownAttrs("Shape.ParseAttributes", attrs, "start", "end")
}

func (s *Shape) Resolve(op *ir.Operator) error {
	if len(op.Inputs) == 0 || op.Inputs[0] == nil {
		return ir.Fail(ir.BadInput, "Shape.Resolve", "missing required input")
	}
	rank := len(op.Inputs[0].Shape)
	start := int(attrInt(op.Attrs, "start", 0))
	end := rank
	if v, ok := op.Attrs["end"]; ok {
		end = int(v.I)
	}
	if start < 0 {
		start += rank
	}
	if end < 0 {
		end += rank
	}
	if start < 0 {
		start = 0
	}
	if end > rank {
		end = rank
	}
	vals := op.Inputs[0].Shape[start:end]

	out := ir.NewTensor(op.OutputName(0, ""), ir.DInt64, []int64{int64(len(vals))})
	out.IsConst = true
	out.Initialize = true
	out.Buffer = make([]byte, len(vals)*8)
	for i, v := range vals {
		for b := 0; b < 8; b++ {
			out.Buffer[i*8+b] = byte(v >> (8 * uint(b)))
		}
	}
	op.RegisterOutput(out, "y")
	return nil
}

func (s *Shape) EmitSignature(op *ir.Operator, w writer, decorate bool) {}
func (s *Shape) EmitBody(op *ir.Operator, w writer)                    {}
