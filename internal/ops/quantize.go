package ops

import (
	"fmt"

	"github.com/onnx2c/onnx2c/internal/ir"
)

// QuantizeLinear implements y = clamp(round(x/scale) + zero_point) per
// spec §9's quantization boundary.
type QuantizeLinear struct {
	axis int64
}

func (q *QuantizeLinear) ParseAttributes(op *ir.Operator, attrs ir.AttrMap) error {
	if err := requireKnownAttrs("QuantizeLinear.ParseAttributes", attrs, "axis"); err != nil {
		return err
	}
	q.axis = attrInt(attrs, "axis", 1)
	return nil
}

func (q *QuantizeLinear) Resolve(op *ir.Operator) error {
	if len(op.Inputs) < 2 || op.Inputs[0] == nil || op.Inputs[1] == nil {
		return ir.Fail(ir.BadInput, "QuantizeLinear.Resolve", "missing required x/y_scale input")
	}
	x := op.Inputs[0]
	outDtype := ir.DUint8
	if len(op.Inputs) > 2 && op.Inputs[2] != nil {
		outDtype = op.Inputs[2].DataType
	}
	out := ir.NewTensor(op.OutputName(0, ""), outDtype, x.Shape)
	out.Generate = true
	op.RegisterOutput(out, "y")
	return nil
}

func (q *QuantizeLinear) EmitSignature(op *ir.Operator, w writer, decorate bool) {
	emitStandardSignature(op, w, decorate)
}

func (q *QuantizeLinear) EmitBody(op *ir.Operator, w writer) {
	x := op.InputParams[0]
	scale := op.InputParams[1]
	out := op.Outputs[0]
	outLocal := op.OutputParams[0].Local
	var zp *ir.Param
	if len(op.InputParams) > 2 && op.InputParams[2].Tensor != nil {
		zp = &op.InputParams[2]
	}
	lo, hi := rangeOf(out.DataType)

	indent := emitNestedLoopsOpen(w, op.Inputs[0].Shape, "  ")
	zpExpr := "0"
	if zp != nil {
		zpExpr = fmt.Sprintf("%s", zp.Local)
	}
	idx := flatIndexExpr(len(op.Inputs[0].Shape))
	fmt.Fprintf(w, "%s{\n", indent)
	fmt.Fprintf(w, "%s  long q = lroundf(%s%s / %s) + %s;\n", indent, x.Local, idx, scale.Local, zpExpr)
	fmt.Fprintf(w, "%s  if (q < %d) q = %d;\n", indent, lo, lo)
	fmt.Fprintf(w, "%s  if (q > %d) q = %d;\n", indent, hi, hi)
	fmt.Fprintf(w, "%s  %s%s = (%s)q;\n", indent, outLocal, idx, out.DataType.CType())
	fmt.Fprintf(w, "%s}\n", indent)
	emitNestedLoopsClose(w, len(op.Inputs[0].Shape), "  ")
}

func rangeOf(d ir.DType) (int64, int64) {
	switch d {
	case ir.DInt8:
		return -128, 127
	case ir.DUint8:
		return 0, 255
	default:
		return -32768, 32767
	}
}

// DequantizeLinear implements y = (x - zero_point) * scale.
type DequantizeLinear struct {
	axis int64
}

func (d *DequantizeLinear) ParseAttributes(op *ir.Operator, attrs ir.AttrMap) error {
	if err := requireKnownAttrs("DequantizeLinear.ParseAttributes", attrs, "axis"); err != nil {
		return err
	}
	d.axis = attrInt(attrs, "axis", 1)
	return nil
}

func (d *DequantizeLinear) Resolve(op *ir.Operator) error {
	if len(op.Inputs) < 2 || op.Inputs[0] == nil || op.Inputs[1] == nil {
		return ir.Fail(ir.BadInput, "DequantizeLinear.Resolve", "missing required x/x_scale input")
	}
	x := op.Inputs[0]
	out := ir.NewTensor(op.OutputName(0, ""), ir.DFloat32, x.Shape)
	out.Generate = true
	op.RegisterOutput(out, "y")
	return nil
}

func (d *DequantizeLinear) EmitSignature(op *ir.Operator, w writer, decorate bool) {
	emitStandardSignature(op, w, decorate)
}

func (d *DequantizeLinear) EmitBody(op *ir.Operator, w writer) {
	x := op.InputParams[0]
	scale := op.InputParams[1]
	outLocal := op.OutputParams[0].Local
	var zp *ir.Param
	if len(op.InputParams) > 2 && op.InputParams[2].Tensor != nil {
		zp = &op.InputParams[2]
	}

	indent := emitNestedLoopsOpen(w, op.Inputs[0].Shape, "  ")
	idx := flatIndexExpr(len(op.Inputs[0].Shape))
	if zp != nil {
		fmt.Fprintf(w, "%s%s%s = (%s%s - %s) * %s;\n", indent, outLocal, idx, x.Local, idx, zp.Local, scale.Local)
	} else {
		fmt.Fprintf(w, "%s%s%s = %s%s * %s;\n", indent, outLocal, idx, x.Local, idx, scale.Local)
	}
	emitNestedLoopsClose(w, len(op.Inputs[0].Shape), "  ")
}

// DynamicQuantizeLinear computes scale/zero_point from the runtime min/max
// of x and quantizes to uint8, per spec §9.
type DynamicQuantizeLinear struct{}

func (d *DynamicQuantizeLinear) ParseAttributes(op *ir.Operator, attrs ir.AttrMap) error {
	return requireKnownAttrs("DynamicQuantizeLinear.ParseAttributes", attrs)
}

func (d *DynamicQuantizeLinear) Resolve(op *ir.Operator) error {
	if len(op.Inputs) == 0 || op.Inputs[0] == nil {
		return ir.Fail(ir.BadInput, "DynamicQuantizeLinear.Resolve", "missing required x input")
	}
	x := op.Inputs[0]
	y := ir.NewTensor(op.OutputName(0, ""), ir.DUint8, x.Shape)
	y.Generate = true
	op.RegisterOutput(y, "y")
	scale := ir.NewTensor(op.OutputName(1, "y_scale"), ir.DFloat32, nil)
	scale.Generate = true
	op.RegisterOutput(scale, "y_scale")
	zp := ir.NewTensor(op.OutputName(2, "y_zero_point"), ir.DUint8, nil)
	zp.Generate = true
	op.RegisterOutput(zp, "y_zero_point")
	return nil
}

func (d *DynamicQuantizeLinear) EmitSignature(op *ir.Operator, w writer, decorate bool) {
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

func (d *DynamicQuantizeLinear) EmitBody(op *ir.Operator, w writer) {
	x := op.InputParams[0]
	y := op.OutputParams[0]
	yScale := op.OutputParams[1]
	yZp := op.OutputParams[2]
	n := product(op.Inputs[0].Shape)

	fmt.Fprintf(w, "  {\n")
	fmt.Fprintf(w, "    float xmin = 0, xmax = 0;\n")
	fmt.Fprintf(w, "    for (int i = 0; i < %d; i++) {\n", n)
	fmt.Fprintf(w, "      float v = ((float*)%s)[i];\n", x.Local)
	fmt.Fprintf(w, "      if (v < xmin) xmin = v;\n")
	fmt.Fprintf(w, "      if (v > xmax) xmax = v;\n")
	fmt.Fprintf(w, "    }\n")
	fmt.Fprintf(w, "    float scale = (xmax - xmin) / 255.0f;\n")
	fmt.Fprintf(w, "    if (scale == 0.0f) scale = 1.0f;\n")
	fmt.Fprintf(w, "    float zp_f = -xmin / scale;\n")
	fmt.Fprintf(w, "    if (zp_f < 0) zp_f = 0;\n")
	fmt.Fprintf(w, "    if (zp_f > 255) zp_f = 255;\n")
	fmt.Fprintf(w, "    unsigned char zp = (unsigned char)lroundf(zp_f);\n")
	fmt.Fprintf(w, "    %s = scale;\n", yScale.Local)
	fmt.Fprintf(w, "    %s = zp;\n", yZp.Local)
	fmt.Fprintf(w, "    for (int i = 0; i < %d; i++) {\n", n)
	fmt.Fprintf(w, "      long q = lroundf(((float*)%s)[i] / scale) + zp;\n", x.Local)
	fmt.Fprintf(w, "      if (q < 0) q = 0;\n")
	fmt.Fprintf(w, "      if (q > 255) q = 255;\n")
	fmt.Fprintf(w, "      ((unsigned char*)%s)[i] = (unsigned char)q;\n", y.Local)
	fmt.Fprintf(w, "    }\n")
	fmt.Fprintf(w, "  }\n")
}
