package ops

import (
	"fmt"

	"github.com/onnx2c/onnx2c/internal/ir"
)

// PoolMode selects MaxPool vs AveragePool (spec §4.3: "Pooling shares the
// spatial-filter skeleton with Conv").
type PoolMode int

const (
	PoolMax PoolMode = iota
	PoolAverage
)

type Pool struct {
	Mode PoolMode

	autoPad         string
	pads            []int64
	strides         []int64
	dilations       []int64
	kernel          []int64
	ceilMode        bool
	countIncludePad bool
}

func (p *Pool) ParseAttributes(op *ir.Operator, attrs ir.AttrMap) error {
	allowed := []string{"auto_pad", "pads", "strides", "dilations", "kernel_shape", "ceil_mode"}
	if p.Mode == PoolAverage {
		allowed = append(allowed, "count_include_pad")
	}
	if err := requireKnownAttrs("Pool.ParseAttributes", attrs, allowed...); err != nil {
		return err
	}
	p.autoPad = attrString(attrs, "auto_pad", "NOTSET")
	p.pads = attrInts(attrs, "pads", nil)
	p.strides = attrInts(attrs, "strides", nil)
	p.dilations = attrInts(attrs, "dilations", nil)
	p.kernel = attrInts(attrs, "kernel_shape", nil)
	p.ceilMode = attrInt(attrs, "ceil_mode", 0) != 0
	p.countIncludePad = attrInt(attrs, "count_include_pad", 0) != 0
	return nil
}

func (p *Pool) Resolve(op *ir.Operator) error {
	if len(op.Inputs) == 0 || op.Inputs[0] == nil {
		return ir.Fail(ir.BadInput, "Pool.Resolve", "missing required input X")
	}
	x := op.Inputs[0]
	if p.kernel == nil {
		return ir.Fail(ir.BadInput, "Pool.Resolve", "kernel_shape is required")
	}
	k := len(p.kernel)
	if p.strides == nil {
		p.strides = onesOf(k)
	}
	if p.dilations == nil {
		p.dilations = onesOf(k)
	}

	outSpatial, pads, err := computeConvOutput(x.Shape[2:], p.kernel, p.strides, p.dilations, p.autoPad, p.pads)
	if err != nil {
		return err
	}
	p.pads = pads

	outShape := append([]int64{x.Shape[0], x.Shape[1]}, outSpatial...)
	out := ir.NewTensor(op.OutputName(0, ""), x.DataType, outShape)
	out.Generate = true
	op.RegisterOutput(out, "y")

	if op.OutputUsed != nil && len(op.OutputUsed) > 1 && op.OutputUsed[1] && p.Mode == PoolMax {
		idx := ir.NewTensor(op.OutputName(1, ""), ir.DInt64, outShape)
		idx.Generate = true
		op.RegisterOutput(idx, "indices")
	}
	return nil
}

func (p *Pool) EmitSignature(op *ir.Operator, w writer, decorate bool) {
	emitStandardSignature(op, w, decorate)
}

func (p *Pool) EmitBody(op *ir.Operator, w writer) {
	x := op.InputParams[0]
	out := op.Outputs[0]
	outLocal := op.OutputParams[0].Local
	k := len(p.kernel)
	n, ch := out.Shape[0], out.Shape[1]

	fmt.Fprintf(w, "  for (int n = 0; n < %d; n++) {\n", n)
	fmt.Fprintf(w, "    for (int c = 0; c < %d; c++) {\n", ch)

	outVars := make([]string, k)
	for i := 0; i < k; i++ {
		outVars[i] = fmt.Sprintf("o%d", i)
		fmt.Fprintf(w, "%sfor (int %s = 0; %s < %d; %s++) {\n", indentN(2+i), outVars[i], outVars[i], out.Shape[2+i], outVars[i])
	}
	outIdx := "[n][c]"
	for _, v := range outVars {
		outIdx += "[" + v + "]"
	}

	accumType := x.Tensor.DataType.CType()
	fmt.Fprintf(w, "%s%s acc = 0;\n", indentN(2+k), accumType)
	fmt.Fprintf(w, "%sint count = 0;\n", indentN(2+k))
	if p.Mode == PoolMax {
		fmt.Fprintf(w, "%sint have_val = 0;\n", indentN(2+k))
	}

	kVars := make([]string, k)
	inIdx := make([]string, k)
	cond := ""
	for i := 0; i < k; i++ {
		kVars[i] = fmt.Sprintf("kk%d", i)
		fmt.Fprintf(w, "%sfor (int %s = 0; %s < %d; %s++) {\n", indentN(3+k+i), kVars[i], kVars[i], p.kernel[i], kVars[i])
		inIdx[i] = fmt.Sprintf("in%d", i)
		fmt.Fprintf(w, "%sint %s = %s*%d - %d + %s*%d;\n", indentN(4+k+i), inIdx[i], outVars[i], p.strides[i], p.pads[i], kVars[i], p.dilations[i])
		if cond != "" {
			cond += " && "
		}
		cond += fmt.Sprintf("%s >= 0 && %s < %d", inIdx[i], inIdx[i], x.Tensor.Shape[2+i])
	}
	xIdx := "[n][c]"
	for _, v := range inIdx {
		xIdx += "[" + v + "]"
	}

	fmt.Fprintf(w, "%sif (%s) {\n", indentN(4+2*k), cond)
	switch p.Mode {
	case PoolMax:
		fmt.Fprintf(w, "%sif (!have_val || %s%s > acc) { acc = %s%s; have_val = 1; }\n", indentN(5+2*k), x.Local, xIdx, x.Local, xIdx)
	case PoolAverage:
		fmt.Fprintf(w, "%sacc += %s%s;\n", indentN(5+2*k), x.Local, xIdx)
		fmt.Fprintf(w, "%scount++;\n", indentN(5+2*k))
	}
	fmt.Fprintf(w, "%s}\n", indentN(4+2*k))
	if p.Mode == PoolAverage && p.countIncludePad {
		fmt.Fprintf(w, "%selse { count++; }\n", indentN(4+2*k))
	}

	for i := k - 1; i >= 0; i-- {
		fmt.Fprintf(w, "%s}\n", indentN(3+k+i))
	}

	if p.Mode == PoolAverage {
		fmt.Fprintf(w, "%s%s%s = count > 0 ? acc / count : 0;\n", indentN(2+k), outLocal, outIdx)
	} else {
		fmt.Fprintf(w, "%s%s%s = acc;\n", indentN(2+k), outLocal, outIdx)
	}

	for i := k - 1; i >= 0; i-- {
		fmt.Fprintf(w, "%s}\n", indentN(2+i))
	}
	fmt.Fprintf(w, "    }\n  }\n")
}
