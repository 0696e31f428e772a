package ops

import (
	"fmt"

	"github.com/onnx2c/onnx2c/internal/ir"
)

// Conv implements the convolution family (spec §4.3's first representative
// contract): Conv when Integer is false, ConvInteger when true (the
// quantization-time substitute wired by the resolver per spec §4.1/§9).
type Conv struct {
	Integer bool

	autoPad   string
	pads      []int64
	strides   []int64
	dilations []int64
	group     int64
	kernel    []int64
}

func (c *Conv) ParseAttributes(op *ir.Operator, attrs ir.AttrMap) error {
	if err := requireKnownAttrs("Conv.ParseAttributes", attrs,
		"auto_pad", "pads", "strides", "dilations", "group", "kernel_shape"); err != nil {
		return err
	}
	c.autoPad = attrString(attrs, "auto_pad", "NOTSET")
	c.pads = attrInts(attrs, "pads", nil)
	c.strides = attrInts(attrs, "strides", nil)
	c.dilations = attrInts(attrs, "dilations", nil)
	c.group = attrInt(attrs, "group", 1)
	c.kernel = attrInts(attrs, "kernel_shape", nil)
	return nil
}

func (c *Conv) Resolve(op *ir.Operator) error {
	if len(op.Inputs) < 2 || op.Inputs[0] == nil || op.Inputs[1] == nil {
		return ir.Fail(ir.BadInput, "Conv.Resolve", "missing required input X or W")
	}
	x, w := op.Inputs[0], op.Inputs[1]
	xOK := isAllFloatingPoints(x.DataType)
	if c.Integer {
		xOK = is8Bit(x.DataType)
	}
	if err := checkConstraint("Conv.Resolve", "X", x.DataType, xOK); err != nil {
		return err
	}
	wOK := isAllFloatingPoints(w.DataType)
	if c.Integer {
		wOK = is8Bit(w.DataType)
	}
	if err := checkConstraint("Conv.Resolve", "W", w.DataType, wOK); err != nil {
		return err
	}
	if len(x.Shape) < 3 {
		return ir.Fail(ir.IncorrectInput, "Conv.Resolve", "X must have rank >= 3, got %d", len(x.Shape))
	}
	k := len(x.Shape) - 2
	if c.kernel == nil {
		c.kernel = w.Shape[2:]
	}
	if c.strides == nil {
		c.strides = onesOf(k)
	}
	if c.dilations == nil {
		c.dilations = onesOf(k)
	}

	outSpatial, pads, err := computeConvOutput(x.Shape[2:], c.kernel, c.strides, c.dilations, c.autoPad, c.pads)
	if err != nil {
		return err
	}
	c.pads = pads

	m := w.Shape[0]
	outShape := append([]int64{x.Shape[0], m}, outSpatial...)

	outDtype := x.DataType
	if c.Integer {
		outDtype = ir.DInt32
	}
	out := ir.NewTensor(op.OutputName(0, ""), outDtype, outShape)
	out.Generate = true
	op.RegisterOutput(out, "y")
	return nil
}

// onesOf returns a length-n slice of 1s (the default stride/dilation).
func onesOf(n int) []int64 {
	s := make([]int64, n)
	for i := range s {
		s[i] = 1
	}
	return s
}

// computeConvOutput implements the spatial-filter output-size formula
// shared by Conv and Pool (spec §4.3: "Pooling shares the spatial-filter
// skeleton with Conv"), returning the resolved per-axis output extents and
// the begin/end pad pairs actually used.
func computeConvOutput(inSpatial, kernel, strides, dilations []int64, autoPad string, padsIn []int64) ([]int64, []int64, error) {
	k := len(inSpatial)
	pads := make([]int64, 2*k)
	copy(pads, padsIn)
	out := make([]int64, k)

	for i := 0; i < k; i++ {
		effKernel := (kernel[i]-1)*dilations[i] + 1
		switch autoPad {
		case "", "NOTSET":
			out[i] = (inSpatial[i]+pads[i]+pads[i+k]-effKernel)/strides[i] + 1
		case "VALID":
			pads[i], pads[i+k] = 0, 0
			out[i] = (inSpatial[i]-effKernel)/strides[i] + 1
		case "SAME_UPPER", "SAME_LOWER":
			out[i] = ceilDiv(inSpatial[i], strides[i])
			total := (out[i]-1)*strides[i] + effKernel - inSpatial[i]
			if total < 0 {
				total = 0
			}
			begin := total / 2
			end := total - begin
			if autoPad == "SAME_LOWER" {
				begin, end = end, begin
			}
			pads[i], pads[i+k] = begin, end
		default:
			return nil, nil, ir.Fail(ir.UnimplementedFeature, "computeConvOutput", "unsupported auto_pad %q", autoPad)
		}
		if out[i] <= 0 {
			return nil, nil, ir.Fail(ir.IncorrectInput, "computeConvOutput", "non-positive output extent at spatial axis %d", i)
		}
	}
	return out, pads, nil
}

func ceilDiv(a, b int64) int64 { return (a + b - 1) / b }

func (c *Conv) EmitSignature(op *ir.Operator, w writer, decorate bool) {
	emitStandardSignature(op, w, decorate)
}

func (c *Conv) EmitBody(op *ir.Operator, w writer) {
	x := op.InputParams[0]
	wgt := op.InputParams[1]
	var bias *ir.Param
	if len(op.InputParams) > 2 && op.InputParams[2].Tensor != nil {
		bias = &op.InputParams[2]
	}
	out := op.Outputs[0]
	outLocal := op.OutputParams[0].Local
	k := len(c.kernel)
	n, m := out.Shape[0], out.Shape[1]
	cPerGroup := x.Tensor.Shape[1] / c.group
	mPerGroup := m / c.group

	fmt.Fprintf(w, "  for (int n = 0; n < %d; n++) {\n", n)
	fmt.Fprintf(w, "    for (int m = 0; m < %d; m++) {\n", m)
	fmt.Fprintf(w, "      int g = m / %d;\n", mPerGroup)

	outVars := make([]string, k)
	for i := 0; i < k; i++ {
		outVars[i] = fmt.Sprintf("o%d", i)
		fmt.Fprintf(w, "%sfor (int %s = 0; %s < %d; %s++) {\n", indentN(3+i), outVars[i], outVars[i], out.Shape[2+i], outVars[i])
	}

	outIdx := "[n][m]"
	for _, v := range outVars {
		outIdx += "[" + v + "]"
	}
	if bias != nil {
		fmt.Fprintf(w, "%s%s%s = %s[m];\n", indentN(3+k), outLocal, outIdx, bias.Local)
	} else {
		acc := "0"
		if c.Integer {
			acc = "0"
		}
		fmt.Fprintf(w, "%s%s%s = %s;\n", indentN(3+k), outLocal, outIdx, acc)
	}
	_ = wgt

	fmt.Fprintf(w, "%sfor (int c = 0; c < %d; c++) {\n", indentN(3+k), cPerGroup)
	kVars := make([]string, k)
	cond := ""
	inIdx := make([]string, k)
	for i := 0; i < k; i++ {
		kVars[i] = fmt.Sprintf("kk%d", i)
		fmt.Fprintf(w, "%sfor (int %s = 0; %s < %d; %s++) {\n", indentN(4+k+i), kVars[i], kVars[i], c.kernel[i], kVars[i])
		inIdx[i] = fmt.Sprintf("in%d", i)
		fmt.Fprintf(w, "%sint %s = %s*%d - %d + %s*%d;\n", indentN(5+k+i), inIdx[i], outVars[i], c.strides[i], c.pads[i], kVars[i], c.dilations[i])
		if cond != "" {
			cond += " && "
		}
		cond += fmt.Sprintf("%s >= 0 && %s < %d", inIdx[i], inIdx[i], x.Tensor.Shape[2+i])
	}
	fmt.Fprintf(w, "%sif (%s) {\n", indentN(5+2*k), cond)

	xIdx := "[n][g*" + itoaStr(int(cPerGroup)) + "+c]"
	for _, v := range inIdx {
		xIdx += "[" + v + "]"
	}
	wIdx := "[m][c]"
	for _, v := range kVars {
		wIdx += "[" + v + "]"
	}
	fmt.Fprintf(w, "%s%s%s += %s%s * %s%s;\n", indentN(6+2*k), outLocal, outIdx, x.Local, xIdx, wgt.Local, wIdx)
	fmt.Fprintf(w, "%s}\n", indentN(5+2*k))
	for i := k - 1; i >= 0; i-- {
		fmt.Fprintf(w, "%s}\n", indentN(4+k+i))
	}
	fmt.Fprintf(w, "%s}\n", indentN(3+k))

	if c.Integer {
		fmt.Fprintf(w, "%sif (%s%s > 127) %s%s = 127;\n", indentN(3+k), outLocal, outIdx, outLocal, outIdx)
		fmt.Fprintf(w, "%sif (%s%s < -127) %s%s = -127;\n", indentN(3+k), outLocal, outIdx, outLocal, outIdx)
	}

	for i := k - 1; i >= 0; i-- {
		fmt.Fprintf(w, "%s}\n", indentN(3+i))
	}
	fmt.Fprintf(w, "    }\n  }\n")
}

func indentN(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += "  "
	}
	return s
}

func itoaStr(n int) string {
	return fmt.Sprintf("%d", n)
}
