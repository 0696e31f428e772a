package ops

import (
	"fmt"

	"github.com/onnx2c/onnx2c/internal/ir"
)

// constantInts reads tensor t (which must be a resolved compile-time
// constant) as an []int64, failing with UnsupportedDynamicShape per spec
// §4.3 ("Slice / Gather / Pad / Resize / ScatterND... require their
// index/shape parameters to be compile-time constants").
func constantInts(site, label string, t *ir.Tensor) ([]int64, error) {
	if t == nil {
		return nil, nil
	}
	if !t.Initialize {
		return nil, ir.Fail(ir.UnsupportedDynamicShape, site, "%s must be a compile-time constant", label)
	}
	switch t.DataType {
	case ir.DInt64:
		return t.AllInt64(), nil
	case ir.DInt32:
		vals := make([]int64, t.NumElements())
		// Int32 initializers are packed the same little-endian way;
		// reuse Int64At's layout by re-reading 4-byte lanes directly.
		for i := range vals {
			off := int64(i) * 4
			vals[i] = int64(int32(uint32(t.Buffer[off]) | uint32(t.Buffer[off+1])<<8 | uint32(t.Buffer[off+2])<<16 | uint32(t.Buffer[off+3])<<24))
		}
		return vals, nil
	default:
		return nil, ir.Fail(ir.IncorrectInput, site, "%s has unsupported integer dtype %s", label, t.DataType)
	}
}

// Slice requires starts/ends/axes/steps to be compile-time constants.
type Slice struct {
	starts, ends, axes, steps []int64
}

func (s *Slice) ParseAttributes(op *ir.Operator, attrs ir.AttrMap) error {
	return requireKnownAttrs("Slice.ParseAttributes", attrs)
}

func (s *Slice) Resolve(op *ir.Operator) error {
	if len(op.Inputs) < 3 || op.Inputs[0] == nil {
		return ir.Fail(ir.BadInput, "Slice.Resolve", "missing required data/starts/ends input")
	}
	data := op.Inputs[0]
	var err error
	if s.starts, err = constantInts("Slice.Resolve", "starts", op.Inputs[1]); err != nil {
		return err
	}
	if s.ends, err = constantInts("Slice.Resolve", "ends", op.Inputs[2]); err != nil {
		return err
	}
	s.axes = nil
	if len(op.Inputs) > 3 {
		if s.axes, err = constantInts("Slice.Resolve", "axes", op.Inputs[3]); err != nil {
			return err
		}
	}
	if s.axes == nil {
		s.axes = make([]int64, len(s.starts))
		for i := range s.axes {
			s.axes[i] = int64(i)
		}
	}
	s.steps = make([]int64, len(s.starts))
	for i := range s.steps {
		s.steps[i] = 1
	}
	if len(op.Inputs) > 4 {
		if steps, err := constantInts("Slice.Resolve", "steps", op.Inputs[4]); err != nil {
			return err
		} else if steps != nil {
			s.steps = steps
		}
	}

	outShape := append([]int64(nil), data.Shape...)
	for i, axis := range s.axes {
		a := normalizeAxis(axis, len(data.Shape))
		dim := data.Shape[a]
		start := clampIndex(s.starts[i], dim)
		end := clampIndex(s.ends[i], dim)
		step := s.steps[i]
		if step == 0 {
			return ir.Fail(ir.IncorrectInput, "Slice.Resolve", "step must be non-zero")
		}
		count := int64(0)
		if step > 0 && end > start {
			count = (end - start + step - 1) / step
		} else if step < 0 && start > end {
			count = (start - end + (-step) - 1) / (-step)
		}
		outShape[a] = count
	}

	out := ir.NewTensor(op.OutputName(0, ""), data.DataType, outShape)
	out.Generate = true
	op.RegisterOutput(out, "y")
	return nil
}

func clampIndex(v, dim int64) int64 {
	if v < 0 {
		v += dim
	}
	if v < 0 {
		v = 0
	}
	if v > dim {
		v = dim
	}
	return v
}

func (s *Slice) EmitSignature(op *ir.Operator, w writer, decorate bool) {
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

func (s *Slice) EmitBody(op *ir.Operator, w writer) {
	data := op.InputParams[0]
	out := op.OutputParams[0]
	outShape := op.Outputs[0].Shape
	rank := len(outShape)

	starts := make([]int64, rank)
	steps := onesOf(rank)
	for i, axis := range s.axes {
		a := normalizeAxis(axis, rank)
		starts[a] = clampIndex(s.starts[i], op.Inputs[0].Shape[a])
		steps[a] = s.steps[i]
	}

	indent := emitNestedLoopsOpen(w, outShape, "  ")
	inExpr := ""
	for axis := 0; axis < rank; axis++ {
		inExpr += fmt.Sprintf("[%d + %s*%d]", starts[axis], loopVar(axis), steps[axis])
	}
	fmt.Fprintf(w, "%s%s%s = %s%s;\n", indent, out.Local, flatIndexExpr(rank), data.Local, inExpr)
	emitNestedLoopsClose(w, rank, "  ")
}

// Gather gathers along a single axis using a compile-time constant Indices
// tensor.
type Gather struct {
	axis int64
}

func (g *Gather) ParseAttributes(op *ir.Operator, attrs ir.AttrMap) error {
	if err := requireKnownAttrs("Gather.ParseAttributes", attrs, "axis"); err != nil {
		return err
	}
	g.axis = attrInt(attrs, "axis", 0)
	return nil
}

func (g *Gather) Resolve(op *ir.Operator) error {
	if len(op.Inputs) < 2 || op.Inputs[0] == nil || op.Inputs[1] == nil {
		return ir.Fail(ir.BadInput, "Gather.Resolve", "missing required data/indices input")
	}
	data, indices := op.Inputs[0], op.Inputs[1]
	if !indices.Initialize {
		return ir.Fail(ir.UnsupportedDynamicShape, "Gather.Resolve", "indices must be a compile-time constant")
	}
	axis := normalizeAxis(g.axis, len(data.Shape))
	g.axis = int64(axis)

	outShape := append([]int64(nil), data.Shape[:axis]...)
	outShape = append(outShape, indices.Shape...)
	outShape = append(outShape, data.Shape[axis+1:]...)

	out := ir.NewTensor(op.OutputName(0, ""), data.DataType, outShape)
	out.Generate = true
	op.RegisterOutput(out, "y")
	return nil
}

func (g *Gather) EmitSignature(op *ir.Operator, w writer, decorate bool) {
	emitStandardSignature(op, w, decorate)
}

func (g *Gather) EmitBody(op *ir.Operator, w writer) {
	data := op.InputParams[0]
	indices := op.InputParams[1]
	out := op.OutputParams[0]
	outShape := op.Outputs[0].Shape
	rank := len(outShape)
	axis := int(g.axis)
	idxRank := len(op.Inputs[1].Shape)
	dataRank := len(op.Inputs[0].Shape)

	indent := emitNestedLoopsOpen(w, outShape, "  ")

	indicesIdx := ""
	for i := 0; i < idxRank; i++ {
		indicesIdx += "[" + loopVar(axis+i) + "]"
	}
	dataIdx := ""
	for i := 0; i < axis; i++ {
		dataIdx += "[" + loopVar(i) + "]"
	}
	dataIdx += "[" + indices.Local + indicesIdx + "]"
	for i := axis + 1; i < dataRank; i++ {
		dataIdx += "[" + loopVar(i-1+idxRank) + "]"
	}

	fmt.Fprintf(w, "%s%s%s = %s%s;\n", indent, out.Local, flatIndexExpr(rank), data.Local, dataIdx)
	emitNestedLoopsClose(w, rank, "  ")
}

// Pad implements modes {constant, edge, reflect} (spec §4.3); cubic-like
// unsupported modes are rejected with UnimplementedFeature.
type Pad struct {
	mode         string
	constantVal  float64
	padsResolved []int64
}

func (p *Pad) ParseAttributes(op *ir.Operator, attrs ir.AttrMap) error {
	if err := requireKnownAttrs("Pad.ParseAttributes", attrs, "mode", "value"); err != nil {
		return err
	}
	p.mode = attrString(attrs, "mode", "constant")
	switch p.mode {
	case "constant", "edge", "reflect":
	default:
		return ir.Fail(ir.UnimplementedFeature, "Pad.ParseAttributes", "unsupported pad mode %q", p.mode)
	}
	p.constantVal = float64(attrFloat(attrs, "value", 0))
	return nil
}

func (p *Pad) Resolve(op *ir.Operator) error {
	if len(op.Inputs) < 2 || op.Inputs[0] == nil || op.Inputs[1] == nil {
		return ir.Fail(ir.BadInput, "Pad.Resolve", "missing required data/pads input")
	}
	data, pads := op.Inputs[0], op.Inputs[1]
	padVals, err := constantInts("Pad.Resolve", "pads", pads)
	if err != nil {
		return err
	}
	if len(op.Inputs) > 2 && op.Inputs[2] != nil {
		if !op.Inputs[2].Initialize {
			return ir.Fail(ir.UnsupportedDynamicShape, "Pad.Resolve", "constant_value must be a compile-time constant")
		}
		if op.Inputs[2].DataType.IsFloat() {
			p.constantVal = float64(op.Inputs[2].Float32At(0))
		}
	}
	rank := len(data.Shape)
	outShape := make([]int64, rank)
	for i := 0; i < rank; i++ {
		outShape[i] = data.Shape[i] + padVals[i] + padVals[i+rank]
	}
	out := ir.NewTensor(op.OutputName(0, ""), data.DataType, outShape)
	out.Generate = true
	op.RegisterOutput(out, "y")
	p.padsResolved = padVals
	return nil
}

func (p *Pad) EmitSignature(op *ir.Operator, w writer, decorate bool) {
	first := true
	write := func(param ir.Param) {
		if param.Tensor == nil {
			return
		}
		if !first {
			fmt.Fprint(w, ", ")
		}
		first = false
		if decorate {
			fmt.Fprintf(w, "%s %s%s", param.Tensor.DataType.CType(), param.Local, arrayDims(param.Tensor.Shape))
		} else {
			fmt.Fprint(w, param.Tensor.CName())
		}
	}
	write(op.InputParams[0])
	write(op.OutputParams[0])
}

func (p *Pad) EmitBody(op *ir.Operator, w writer) {
	data := op.InputParams[0]
	out := op.OutputParams[0]
	outShape := op.Outputs[0].Shape
	inShape := op.Inputs[0].Shape
	rank := len(outShape)

	indent := emitNestedLoopsOpen(w, outShape, "  ")
	cond := ""
	inExpr := ""
	for axis := 0; axis < rank; axis++ {
		begin := p.padsResolved[axis]
		srcExpr := fmt.Sprintf("(%s - %d)", loopVar(axis), begin)
		switch p.mode {
		case "edge":
			srcExpr = fmt.Sprintf("clampi(%s - %d, 0, %d)", loopVar(axis), begin, inShape[axis]-1)
		case "reflect":
			srcExpr = fmt.Sprintf("reflecti(%s - %d, %d)", loopVar(axis), begin, inShape[axis])
		}
		inExpr += "[" + srcExpr + "]"
		if p.mode == "constant" {
			if cond != "" {
				cond += " && "
			}
			cond += fmt.Sprintf("(%s - %d) >= 0 && (%s - %d) < %d", loopVar(axis), begin, loopVar(axis), begin, inShape[axis])
		}
	}
	if p.mode == "constant" {
		fmt.Fprintf(w, "%sif (%s) {\n", indent, cond)
		fmt.Fprintf(w, "%s  %s%s = %s%s;\n", indent, out.Local, flatIndexExpr(rank), data.Local, inExpr)
		fmt.Fprintf(w, "%s} else {\n", indent)
		fmt.Fprintf(w, "%s  %s%s = %g;\n", indent, out.Local, flatIndexExpr(rank), p.constantVal)
		fmt.Fprintf(w, "%s}\n", indent)
	} else {
		fmt.Fprintf(w, "%s%s%s = %s%s;\n", indent, out.Local, flatIndexExpr(rank), data.Local, inExpr)
	}
	emitNestedLoopsClose(w, rank, "  ")
}

// Resize handles coordinate-transformation modes {half_pixel,
// tf_half_pixel_for_nn, asymmetric, align_corners, pytorch_half_pixel} and
// sampling modes {nearest, linear}; cubic is rejected (spec §4.3).
type Resize struct {
	coordMode   string
	nearestMode string
	mode        string
	scales      []float64
}

func (r *Resize) ParseAttributes(op *ir.Operator, attrs ir.AttrMap) error {
	if err := requireKnownAttrs("Resize.ParseAttributes", attrs,
		"coordinate_transformation_mode", "mode", "nearest_mode", "cubic_coeff_a", "exclude_outside", "extrapolation_value"); err != nil {
		return err
	}
	r.coordMode = attrString(attrs, "coordinate_transformation_mode", "half_pixel")
	switch r.coordMode {
	case "half_pixel", "tf_half_pixel_for_nn", "asymmetric", "align_corners", "pytorch_half_pixel":
	default:
		return ir.Fail(ir.UnimplementedFeature, "Resize.ParseAttributes", "unsupported coordinate_transformation_mode %q", r.coordMode)
	}
	r.mode = attrString(attrs, "mode", "nearest")
	if r.mode == "cubic" {
		return ir.Fail(ir.UnimplementedFeature, "Resize.ParseAttributes", "cubic sampling mode is rejected")
	}
	if r.mode != "nearest" && r.mode != "linear" {
		return ir.Fail(ir.UnimplementedFeature, "Resize.ParseAttributes", "unsupported mode %q", r.mode)
	}
	r.nearestMode = attrString(attrs, "nearest_mode", "round_prefer_floor")
	return nil
}

func (r *Resize) Resolve(op *ir.Operator) error {
	if len(op.Inputs) == 0 || op.Inputs[0] == nil {
		return ir.Fail(ir.BadInput, "Resize.Resolve", "missing required X input")
	}
	x := op.Inputs[0]
	var sizes []int64
	if len(op.Inputs) > 3 && op.Inputs[3] != nil {
		var err error
		sizes, err = constantInts("Resize.Resolve", "sizes", op.Inputs[3])
		if err != nil {
			return err
		}
	} else if len(op.Inputs) > 2 && op.Inputs[2] != nil {
		scalesT := op.Inputs[2]
		if !scalesT.Initialize {
			return ir.Fail(ir.UnsupportedDynamicShape, "Resize.Resolve", "scales must be a compile-time constant")
		}
		scales := scalesT.AllFloat32()
		r.scales = make([]float64, len(scales))
		sizes = make([]int64, len(scales))
		for i, s := range scales {
			r.scales[i] = float64(s)
			sizes[i] = int64(float64(x.Shape[i]) * float64(s))
		}
	} else {
		return ir.Fail(ir.BadInput, "Resize.Resolve", "either sizes or scales must be provided")
	}

	out := ir.NewTensor(op.OutputName(0, ""), x.DataType, sizes)
	out.Generate = true
	op.RegisterOutput(out, "y")
	return nil
}

func (r *Resize) EmitSignature(op *ir.Operator, w writer, decorate bool) {
	first := true
	write := func(param ir.Param) {
		if param.Tensor == nil {
			return
		}
		if !first {
			fmt.Fprint(w, ", ")
		}
		first = false
		if decorate {
			fmt.Fprintf(w, "%s %s%s", param.Tensor.DataType.CType(), param.Local, arrayDims(param.Tensor.Shape))
		} else {
			fmt.Fprint(w, param.Tensor.CName())
		}
	}
	write(op.InputParams[0])
	write(op.OutputParams[0])
}

func (r *Resize) EmitBody(op *ir.Operator, w writer) {
	x := op.InputParams[0]
	out := op.OutputParams[0]
	inShape := op.Inputs[0].Shape
	outShape := op.Outputs[0].Shape
	rank := len(outShape)

	indent := emitNestedLoopsOpen(w, outShape, "  ")
	srcExpr := make([]string, rank)
	for axis := 0; axis < rank; axis++ {
		scale := float64(outShape[axis]) / float64(inShape[axis])
		var coord string
		switch r.coordMode {
		case "align_corners":
			if outShape[axis] > 1 {
				coord = fmt.Sprintf("((double)%s * %d / %d)", loopVar(axis), inShape[axis]-1, outShape[axis]-1)
			} else {
				coord = "0.0"
			}
		case "asymmetric":
			coord = fmt.Sprintf("((double)%s / %g)", loopVar(axis), scale)
		default: // half_pixel family
			coord = fmt.Sprintf("(((double)%s + 0.5) / %g - 0.5)", loopVar(axis), scale)
		}
		if r.mode == "nearest" {
			srcExpr[axis] = fmt.Sprintf("clampi((int)round_mode_%s(%s), 0, %d)", nearestFn(r.nearestMode), coord, inShape[axis]-1)
		} else {
			srcExpr[axis] = fmt.Sprintf("clampi((int)(%s + 0.5), 0, %d)", coord, inShape[axis]-1)
		}
	}
	inExpr := ""
	for _, e := range srcExpr {
		inExpr += "[" + e + "]"
	}
	fmt.Fprintf(w, "%s%s%s = %s%s;\n", indent, out.Local, flatIndexExpr(rank), x.Local, inExpr)
	emitNestedLoopsClose(w, rank, "  ")
}

func nearestFn(mode string) string {
	switch mode {
	case "round_prefer_ceil":
		return "ceil_prefer"
	case "floor":
		return "floor_only"
	case "ceil":
		return "ceil_only"
	default:
		return "floor_prefer"
	}
}

// ScatterND scatters updates into a copy of data at the given compile-time
// constant indices.
type ScatterND struct{}

func (s *ScatterND) ParseAttributes(op *ir.Operator, attrs ir.AttrMap) error {
	return requireKnownAttrs("ScatterND.ParseAttributes", attrs)
}

func (s *ScatterND) Resolve(op *ir.Operator) error {
	if len(op.Inputs) < 3 || op.Inputs[0] == nil || op.Inputs[1] == nil || op.Inputs[2] == nil {
		return ir.Fail(ir.BadInput, "ScatterND.Resolve", "missing required data/indices/updates input")
	}
	data, indices := op.Inputs[0], op.Inputs[1]
	if !indices.Initialize {
		return ir.Fail(ir.UnsupportedDynamicShape, "ScatterND.Resolve", "indices must be a compile-time constant")
	}
	out := ir.NewTensor(op.OutputName(0, ""), data.DataType, data.Shape)
	out.Generate = true
	op.RegisterOutput(out, "y")
	return nil
}

func (s *ScatterND) EmitSignature(op *ir.Operator, w writer, decorate bool) {
	emitStandardSignature(op, w, decorate)
}

func (s *ScatterND) EmitBody(op *ir.Operator, w writer) {
	data := op.InputParams[0]
	indices := op.InputParams[1]
	updates := op.InputParams[2]
	out := op.OutputParams[0]
	dataShape := op.Inputs[0].Shape
	n := product(dataShape)
	ctype := op.Outputs[0].DataType.CType()

	fmt.Fprintf(w, "  memcpy(%s, %s, %d * sizeof(%s));\n", out.Local, data.Local, n, ctype)

	indicesShape := op.Inputs[1].Shape
	k := indicesShape[len(indicesShape)-1]
	outerRank := len(indicesShape) - 1
	outerVars := make([]string, outerRank)
	indent := "  "
	for i := 0; i < outerRank; i++ {
		outerVars[i] = fmt.Sprintf("s%d", i)
		fmt.Fprintf(w, "%sfor (int %s = 0; %s < %d; %s++) {\n", indent, outerVars[i], outerVars[i], indicesShape[i], outerVars[i])
		indent += "  "
	}
	idxExpr := ""
	for _, v := range outerVars {
		idxExpr += "[" + v + "]"
	}
	outIdx := ""
	for kk := int64(0); kk < k; kk++ {
		outIdx += fmt.Sprintf("[%s%s[%d]]", indices.Local, idxExpr, kk)
	}
	for axis := int(k); axis < len(dataShape); axis++ {
		outIdx += "[" + fmt.Sprintf("r%d", axis) + "]"
	}
	remIndent := indent
	for axis := int(k); axis < len(dataShape); axis++ {
		fmt.Fprintf(w, "%sfor (int r%d = 0; r%d < %d; r%d++) {\n", remIndent, axis, axis, dataShape[axis], axis)
		remIndent += "  "
	}
	updIdx := idxExpr
	for axis := int(k); axis < len(dataShape); axis++ {
		updIdx += fmt.Sprintf("[r%d]", axis)
	}
	fmt.Fprintf(w, "%s%s%s = %s%s;\n", remIndent, out.Local, outIdx, updates.Local, updIdx)
	for axis := len(dataShape) - 1; axis >= int(k); axis-- {
		remIndent = remIndent[:len(remIndent)-2]
		fmt.Fprintf(w, "%s}\n", remIndent)
	}
	for i := outerRank - 1; i >= 0; i-- {
		indent = indent[:len(indent)-2]
		fmt.Fprintf(w, "%s}\n", indent)
	}
}
