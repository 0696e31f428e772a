package ops

import (
	"fmt"

	"github.com/onnx2c/onnx2c/internal/ir"
)

// ReshapeMode selects which ONNX shape-only operator family this Behavior
// instance implements (spec §4.3: "Reshape / Squeeze / Unsqueeze / Flatten
// / Transpose. Shape-only; emit element copy.").
type ReshapeMode int

const (
	ReshapeFull ReshapeMode = iota
	ReshapeSqueeze
	ReshapeUnsqueeze
	ReshapeFlatten
)

// Reshape implements Reshape, Squeeze, Unsqueeze, and Flatten: all four
// preserve row-major element order and differ only in how the output
// shape is computed from the input shape plus attributes/the shape input.
//
// Open question resolved (spec §9, DESIGN.md): dim=0 ("keep input dim")
// and dim=-1 ("infer this dim") are both supported, since the source's
// rejection of them is called out as strictly additive to relax.
type Reshape struct {
	Mode ReshapeMode
	axes []int64 // parsed Squeeze/Unsqueeze axes attribute, if present
}

func (r *Reshape) ParseAttributes(op *ir.Operator, attrs ir.AttrMap) error {
	switch r.Mode {
	case ReshapeFlatten:
		if err := requireKnownAttrs("Reshape.ParseAttributes", attrs, "axis"); err != nil {
			return err
		}
	case ReshapeSqueeze, ReshapeUnsqueeze:
		if err := requireKnownAttrs("Reshape.ParseAttributes", attrs, "axes"); err != nil {
			return err
		}
		r.axes = attrInts(attrs, "axes", nil)
	default:
		if err := requireKnownAttrs("Reshape.ParseAttributes", attrs); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reshape) Resolve(op *ir.Operator) error {
	if len(op.Inputs) == 0 || op.Inputs[0] == nil {
		return ir.Fail(ir.BadInput, "Reshape.Resolve", "missing required data input")
	}
	in := op.Inputs[0]

	axes := r.axes
	if axes == nil && len(op.Inputs) > 1 && op.Inputs[1] != nil && r.Mode != ReshapeFull {
		if !op.Inputs[1].Initialize {
			return ir.Fail(ir.UnsupportedDynamicShape, "Reshape.Resolve", "axes input must be a compile-time constant")
		}
		axes = op.Inputs[1].AllInt64()
	}

	var outShape []int64
	switch r.Mode {
	case ReshapeFull:
		if len(op.Inputs) < 2 || op.Inputs[1] == nil {
			return ir.Fail(ir.BadInput, "Reshape.Resolve", "missing required shape input")
		}
		shapeT := op.Inputs[1]
		if !shapeT.Initialize {
			return ir.Fail(ir.UnsupportedDynamicShape, "Reshape.Resolve", "shape input must be a compile-time constant")
		}
		want := shapeT.AllInt64()
		outShape = make([]int64, len(want))
		inferAxis := -1
		total := product(in.Shape)
		known := int64(1)
		for i, d := range want {
			switch {
			case d == 0:
				if i >= len(in.Shape) {
					return ir.Fail(ir.IncorrectInput, "Reshape.Resolve", "dim=0 at axis %d has no corresponding input axis", i)
				}
				outShape[i] = in.Shape[i]
				known *= outShape[i]
			case d == -1:
				if inferAxis != -1 {
					return ir.Fail(ir.IncorrectInput, "Reshape.Resolve", "shape has more than one -1 dimension")
				}
				inferAxis = i
			default:
				outShape[i] = d
				known *= d
			}
		}
		if inferAxis != -1 {
			if known == 0 || total%known != 0 {
				return ir.Fail(ir.IncorrectInput, "Reshape.Resolve", "cannot infer dim -1: %d not divisible by known extent %d", total, known)
			}
			outShape[inferAxis] = total / known
		}

	case ReshapeSqueeze:
		if len(axes) == 0 {
			for _, d := range in.Shape {
				if d != 1 {
					outShape = append(outShape, d)
				}
			}
		} else {
			drop := make(map[int]bool, len(axes))
			for _, a := range axes {
				drop[normalizeAxis(a, len(in.Shape))] = true
			}
			for i, d := range in.Shape {
				if !drop[i] {
					outShape = append(outShape, d)
				}
			}
		}

	case ReshapeUnsqueeze:
		rank := len(in.Shape) + len(axes)
		outShape = make([]int64, rank)
		insert := make(map[int]bool, len(axes))
		for _, a := range axes {
			insert[normalizeAxis(a, rank)] = true
		}
		src := 0
		for i := 0; i < rank; i++ {
			if insert[i] {
				outShape[i] = 1
			} else {
				outShape[i] = in.Shape[src]
				src++
			}
		}

	case ReshapeFlatten:
		axis := int(attrInt(op.Attrs, "axis", 1))
		axis = normalizeAxis(int64(axis), len(in.Shape))
		outShape = []int64{product(in.Shape[:axis]), product(in.Shape[axis:])}
	}

	out := ir.NewTensor(op.OutputName(0, ""), in.DataType, outShape)
	out.Generate = true
	op.RegisterOutput(out, "out0")
	return nil
}

func normalizeAxis(a int64, rank int) int {
	if a < 0 {
		a += int64(rank)
	}
	return int(a)
}

func (r *Reshape) EmitSignature(op *ir.Operator, w writer, decorate bool) {
	// Only the data input and the output participate in the C signature;
	// a constant shape/axes input contributes nothing at runtime.
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
	if len(op.InputParams) > 0 {
		write(op.InputParams[0])
	}
	write(op.OutputParams[0])
}

func (r *Reshape) EmitBody(op *ir.Operator, w writer) {
	in := op.InputParams[0]
	out := op.OutputParams[0]
	n := product(op.Outputs[0].Shape)
	// Row-major element order is identical between input and output for
	// every mode here; the output is a reinterpretation of the same flat
	// sequence of elements, so a flat memcpy is both correct and exactly
	// what a shape-only operator should cost at runtime.
	fmt.Fprintf(w, "  memcpy(%s, %s, %d * sizeof(%s));\n", out.Local, in.Local, n, op.Outputs[0].DataType.CType())
}
