package ops

import (
	"fmt"

	"github.com/onnx2c/onnx2c/internal/ir"
)

// MatMul implements MatMul, MatMulInteger (Integer=true), and
// QLinearMatMul (Integer=true, QLinear=true) per spec §4.3.
type MatMul struct {
	Integer bool
	QLinear bool
}

func (m *MatMul) ParseAttributes(op *ir.Operator, attrs ir.AttrMap) error {
	return requireKnownAttrs("MatMul.ParseAttributes", attrs)
}

func (m *MatMul) Resolve(op *ir.Operator) error {
	if len(op.Inputs) < 2 || op.Inputs[0] == nil || op.Inputs[1] == nil {
		return ir.Fail(ir.BadInput, "MatMul.Resolve", "missing required input A or B")
	}
	a, b := op.Inputs[0], op.Inputs[1]
	aOK, bOK := isAllFloatingPoints(a.DataType), isAllFloatingPoints(b.DataType)
	if m.Integer {
		aOK, bOK = is8Bit(a.DataType), is8Bit(b.DataType)
	}
	if err := checkConstraint("MatMul.Resolve", "A", a.DataType, aOK); err != nil {
		return err
	}
	if err := checkConstraint("MatMul.Resolve", "B", b.DataType, bOK); err != nil {
		return err
	}
	if len(a.Shape) < 1 || len(b.Shape) < 1 {
		return ir.Fail(ir.IncorrectInput, "MatMul.Resolve", "operands must have rank >= 1")
	}
	ra, rb := a.Shape, b.Shape
	// Reduction dim: last of A, second-to-last of B (or B's sole dim when
	// rank 1).
	kA := ra[len(ra)-1]
	var kB int64
	if len(rb) == 1 {
		kB = rb[0]
	} else {
		kB = rb[len(rb)-2]
	}
	if kA != kB {
		return ir.Fail(ir.IncorrectInput, "MatMul.Resolve", "reduction dim mismatch: A's last dim %d != B's %d", kA, kB)
	}

	// Broadcast leading batch dims (all but the trailing 1-2 matrix dims).
	aLead := leadingDims(ra, 2)
	bLead := leadingDims(rb, 2)
	lead, err := broadcastShape("MatMul.Resolve", aLead, bLead)
	if err != nil {
		return err
	}

	var outShape []int64
	outShape = append(outShape, lead...)
	if len(ra) >= 2 {
		outShape = append(outShape, ra[len(ra)-2])
	}
	if len(rb) >= 2 {
		outShape = append(outShape, rb[len(rb)-1])
	}

	outDtype := a.DataType
	if m.Integer {
		outDtype = ir.DInt32
	}
	if m.QLinear {
		outDtype = ir.DInt8
	}
	out := ir.NewTensor(op.OutputName(0, ""), outDtype, outShape)
	out.Generate = true
	op.RegisterOutput(out, "y")
	return nil
}

// leadingDims returns shape with its trailing `keep` axes stripped (for
// matrices, keep=2; a rank-1 operand contributes no leading batch dims).
func leadingDims(shape []int64, keep int) []int64 {
	if len(shape) <= keep {
		return nil
	}
	return shape[:len(shape)-keep]
}

func (m *MatMul) EmitSignature(op *ir.Operator, w writer, decorate bool) {
	emitStandardSignature(op, w, decorate)
}

func (m *MatMul) EmitBody(op *ir.Operator, w writer) {
	a := op.InputParams[0]
	b := op.InputParams[1]
	out := op.Outputs[0]
	outLocal := op.OutputParams[0].Local
	rank := len(out.Shape)
	if rank < 2 {
		// Degenerate rank-1 x rank-1 dot product.
		fmt.Fprintf(w, "  %s acc = 0;\n", out.DataType.CType())
		fmt.Fprintf(w, "  for (int k = 0; k < %d; k++) acc += %s[k] * %s[k];\n", op.Inputs[0].Shape[0], a.Local, b.Local)
		fmt.Fprintf(w, "  %s = acc;\n", outLocal)
		return
	}
	i, j := out.Shape[rank-2], out.Shape[rank-1]
	kDim := op.Inputs[0].Shape[len(op.Inputs[0].Shape)-1]

	batchVars := make([]string, rank-2)
	indent := "  "
	for idx := 0; idx < rank-2; idx++ {
		batchVars[idx] = fmt.Sprintf("b%d", idx)
		fmt.Fprintf(w, "%sfor (int %s = 0; %s < %d; %s++) {\n", indent, batchVars[idx], batchVars[idx], out.Shape[idx], batchVars[idx])
		indent += "  "
	}
	fmt.Fprintf(w, "%sfor (int i = 0; i < %d; i++) {\n", indent, i)
	fmt.Fprintf(w, "%s  for (int j = 0; j < %d; j++) {\n", indent, j)

	accT := out.DataType.CType()
	fmt.Fprintf(w, "%s    %s acc = 0;\n", indent, accT)
	if m.Integer {
		fmt.Fprintf(w, "%s    for (int k = 0; k < %d; k++) {\n", indent, kDim)
		fmt.Fprintf(w, "%s      acc += (%s%s[i][k]) * (%s%s[k][j]);\n", indent, a.Local, broadcastBatchIdx(batchVars, op.Inputs[0].Shape, rank), b.Local, broadcastBatchIdx(batchVars, op.Inputs[1].Shape, rank))
		fmt.Fprintf(w, "%s    }\n", indent)
	} else {
		fmt.Fprintf(w, "%s    for (int k = 0; k < %d; k++) {\n", indent, kDim)
		fmt.Fprintf(w, "%s      acc += %s%s[i][k] * %s%s[k][j];\n", indent, a.Local, broadcastBatchIdx(batchVars, op.Inputs[0].Shape, rank), b.Local, broadcastBatchIdx(batchVars, op.Inputs[1].Shape, rank))
		fmt.Fprintf(w, "%s    }\n", indent)
	}
	outIdx := ""
	for _, v := range batchVars {
		outIdx += "[" + v + "]"
	}
	fmt.Fprintf(w, "%s    %s%s[i][j] = acc;\n", indent, outLocal, outIdx)
	fmt.Fprintf(w, "%s  }\n%s}\n", indent, indent)
	for idx := rank - 3; idx >= 0; idx-- {
		indent = indent[:len(indent)-2]
		fmt.Fprintf(w, "%s}\n", indent)
	}
}

// broadcastBatchIdx collapses batch-loop variables whose operand extent is
// 1 to "[0]", matching the broadcast shape law (spec §8 property 7).
func broadcastBatchIdx(batchVars []string, operandShape []int64, outRank int) string {
	operandLead := leadingDims(operandShape, 2)
	offset := (outRank - 2) - len(operandLead)
	expr := ""
	for i, v := range batchVars {
		opAxis := i - offset
		if opAxis < 0 {
			continue
		}
		if operandLead[opAxis] == 1 {
			expr += "[0]"
		} else {
			expr += "[" + v + "]"
		}
	}
	return expr
}
