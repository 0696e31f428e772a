package ops

import "fmt"

// loopVar returns the C loop variable name for output axis i.
func loopVar(i int) string { return fmt.Sprintf("i%d", i) }

// emitNestedLoopsOpen writes "for (int i0 = 0; i0 < d0; i0++) {" for every
// axis of shape, indenting each level, and returns the indent for the
// innermost loop body; emitNestedLoopsClose closes the nest afterward.
func emitNestedLoopsOpen(w writer, shape []int64, indent string) string {
	cur := indent
	for i, d := range shape {
		fmt.Fprintf(w, "%sfor (int %s = 0; %s < %d; %s++) {\n", cur, loopVar(i), loopVar(i), d, loopVar(i))
		cur += "  "
	}
	return cur
}

func emitNestedLoopsClose(w writer, depth int, indent string) {
	cur := indent
	for i := 0; i < depth; i++ {
		cur += "  "
	}
	for i := depth - 1; i >= 0; i-- {
		cur = cur[:len(cur)-2]
		fmt.Fprintf(w, "%s}\n", cur)
	}
}

// broadcastIndexExpr builds the bracketed index expression for an operand
// of rank len(operandShape) being read inside a loop nest over outRank
// axes, collapsing any axis where the operand's extent is 1 to literal
// "[0]" (spec §4.3, §8 property 7).
func broadcastIndexExpr(operandShape []int64, outRank int) string {
	offset := outRank - len(operandShape)
	expr := ""
	for axis := 0; axis < outRank; axis++ {
		opAxis := axis - offset
		if opAxis < 0 {
			continue // operand has no such leading axis at all; nothing to index
		}
		if operandShape[opAxis] == 1 {
			expr += "[0]"
		} else {
			expr += "[" + loopVar(axis) + "]"
		}
	}
	return expr
}

// flatIndexExpr is the plain per-axis index expression with no broadcast
// collapsing, used to index a loop nest's output (and any operand read
// at the same position) by the elementwise, quantize, slice, gather,
// pad, resize and transpose bodies.
func flatIndexExpr(rank int) string {
	expr := ""
	for i := 0; i < rank; i++ {
		expr += "[" + loopVar(i) + "]"
	}
	return expr
}
