package optimize

import "github.com/onnx2c/onnx2c/internal/ir"

// Unionize assigns arena slot indices to tensors eligible for storage
// reuse (spec §4.5): a tensor is never union-eligible when it is a
// graph input/output (IsIO), a constant (IsConst/Initialize), or part of
// LSTM-style recursive state (IsRecursive, or aliasing such a tensor).
// Eligible tensors are assigned slots by liveness computed over the
// graph's resolution order (g.Nodes, which spec §5 fixes as canonical):
// a tensor is live from the index of the node that produces it to the
// index of the last node that consumes it. Two tensors may share a slot
// iff their live ranges do not overlap. This is a straightforward
// interval-graph coloring by first-fit, not an optimal packing.
func Unionize(g *ir.Graph) {
	type interval struct {
		t          *ir.Tensor
		start, end int
	}

	nodeIndex := make(map[*ir.Operator]int, len(g.Nodes))
	for i, op := range g.Nodes {
		nodeIndex[op] = i
	}

	var intervals []interval
	for _, t := range g.Tensors {
		if !eligibleForUnion(t) {
			t.UnionIndex = -1
			continue
		}
		start := producerIndex(g, t, nodeIndex)
		end := start
		for _, c := range t.Consumers {
			if idx, ok := nodeIndex[c]; ok && idx > end {
				end = idx
			}
		}
		intervals = append(intervals, interval{t, start, end})
	}

	// First-fit coloring: slot's current occupant interval end, reused
	// once a new interval's start is past it.
	var slotEnd []int
	for _, iv := range intervals {
		placed := false
		for slot, end := range slotEnd {
			if iv.start > end {
				slotEnd[slot] = iv.end
				iv.t.UnionIndex = slot
				placed = true
				break
			}
		}
		if !placed {
			iv.t.UnionIndex = len(slotEnd)
			slotEnd = append(slotEnd, iv.end)
		}
	}

	g.TensorUnions = make([]*ir.Tensor, len(slotEnd))
}

func eligibleForUnion(t *ir.Tensor) bool {
	if t.IsIO || t.IsConst || t.Initialize || t.IsRecursive || t.AliasOf != nil {
		return false
	}
	return true
}

func producerIndex(g *ir.Graph, t *ir.Tensor, nodeIndex map[*ir.Operator]int) int {
	for _, op := range g.Nodes {
		for _, out := range op.Outputs {
			if out == t {
				return nodeIndex[op]
			}
		}
	}
	return 0
}
