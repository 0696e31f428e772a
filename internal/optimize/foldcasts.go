// Package optimize implements the graph-level optimization passes that
// run between graph resolution and C emission: cast folding and tensor
// unionization (spec §4.5, §4.6).
package optimize

import "github.com/onnx2c/onnx2c/internal/ir"

// FoldCasts implements spec §4.6: for every Cast node C with input T
// (produced by some node P), if T has no consumers other than C and T
// and C's output aren't both graph IO, T's dtype becomes C's output
// dtype, every consumer of C's output is redirected to T, C's output
// tensor is deleted, and C itself is deleted. A single pass over the
// node list suffices since each fold can only shorten chains.
func FoldCasts(g *ir.Graph) {
	kept := g.Nodes[:0]
	for _, op := range g.Nodes {
		if foldable(op) {
			t := op.Inputs[0]
			out := op.Outputs[0]
			t.DataType = out.DataType
			t.IsIO = t.IsIO || out.IsIO
			rewireConsumers(out, t)
			removeConsumer(t, op)
			removeTensor(g, out)
			continue
		}
		kept = append(kept, op)
	}
	g.Nodes = kept
}

func foldable(op *ir.Operator) bool {
	if op.OpKind != "Cast" || len(op.Inputs) != 1 || op.Inputs[0] == nil ||
		len(op.Outputs) != 1 || op.Outputs[0] == nil {
		return false
	}
	t, out := op.Inputs[0], op.Outputs[0]
	if len(t.Consumers) != 1 {
		return false // T has consumers besides C; folding would force P to emit two dtypes
	}
	if t.IsIO && out.IsIO {
		return false
	}
	return true
}

// rewireConsumers redirects every node that read from's output to read
// from to instead, updating both the Inputs slice and the emitted
// InputParams reference (the local identifier is kept as it is: it names
// the parameter inside the consumer's function, whichever tensor feeds it).
func rewireConsumers(from, to *ir.Tensor) {
	for _, consumer := range from.Consumers {
		for i, in := range consumer.Inputs {
			if in == from {
				consumer.Inputs[i] = to
			}
		}
		for i, p := range consumer.InputParams {
			if p.Tensor == from {
				consumer.InputParams[i].Tensor = to
			}
		}
		to.AddConsumer(consumer)
	}
}

func removeConsumer(t *ir.Tensor, op *ir.Operator) {
	for i, c := range t.Consumers {
		if c == op {
			t.Consumers = append(t.Consumers[:i], t.Consumers[i+1:]...)
			return
		}
	}
}

func removeTensor(g *ir.Graph, t *ir.Tensor) {
	for i, tt := range g.Tensors {
		if tt == t {
			g.Tensors = append(g.Tensors[:i], g.Tensors[i+1:]...)
			return
		}
	}
}
