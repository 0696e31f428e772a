package ir

import (
	"github.com/onnx2c/onnx2c/internal/onnxpb"
)

// Options controls the graph builder's resolution policy (spec §6's
// closed configuration set, the parts the builder itself consults).
type Options struct {
	Quantize   bool
	DimDefines map[string]int64
	// Warn receives UnknownDimension and other non-fatal diagnostics; nil
	// is a valid, silent default.
	Warn func(format string, args ...interface{})
}

func (o Options) warn(format string, args ...interface{}) {
	if o.Warn != nil {
		o.Warn(format, args...)
	}
}

// quantizedSubstitute maps a float op_kind to its integer-resolution-time
// substitute when Options.Quantize is set (spec §4.1, §9: "quantization is
// a first-class resolution-time transform").
var quantizedSubstitute = map[string]string{
	"Conv":   "ConvInteger",
	"MatMul": "MatMulInteger",
}

// quantizedInputFor implements spec §4.1's "swaps any input tensor that
// has a pre-computed quantized copy with that copy": only constant float
// tensors (weights/biases materialized from an ONNX initializer) have such
// a copy; a runtime activation tensor has no buffer to quantize ahead of
// time and is returned unchanged, on the assumption its producer already
// emits int8 (e.g. an explicit QuantizeLinear node upstream). The copy is
// computed once per tensor and reused by every later consumer.
func quantizedInputFor(g *Graph, t *Tensor) (*Tensor, error) {
	if t == nil || t.IsQuantized || !t.IsConst || !t.DataType.IsFloat() {
		return t, nil
	}
	if qt, ok := g.Tensor(t.Name + "_quantized"); ok {
		return qt, nil
	}
	qt, err := MakeQuantizedCopy(t)
	if err != nil {
		return nil, err
	}
	if _, err := g.AddTensor(qt); err != nil {
		return nil, Wrap(BadInput, "quantizedInputFor", err)
	}
	return qt, nil
}

// BuildGraph runs the fixed-point node resolution loop (spec §4.1) over
// model, using reg to construct operator instances, and returns the
// resolved Graph or an UnresolvableGraph/BadInput/... error.
func BuildGraph(model *onnxpb.ModelProto, reg Registry, opts Options) (*Graph, error) {
	g := NewGraph()
	g.IRVersion = model.IRVersion
	if len(model.OpsetImport) > 0 {
		g.OpsetVersion = model.OpsetImport[0].Version
	}

	if err := seedInitializers(g, model.Graph.Initializer); err != nil {
		return nil, err
	}
	if err := seedInputs(g, model.Graph.Input, opts); err != nil {
		return nil, err
	}

	nodes := model.Graph.Node
	resolved := make([]bool, len(nodes))
	remaining := len(nodes)

	for remaining > 0 {
		progressed := false
		for i, node := range nodes {
			if resolved[i] {
				continue
			}
			ok, err := tryResolve(g, reg, node, opts)
			if err != nil {
				return nil, err
			}
			if ok {
				resolved[i] = true
				remaining--
				progressed = true
			}
		}
		if !progressed {
			return nil, Fail(UnresolvableGraph, "BuildGraph", "%d node(s) could not be resolved after a full pass with no progress", remaining)
		}
	}

	for _, vi := range model.Graph.Output {
		if t, ok := g.Tensor(vi.Name); ok {
			t.IsIO = true
		}
	}
	return g, nil
}

func seedInitializers(g *Graph, inits []onnxpb.TensorProto) error {
	for _, tp := range inits {
		t := tensorFromProto(tp)
		t.IsConst = true
		t.Initialize = true
		t.Generate = true
		if _, err := g.AddTensor(t); err != nil {
			return Wrap(BadInput, "seedInitializers", err)
		}
	}
	return nil
}

func seedInputs(g *Graph, inputs []onnxpb.ValueInfoProto, opts Options) error {
	for _, vi := range inputs {
		shape, err := resolveShape(vi.Type.Shape, opts)
		if err != nil {
			return Wrap(BadInput, "seedInputs", err)
		}
		t := NewTensor(vi.Name, DTypeFromONNX(vi.Type.ElemType), shape)
		t.IsIO = true
		t.Generate = true
		if _, err := g.AddTensor(t); err != nil {
			return Wrap(BadInput, "seedInputs", err)
		}
	}
	return nil
}

func resolveShape(dims []onnxpb.Dimension, opts Options) ([]int64, error) {
	shape := make([]int64, len(dims))
	for i, d := range dims {
		switch {
		case d.HasValue:
			shape[i] = d.Value
		case d.Param != "":
			if v, ok := opts.DimDefines[d.Param]; ok {
				shape[i] = v
			} else {
				opts.warn("UnknownDimension: symbolic dim %q defaulted to 1", d.Param)
				shape[i] = 1
			}
		default:
			opts.warn("UnknownDimension: unspecified dim at axis %d defaulted to 1", i)
			shape[i] = 1
		}
	}
	return shape, nil
}

func tensorFromProto(tp onnxpb.TensorProto) *Tensor {
	t := NewTensor(tp.Name, DTypeFromONNX(tp.DataType), tp.Dims)
	t.Buffer = bufferFromProto(tp, t.DataType)
	return t
}

// tryResolve attempts to resolve a single ONNX node against g. It returns
// ok=false, err=nil when at least one required input is not yet present in
// g (the node stays pending for a later pass).
func tryResolve(g *Graph, reg Registry, node onnxpb.NodeProto, opts Options) (bool, error) {
	opKind := node.OpType
	if opts.Quantize {
		if sub, ok := quantizedSubstitute[opKind]; ok {
			opKind = sub
		}
	}

	inputs := make([]*Tensor, len(node.Input))
	for i, name := range node.Input {
		if name == "" {
			continue // missing optional input
		}
		t, ok := g.Tensor(name)
		if !ok {
			return false, nil // pending: producer not yet resolved
		}
		if opts.Quantize {
			qt, err := quantizedInputFor(g, t)
			if err != nil {
				return false, err
			}
			t = qt
		}
		inputs[i] = t
	}

	factory, ok := reg.Lookup(opKind)
	if !ok {
		return false, Fail(UnimplementedOperator, "tryResolve", "operator kind %q has no registry entry", opKind)
	}

	name := node.Name
	if name == "" {
		name = g.AnonymousName(opKind)
	}

	op := NewOperator(opKind, name, factory(), inputs)
	op.OutputNames = append([]string(nil), node.Output...)
	op.OutputUsed = make([]bool, len(node.Output))
	for i, outName := range node.Output {
		op.OutputUsed[i] = outName != ""
	}

	attrs := make(AttrMap, len(node.Attribute))
	for i := range node.Attribute {
		a := node.Attribute[i]
		attrs[a.Name] = &a
	}
	op.Attrs = attrs

	for i, t := range inputs {
		op.WireInputParam(i, syntheticLocalName(i, false))
		if t != nil {
			t.AddConsumer(op)
		}
	}

	if err := op.Behavior.ParseAttributes(op, attrs); err != nil {
		return false, err
	}
	if err := op.Resolve(); err != nil {
		return false, err
	}

	for i, out := range op.Outputs {
		if _, err := g.AddTensor(out); err != nil {
			return false, Wrap(BadInput, "tryResolve", err)
		}
		if i < len(op.OutputParams) {
			op.OutputParams[i].Local = syntheticLocalName(i, true)
		}
	}

	g.AddNode(op)
	return true, nil
}

func syntheticLocalName(i int, output bool) string {
	if output {
		return "out" + itoa(i)
	}
	return "in" + itoa(i)
}
