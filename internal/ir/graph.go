package ir

// Factory produces a freshly constructed, zero-valued Behavior for one
// ONNX operator kind. The registry (internal/ops) is the only thing that
// constructs Factory values; ir only needs to call them.
type Factory func() Behavior

// Registry is the graph builder's view of the operator registry: a
// process-wide, read-only op_kind -> factory() mapping (spec §4.4).
// internal/ops.Registry implements this so internal/ir never needs to
// import internal/ops (which imports ir for Behavior).
type Registry interface {
	Lookup(opKind string) (Factory, bool)
}

// Graph is the resolved internal dataflow graph: ordered tensors (append
// order is the stable emitter iteration order) and ordered nodes (resolve
// order, which spec §5 fixes as the canonical topological order for every
// later pass).
type Graph struct {
	Tensors []*Tensor
	Nodes   []*Operator

	byName map[string]*Tensor

	// TensorUnions has one entry per arena slot index. internal/optimize's
	// unionize pass sizes it to the number of slots it allocated and
	// leaves every entry nil; the builder does not touch it.
	TensorUnions []*Tensor

	IRVersion    int64
	OpsetVersion int64

	anonCounters map[string]int
}

// NewGraph returns an empty Graph ready for the builder to populate.
func NewGraph() *Graph {
	return &Graph{
		byName:       make(map[string]*Tensor),
		anonCounters: make(map[string]int),
	}
}

// Tensor looks up a tensor by its ONNX name.
func (g *Graph) Tensor(name string) (*Tensor, bool) {
	t, ok := g.byName[name]
	return t, ok
}

// AddTensor inserts t, or merges it into an existing tensor of the same
// name per the builder's merge semantics (spec §4.1), returning the tensor
// now on record under that name.
func (g *Graph) AddTensor(t *Tensor) (*Tensor, error) {
	if existing, ok := g.byName[t.Name]; ok {
		if err := existing.Merge(t); err != nil {
			return nil, err
		}
		return existing, nil
	}
	g.byName[t.Name] = t
	g.Tensors = append(g.Tensors, t)
	return t, nil
}

// AnonymousName returns the next anonymous_<opKind>_<n> identifier for an
// ONNX node with an empty name (spec §4.1).
func (g *Graph) AnonymousName(opKind string) string {
	n := g.anonCounters[opKind]
	g.anonCounters[opKind] = n + 1
	return "anonymous_" + opKind + "_" + itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// AddNode appends a resolved node to the canonical node order.
func (g *Graph) AddNode(op *Operator) {
	g.Nodes = append(g.Nodes, op)
}
