package ir

import (
	"io"

	"github.com/onnx2c/onnx2c/internal/onnxpb"
)

// Param pairs a tensor reference with the local identifier used for it
// inside a node's emitted C function body, decoupled from the tensor's
// global cify'd name (spec §3, operator instance input_params/output_params).
type Param struct {
	Tensor *Tensor
	Local  string
}

// AttrMap is the parsed-attribute lookup handed to Behavior.ParseAttributes.
type AttrMap map[string]*onnxpb.AttributeProto

// Behavior is the capability set every operator family implements: one
// variant per ONNX op kind, dispatched through the registry by op_kind
// string (spec §4.3/§4.4). It operates on the shared *Operator base rather
// than owning its own copy of Inputs/Outputs/OpKind.
type Behavior interface {
	// ParseAttributes reads op-specific attributes from attrs. Unknown
	// attribute names are rejected by default; a family may choose to
	// warn-and-ignore instead (documented per family).
	ParseAttributes(op *Operator, attrs AttrMap) error
	// Resolve assumes op.Inputs is fully populated. It validates type
	// constraints, computes output shape(s)/dtype(s), and registers them
	// via op.RegisterOutput.
	Resolve(op *Operator) error
	// EmitSignature prints the parameter list, either at the function
	// definition site (decorate=true, array types) or at a call site
	// (decorate=false, identifiers only).
	EmitSignature(op *Operator, w io.Writer, decorate bool)
	// EmitBody prints the C statements computing op's outputs from its
	// inputs, referencing parameters only by their Local name.
	EmitBody(op *Operator, w io.Writer)
}

// Operator is one node in the resolved graph: the polymorphic capability
// set of spec §4.3, with the per-family logic supplied by Behavior.
type Operator struct {
	OpKind   string
	ONNXName string

	// Inputs/Outputs are ordered by the ONNX operator spec's input index;
	// a nil entry represents a missing optional input (spec §9's "carry
	// optionals explicitly" restatement of the source's sentinel tensor).
	Inputs  []*Tensor
	Outputs []*Tensor

	InputParams  []Param
	OutputParams []Param

	// OutputUsed[i] is true iff the i-th declared output is read by
	// another node or is a graph output; recursive outputs may still be
	// generated even when unused externally.
	OutputUsed []bool

	// OutputNames[i] is the ONNX-declared name for the i-th output, or ""
	// when the ONNX node left it blank. Set by the graph builder before
	// Resolve runs; Resolve consults it through OutputName.
	OutputNames []string

	IsResolved bool
	Attrs      AttrMap

	Behavior Behavior
}

// NewOperator constructs an unresolved Operator for opKind/onnxName with
// the given Behavior and already-wired inputs.
func NewOperator(opKind, onnxName string, behavior Behavior, inputs []*Tensor) *Operator {
	return &Operator{
		OpKind:   opKind,
		ONNXName: onnxName,
		Behavior: behavior,
		Inputs:   inputs,
	}
}

// CName is this node's cify'd C function-name fragment.
func (op *Operator) CName() string { return NodeCify(op.ONNXName) }

// RegisterOutput appends tensor to Outputs/OutputParams under localName and
// sets tensor as a consumer-tracked output of op. Behavior.Resolve calls
// this once per produced output, in ONNX output-index order.
func (op *Operator) RegisterOutput(tensor *Tensor, localName string) {
	op.Outputs = append(op.Outputs, tensor)
	op.OutputParams = append(op.OutputParams, Param{Tensor: tensor, Local: localName})
}

// WireInputParam records the local identifier used for the i-th input
// inside this node's emitted body; called by the graph builder once
// inputs are known, ahead of Behavior.Resolve.
func (op *Operator) WireInputParam(i int, localName string) {
	for len(op.InputParams) <= i {
		op.InputParams = append(op.InputParams, Param{})
	}
	var tensor *Tensor
	if i < len(op.Inputs) {
		tensor = op.Inputs[i]
	}
	op.InputParams[i] = Param{Tensor: tensor, Local: localName}
}

// OutputName returns the ONNX-declared name for output i if non-blank;
// otherwise it synthesizes one. recursiveSuffix, when non-empty, requests
// the "<cname>_recursive_<suffix>" form the spec carves out for recursive
// outputs left unnamed (e.g. LSTM's Y_h/Y_c); otherwise a plain
// "<cname>_out<i>" placeholder is used so an unused, unnamed output still
// gets a collision-free graph entry.
func (op *Operator) OutputName(i int, recursiveSuffix string) string {
	if i < len(op.OutputNames) && op.OutputNames[i] != "" {
		return op.OutputNames[i]
	}
	if recursiveSuffix != "" {
		return op.ONNXName + "_recursive_" + recursiveSuffix
	}
	return op.ONNXName + "_out" + itoa(i)
}

// Resolve runs this node's Behavior.Resolve and marks it resolved on
// success. Not reentrant: calling it twice would double-register outputs.
func (op *Operator) Resolve() error {
	if err := op.Behavior.Resolve(op); err != nil {
		return err
	}
	op.IsResolved = true
	return nil
}
