// Package onnxpb implements the minimal ONNX ModelProto reader this
// compiler needs. It is deliberately not a generated protoc-plugin
// package: per the compiler's own scope, the wire decoder is a boundary
// collaborator, and the small fixed set of ONNX messages consulted here
// (ModelProto/GraphProto/NodeProto/TensorProto/ValueInfoProto/TypeProto/
// AttributeProto/OperatorSetIdProto) is decoded directly against
// google.golang.org/protobuf/encoding/protowire field numbers rather than
// through generated *.pb.go stubs.
package onnxpb

// AttributeProto mirrors onnx.AttributeProto's fields this compiler reads.
type AttributeProto struct {
	Name    string
	Type    AttributeType
	F       float32
	I       int64
	S       []byte
	T       *TensorProto
	Floats  []float32
	Ints    []int64
	Strings [][]byte
}

// AttributeType is onnx.AttributeProto.AttributeType's subset used here.
type AttributeType int32

const (
	AttrUndefined AttributeType = 0
	AttrFloat     AttributeType = 1
	AttrInt       AttributeType = 2
	AttrString    AttributeType = 3
	AttrTensor    AttributeType = 4
	AttrFloats    AttributeType = 6
	AttrInts      AttributeType = 7
	AttrStrings   AttributeType = 8
)

// TensorProto mirrors onnx.TensorProto.
type TensorProto struct {
	Dims       []int64
	DataType   int32
	Name       string
	FloatData  []float32
	Int32Data  []int32
	StringData [][]byte
	Int64Data  []int64
	RawData    []byte
	DoubleData []float64
	Uint64Data []uint64
}

// Dimension mirrors onnx.TensorShapeProto.Dimension: a shape axis is either
// a fixed value or a symbolic parameter name.
type Dimension struct {
	HasValue bool
	Value    int64
	Param    string
}

// TypeProto mirrors the tensor_type branch of onnx.TypeProto; this
// compiler has no use for sequence/map/optional ONNX type branches.
type TypeProto struct {
	ElemType int32
	Shape    []Dimension
}

// ValueInfoProto mirrors onnx.ValueInfoProto.
type ValueInfoProto struct {
	Name string
	Type TypeProto
}

// NodeProto mirrors onnx.NodeProto.
type NodeProto struct {
	Input     []string
	Output    []string
	Name      string
	OpType    string
	Domain    string
	Attribute []AttributeProto
}

// OperatorSetIdProto mirrors onnx.OperatorSetIdProto.
type OperatorSetIdProto struct {
	Domain  string
	Version int64
}

// GraphProto mirrors onnx.GraphProto.
type GraphProto struct {
	Node        []NodeProto
	Name        string
	Initializer []TensorProto
	Input       []ValueInfoProto
	Output      []ValueInfoProto
}

// ModelProto mirrors onnx.ModelProto.
type ModelProto struct {
	IRVersion    int64
	OpsetImport  []OperatorSetIdProto
	Graph        GraphProto
	ProducerName string
}
