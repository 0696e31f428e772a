package ir

import "fmt"

// DType is one of the ONNX scalar type tags this compiler understands.
type DType int

const (
	DUndefined DType = iota
	DFloat16
	DFloat32
	DFloat64
	DBFloat16
	DInt8
	DUint8
	DInt16
	DUint16
	DInt32
	DUint32
	DInt64
	DUint64
	DBool
	DString
)

// Size returns the element size in bytes, or 0 for DString (variable length,
// not supported as a generated-storage element type).
func (d DType) Size() int {
	switch d {
	case DInt8, DUint8, DBool:
		return 1
	case DFloat16, DBFloat16, DInt16, DUint16:
		return 2
	case DFloat32, DInt32, DUint32:
		return 4
	case DFloat64, DInt64, DUint64:
		return 8
	default:
		return 0
	}
}

// CType is the C type used for this dtype's storage and arithmetic.
func (d DType) CType() string {
	switch d {
	case DFloat16, DBFloat16:
		return "uint16_t" // raw bit pattern; no native C16 float support assumed
	case DFloat32:
		return "float"
	case DFloat64:
		return "double"
	case DInt8:
		return "int8_t"
	case DUint8:
		return "uint8_t"
	case DInt16:
		return "int16_t"
	case DUint16:
		return "uint16_t"
	case DInt32:
		return "int32_t"
	case DUint32:
		return "uint32_t"
	case DInt64:
		return "int64_t"
	case DUint64:
		return "uint64_t"
	case DBool:
		return "uint8_t"
	default:
		return "void*"
	}
}

func (d DType) String() string {
	names := map[DType]string{
		DFloat16: "f16", DFloat32: "f32", DFloat64: "f64", DBFloat16: "bf16",
		DInt8: "i8", DUint8: "u8", DInt16: "i16", DUint16: "u16",
		DInt32: "i32", DUint32: "u32", DInt64: "i64", DUint64: "u64",
		DBool: "bool", DString: "string",
	}
	if s, ok := names[d]; ok {
		return s
	}
	return "undefined"
}

// IsFloat reports whether d is one of the floating-point dtypes.
func (d DType) IsFloat() bool {
	switch d {
	case DFloat16, DFloat32, DFloat64, DBFloat16:
		return true
	}
	return false
}

// IsInteger reports whether d is a signed or unsigned integer dtype
// (bool excluded).
func (d DType) IsInteger() bool {
	switch d {
	case DInt8, DUint8, DInt16, DUint16, DInt32, DUint32, DInt64, DUint64:
		return true
	}
	return false
}

// IsSigned reports whether d is a signed integer dtype.
func (d DType) IsSigned() bool {
	switch d {
	case DInt8, DInt16, DInt32, DInt64:
		return true
	}
	return false
}

// Tensor is a named, typed, shape-fixed data container: a graph input, an
// initializer, or the resolved output of exactly one operator instance.
type Tensor struct {
	Name     string
	DataType DType
	Shape    []int64 // rank 0 = scalar

	Buffer []byte // raw bytes, len == NumElements()*DataType.Size(), valid iff Initialize

	IsConst    bool
	Initialize bool
	Generate   bool
	IsIO       bool
	IsRecursive bool
	IsQuantized bool

	UnionIndex int // -1 when not assigned to a union slot

	Consumers []*Operator // non-owning back-references
	AliasOf   *Tensor     // non-owning; set for LSTM state aliasing

	// QuantizedScale/QuantizedZeroPoint record the per-tensor quantization
	// parameters when IsQuantized is set by make_quantized_copy.
	QuantizedScale     float32
	QuantizedZeroPoint int32
}

// NewTensor constructs a Tensor with UnionIndex defaulted to "unassigned".
func NewTensor(name string, dtype DType, shape []int64) *Tensor {
	return &Tensor{Name: name, DataType: dtype, Shape: append([]int64(nil), shape...), UnionIndex: -1}
}

// CName is this tensor's cify'd C identifier.
func (t *Tensor) CName() string { return Cify(t.Name) }

// Rank is len(Shape).
func (t *Tensor) Rank() int { return len(t.Shape) }

// NumElements is the product of Shape, 1 for a rank-0 scalar.
func (t *Tensor) NumElements() int64 {
	n := int64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// AddConsumer records op as a reader of t. Non-owning: op retains a pointer
// into the same graph arena, never the reverse.
func (t *Tensor) AddConsumer(op *Operator) {
	t.Consumers = append(t.Consumers, op)
}

// AllConsumersResolved reports whether every recorded consumer has finished
// resolve(); used by the unionization pass (§4.5) to decide slot liveness.
func (t *Tensor) AllConsumersResolved() bool {
	for _, c := range t.Consumers {
		if !c.IsResolved {
			return false
		}
	}
	return true
}

// Merge implements the graph builder's tensor-merge semantics (spec §4.1):
// adding a tensor whose name already exists in the graph OR-combines
// Initialize/IsIO, adopts buffer data if provided, and propagates the
// recursive flag.
func (t *Tensor) Merge(other *Tensor) error {
	if t.DataType != DUndefined && other.DataType != DUndefined && t.DataType != other.DataType {
		return Fail(BadInput, "Tensor.Merge", "tensor %q redefined with dtype %s, previously %s", t.Name, other.DataType, t.DataType)
	}
	if other.DataType != DUndefined {
		t.DataType = other.DataType
	}
	if len(other.Shape) > 0 {
		t.Shape = other.Shape
	}
	t.Initialize = t.Initialize || other.Initialize
	t.IsIO = t.IsIO || other.IsIO
	t.IsRecursive = t.IsRecursive || other.IsRecursive
	t.IsConst = t.IsConst || other.IsConst
	if other.Buffer != nil {
		t.Buffer = other.Buffer
	}
	return nil
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(%s, %s, shape=%v)", t.Name, t.DataType, t.Shape)
}
