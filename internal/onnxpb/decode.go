package onnxpb

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// field numbers from onnx/onnx.proto3, reproduced here as the only
// contract this decoder has with the upstream schema.
const (
	fModelIRVersion = 1
	fModelOpset     = 8
	fModelGraph     = 7
	fModelProducer  = 2

	fGraphNode        = 1
	fGraphName        = 2
	fGraphInitializer = 5
	fGraphInput       = 11
	fGraphOutput      = 12

	fNodeInput    = 1
	fNodeOutput   = 2
	fNodeName     = 3
	fNodeOpType   = 4
	fNodeAttr     = 5
	fNodeDomain   = 7

	fAttrName    = 1
	fAttrF       = 2
	fAttrI       = 3
	fAttrS       = 4
	fAttrT       = 5
	fAttrFloats  = 7
	fAttrInts    = 8
	fAttrStrings = 9
	fAttrType    = 20

	fTensorDims    = 1
	fTensorDType   = 2
	fTensorFloat   = 4
	fTensorInt32   = 5
	fTensorString  = 6
	fTensorInt64   = 7
	fTensorName    = 8
	fTensorRaw     = 9
	fTensorDouble  = 10
	fTensorUint64  = 11

	fValueInfoName = 1
	fValueInfoType = 2

	fTypeTensorType = 1
	fTensorTypeElem = 1
	fTensorTypeShape = 2
	fShapeDim       = 1
	fDimValue       = 1
	fDimParam       = 2

	fOpsetDomain  = 1
	fOpsetVersion = 2
)

// DecodeModel parses raw ONNX ModelProto bytes. Only the fields the
// compiler consults (opset_import, graph, plus ir_version/producer_name for
// diagnostics) are populated; unknown fields are skipped via protowire's
// length/width-aware cursor.
func DecodeModel(data []byte) (*ModelProto, error) {
	m := &ModelProto{}
	sawGraph := false
	err := eachField(data, func(num protowire.Number, typ protowire.Type, v []byte, scalar uint64) error {
		switch num {
		case fModelIRVersion:
			m.IRVersion = int64(scalar)
		case fModelProducer:
			m.ProducerName = string(v)
		case fModelOpset:
			op, err := decodeOpsetID(v)
			if err != nil {
				return err
			}
			m.OpsetImport = append(m.OpsetImport, op)
		case fModelGraph:
			g, err := decodeGraph(v)
			if err != nil {
				return err
			}
			m.Graph = g
			sawGraph = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !sawGraph {
		return nil, errors.New("model has no graph")
	}
	return m, nil
}

func decodeOpsetID(data []byte) (OperatorSetIdProto, error) {
	var o OperatorSetIdProto
	err := eachField(data, func(num protowire.Number, typ protowire.Type, v []byte, scalar uint64) error {
		switch num {
		case fOpsetDomain:
			o.Domain = string(v)
		case fOpsetVersion:
			o.Version = int64(scalar)
		}
		return nil
	})
	return o, err
}

func decodeGraph(data []byte) (GraphProto, error) {
	var g GraphProto
	err := eachField(data, func(num protowire.Number, typ protowire.Type, v []byte, scalar uint64) error {
		switch num {
		case fGraphName:
			g.Name = string(v)
		case fGraphNode:
			n, err := decodeNode(v)
			if err != nil {
				return err
			}
			g.Node = append(g.Node, n)
		case fGraphInitializer:
			t, err := decodeTensor(v)
			if err != nil {
				return err
			}
			g.Initializer = append(g.Initializer, t)
		case fGraphInput:
			vi, err := decodeValueInfo(v)
			if err != nil {
				return err
			}
			g.Input = append(g.Input, vi)
		case fGraphOutput:
			vi, err := decodeValueInfo(v)
			if err != nil {
				return err
			}
			g.Output = append(g.Output, vi)
		}
		return nil
	})
	return g, err
}

func decodeNode(data []byte) (NodeProto, error) {
	var n NodeProto
	err := eachField(data, func(num protowire.Number, typ protowire.Type, v []byte, scalar uint64) error {
		switch num {
		case fNodeInput:
			n.Input = append(n.Input, string(v))
		case fNodeOutput:
			n.Output = append(n.Output, string(v))
		case fNodeName:
			n.Name = string(v)
		case fNodeOpType:
			n.OpType = string(v)
		case fNodeDomain:
			n.Domain = string(v)
		case fNodeAttr:
			a, err := decodeAttribute(v)
			if err != nil {
				return err
			}
			n.Attribute = append(n.Attribute, a)
		}
		return nil
	})
	return n, err
}

func decodeAttribute(data []byte) (AttributeProto, error) {
	var a AttributeProto
	err := eachField(data, func(num protowire.Number, typ protowire.Type, v []byte, scalar uint64) error {
		switch num {
		case fAttrName:
			a.Name = string(v)
		case fAttrType:
			a.Type = AttributeType(int32(scalar))
		case fAttrF:
			a.F = math.Float32frombits(uint32(scalar))
		case fAttrI:
			a.I = int64(scalar)
		case fAttrS:
			a.S = append([]byte(nil), v...)
		case fAttrT:
			t, err := decodeTensor(v)
			if err != nil {
				return err
			}
			a.T = &t
		case fAttrFloats:
			a.Floats = append(a.Floats, decodePackedFloat32(typ, v, scalar)...)
		case fAttrInts:
			a.Ints = append(a.Ints, decodePackedVarint(typ, v, scalar)...)
		case fAttrStrings:
			a.Strings = append(a.Strings, append([]byte(nil), v...))
		}
		return nil
	})
	return a, err
}

func decodeTensor(data []byte) (TensorProto, error) {
	var t TensorProto
	err := eachField(data, func(num protowire.Number, typ protowire.Type, v []byte, scalar uint64) error {
		switch num {
		case fTensorDims:
			t.Dims = append(t.Dims, decodePackedVarint(typ, v, scalar)...)
		case fTensorDType:
			t.DataType = int32(scalar)
		case fTensorName:
			t.Name = string(v)
		case fTensorFloat:
			t.FloatData = append(t.FloatData, decodePackedFloat32(typ, v, scalar)...)
		case fTensorInt32:
			t.Int32Data = append(t.Int32Data, int32Slice(decodePackedVarint(typ, v, scalar))...)
		case fTensorString:
			t.StringData = append(t.StringData, append([]byte(nil), v...))
		case fTensorInt64:
			t.Int64Data = append(t.Int64Data, decodePackedVarint(typ, v, scalar)...)
		case fTensorRaw:
			t.RawData = append([]byte(nil), v...)
		case fTensorDouble:
			t.DoubleData = append(t.DoubleData, decodePackedFloat64(typ, v, scalar)...)
		case fTensorUint64:
			t.Uint64Data = append(t.Uint64Data, uint64Slice(decodePackedVarint(typ, v, scalar))...)
		}
		return nil
	})
	return t, err
}

func decodeValueInfo(data []byte) (ValueInfoProto, error) {
	var vi ValueInfoProto
	err := eachField(data, func(num protowire.Number, typ protowire.Type, v []byte, scalar uint64) error {
		switch num {
		case fValueInfoName:
			vi.Name = string(v)
		case fValueInfoType:
			tp, err := decodeType(v)
			if err != nil {
				return err
			}
			vi.Type = tp
		}
		return nil
	})
	return vi, err
}

func decodeType(data []byte) (TypeProto, error) {
	var tp TypeProto
	err := eachField(data, func(num protowire.Number, typ protowire.Type, v []byte, scalar uint64) error {
		if num != fTypeTensorType {
			return nil
		}
		return eachField(v, func(num2 protowire.Number, typ2 protowire.Type, v2 []byte, scalar2 uint64) error {
			switch num2 {
			case fTensorTypeElem:
				tp.ElemType = int32(scalar2)
			case fTensorTypeShape:
				shape, err := decodeShape(v2)
				if err != nil {
					return err
				}
				tp.Shape = shape
			}
			return nil
		})
	})
	return tp, err
}

func decodeShape(data []byte) ([]Dimension, error) {
	var dims []Dimension
	err := eachField(data, func(num protowire.Number, typ protowire.Type, v []byte, scalar uint64) error {
		if num != fShapeDim {
			return nil
		}
		var d Dimension
		err := eachField(v, func(num2 protowire.Number, typ2 protowire.Type, v2 []byte, scalar2 uint64) error {
			switch num2 {
			case fDimValue:
				d.HasValue = true
				d.Value = int64(scalar2)
			case fDimParam:
				d.Param = string(v2)
			}
			return nil
		})
		if err != nil {
			return err
		}
		dims = append(dims, d)
		return nil
	})
	return dims, err
}

// eachField walks every top-level field in a protobuf-encoded message,
// invoking fn with the field number, wire type, the raw bytes for
// length-delimited fields, and the decoded scalar for varint/fixed32/
// fixed64 fields. Unknown field numbers are simply ignored by callers,
// giving forward-compatibility with ONNX opset additions this compiler
// does not consult.
func eachField(data []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, scalar uint64) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "onnxpb: consume tag")
		}
		data = data[n:]

		switch typ {
		case protowire.VarintType:
			val, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return errors.Wrap(protowire.ParseError(n), "onnxpb: consume varint")
			}
			data = data[n:]
			if err := fn(num, typ, nil, val); err != nil {
				return err
			}
		case protowire.Fixed32Type:
			val, n := protowire.ConsumeFixed32(data)
			if n < 0 {
				return errors.Wrap(protowire.ParseError(n), "onnxpb: consume fixed32")
			}
			data = data[n:]
			if err := fn(num, typ, nil, uint64(val)); err != nil {
				return err
			}
		case protowire.Fixed64Type:
			val, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return errors.Wrap(protowire.ParseError(n), "onnxpb: consume fixed64")
			}
			data = data[n:]
			if err := fn(num, typ, nil, val); err != nil {
				return err
			}
		case protowire.BytesType:
			val, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return errors.Wrap(protowire.ParseError(n), "onnxpb: consume bytes")
			}
			data = data[n:]
			if err := fn(num, typ, val, 0); err != nil {
				return err
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return errors.Wrap(protowire.ParseError(n), "onnxpb: consume unknown field")
			}
			data = data[n:]
		}
	}
	return nil
}

// decodePackedVarint decodes a repeated int64/int32 field that may appear
// either packed (a single BytesType field of concatenated varints, the
// proto3 default) or unpacked (one VarintType field per element, as older
// writers emit).
func decodePackedVarint(typ protowire.Type, v []byte, scalar uint64) []int64 {
	if typ == protowire.VarintType {
		return []int64{int64(scalar)}
	}
	var out []int64
	for len(v) > 0 {
		val, n := protowire.ConsumeVarint(v)
		if n < 0 {
			return out
		}
		out = append(out, int64(val))
		v = v[n:]
	}
	return out
}

func decodePackedFloat32(typ protowire.Type, v []byte, scalar uint64) []float32 {
	if typ == protowire.Fixed32Type {
		return []float32{math.Float32frombits(uint32(scalar))}
	}
	var out []float32
	for len(v) >= 4 {
		bits := binary.LittleEndian.Uint32(v[:4])
		out = append(out, math.Float32frombits(bits))
		v = v[4:]
	}
	return out
}

func decodePackedFloat64(typ protowire.Type, v []byte, scalar uint64) []float64 {
	if typ == protowire.Fixed64Type {
		return []float64{math.Float64frombits(scalar)}
	}
	var out []float64
	for len(v) >= 8 {
		bits := binary.LittleEndian.Uint64(v[:8])
		out = append(out, math.Float64frombits(bits))
		v = v[8:]
	}
	return out
}

func int32Slice(in []int64) []int32 {
	out := make([]int32, len(in))
	for i, v := range in {
		out[i] = int32(v)
	}
	return out
}

func uint64Slice(in []int64) []uint64 {
	out := make([]uint64, len(in))
	for i, v := range in {
		out[i] = uint64(v)
	}
	return out
}
